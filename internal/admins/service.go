package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

// Sentinel errors returned by Service.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrMissingField       = errors.New("name, email, phone and password are required")
	// ErrCodeNotVerified is returned by ResetPassword when the reset code was
	// never verified, is unknown, or has expired.
	ErrCodeNotVerified = errors.New("reset code not verified")
)

// adminRepo is the storage interface consumed by Service.
type adminRepo interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// resetCodes is the part of *otp.Engine the password-recovery flow uses.
type resetCodes interface {
	Issue(ctx context.Context, address, displayName string) (string, error)
	Verify(ctx context.Context, address, code string) (bool, error)
	Check(ctx context.Context, address, code string) (bool, error)
	SendResetConfirmation(ctx context.Context, address, displayName string) error
}

// Service implements admin registration, login and password recovery.
type Service struct {
	repo     adminRepo
	codes    resetCodes
	hashCost int
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo adminRepo, codes resetCodes, logger *zap.Logger) *Service {
	return &Service{repo: repo, codes: codes, hashCost: bcrypt.DefaultCost, logger: logger}
}

// SetHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) SetHashCost(cost int) {
	s.hashCost = cost
}

// Register creates an admin account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, reg Registration) (*Admin, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = otp.NormalizeAddress(reg.Email)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if reg.Name == "" || reg.Email == "" || reg.Phone == "" || reg.Password == "" {
		return nil, ErrMissingField
	}
	if len(reg.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &Admin{
		Name:          reg.Name,
		Email:         reg.Email,
		Phone:         reg.Phone,
		PasswordHash:  string(hash),
		HostelAddress: strings.TrimSpace(reg.HostelAddress),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicatePhone) {
			return nil, err
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	s.logger.Info("admin registered", zap.String("admin_id", a.ID.String()))
	return a, nil
}

// Login verifies email/password credentials and returns the admin on success.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*Admin, error) {
	a, err := s.repo.GetByEmail(ctx, otp.NormalizeAddress(emailAddr))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// GetByID retrieves an admin by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return s.repo.GetByID(ctx, id)
}

// ForgotPassword emails a one-time reset code to the admin registered under
// emailAddr. Unknown addresses return nil so callers cannot probe which
// emails have accounts.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	a, err := s.repo.GetByEmail(ctx, otp.NormalizeAddress(emailAddr))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup admin: %w", err)
	}

	if _, err := s.codes.Issue(ctx, a.Email, a.Name); err != nil {
		return fmt.Errorf("issue reset code: %w", err)
	}
	return nil
}

// VerifyResetCode consumes the reset code. It reports false for unknown,
// expired or already used codes.
func (s *Service) VerifyResetCode(ctx context.Context, emailAddr, code string) (bool, error) {
	return s.codes.Verify(ctx, emailAddr, code)
}

// ResetPassword sets a new password once code has been verified. The
// confirmation email is best effort.
func (s *Service) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}

	emailAddr = otp.NormalizeAddress(emailAddr)
	verified, err := s.codes.Check(ctx, emailAddr, code)
	if err != nil {
		return fmt.Errorf("check reset code: %w", err)
	}
	if !verified {
		return ErrCodeNotVerified
	}

	a, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, a.ID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	if err := s.codes.SendResetConfirmation(ctx, a.Email, a.Name); err != nil {
		s.logger.Warn("send reset confirmation",
			zap.String("admin_id", a.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("password reset", zap.String("admin_id", a.ID.String()))
	return nil
}
