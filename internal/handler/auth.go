package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pgmhq/pgm-backend/internal/admins"
	"github.com/pgmhq/pgm-backend/internal/identity"
	"github.com/pgmhq/pgm-backend/internal/otp"
	"go.uber.org/zap"
)

// adminSvc is the interface expected by AuthHandler, satisfied by *admins.Service.
type adminSvc interface {
	Register(ctx context.Context, reg admins.Registration) (*admins.Admin, error)
	Login(ctx context.Context, email, password string) (*admins.Admin, error)
	GetByID(ctx context.Context, id uuid.UUID) (*admins.Admin, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email, code string) (bool, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// AuthHandler handles admin authentication and password-recovery routes.
type AuthHandler struct {
	admins adminSvc
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc adminSvc, tokens *identity.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{admins: svc, tokens: tokens, logger: logger}
}

// Register mounts all auth routes on the provided router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/verify-otp", h.VerifyOTP)
		auth.POST("/reset-password", h.ResetPassword)
	}
	rg.GET("/admin/me", identity.RequireAdmin(h.tokens), h.Me)
}

// ─── Request types ───────────────────────────────────────────────────────────

type signupRequest struct {
	Name          string `json:"name"           binding:"required"`
	Email         string `json:"email"          binding:"required,email"`
	Phone         string `json:"phone"          binding:"required"`
	Password      string `json:"password"       binding:"required"`
	HostelAddress string `json:"hostel_address"`
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"        binding:"required,email"`
	OTP         string `json:"otp"          binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

// Signup handles POST /auth/register: creates an admin account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.admins.Register(c.Request.Context(), admins.Registration{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Password:      req.Password,
		HostelAddress: req.HostelAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, admins.ErrDuplicateEmail), errors.Is(err, admins.ErrDuplicatePhone):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, admins.ErrMissingField), errors.Is(err, admins.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("register admin", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	h.respondWithToken(c, http.StatusCreated, a)
}

// Login handles POST /auth/login: authenticates with email/password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.admins.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, admins.ErrInvalidCredentials) {
			h.logger.Error("login", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, a)
}

// ForgotPassword handles POST /auth/forgot-password: emails a reset code.
// The response is the same whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.admins.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, otp.ErrDelivery) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not send the reset code, try again later"})
			return
		}
		h.logger.Error("forgot password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password reset request failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "if that email is registered, a reset code has been sent"})
}

// VerifyOTP handles POST /auth/verify-otp: consumes a reset code.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.admins.VerifyResetCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.logger.Error("verify otp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired OTP"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// ResetPassword handles POST /auth/reset-password: sets a new password once
// the code has been verified.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.admins.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, admins.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, admins.ErrCodeNotVerified):
			c.JSON(http.StatusBadRequest, gin.H{"error": "OTP not verified"})
		case errors.Is(err, admins.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
		default:
			h.logger.Error("reset password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "password reset failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated, please log in with your new password"})
}

// Me handles GET /admin/me: returns the authenticated admin.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := identity.ClaimsFromCtx(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, err := uuid.Parse(claims.AdminID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		return
	}

	a, err := h.admins.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, admins.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "admin not found"})
			return
		}
		h.logger.Error("get admin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"admin": a})
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, a *admins.Admin) {
	tok, err := h.tokens.Issue(a.ID.String(), a.Email)
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(status, gin.H{
		"admin":      a,
		"token":      tok,
		"expires_in": int(h.tokens.TTL().Seconds()),
	})
}
