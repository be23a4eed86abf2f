package admins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an admin lookup finds no matching record.
var ErrNotFound = errors.New("admin not found")

// ErrDuplicateEmail is returned when registering an email that already has an account.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrDuplicatePhone is returned when registering a phone number that already has an account.
var ErrDuplicatePhone = errors.New("phone number already registered")

const adminColumns = `id, name, email, phone, password_hash, hostel_address, created_at, updated_at`

// Repository persists admins in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new admin. Sets ID, CreatedAt and UpdatedAt on a.
func (r *Repository) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	q := `
		INSERT INTO admins (` + adminColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q,
		a.ID, a.Name, a.Email, a.Phone, a.PasswordHash,
		a.HostelAddress, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "admins_phone_key" {
				return ErrDuplicatePhone
			}
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// GetByID retrieves an admin by UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return r.scanOne(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
}

// GetByEmail retrieves an admin by email address.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	return r.scanOne(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email)
}

// SetPasswordHash replaces an admin's password hash.
func (r *Repository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	q := `UPDATE admins SET password_hash = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(ctx context.Context, q string, args ...any) (*Admin, error) {
	var a Admin
	err := r.db.QueryRow(ctx, q, args...).Scan(
		&a.ID, &a.Name, &a.Email, &a.Phone, &a.PasswordHash,
		&a.HostelAddress, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}
