package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists verification records in the otp_verifications table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// DeleteAllFor implements Store.
func (s *PostgresStore) DeleteAllFor(ctx context.Context, address string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM otp_verifications WHERE email = $1`, address); err != nil {
		return fmt.Errorf("delete otp records: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	if stampForSave(r, time.Now().UTC()) {
		_, err := s.db.Exec(ctx,
			`INSERT INTO otp_verifications (id, email, otp, expiry_time, verified, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, r.Address, r.Code, r.ExpiresAt, r.Consumed, r.IssuedAt, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert otp record: %w", err)
		}
		return nil
	}

	// verified is OR-ed so a stale write can never un-consume a record.
	err := s.db.QueryRow(ctx,
		`UPDATE otp_verifications
		 SET verified = verified OR $2, expiry_time = $3, updated_at = $4
		 WHERE id = $1
		 RETURNING verified`,
		r.ID, r.Consumed, r.ExpiresAt, r.UpdatedAt,
	).Scan(&r.Consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update otp record: %w", err)
	}
	return nil
}

// FindByAddressAndCode implements Store.
func (s *PostgresStore) FindByAddressAndCode(ctx context.Context, address, code string) (*Record, error) {
	r := &Record{}
	err := s.db.QueryRow(ctx,
		`SELECT id, email, otp, expiry_time, verified, created_at, updated_at
		 FROM otp_verifications
		 WHERE email = $1 AND otp = $2
		 ORDER BY created_at DESC
		 LIMIT 1`, address, code,
	).Scan(&r.ID, &r.Address, &r.Code, &r.ExpiresAt, &r.Consumed, &r.IssuedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find otp record: %w", err)
	}
	return r, nil
}

// DeleteExpiredBefore implements Store.
func (s *PostgresStore) DeleteExpiredBefore(ctx context.Context, ts time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM otp_verifications WHERE expiry_time < $1`, ts)
	if err != nil {
		return 0, fmt.Errorf("delete expired otp records: %w", err)
	}
	return tag.RowsAffected(), nil
}
