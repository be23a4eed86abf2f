package otp

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when no record matches a lookup.
var ErrNotFound = errors.New("otp record not found")

// Store persists verification records. MemoryStore, PostgresStore and
// RedisStore implement it.
type Store interface {
	// DeleteAllFor removes every record issued to address. Deleting nothing
	// is not an error.
	DeleteAllFor(ctx context.Context, address string) error

	// Save inserts r when r.ID is uuid.Nil (assigning ID and stamping
	// IssuedAt if unset) and otherwise updates it. UpdatedAt is refreshed on
	// every call. An update never clears Consumed.
	Save(ctx context.Context, r *Record) error

	// FindByAddressAndCode returns the most recently issued record for the
	// (address, code) pair, or ErrNotFound.
	FindByAddressAndCode(ctx context.Context, address, code string) (*Record, error)

	// DeleteExpiredBefore removes every record whose ExpiresAt is strictly
	// before ts and returns how many were removed.
	DeleteExpiredBefore(ctx context.Context, ts time.Time) (int64, error)
}
