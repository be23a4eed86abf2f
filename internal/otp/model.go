package otp

import (
	"time"

	"github.com/google/uuid"
)

// Record is a single one-time-passcode challenge issued to an email address.
// At most one unexpired, unconsumed Record exists per address; the Engine
// enforces this by deleting older records whenever it issues a new one.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Address   string    `json:"email"`
	Code      string    `json:"otp"`
	IssuedAt  time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expiry_time"`
	Consumed  bool      `json:"verified"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the record's deadline has passed at now.
// A record is still valid at exactly its ExpiresAt instant.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Live reports whether the record can still be verified at now.
func (r *Record) Live(now time.Time) bool {
	return !r.Consumed && !r.Expired(now)
}

// stampForSave sets timestamps the way every Store's Save does: IssuedAt is
// filled on first insert when the caller left it zero, UpdatedAt on every write.
func stampForSave(r *Record, now time.Time) (insert bool) {
	insert = r.ID == uuid.Nil
	if insert {
		r.ID = uuid.New()
		if r.IssuedAt.IsZero() {
			r.IssuedAt = now
		}
	}
	r.UpdatedAt = now
	return insert
}
