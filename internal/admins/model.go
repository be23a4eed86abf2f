package admins

import (
	"time"

	"github.com/google/uuid"
)

// Admin is the owner account of a PG/hostel property.
type Admin struct {
	ID            uuid.UUID `json:"id"             db:"id"`
	Name          string    `json:"name"           db:"name"`
	Email         string    `json:"email"          db:"email"`
	Phone         string    `json:"phone"          db:"phone"`
	PasswordHash  string    `json:"-"              db:"password_hash"`
	HostelAddress string    `json:"hostel_address" db:"hostel_address"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}

// Registration is the input to Service.Register.
type Registration struct {
	Name          string
	Email         string
	Phone         string
	Password      string
	HostelAddress string
}
