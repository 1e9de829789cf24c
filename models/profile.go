package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's privilege level
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile represents a user account with real and demo balances.
// All monetary amounts are in cents.
type Profile struct {
	ID          uuid.UUID `db:"id"`
	Email       string    `db:"email"`
	Username    string    `db:"username"`
	Balance     int64     `db:"balance"`
	DemoBalance int64     `db:"demo_balance"`
	IsDemo      bool      `db:"is_demo"`
	IsSuspended bool      `db:"is_suspended"`
	Role        Role      `db:"role"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ActiveBalance returns whichever balance the demo flag selects.
func (p *Profile) ActiveBalance() int64 {
	if p.IsDemo {
		return p.DemoBalance
	}
	return p.Balance
}
