package models

import "time"

// Role defines the access level of an owner.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Owner represents a registered customer or administrator
type Owner struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Not serialized
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	Locked       bool      `json:"locked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity is the authenticated caller resolved from a request token.
// Handlers pass it explicitly into services; services never read it
// from ambient state.
type Identity struct {
	OwnerID int64
	Email   string
	Role    Role
}

// IsAdmin reports whether the identity may call administrator operations.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
