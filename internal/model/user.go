package model

import "time"

// Role is the authorization level of a user.  Roles only move upward and
// only through an explicit promotion.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User mirrors the `users` table.
//
// Fields:
//  ID               – primary key identifier of the user.
//  Email            – unique, normalized (lowercase) email address.
//  PasswordHash     – bcrypt hash of the password.
//  Role             – USER, ADMIN or SUPER_ADMIN.
//  RefreshTokenHash – hash of the most recently issued refresh token, nil when no session is bound.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
	ID               uint64
	Email            string
	PasswordHash     string
	Role             Role
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Identity is the credential-free view of a user that leaves the service layer.
type Identity struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity strips credentials from u.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}
