package domain

import "time"

// Role names as stored in the roles table.
const (
	RoleAdmin  = "Administrador"
	RoleClient = "Cliente"
)

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	RoleName     string
	RegisteredAt time.Time
	Active       bool
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.RoleName == RoleAdmin
}

// UserRef is the public projection of a user attached to other aggregates.
type UserRef struct {
	ID       int64
	Username string
	Email    string
}
