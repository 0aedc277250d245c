// Package identity holds the front-end's own user accounts and turns an
// authenticated account into the Identity credentials are issued for.
package identity

import (
	"strings"
	"time"

	"github.com/abernathy/patientfront/internal/credential"
)

// Role is the closed set of roles an application user can hold.
type Role string

const (
	RoleOrganizer Role = "Organizer"
	RolePraticien Role = "Praticien"
)

// ParseRole maps a stored role name onto the closed set. Anything that is
// not an organizer is a practitioner.
func ParseRole(s string) Role {
	switch strings.TrimSpace(s) {
	case string(RoleOrganizer):
		return RoleOrganizer
	case string(RolePraticien):
		return RolePraticien
	default:
		return RolePraticien
	}
}

// User maps to the app_users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Identity returns the authenticated identity of u.
func (u *User) Identity() *credential.Identity {
	return &credential.Identity{
		Username:      u.Username,
		Roles:         []string{string(ParseRole(string(u.Role)))},
		Authenticated: true,
	}
}
