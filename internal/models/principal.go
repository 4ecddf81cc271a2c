package models

import "time"

type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleTeacher          Role = "TEACHER"
	RoleStudent          Role = "STUDENT"
	RoleFormationManager Role = "FORMATION_MANAGER"
	RoleAdministration   Role = "ADMINISTRATION"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleFormationManager, RoleAdministration}

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Principal is a user account. PasswordHash is excluded from JSON and must
// never be attached to log events.
type Principal struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
