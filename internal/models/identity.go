package models

// Identity is the authenticated caller of a request. It is produced once by
// the authentication middleware and passed explicitly to services.
type Identity struct {
	PrincipalID string
	Username    string
	Role        Role
}

func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
