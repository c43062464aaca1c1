package models

// Role is the self-declared job function of a business account.
type Role string

const (
	RoleDesigner Role = "Designer"
	RoleEditor   Role = "Editor"
	RoleManager  Role = "Manager"
	RoleOthers   Role = "Others"
)

// Roles lists every role accepted at registration.
var Roles = []Role{RoleDesigner, RoleEditor, RoleManager, RoleOthers}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
