package users

import "strings"

// Role is the operational role of an account, in console (UI) spelling.
type Role string

const (
	RolePicking Role = "picking"
	RoleInbound Role = "in-bound"
	RoleAdmin   Role = "admin"
	RoleAllOps  Role = "all-ops"
)

// Roles lists the selectable roles in display order.
var Roles = []Role{RolePicking, RoleInbound, RoleAdmin, RoleAllOps}

// wireRoles maps console spelling to the spelling the service stores.
var wireRoles = map[Role]string{
	RolePicking: "picking",
	RoleInbound: "inbound",
	RoleAdmin:   "admin",
	RoleAllOps:  "all_ops",
}

// Wire returns the service spelling of r.
func (r Role) Wire() string {
	if w, ok := wireRoles[r]; ok {
		return w
	}
	return string(r)
}

// ParseRole accepts either spelling in any case.
func ParseRole(s string) (Role, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for role, wire := range wireRoles {
		if key == string(role) || key == wire {
			return role, true
		}
	}
	return "", false
}

// WireRole translates a raw role value for transmission. Unknown values are only
// lower-cased; the service is left to reject them.
func WireRole(s string) string {
	if role, ok := ParseRole(s); ok {
		return role.Wire()
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// UserType is the access level of an account.
type UserType string

const (
	TypeAdmin     UserType = "admin"
	TypeReadOnly  UserType = "read_only"
	TypeReadWrite UserType = "read_write"
)

// Types lists the selectable account types in display order.
var Types = []UserType{TypeAdmin, TypeReadOnly, TypeReadWrite}

// ParseType accepts "Read_only", "read-only" and "read only" alike.
func ParseType(s string) (UserType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for _, t := range Types {
		if key == string(t) {
			return t, true
		}
	}
	return "", false
}

// WireType normalises a raw type value for transmission.
func WireType(s string) string {
	if t, ok := ParseType(s); ok {
		return string(t)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// Form defaults for a new account.
const (
	DefaultType = TypeReadOnly
	DefaultRole = RolePicking
)
