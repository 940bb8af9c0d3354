package domain

import "strings"

// Role is the authorization role carried by an actor.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// ParseRole normalizes a raw role value. Unknown values are returned as-is
// and are rejected by the role gate.
func ParseRole(raw string) Role {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return RoleUser
	}
	return Role(raw)
}

// Actor is the identity behind an inbound operation. A missing identity is
// represented by a nil *Actor, never by a role.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
