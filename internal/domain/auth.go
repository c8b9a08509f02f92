package domain

import "time"

// Identity is the set of claims embedded in a token at mint time.
type Identity struct {
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthenticatedContext describes the caller of a single verified request.
type AuthenticatedContext struct {
	Subject string
	Role    Role
}

// Context projects the request-scoped view of an identity.
func (i Identity) Context() AuthenticatedContext {
	return AuthenticatedContext{Subject: i.Subject, Role: i.Role}
}

// HasRole reports whether the caller holds one of the given roles.
func (a AuthenticatedContext) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
