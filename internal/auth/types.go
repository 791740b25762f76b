package auth

import (
	"errors"
	"regexp"
)

// ownerPattern bounds the owner names a token may carry.
var ownerPattern = regexp.MustCompile(`^[a-zA-Z0-9@._-]{1,64}$`)

// IsValidOwner checks if an owner name meets format requirements.
func IsValidOwner(owner string) bool {
	return ownerPattern.MatchString(owner)
}

// Role represents which API a caller may use.
type Role string

const (
	// RoleUser submits tasks and reads its own tasks and results.
	RoleUser Role = "user"

	// RoleProvider is a backend execution worker for one or more devices.
	RoleProvider Role = "provider"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleUser, RoleProvider}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Identity is the authenticated caller of a request.
type Identity struct {
	Owner string
	Role  Role
}

// Sentinel errors.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrInvalidOwner = errors.New("invalid owner")
	ErrInvalidRole  = errors.New("invalid role")
)
