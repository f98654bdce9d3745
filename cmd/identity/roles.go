package identity

import "strings"

// Role names are stored verbatim and compared case-sensitively after
// normalization at the write boundary.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// NormalizeRole lower-cases and trims a role, defaulting to RoleUser.
func NormalizeRole(s string) string {
	r := strings.ToLower(strings.TrimSpace(s))
	if r == "" {
		return RoleUser
	}
	return r
}

// ValidRole reports whether r is a recognized role name.
func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}
