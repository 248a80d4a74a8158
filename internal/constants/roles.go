package constants

// User roles
const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
	RoleUser    = "user"
)

// Auth types
const (
	AuthTypeJWT = "jwt"
)

// Context keys set by the auth middleware
const (
	IdentityKey = "identity"
	IsAdminKey  = "isAdmin"
)

// IsValidRole reports whether role is one that can be assigned through the API.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleSupport, RoleUser:
		return true
	default:
		return false
	}
}
