package auth

import (
	"context"
	"strings"

	"github.com/Clark-Hu/cinemateca/internal/domain"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

// IdentityFromClaims projects verified claims onto an Identity.
func IdentityFromClaims(c *Claims) Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Role: c.Role}
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Predicate decides whether an authenticated caller may proceed.
type Predicate func(Identity) bool

// IsAdmin admits administrators only.
func IsAdmin(id Identity) bool {
	return id.Role == domain.RoleAdmin
}

// AnyRole admits callers holding one of roles.
func AnyRole(roles ...string) Predicate {
	return func(id Identity) bool {
		for _, r := range roles {
			if id.Role == r {
				return true
			}
		}
		return false
	}
}

// CanActOn reports whether the caller may modify a resource owned by ownerID.
func CanActOn(id Identity, ownerID int64) bool {
	return IsAdmin(id) || id.UserID == ownerID
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
