package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	"rankwise/internal/models"
)

const identityKey = "identity"

// IdentityResolver resolves a caller identity. It never fails.
type IdentityResolver interface {
	Resolve(ctx context.Context, token, address string) models.CallerIdentity
}

// AuthMiddleware resolves the caller identity once per request.
type AuthMiddleware struct {
	resolver IdentityResolver
	// trustForwarded takes the client address from X-Forwarded-For; only
	// safe behind a proxy that overwrites the header.
	trustForwarded bool
}

// NewAuthMiddleware creates a new auth middleware instance.
func NewAuthMiddleware(resolver IdentityResolver, trustForwarded bool) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver, trustForwarded: trustForwarded}
}

// Identify stores the caller identity in the request locals. Requests
// without a usable bearer token continue as anonymous callers.
func (m *AuthMiddleware) Identify(c fiber.Ctx) error {
	token := BearerToken(c.Get(fiber.HeaderAuthorization))
	identity := m.resolver.Resolve(c.Context(), token, m.clientAddress(c))
	c.Locals(identityKey, identity)
	return c.Next()
}

func (m *AuthMiddleware) clientAddress(c fiber.Ctx) string {
	if m.trustForwarded {
		if addr := ForwardedAddress(c.Get(fiber.HeaderXForwardedFor)); addr != "" {
			return addr
		}
	}
	return c.IP()
}

// GetIdentity returns the identity stored by Identify, or an anonymous
// identity keyed by the connection address when the middleware did not run.
func GetIdentity(c fiber.Ctx) models.CallerIdentity {
	if identity, ok := c.Locals(identityKey).(models.CallerIdentity); ok {
		return identity
	}
	return models.AnonymousIdentity(c.IP())
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ForwardedAddress returns the first (client) entry of an X-Forwarded-For value.
func ForwardedAddress(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
