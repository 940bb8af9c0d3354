package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util"
)

const actorKey = "auth_actor"

// Identity headers set by the upstream authentication layer.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// IdentityMiddleware attaches the caller's actor to the request, if any.
// It never rejects anonymous requests; the role gate decides that per action.
type IdentityMiddleware struct {
	tokens       *TokenManager
	trustHeaders bool
}

// NewIdentityMiddleware constructs middleware. A nil token manager disables
// bearer tokens.
func NewIdentityMiddleware(tokens *TokenManager, trustHeaders bool) *IdentityMiddleware {
	return &IdentityMiddleware{tokens: tokens, trustHeaders: trustHeaders}
}

// Handle resolves the actor from a bearer token or the identity headers.
// Header values are copied: fiber reuses their backing buffers once the
// request completes, and the actor id outlives it in stored tickets.
func (m *IdentityMiddleware) Handle(c *fiber.Ctx) error {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" && m.tokens != nil {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}
		claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return apperrors.NewUnauthorized("invalid token")
		}
		c.Locals(actorKey, claims.Actor())
		return c.Next()
	}

	if m.trustHeaders {
		if userID := strings.TrimSpace(c.Get(HeaderUserID)); userID != "" {
			c.Locals(actorKey, &domain.Actor{
				ID:   utils.CopyString(userID),
				Role: domain.ParseRole(utils.CopyString(c.Get(HeaderUserRole))),
			})
		}
	}
	return c.Next()
}

// ActorFromContext retrieves the caller, or nil when unauthenticated.
func ActorFromContext(c *fiber.Ctx) *domain.Actor {
	actor, ok := c.Locals(actorKey).(*domain.Actor)
	if !ok {
		return nil
	}
	return actor
}

// Require rejects the request early when the gate denies action.
func Require(action Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := Check(ActorFromContext(c), action); err != nil {
			return err
		}
		return c.Next()
	}
}
