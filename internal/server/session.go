package server

import (
	"errors"
	"strings"

	"cnom/internal/access"
	"cnom/internal/cache"
	"cnom/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

const (
	// HeaderDemoSession carries the opaque demo session token.
	HeaderDemoSession = "X-Demo-Session"

	localSession  = "session"
	localDecision = "decision"
)

// ResolveSession attaches the request's access.Session to the Fiber locals.
// A live demo token wins over a bearer token; anything unverifiable is anonymous.
func (s *Server) ResolveSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isWebhookPath(c) {
			return c.Next()
		}

		sess := s.sessionFromRequest(c)
		c.Locals(localSession, sess)

		ctx := c.UserContext()
		switch v := sess.(type) {
		case access.Demo:
			c.Locals(middleware.LocalUserID, "demo:"+v.Token)
			ctx = middleware.WithUserID(ctx, "demo:"+v.Token)
		case access.Authenticated:
			c.Locals(middleware.LocalUserID, v.PrincipalID)
			ctx = middleware.WithUserID(ctx, v.PrincipalID)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func (s *Server) sessionFromRequest(c *fiber.Ctx) access.Session {
	ctx := c.UserContext()

	if token := demoToken(c); token != "" {
		stored, err := s.demoSessions.Get(ctx, token)
		switch {
		case err == nil:
			if role, ok := access.ParseRole(stored.Role); ok {
				identity, _ := s.catalog.Lookup(role)
				return access.Demo{Token: stored.Token, Role: role, Identity: identity}
			}
		case !errors.Is(err, cache.ErrDemoSessionNotFound):
			middleware.Logger.WarnContext(ctx, "demo session lookup failed", "error", err)
		}
	}

	tokenString, err := middleware.BearerToken(c)
	if err != nil && strings.HasPrefix(c.Path(), "/api/ws/") {
		// Browsers cannot set headers on a WebSocket handshake.
		tokenString, err = c.Query("access_token"), nil
	}
	if err != nil || tokenString == "" {
		return access.Anonymous{}
	}

	principal, err := s.verifier.Verify(tokenString)
	if err != nil {
		return access.Anonymous{}
	}
	return access.Authenticated{PrincipalID: principal.ID, Email: principal.Email}
}

func demoToken(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Get(HeaderDemoSession)); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("demo_session"))
}

// currentSession returns the session attached by ResolveSession.
func currentSession(c *fiber.Ctx) access.Session {
	if sess, ok := c.Locals(localSession).(access.Session); ok {
		return sess
	}
	return access.Anonymous{}
}

// RequireRoles rejects requests whose session role is not in allowed.
// Unauthenticated sessions get 401, everything else 403; both carry the
// route the client should redirect to.
func (s *Server) RequireRoles(allowed ...access.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := s.resolver.Resolve(c.UserContext(), currentSession(c), allowed...)
		c.Locals(localDecision, decision)

		if !decision.HasAccess {
			status, msg := fiber.StatusForbidden, "Insufficient role"
			if decision.State == access.StateUnauthenticated {
				status, msg = fiber.StatusUnauthorized, "Authentication required"
			}
			return c.Status(status).JSON(fiber.Map{
				"error":    msg,
				"redirect": decision.Redirect,
			})
		}

		if decision.Role != nil {
			role := string(*decision.Role)
			c.Locals(middleware.LocalRole, role)
			c.SetUserContext(middleware.WithRole(c.UserContext(), role))
		}
		return c.Next()
	}
}

// grantedRole returns the role bound by RequireRoles.
func grantedRole(c *fiber.Ctx) access.Role {
	if d, ok := c.Locals(localDecision).(access.Decision); ok && d.Role != nil {
		return *d.Role
	}
	return ""
}
