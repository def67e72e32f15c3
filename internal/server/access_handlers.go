package server

import (
	"strings"
	"time"

	"cnom/internal/access"
	"cnom/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// GetAccess resolves the caller's session against a route's allowed roles.
// @Summary Resolve route access
// @Description Used by UI route guards. roles is a comma separated allowed set and may include "public".
// @Tags access
// @Produce json
// @Param roles query string true "allowed roles, e.g. admin,tresorier"
// @Param X-Demo-Session header string false "demo session token"
// @Success 200 {object} access.Decision
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /access [get]
func (s *Server) GetAccess(c *fiber.Ctx) error {
	raw := c.Query("roles")
	if strings.TrimSpace(raw) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("roles query parameter is required"))
	}
	allowed, unknown := access.ParseAllowed(raw)
	if len(unknown) > 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown role: "+strings.Join(unknown, ", ")))
	}

	decision := s.resolver.Resolve(c.UserContext(), currentSession(c), allowed...)
	return c.JSON(decision)
}

type demoIdentityResponse struct {
	Role access.Role `json:"role"`
	access.Identity
}

type createDemoSessionRequest struct {
	Role       string `json:"role"`
	AccessCode string `json:"access_code"`
}

type demoSessionResponse struct {
	Token     string          `json:"token"`
	Role      access.Role     `json:"role"`
	Identity  access.Identity `json:"identity"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// GetDemoIdentities lists the identity shown for each demo role.
// @Summary List demo identities
// @Tags demo
// @Produce json
// @Success 200 {array} demoIdentityResponse
// @Router /demo/identities [get]
func (s *Server) GetDemoIdentities(c *fiber.Ctx) error {
	out := make([]demoIdentityResponse, 0, len(access.Roles))
	for _, role := range access.Roles {
		if identity, ok := s.catalog.Lookup(role); ok {
			out = append(out, demoIdentityResponse{Role: role, Identity: identity})
		}
	}
	return c.JSON(out)
}

// CreateDemoSession starts a demo session bound to one role.
// @Summary Start a demo session
// @Tags demo
// @Accept json
// @Produce json
// @Param request body createDemoSessionRequest true "demo role and optional access code"
// @Success 201 {object} demoSessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /demo/session [post]
func (s *Server) CreateDemoSession(c *fiber.Ctx) error {
	var req createDemoSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	role, ok := access.ParseRole(req.Role)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown role"))
	}

	if hash := s.config.DemoAccessCodeHash; hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.AccessCode)); err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid access code"))
		}
	}

	sess, err := s.demoSessions.Create(c.UserContext(), string(role))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	identity, _ := s.catalog.Lookup(role)

	return c.Status(fiber.StatusCreated).JSON(demoSessionResponse{
		Token:     sess.Token,
		Role:      role,
		Identity:  identity,
		ExpiresAt: sess.ExpiresAt,
	})
}

// DeleteDemoSession ends the caller's demo session. Unknown tokens are ignored.
// @Summary End a demo session
// @Tags demo
// @Param X-Demo-Session header string true "demo session token"
// @Success 204
// @Router /demo/session [delete]
func (s *Server) DeleteDemoSession(c *fiber.Ctx) error {
	if err := s.demoSessions.Delete(c.UserContext(), demoToken(c)); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
