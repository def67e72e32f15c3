// Package middleware provides request-scoped logging, tracing, metrics, rate limiting
// and bearer token verification for the HTTP server.
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token verification failures.
var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrInvalidSubject = errors.New("invalid subject claim")
)

// TokenVerifier validates HS256 bearer tokens issued by the identity provider.
// Issuer and Audience are only checked when non-empty.
type TokenVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// Principal is the authenticated identity carried by a verified token.
type Principal struct {
	ID    string
	Email string
}

// NewTokenVerifier returns a verifier for the given shared secret and expected claims.
func NewTokenVerifier(secret, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{Secret: []byte(secret), Issuer: issuer, Audience: audience}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// Verify parses tokenString and returns the principal named by its subject claim.
// The subject must be a UUID.
func (v *TokenVerifier) Verify(tokenString string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, ErrInvalidSubject
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, ErrInvalidSubject
	}

	email, _ := claims["email"].(string)
	return Principal{ID: id.String(), Email: email}, nil
}
