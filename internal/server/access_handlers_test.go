package server

import (
	"net/http"
	"testing"

	"cnom/internal/access"
	"cnom/internal/cache"
	"cnom/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type decisionBody struct {
	State     string  `json:"state"`
	Role      *string `json:"role"`
	HasAccess bool    `json:"hasAccess"`
	Redirect  string  `json:"redirect"`
}

func (e *testEnv) demoSession(t *testing.T, role string) string {
	t.Helper()
	resp, raw := e.do(t, http.MethodPost, "/api/demo/session", map[string]string{"role": role}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(raw))
	return decode[demoSessionResponse](t, raw).Token
}

func TestGetAccess_Validation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/access", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, raw := env.do(t, http.MethodGet, "/api/access?roles=admin,wizard", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "wizard")
}

func TestGetAccess_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodGet, "/api/access?roles=public", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	d := decode[decisionBody](t, raw)
	assert.Equal(t, "unauthenticated", d.State)
	assert.True(t, d.HasAccess)
	assert.Nil(t, d.Role)

	_, raw = env.do(t, http.MethodGet, "/api/access?roles=admin", nil, nil)
	d = decode[decisionBody](t, raw)
	assert.False(t, d.HasAccess)
	assert.Equal(t, "/login", d.Redirect)

	// An unverifiable token is an anonymous session.
	_, raw = env.do(t, http.MethodGet, "/api/access?roles=admin", nil,
		map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, "unauthenticated", decode[decisionBody](t, raw).State)
}

func TestGetAccess_AuthenticatedRoles(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		stored    string
		allowed   string
		wantState string
		wantRole  string
		granted   bool
	}{
		{"super_admin maps to admin", "super_admin", "admin", "authenticated_with_role", "admin", true},
		{"treasurer maps to tresorier", "treasurer", "tresorier,admin", "authenticated_with_role", "tresorier", true},
		{"approver maps to commission", "approver", "admin", "authenticated_with_role", "commission", false},
		{"unmapped value is medecin", "auditor", "medecin", "authenticated_with_role", "medecin", true},
		{"no row is medecin", "", "medecin", "authenticated_no_role", "medecin", true},
		{"no row cannot reach admin", "", "admin", "authenticated_no_role", "medecin", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := env.principalWithRole(t, tt.stored)
			resp, raw := env.do(t, http.MethodGet, "/api/access?roles="+tt.allowed, nil,
				map[string]string{"Authorization": bearerFor(t, id)})
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			d := decode[decisionBody](t, raw)
			assert.Equal(t, tt.wantState, d.State)
			require.NotNil(t, d.Role)
			assert.Equal(t, tt.wantRole, *d.Role)
			assert.Equal(t, tt.granted, d.HasAccess)
			if !tt.granted {
				assert.Equal(t, "/demo", d.Redirect)
			}
		})
	}
}

func TestGetAccess_RoleLookupsShareServerRedis(t *testing.T) {
	env := newTestEnv(t)
	assert.Same(t, env.rdb, cache.GetClient())

	id := env.principalWithRole(t, "treasurer")
	resp, _ := env.do(t, http.MethodGet, "/api/access?roles=tresorier", nil,
		map[string]string{"Authorization": bearerFor(t, id)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, env.mr.Exists(cache.RoleKey(id)), "role cached on the server's redis")

	token := env.demoSession(t, "admin")
	assert.True(t, env.mr.Exists(cache.DemoSessionKey(token)))
}

func TestGetAccess_DenyPolicy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.RoleUnassignedPolicy = "deny" })
	id := env.principalWithRole(t, "")

	_, raw := env.do(t, http.MethodGet, "/api/access?roles=medecin", nil,
		map[string]string{"Authorization": bearerFor(t, id)})
	d := decode[decisionBody](t, raw)
	assert.Equal(t, "authenticated_no_role", d.State)
	assert.False(t, d.HasAccess)
	assert.Nil(t, d.Role)
}

func TestDemoSession_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	// A role row for the same request must not matter: demo wins.
	admin := env.principalWithRole(t, "super_admin")

	token := env.demoSession(t, "tresorier")

	headers := map[string]string{HeaderDemoSession: token, "Authorization": bearerFor(t, admin)}
	_, raw := env.do(t, http.MethodGet, "/api/access?roles=tresorier", nil, headers)
	d := decode[decisionBody](t, raw)
	assert.Equal(t, "demo_resolved", d.State)
	require.NotNil(t, d.Role)
	assert.Equal(t, "tresorier", *d.Role)
	assert.True(t, d.HasAccess)

	_, raw = env.do(t, http.MethodGet, "/api/access?roles=admin&demo_session="+token, nil, nil)
	d = decode[decisionBody](t, raw)
	assert.False(t, d.HasAccess)
	assert.Equal(t, "/demo", d.Redirect)

	resp, _ := env.do(t, http.MethodDelete, "/api/demo/session", nil, map[string]string{HeaderDemoSession: token})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/demo/session", nil, map[string]string{HeaderDemoSession: token})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	_, raw = env.do(t, http.MethodGet, "/api/access?roles=tresorier", nil, map[string]string{HeaderDemoSession: token})
	assert.Equal(t, "unauthenticated", decode[decisionBody](t, raw).State)
}

func TestDemoSession_Create(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/api/demo/session", map[string]string{"role": "President"}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decode[demoSessionResponse](t, raw)
	assert.NotEmpty(t, body.Token)
	assert.Equal(t, access.RolePresident, body.Role)
	assert.NotEmpty(t, body.Identity.Name)
	assert.True(t, env.mr.Exists("demo_session:"+body.Token))

	for _, role := range []string{"public", "wizard", ""} {
		resp, _ := env.do(t, http.MethodPost, "/api/demo/session", map[string]string{"role": role}, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "role %q", role)
	}
}

func TestDemoSession_AccessCode(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("cnom-demo"), bcrypt.MinCost)
	require.NoError(t, err)
	env := newTestEnv(t, func(c *config.Config) { c.DemoAccessCodeHash = string(hash) })

	resp, _ := env.do(t, http.MethodPost, "/api/demo/session",
		map[string]string{"role": "agent", "access_code": "guess"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/demo/session",
		map[string]string{"role": "agent", "access_code": "cnom-demo"}, nil)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestDemoSession_SurvivesRedisOutage(t *testing.T) {
	env := newTestEnv(t)
	env.mr.Close()

	token := env.demoSession(t, "commission")
	_, raw := env.do(t, http.MethodGet, "/api/access?roles=commission", nil, map[string]string{HeaderDemoSession: token})
	assert.True(t, decode[decisionBody](t, raw).HasAccess)
}

func TestGetDemoIdentities(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodGet, "/api/demo/identities", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	identities := decode[[]demoIdentityResponse](t, raw)
	require.Len(t, identities, len(access.Roles))
	for i, role := range access.Roles {
		assert.Equal(t, role, identities[i].Role)
		assert.NotEmpty(t, identities[i].Email)
	}
}
