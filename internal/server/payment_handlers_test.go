package server

import (
	"net/http"
	"testing"

	"cnom/internal/cache"
	"cnom/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPayments_Guard(t *testing.T) {
	env := newTestEnv(t)
	owner := env.principalWithRole(t, "")
	env.seedPayment(t, "TX1", owner, models.PaymentTypeInscription)

	resp, raw := env.do(t, http.MethodGet, "/api/admin/payments", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Authentication required","redirect":"/login"}`, string(raw))

	resp, raw = env.do(t, http.MethodGet, "/api/admin/payments", nil,
		map[string]string{"Authorization": bearerFor(t, owner)})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Insufficient role","redirect":"/demo"}`, string(raw))

	treasurer := env.principalWithRole(t, "treasurer")
	resp, raw = env.do(t, http.MethodGet, "/api/admin/payments", nil,
		map[string]string{"Authorization": bearerFor(t, treasurer)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payments := decode[[]models.Payment](t, raw)
	require.Len(t, payments, 1)
	assert.Equal(t, "TX1", payments[0].TransactionID)
}

func TestListPayments_Filters(t *testing.T) {
	env := newTestEnv(t)
	owner := env.principalWithRole(t, "")
	env.seedPayment(t, "TX1", owner, models.PaymentTypeInscription)
	env.seedPayment(t, "TX2", owner, models.PaymentTypeCotisationAnnuelle)
	headers := map[string]string{HeaderDemoSession: env.demoSession(t, "president")}

	_, raw := env.do(t, http.MethodGet, "/api/admin/payments?type=cotisation_annuelle", nil, headers)
	payments := decode[[]models.Payment](t, raw)
	require.Len(t, payments, 1)
	assert.Equal(t, "TX2", payments[0].TransactionID)

	resp, _ := env.do(t, http.MethodGet, "/api/admin/payments?status=settled", nil, headers)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListApplications_Roles(t *testing.T) {
	env := newTestEnv(t)
	owner := env.principalWithRole(t, "")
	env.seedApplication(t, owner, models.ApplicationStatusSubmitted)

	for role, want := range map[string]int{
		"sg":         fiber.StatusOK,
		"commission": fiber.StatusOK,
		"regional":   fiber.StatusOK,
		"tresorier":  fiber.StatusForbidden,
		"agent":      fiber.StatusForbidden,
	} {
		resp, _ := env.do(t, http.MethodGet, "/api/admin/applications?status=submitted", nil,
			map[string]string{HeaderDemoSession: env.demoSession(t, role)})
		assert.Equal(t, want, resp.StatusCode, "role %s", role)
	}
}

func TestGetPayment_Visibility(t *testing.T) {
	env := newTestEnv(t)
	owner := env.principalWithRole(t, "")
	other := env.principalWithRole(t, "")
	admin := env.principalWithRole(t, "super_admin")
	env.seedPayment(t, "TX-OWN", owner, models.PaymentTypeInscription)
	env.seedPayment(t, "TX-OTHER", other, models.PaymentTypeInscription)

	resp, raw := env.do(t, http.MethodGet, "/api/payments/TX-OWN", nil,
		map[string]string{"Authorization": bearerFor(t, owner)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, owner, decode[models.Payment](t, raw).ProfileID)

	resp, _ = env.do(t, http.MethodGet, "/api/payments/TX-OTHER", nil,
		map[string]string{"Authorization": bearerFor(t, owner)})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/payments/TX-OTHER", nil,
		map[string]string{"Authorization": bearerFor(t, admin)})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/payments/TX-OWN", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestNotificationsAndCallbackJournal(t *testing.T) {
	env := newTestEnv(t)
	owner := env.principalWithRole(t, "")
	env.seedPayment(t, "TX1", owner, models.PaymentTypeCotisationMensuelle)

	resp, _ := env.do(t, http.MethodPost, webhookPath, callbackBody("TX1", "TS"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	env.do(t, http.MethodPost, webhookPath, callbackBody("TX-MISSING", "TS"), nil)

	_, raw := env.do(t, http.MethodGet, "/api/notifications", nil,
		map[string]string{"Authorization": bearerFor(t, owner)})
	notes := decode[[]models.Notification](t, raw)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationPaymentCompleted, notes[0].Type)

	_, raw = env.do(t, http.MethodGet, "/api/notifications", nil,
		map[string]string{HeaderDemoSession: env.demoSession(t, "medecin")})
	assert.JSONEq(t, `[]`, string(raw))

	resp, raw = env.do(t, http.MethodGet, "/api/admin/payment-callbacks?limit=10", nil,
		map[string]string{HeaderDemoSession: env.demoSession(t, "tresorier")})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	entries := decode[[]cache.CallbackEntry](t, raw)
	require.Len(t, entries, 2)
	assert.Equal(t, "TX-MISSING", entries[0].TransactionID)
	assert.Equal(t, "not_found", entries[0].Outcome)
	assert.Equal(t, "completed", entries[1].Outcome)
}

func TestGetMyApplication(t *testing.T) {
	env := newTestEnv(t)
	owner := env.principalWithRole(t, "")
	env.seedApplication(t, owner, models.ApplicationStatusSubmitted)
	env.seedPayment(t, "TX1", owner, models.PaymentTypeInscription)

	resp, raw := env.do(t, http.MethodGet, "/api/applications/me", nil,
		map[string]string{"Authorization": bearerFor(t, owner)})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ApplicationStatusSubmitted, decode[models.Application](t, raw).Status)

	resp, _ = env.do(t, http.MethodPost, webhookPath, callbackBody("TX1", "TS"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, raw = env.do(t, http.MethodGet, "/api/applications/me", nil,
		map[string]string{"Authorization": bearerFor(t, owner)})
	assert.Equal(t, models.ApplicationStatusUnderReview, decode[models.Application](t, raw).Status)

	stranger := env.principalWithRole(t, "")
	resp, _ = env.do(t, http.MethodGet, "/api/applications/me", nil,
		map[string]string{"Authorization": bearerFor(t, stranger)})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/applications/me", nil,
		map[string]string{HeaderDemoSession: env.demoSession(t, "medecin")})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/applications/me", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketPayments_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/ws/payments", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/ws/payments", nil,
		map[string]string{HeaderDemoSession: env.demoSession(t, "tresorier")})
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/ws/payments", nil,
		map[string]string{HeaderDemoSession: env.demoSession(t, "medecin")})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
