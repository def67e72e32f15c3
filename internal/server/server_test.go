package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cnom/internal/config"
	"cnom/internal/models"
	"cnom/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-0123456789abcdef0123456789"

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
	rdb *redis.Client
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		JWTSecret:            testJWTSecret,
		DemoSessionTTL:       time.Hour,
		RoleLookupTimeout:    time.Second,
		RoleUnassignedPolicy: "minimum",
		RoleFallbackRoute:    "/demo",
		LoginRoute:           "/login",
	}
	for _, m := range mutate {
		m(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	return &testEnv{srv: srv, app: srv.NewApp(), db: db, mr: mr, rdb: rdb}
}

func bearerFor(t *testing.T, principalID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   principalID,
		"email": "user@cnom.test",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

// principalWithRole creates a profile and, when raw is non-empty, its role row.
func (e *testEnv) principalWithRole(t *testing.T, raw string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, e.db.Create(&models.Profile{ID: id, Email: id + "@cnom.test"}).Error)
	if raw != "" {
		require.NoError(t, e.db.Create(&models.UserRole{UserID: id, Role: raw}).Error)
	}
	return id
}

func (e *testEnv) seedPayment(t *testing.T, txID, profileID string, typ models.PaymentType) *models.Payment {
	t.Helper()
	p := &models.Payment{
		TransactionID: txID,
		ProfileID:     profileID,
		PaymentType:   typ,
		PaymentStatus: models.PaymentStatusPending,
		Amount:        25000,
	}
	require.NoError(t, e.db.Create(p).Error)
	return p
}

func (e *testEnv) seedApplication(t *testing.T, profileID string, status models.ApplicationStatus) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Application{ProfileID: profileID, Status: status}).Error)
}

func (e *testEnv) payment(t *testing.T, txID string) models.Payment {
	t.Helper()
	var p models.Payment
	require.NoError(t, e.db.Where("transaction_id = ?", txID).First(&p).Error)
	return p
}

func (e *testEnv) applicationStatus(t *testing.T, profileID string) models.ApplicationStatus {
	t.Helper()
	var a models.Application
	require.NoError(t, e.db.Where("profile_id = ?", profileID).First(&a).Error)
	return a.Status
}

// do sends a request and returns the status code and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}
