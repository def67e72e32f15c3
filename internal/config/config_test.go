package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:        "development",
		Port:       "8080",
		JWTSecret:  "secure-secret-at-least-32-chars-long",
		DBPassword: "secure-password",
		DBSSLMode:  "disable",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProductionSecrets(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())

	c.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c.JWTSecret = "secure-secret-at-least-32-chars-long"
	c.DBPassword = "password"
	assert.Error(t, c.Validate())
}

func TestConfig_ValidateRolePolicy(t *testing.T) {
	for _, policy := range []string{"", UnassignedRoleMinimum, UnassignedRoleDeny} {
		c := validConfig()
		c.RoleUnassignedPolicy = policy
		assert.NoError(t, c.Validate(), policy)
	}

	c := validConfig()
	c.RoleUnassignedPolicy = "allow-everything"
	assert.Error(t, c.Validate())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("ROLE_UNASSIGNED_POLICY", " Deny ")
	t.Setenv("ROLE_LOOKUP_TIMEOUT", "750ms")
	t.Setenv("DEMO_SESSION_TTL", "2h")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, UnassignedRoleDeny, c.RoleUnassignedPolicy)
	assert.Equal(t, 750*time.Millisecond, c.RoleLookupTimeout)
	assert.Equal(t, 2*time.Hour, c.DemoSessionTTL)
	assert.Equal(t, "/demo", c.RoleFallbackRoute)
	assert.Equal(t, "/login", c.LoginRoute)
}
