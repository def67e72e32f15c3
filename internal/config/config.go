// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Role policies applied when an authenticated user has no persisted role row.
const (
	UnassignedRoleMinimum = "minimum"
	UnassignedRoleDeny    = "deny"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	// DBSchemaMode selects how the schema is managed: hybrid, sql or auto.
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTSecret verifies bearer tokens issued by the identity provider.
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// AirtelCallbackSecret enables HMAC verification of payment callbacks when set.
	AirtelCallbackSecret string `mapstructure:"AIRTEL_CALLBACK_SECRET"`

	DemoSessionTTL     time.Duration `mapstructure:"DEMO_SESSION_TTL"`
	DemoAccessCodeHash string        `mapstructure:"DEMO_ACCESS_CODE_HASH"`

	RoleLookupTimeout    time.Duration `mapstructure:"ROLE_LOOKUP_TIMEOUT"`
	RoleUnassignedPolicy string        `mapstructure:"ROLE_UNASSIGNED_POLICY"`
	RoleFallbackRoute    string        `mapstructure:"ROLE_FALLBACK_ROUTE"`
	LoginRoute           string        `mapstructure:"LOGIN_ROUTE"`

	StalePaymentCron  string        `mapstructure:"STALE_PAYMENT_CRON"`
	StalePaymentAfter time.Duration `mapstructure:"STALE_PAYMENT_AFTER"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`

	// Seed identity granted super_admin by the development bootstrap.
	DevBootstrapAdminID string `mapstructure:"DEV_BOOTSTRAP_ADMIN_ID"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; deployed environments inject real variables.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.RoleUnassignedPolicy = strings.ToLower(strings.TrimSpace(config.RoleUnassignedPolicy))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "cnom")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)

	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "")
	viper.SetDefault("JWT_AUDIENCE", "authenticated")

	viper.SetDefault("AIRTEL_CALLBACK_SECRET", "")

	viper.SetDefault("DEMO_SESSION_TTL", "12h")
	viper.SetDefault("DEMO_ACCESS_CODE_HASH", "")

	viper.SetDefault("ROLE_LOOKUP_TIMEOUT", "3s")
	viper.SetDefault("ROLE_UNASSIGNED_POLICY", UnassignedRoleMinimum)
	viper.SetDefault("ROLE_FALLBACK_ROUTE", "/demo")
	viper.SetDefault("LOGIN_ROUTE", "/login")

	viper.SetDefault("STALE_PAYMENT_CRON", "*/15 * * * *")
	viper.SetDefault("STALE_PAYMENT_AFTER", "30m")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	viper.SetDefault("DEV_BOOTSTRAP_ADMIN_ID", "")
}

// IsProduction reports whether the configuration targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.RoleUnassignedPolicy {
	case "", UnassignedRoleMinimum, UnassignedRoleDeny:
	default:
		return fmt.Errorf("ROLE_UNASSIGNED_POLICY must be %q or %q", UnassignedRoleMinimum, UnassignedRoleDeny)
	}

	if c.RoleLookupTimeout < 0 {
		return errors.New("ROLE_LOOKUP_TIMEOUT must not be negative")
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 || c.DBConnMaxLifetimeMinutes < 0 {
		return errors.New("database pool settings must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AirtelCallbackSecret == "" {
			log.Println("WARNING: AIRTEL_CALLBACK_SECRET is empty in production; payment callbacks are not signature-checked.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
