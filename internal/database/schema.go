package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cnom/internal/config"
	"cnom/internal/middleware"

	"gorm.io/gorm"
)

// Schema management modes (DB_SCHEMA_MODE). Production runs the embedded SQL
// migrations only; the payment CHECK constraints and the unique transaction id
// index are defined there and nowhere else on PostgreSQL.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do for a configuration and
// which of the reconciler's tables are absent.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	MissingTables      []string
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func normalizedSchemaMode(cfg *config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		return SchemaModeHybrid
	}
	return mode
}

// schemaPolicy decides whether SQL migrations and AutoMigrate run.
// Hybrid runs SQL everywhere and AutoMigrate outside production-like environments.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode := normalizedSchemaMode(cfg); mode {
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return false, true, nil
	case SchemaModeHybrid:
		return true, !prodLike, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE
// and then checks that every table the callback path writes exists. SQL
// migrations target PostgreSQL; sqlite (tests, local demos) uses AutoMigrate.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		if db.Dialector.Name() == "postgres" {
			if err := RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("run sql migrations: %w", err)
			}
		} else {
			middleware.Logger.Warn("Skipping SQL migrations on non-postgres dialect",
				slog.String("dialect", db.Dialector.Name()))
			runAuto = true
		}
	}

	if runAuto {
		middleware.Logger.Info("Running GORM AutoMigrate",
			slog.String("mode", normalizedSchemaMode(cfg)), slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	missing, err := MissingTables(db)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("schema incomplete, missing tables %s", strings.Join(missing, ", "))
	}
	return nil
}

// MissingTables lists the PersistentModels tables that do not exist yet.
func MissingTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse model %T: %w", model, err)
		}
		if !db.Migrator().HasTable(stmt.Schema.Table) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}

// GetSchemaStatus reports the schema policy, the missing tables and, when SQL
// migrations apply, which migrations are pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               normalizedSchemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
	}
	if status.MissingTables, err = MissingTables(db); err != nil {
		return nil, err
	}
	if !runSQL {
		return status, nil
	}

	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	for _, m := range GetMigrations() {
		if !containsVersion(applied, m.Version) {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}
