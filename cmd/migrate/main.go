// Command migrate applies, inspects and rolls back the CNOM schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"cnom/internal/config"
	"cnom/internal/database"

	"gorm.io/gorm"
)

const usageText = "usage: migrate <up|auto|status|down> [version]"

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up":     up,
	"auto":   auto,
	"status": status,
	"down":   down,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return fmt.Errorf(usageText)
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(flag.Arg(0)))]
	if !ok {
		return fmt.Errorf(usageText)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return cmd(ctx, db, cfg, flag.Args()[1:])
}

func up(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Println("sql migrations applied")
	return nil
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	log.Println("automigrations applied")
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	s, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("mode=%s env=%s applied=%d pending=%d", s.Mode, s.Environment, len(s.AppliedVersions), len(s.PendingMigrations))
	if len(s.MissingTables) > 0 {
		log.Printf("missing tables: %s", strings.Join(s.MissingTables, ", "))
	}
	for _, m := range s.PendingMigrations {
		log.Printf("pending: %s", m.String())
	}
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("rolled back migration %d", version)
	return nil
}
