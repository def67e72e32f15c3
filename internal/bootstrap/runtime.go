// Package bootstrap opens the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cnom/internal/cache"
	"cnom/internal/config"
	"cnom/internal/database"
	"cnom/internal/models"
	"cnom/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// devAdminRole is the stored value that translates to the admin role.
const devAdminRole = "super_admin"

// InitRuntime connects to the database and Redis. Redis may come back nil
// when it is unreachable; the server runs without the cache in that case.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureDevAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	return db, r, nil
}

// ensureDevAdmin gives DevBootstrapAdminID a profile and the super_admin role
// in development, so a fresh database has one principal that reaches /admin.
func ensureDevAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	id := strings.TrimSpace(cfg.DevBootstrapAdminID)
	if id == "" || !strings.EqualFold(cfg.Env, "development") {
		return nil
	}

	profiles := repository.NewProfileRepository(db)
	if _, err := profiles.GetByID(ctx, id); err != nil {
		if !models.IsNotFound(err) {
			return err
		}
		if err := profiles.Create(ctx, &models.Profile{
			ID:        id,
			Email:     "admin+" + id + "@cnom.local",
			FirstName: "Admin",
			LastName:  "CNOM",
		}); err != nil {
			return err
		}
	}

	if err := repository.NewRoleRepository(db).Assign(ctx, id, devAdminRole); err != nil {
		return err
	}

	log.Printf("development admin bootstrap ensured for principal %s", id)
	return nil
}
