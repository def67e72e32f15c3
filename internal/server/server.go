// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	_ "cnom/docs" // swagger docs
	"cnom/internal/access"
	"cnom/internal/cache"
	"cnom/internal/config"
	"cnom/internal/middleware"
	"cnom/internal/models"
	"cnom/internal/notifications"
	"cnom/internal/repository"
	"cnom/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// webhookPrefix is exempt from the credentialed CORS policy and the global limiter.
const webhookPrefix = "/api/webhooks/"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	paymentRepo      repository.PaymentRepository
	applicationRepo  repository.ApplicationRepository
	notificationRepo repository.NotificationRepository
	roleRepo         repository.RoleRepository

	reconciler   *service.PaymentReconciler
	queries      *service.PaymentQueryService
	resolver     *access.Resolver
	verifier     *middleware.TokenVerifier
	demoSessions *cache.DemoSessionStore
	catalog      access.Catalog
	journal      *cache.CallbackJournal
	notifier     *notifications.Notifier
	hub          *notifications.PaymentHub
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; Redis-backed features then degrade to their fallbacks.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires configuration and a database")
	}

	// One client backs the role cache, demo sessions, the journal and events.
	cache.SetClient(redisClient)
	redisClient = cache.GetClient()

	s := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   middleware.InitMetrics("cnom-api"),
		paymentRepo:      repository.NewPaymentRepository(db),
		applicationRepo:  repository.NewApplicationRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		roleRepo:         repository.NewRoleRepository(db),
		verifier:         middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		demoSessions:     cache.NewDemoSessionStore(redisClient, cfg.DemoSessionTTL),
		catalog:          access.DefaultCatalog(),
		journal:          cache.NewCallbackJournal(redisClient),
		notifier:         notifications.NewNotifier(redisClient),
		hub:              notifications.NewPaymentHub(),
	}

	s.resolver = access.NewResolver(s.roleRepo, access.Options{
		LookupTimeout:    cfg.RoleLookupTimeout,
		UnassignedPolicy: cfg.RoleUnassignedPolicy,
		FallbackRoute:    cfg.RoleFallbackRoute,
		LoginRoute:       cfg.LoginRoute,
	})
	s.reconciler = service.NewPaymentReconciler(s.paymentRepo, s.applicationRepo, s.notificationRepo, s.journal, s.notifier)
	s.queries = service.NewPaymentQueryService(s.paymentRepo, s.applicationRepo, s.notificationRepo, s.journal)

	return s, nil
}

// PaymentRepository exposes the payment store for background jobs.
func (s *Server) PaymentRepository() repository.PaymentRepository {
	return s.paymentRepo
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	// The payment webhook answers its own preflight with a wildcard origin.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		Next:             isWebhookPath,
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Demo-Session, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP). Provider retries
	// must never be throttled.
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || isWebhookPath(c)
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(s.ResolveSession())
}

func isWebhookPath(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), webhookPrefix)
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "CNOM Backend Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Provider webhook
	webhooks := api.Group("/webhooks")
	webhooks.Options("/airtel-money", s.AirtelMoneyPreflight)
	webhooks.Post("/airtel-money", s.AirtelMoneyCallback)

	// Access decisions for UI route guards
	api.Get("/access", s.GetAccess)

	// Demo sessions
	demo := api.Group("/demo")
	demo.Get("/identities", s.GetDemoIdentities)
	demo.Post("/session", middleware.RateLimit(s.redis, 10, time.Minute, "demo_session"), s.CreateDemoSession)
	demo.Delete("/session", s.DeleteDemoSession)

	// Any session holding a role
	member := s.RequireRoles(access.Roles...)
	api.Get("/payments/:transactionId", member, s.GetPayment)
	api.Get("/notifications", member, s.GetMyNotifications)
	api.Get("/applications/me", member, s.GetMyApplication)

	// Staff dashboards
	admin := api.Group("/admin")
	admin.Get("/payments",
		s.RequireRoles(access.RoleAdmin, access.RolePresident, access.RoleTresorier), s.ListPayments)
	admin.Get("/applications",
		s.RequireRoles(access.RoleAdmin, access.RolePresident, access.RoleSG, access.RoleCommission, access.RoleRegional),
		s.ListApplications)
	admin.Get("/payment-callbacks",
		s.RequireRoles(access.RoleAdmin, access.RoleTresorier), s.ListPaymentCallbacks)

	// Live payment events
	ws := api.Group("/ws", s.RequireRoles(access.RoleAdmin, access.RolePresident, access.RoleTresorier))
	ws.Get("/payments", s.WebSocketPaymentsHandler())
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "CNOM API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
