package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerInvite/config"
	"github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/engine/screen"
	inthttp "github.com/sifan077/PowerInvite/internal/http/handler"
	"github.com/sifan077/PowerInvite/internal/http/middleware"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Dependencies bundles infrastructure dependencies required by the HTTP server.
type Dependencies struct {
	Logger      *zap.Logger
	Config      *config.Config
	Postgres    *pgxpool.Pool
	Redis       *redis.Client
	NATS        *nats.Conn
	LinkService service.LinkService
	Metrics     screen.Metrics
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app     *fiber.App
	deps    Dependencies
	screens *inthttp.ScreenHandler
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "PowerInvite",
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server and closes every open screen.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.screens.Shutdown()
	return err
}

// SweepScreens closes idle screen sessions.
func (s *Server) SweepScreens() int {
	return s.screens.Sweep()
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger, "/health"))
	s.app.Use(middleware.CORS(s.deps.Config.Server.AllowOrigins))
}

func (s *Server) registerRoutes() {
	cfg := s.deps.Config

	s.app.Get("/health", s.health)

	if s.deps.Redis != nil {
		s.app.Use("/api", middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}, s.deps.Logger))
	}

	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger.Named("api"),
		LinkService: s.deps.LinkService,
	}).Register(s.app)

	s.screens = inthttp.NewScreenHandler(inthttp.ScreenDeps{
		Logger:       s.deps.Logger.Named("screen"),
		LinkService:  s.deps.LinkService,
		Metrics:      s.deps.Metrics,
		PageSize:     cfg.Engine.PageSize,
		PrefetchRows: cfg.Engine.PrefetchRows,
		SessionTTL:   cfg.Engine.SessionTTL,
	})
	s.screens.Register(s.app)

	inthttp.NewJoinHandler(inthttp.JoinDeps{
		Logger:      s.deps.Logger.Named("join"),
		LinkService: s.deps.LinkService,
		Secret:      []byte(cfg.Links.JoinSecret),
		ConfirmTTL:  cfg.Links.ConfirmTTL,
	}).Register(s.app)
}

// health reports the reachability of every backing service.
func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	if s.deps.Postgres != nil {
		checks["postgres"] = status(s.deps.Postgres.Ping(ctx))
		healthy = healthy && checks["postgres"] == "ok"
	}
	if s.deps.Redis != nil {
		checks["redis"] = status(s.deps.Redis.Ping(ctx).Err())
		healthy = healthy && checks["redis"] == "ok"
	}
	if s.deps.NATS != nil {
		checks["nats"] = s.deps.NATS.Status().String()
		healthy = healthy && s.deps.NATS.IsConnected()
	}

	code := fiber.StatusOK
	overall := "ok"
	if !healthy {
		code = fiber.StatusServiceUnavailable
		overall = "degraded"
	}
	return c.Status(code).JSON(fiber.Map{
		"service": "PowerInvite",
		"status":  overall,
		"checks":  checks,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func status(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
