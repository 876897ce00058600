package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sifan077/PowerInvite/config"
	appmodel "github.com/sifan077/PowerInvite/internal/app/model"
	apprepository "github.com/sifan077/PowerInvite/internal/app/repository"
	appserver "github.com/sifan077/PowerInvite/internal/app/server"
	appservice "github.com/sifan077/PowerInvite/internal/app/service"
	"github.com/sifan077/PowerInvite/internal/infra/logger"
	infraNATS "github.com/sifan077/PowerInvite/internal/infra/nats"
	infraPostgres "github.com/sifan077/PowerInvite/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/PowerInvite/internal/infra/prometheus"
	infraRedis "github.com/sifan077/PowerInvite/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	log := logger.MustInit(logger.FromEnv("powerinvite"))
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("base_url", cfg.Links.BaseURL),
		zap.Int("page_size", cfg.Engine.PageSize),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.LinkEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	promServer := infraPrometheus.NewServer(cfg.Prometheus)
	go func() {
		log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
		if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
		}
	}()
	defer func() {
		if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Failed to close Prometheus server", zap.Error(err))
		}
	}()

	linkRepo := apprepository.NewLinkRepository(gormDB)
	adminRepo := apprepository.NewAdminRepository(pool)
	eventRepo := apprepository.NewLinkEventRepository(gormDB)

	consumer := appservice.NewLinkEventConsumer(js, log.Named("events"), eventRepo)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start link event consumer", zap.Error(err))
	}
	defer consumer.Stop()

	expiry := appservice.NewExpiryChecker(log.Named("expiry"), linkRepo, cfg.Expiry.Interval)
	expiry.Start()
	defer expiry.Stop()

	linkService := appservice.NewLinkService(appservice.LinkServiceDeps{
		Links:   linkRepo,
		Admins:  adminRepo,
		Events:  appservice.NewLinkEventPublisher(js),
		BaseURL: cfg.Links.BaseURL,
		Logger:  log.Named("links"),
	})

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Config:      cfg,
		Postgres:    pool,
		Redis:       redisClient,
		NATS:        natsConn,
		LinkService: linkService,
		Metrics:     infraPrometheus.NewEngineMetrics(nil),
	})

	go sweepScreens(ctx, server, cfg.Engine.SessionTTL, log)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Fiber server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr), logger.Since(started))
	if err := server.Listen(cfg.Server.Addr); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}

func sweepScreens(ctx context.Context, server *appserver.Server, ttl time.Duration, log *zap.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := server.SweepScreens(); n > 0 {
				log.Info("closed idle screens", zap.Int("count", n))
			}
		}
	}
}
