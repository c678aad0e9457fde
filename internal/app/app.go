package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nomadride/surge-engine/config"
	"github.com/nomadride/surge-engine/internal/adapter/http/server"
	wshandler "github.com/nomadride/surge-engine/internal/adapter/http/ws"
	pgrepo "github.com/nomadride/surge-engine/internal/adapter/postgres"
	rabbitadapter "github.com/nomadride/surge-engine/internal/adapter/rabbit"
	redisadapter "github.com/nomadride/surge-engine/internal/adapter/redis"
	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/engine/ledger"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/internal/service/auth"
	"github.com/nomadride/surge-engine/internal/service/pricing"
	"github.com/nomadride/surge-engine/pkg/logger"
	"github.com/nomadride/surge-engine/pkg/postgres"
	"github.com/nomadride/surge-engine/pkg/rabbit"
	"github.com/nomadride/surge-engine/pkg/trm"
	ws "github.com/nomadride/surge-engine/pkg/wsHub"
)

// App owns every long-lived component of the surge engine and their
// start/stop ordering.
type App struct {
	cfg config.Config
	log logger.Logger

	db       *postgres.PostgreDB
	rabbitMQ *rabbit.RabbitMQ
	redis    *goredis.Client

	engine    *scheduler.Scheduler
	pricing   *pricing.Service
	telemetry *rabbitadapter.TelemetryConsumer
	publisher *rabbitadapter.SurgePublisher
	server    *server.API
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		rabbitMQ.Close(ctx)
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	txManager := trm.New(db.Pool)

	zoneRepo := pgrepo.NewZoneRepo(db.Pool)
	ruleRepo := pgrepo.NewRuleRepo(db.Pool)
	eventRepo := pgrepo.NewEventRepo(db.Pool)
	settingsRepo := pgrepo.NewSettingsRepo(db.Pool)

	snapshots := scheduler.NewSnapshotStore()
	led := ledger.New(eventRepo, log)

	// The publisher reads the alert threshold lazily; the scheduler holding
	// the settings is constructed right after the sinks.
	var engine *scheduler.Scheduler
	alertThreshold := func() float64 {
		return engine.Settings().NotifyMultiplierThreshold
	}

	hub := ws.NewZoneHub(log)
	feed := wshandler.NewZoneFeed(hub, log)
	publisher := rabbitadapter.NewSurgePublisher(rabbitMQ, alertThreshold, log)
	cache := redisadapter.NewMultiplierCache(redisClient, log)

	sinks := []scheduler.TickSink{cache, feed, publisher}

	settings := seedSettings(cfg)
	engine = scheduler.New(snapshots, led, settings, sinks, log)

	pricingService := pricing.NewService(zoneRepo, ruleRepo, eventRepo, settingsRepo, engine, log, txManager)
	telemetry := rabbitadapter.NewTelemetryConsumer(rabbitMQ, snapshots, log)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)

	api, err := server.New(
		cfg,
		pricingService,
		pricingService,
		pricingService,
		pricingService,
		pricingService,
		feed,
		tokens,
		log,
	)
	if err != nil {
		rabbitMQ.Close(ctx)
		redisClient.Close()
		db.Close()
		return nil, fmt.Errorf("failed to init http server: %w", err)
	}

	return &App{
		cfg:       cfg,
		log:       log,
		db:        db,
		rabbitMQ:  rabbitMQ,
		redis:     redisClient,
		engine:    engine,
		pricing:   pricingService,
		telemetry: telemetry,
		publisher: publisher,
		server:    api,
	}, nil
}

// seedSettings builds the pre-bootstrap settings from the static config.
// They only matter until the first persisted settings row is loaded.
func seedSettings(cfg config.Config) models.PricingSettings {
	settings := models.DefaultPricingSettings()
	if cfg.Engine.EvaluationInterval > 0 {
		settings.DefaultEvaluationInterval = cfg.Engine.EvaluationInterval
	}
	if cfg.Engine.MaxGlobalMultiplier >= 1.0 {
		settings.MaxGlobalMultiplier = cfg.Engine.MaxGlobalMultiplier
	}
	return settings
}

// Run starts the engine, the telemetry consumer and the HTTP server, then
// blocks until a shutdown signal or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.pricing.Bootstrap(runCtx); err != nil {
		return fmt.Errorf("failed to bootstrap pricing engine: %w", err)
	}

	// The exchange must exist before the first committed tick is published.
	if err := a.publisher.DeclareExchange(runCtx); err != nil {
		return fmt.Errorf("failed to declare surge exchange: %w", err)
	}

	a.engine.Start(runCtx)

	go func() {
		if err := a.telemetry.Consume(runCtx); err != nil {
			a.log.Error(runCtx, "telemetry consumer stopped", err)
		}
	}()

	errCh := make(chan error, 1)
	a.server.Run(runCtx, errCh)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		a.shutdown(ctx)
		return err
	case sig := <-shutdownCh:
		a.log.Info(ctx, "received shutdown signal", "signal", sig.String())
		cancel()
		a.shutdown(ctx)
		return nil
	}
}

func (a *App) shutdown(ctx context.Context) {
	if err := a.server.Stop(ctx); err != nil {
		a.log.Error(ctx, "failed to stop http server", err)
	}

	a.engine.Stop()

	if err := a.rabbitMQ.Close(ctx); err != nil {
		a.log.Error(ctx, "failed to close rabbitmq connection", err)
	}
	if err := a.redis.Close(); err != nil {
		a.log.Error(ctx, "failed to close redis client", err)
	}
	a.db.Close()

	a.log.Info(ctx, "application stopped")
}
