package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/area-reservation/internal/clock"
	"github.com/iliyamo/area-reservation/internal/config"
	"github.com/iliyamo/area-reservation/internal/database"
	"github.com/iliyamo/area-reservation/internal/handler"
	"github.com/iliyamo/area-reservation/internal/logger"
	"github.com/iliyamo/area-reservation/internal/metrics"
	"github.com/iliyamo/area-reservation/internal/model"
	"github.com/iliyamo/area-reservation/internal/pricing"
	"github.com/iliyamo/area-reservation/internal/queue"
	"github.com/iliyamo/area-reservation/internal/repository"
	"github.com/iliyamo/area-reservation/internal/service"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	metrics *metrics.Metrics
	svc     *service.ReservationService
	rdb     *redis.Client
	pingers []handler.Pinger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadApp reads the configuration and builds the logger.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, metrics: metrics.New()}, nil
}

// wire opens the configured store, the area catalog and its cache, the
// event publisher and builds the reservation service.
func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	retry := repository.DefaultRetryPolicy()
	retry.Attempts = cfg.StoreRetryAttempts
	retry.Timeout = cfg.StoreTimeout
	retry.OnRetry = a.metrics.StoreRetry

	var (
		store repository.Store
		areas repository.AreaCatalog
	)
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.OpenMySQL(ctx, mysqlConfig(cfg))
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.pingers = append(a.pingers, db)
		store = repository.NewReservationRepo(db, retry)
		areas = repository.NewAreaRepo(db, retry)
	case config.DriverPostgres:
		pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.pingers = append(a.pingers, database.PoolPinger{Pool: pool})
		pg := repository.NewPostgresStore(pool, retry)
		store, areas = pg, pg
	default:
		seed, err := staticAreas()
		if err != nil {
			return err
		}
		store = repository.NewMemoryStore()
		areas = repository.NewStaticCatalog(seed...)
		a.log.Warn("using in-memory store; reservations are lost on restart")
	}

	a.rdb = config.NewRedisClient(config.LoadRedisConfig())
	if a.rdb != nil {
		a.closers = append(a.closers, func() { _ = a.rdb.Close() })
	} else {
		a.log.Info("redis unavailable; area cache and rate limiting disabled")
	}
	areas = repository.NewCachedAreas(areas, a.rdb, cfg.AreaCacheTTL, a.log)

	var events queue.Publisher = queue.NoopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewAMQPPublisher(cfg.RabbitMQURL, a.log)
	}

	a.svc = service.New(service.Deps{
		Store:   store,
		Areas:   areas,
		Pricing: pricing.Policy{Base: cfg.BasePrice, Increment: cfg.IncrementPrice},
		Clock:   clock.Real{},
		Events:  events,
		Metrics: a.metrics,
		Log:     a.log,
	}, service.Options{
		MaxAdvance:     cfg.MaxAdvance,
		MaxDuration:    cfg.MaxDuration,
		ExpiryGrace:    cfg.ExpiryGrace,
		PageSize:       cfg.ListPageSize,
		MaxNotesLength: cfg.MaxNotesLength,
		ExpireBatch:    cfg.ReaperBatch,
	})
	return nil
}

// staticAreas seeds the memory catalog from STATIC_AREAS (a JSON array of
// areas) or a small default set.
func staticAreas() ([]model.Area, error) {
	raw := os.Getenv("STATIC_AREAS")
	if raw == "" {
		return []model.Area{
			{ID: 1, Name: "Main Hall", MinCapacity: 1, MaxCapacity: 40, IsActive: true},
			{ID: 2, Name: "Terrace", MinCapacity: 2, MaxCapacity: 16, IsActive: true},
			{ID: 3, Name: "Private Room", MinCapacity: 4, MaxCapacity: 12, IsActive: true},
		}, nil
	}
	var out []model.Area
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("STATIC_AREAS: %w", err)
	}
	return out, nil
}

func mysqlConfig(cfg config.Config) database.MySQLConfig {
	return database.MySQLConfig{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	}
}
