// Package app wires configuration to storage and the parcel service.
// The server, the importer CLI and the worker share it.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"parcelsort/internal/config"
	"parcelsort/internal/domain/parcel"
	"parcelsort/internal/infrastructure/archive"
	"parcelsort/internal/infrastructure/idempotency"
	"parcelsort/internal/infrastructure/reader"
	"parcelsort/internal/infrastructure/storage/postgres"
	"parcelsort/internal/infrastructure/storage/sqlite"
	"parcelsort/pkg/logger"
)

// Options tune New.
type Options struct {
	// Migrate applies the postgres schema on start. sqlite always migrates.
	Migrate bool
}

// App holds the wired components and the resources to release.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Parcels *parcel.Service

	// Idempotency is redis when configured, else postgres, else nil.
	Idempotency idempotency.Store

	// Checks are readiness checks keyed by component.
	Checks map[string]func(ctx context.Context) error

	// Pool and PGIdempotency are set for the postgres driver only.
	Pool          *postgres.Pool
	PGIdempotency *postgres.IdempotencyStore

	closers []func()
}

// New connects storage according to cfg and builds the parcel service.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Checks: make(map[string]func(ctx context.Context) error),
	}

	codec := archive.MustCodec()
	a.onClose(codec.Close)

	svcCfg := parcel.ServiceConfig{
		Reader: reader.New(log),
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, poolConfig(cfg.Storage))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.Pool = pool
		a.onClose(pool.Close)
		a.Checks["database"] = pool.Ping

		if opts.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				a.Close()
				return nil, err
			}
		}

		txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Storage.StatementTimeout)
		svcCfg.Parcels = postgres.NewParcelRepo(txm)
		svcCfg.Batches = postgres.NewBatchRepo(txm, codec)
		svcCfg.Audit = postgres.NewAuditRepo(txm)
		svcCfg.TxManager = txm
		a.PGIdempotency = postgres.NewIdempotencyStore(txm, cfg.Redis.IdempotencyTTL)

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.onClose(func() { _ = sqlite.Close(db) })
		a.Checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}

		svcCfg.Parcels = sqlite.NewParcelRepo(db)
		svcCfg.Batches = sqlite.NewBatchRepo(db, codec)
		svcCfg.Audit = sqlite.NewAuditRepo(db)
		svcCfg.TxManager = sqlite.NewTxManager(db)

	default:
		a.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	a.Parcels = parcel.NewService(svcCfg)

	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		a.onClose(func() { _ = client.Close() })
		a.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		a.Idempotency = idempotency.NewRedisStore(client, cfg.Redis.IdempotencyTTL)
	case a.PGIdempotency != nil:
		a.Idempotency = a.PGIdempotency
	}

	log.Infow("storage ready",
		"driver", cfg.Storage.Driver,
		"idempotency", a.Idempotency != nil,
		"redis", cfg.Redis.Addr != "",
	)
	return a, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
}

func poolConfig(s config.StorageConfig) postgres.PoolConfig {
	return postgres.PoolConfig{
		DSN:             s.DatabaseURL,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.ConnMaxLifetime,
		MaxConnIdleTime: s.ConnMaxIdleTime,
	}
}
