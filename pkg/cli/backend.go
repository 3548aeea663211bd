package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/recordbench/pkg/config"
	"github.com/nimburion/recordbench/pkg/health"
	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/observability/metrics"
	"github.com/nimburion/recordbench/pkg/recordstore"
	recmongo "github.com/nimburion/recordbench/pkg/recordstore/mongodb"
	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
)

// Backend is the record store a command drives: one DB per worker over a
// shared connection, plus a readiness probe.
type Backend interface {
	health.Checkable
	// Name labels the backend in health results and spans.
	Name() string
	// Open connects and holds the connection until Close.
	Open(ctx context.Context) error
	DB(worker int) recordstore.DB
	// Drop removes every record of table.
	Drop(ctx context.Context, table string) error
	Close(ctx context.Context) error
}

// BackendFactory opens a Backend. storeMetrics may be nil.
type BackendFactory func(cfg *config.Config, log logger.Logger, storeMetrics *metrics.StoreMetrics) (Backend, error)

type mongoBackend struct {
	cfg     config.MongoDBConfig
	shared  *mongostore.Shared
	lease   *mongostore.Lease
	log     logger.Logger
	metrics *metrics.StoreMetrics
}

// NewMongoBackend prepares a Shared handle; nothing is dialed until Open,
// the first worker initializing, or the health check.
func NewMongoBackend(cfg *config.Config, log logger.Logger, storeMetrics *metrics.StoreMetrics) (Backend, error) {
	return newMongoBackend(cfg, log, storeMetrics)
}

func newMongoBackend(cfg *config.Config, log logger.Logger, storeMetrics *metrics.StoreMetrics, opts ...mongostore.SharedOption) (*mongoBackend, error) {
	storeCfg := cfg.MongoDB.Store()
	if err := storeCfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &mongoBackend{
		cfg:     cfg.MongoDB,
		shared:  mongostore.NewShared(storeCfg, log, opts...),
		log:     log,
		metrics: storeMetrics,
	}, nil
}

func (b *mongoBackend) Name() string { return "mongodb" }

// Open takes the command's own lease on the shared handle. Worker leases
// stack on top of it, so the pool outlives any single worker.
func (b *mongoBackend) Open(ctx context.Context) error {
	if b.lease != nil {
		return nil
	}
	lease, err := b.shared.Acquire(ctx)
	if err != nil {
		kind := recordstore.KindConnection
		if errors.Is(err, mongostore.ErrInvalidConfig) {
			kind = recordstore.KindConfiguration
		}
		return recordstore.NewError(recordstore.OpInit, "", "", kind, err)
	}
	b.lease = lease
	return nil
}

func (b *mongoBackend) DB(int) recordstore.DB {
	client := recmongo.New(b.shared, recmongo.Options{
		KeyField: b.cfg.KeyField,
		SortScan: b.cfg.SortScan,
	}, b.log)
	return recordstore.Instrument(client,
		recordstore.WithMetrics(b.metrics),
		recordstore.WithSystem(b.Name()),
		recordstore.WithDatabaseName(b.cfg.Database),
	)
}

func (b *mongoBackend) Drop(ctx context.Context, table string) error {
	return b.shared.Use(ctx, func(a *mongostore.Adapter) error {
		if err := a.DropCollection(ctx, table); err != nil {
			return fmt.Errorf("drop collection %s: %w", table, err)
		}
		b.log.Info("dropped collection", "collection", table)
		return nil
	})
}

func (b *mongoBackend) HealthCheck(ctx context.Context) error {
	return b.shared.HealthCheck(ctx)
}

func (b *mongoBackend) Close(ctx context.Context) error {
	if b.lease != nil {
		lease := b.lease
		b.lease = nil
		if err := lease.Release(ctx); err != nil {
			b.log.Warn("releasing record store lease failed", "error", err)
		}
	}
	return b.shared.Close(ctx)
}

// healthRegistry registers the backend readiness check.
func healthRegistry(backend Backend, cfg *config.Config) *health.Registry {
	registry := health.NewRegistry()
	registry.Register(health.NewAdapterChecker(backend.Name(), backend, cfg.MongoDB.ConnectTimeout).
		WithMetadata(map[string]interface{}{
			"url":      mongostore.RedactURL(cfg.MongoDB.URL),
			"database": cfg.MongoDB.Database,
		}))
	return registry
}
