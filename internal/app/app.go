// Package app assembles the storage backend, adapter, publisher and store
// from configuration. The HTTP server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/config"
	"github.com/hiroki-koketsu/go-todo/internal/events"
	"github.com/hiroki-koketsu/go-todo/internal/idgen"
	"github.com/hiroki-koketsu/go-todo/internal/storage"
	"github.com/hiroki-koketsu/go-todo/internal/storage/file"
	"github.com/hiroki-koketsu/go-todo/internal/storage/postgres"
	"github.com/hiroki-koketsu/go-todo/internal/storage/redis"
	"github.com/hiroki-koketsu/go-todo/internal/storage/s3"
	"github.com/hiroki-koketsu/go-todo/internal/store"
	"go.opentelemetry.io/otel/metric"
)

// App is a hydrated store plus the resources behind it.
type App struct {
	Store   *store.TodoStore
	Adapter *storage.Adapter

	closers []func() error
}

// Option configures Open.
type Option func(*options)

type options struct {
	failures metric.Int64Counter
	backend  storage.Backend
}

// WithFailureCounter counts swallowed storage failures.
func WithFailureCounter(c metric.Int64Counter) Option {
	return func(o *options) { o.failures = c }
}

// WithBackend bypasses the configured backend.
func WithBackend(b storage.Backend) Option {
	return func(o *options) { o.backend = b }
}

// Open connects the configured backend and event publisher, then builds
// a store hydrated from the persisted collection.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{}

	backend := o.backend
	if backend == nil {
		b, closeFn, err := OpenBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend = b
		if closeFn != nil {
			a.closers = append(a.closers, closeFn)
		}
	}

	var adapterOpts []storage.Option
	if o.failures != nil {
		adapterOpts = append(adapterOpts, storage.WithFailureCounter(o.failures))
	}
	a.Adapter = storage.NewAdapter(backend, cfg.StorageKey, logger, adapterOpts...)

	gen, err := idgen.ForFormat(idgen.Format(cfg.IDFormat))
	if err != nil {
		a.Close()
		return nil, err
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		publisher = p
		a.closers = append(a.closers, p.Close)
	}

	a.Store = store.New(a.Adapter,
		store.WithIDGenerator(gen),
		store.WithPublisher(publisher),
		store.WithLogger(logger),
	)

	todos := a.Adapter.Load(ctx)
	a.Store.ReplaceAll(ctx, todos)
	logger.DebugContext(ctx, "collection hydrated",
		slog.String("backend", backend.Name()),
		slog.String("key", a.Adapter.Key()),
		slog.Int("count", len(todos)),
	)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenBackend creates the backend named by cfg.StorageBackend. The close
// func is nil for backends without connections.
func OpenBackend(ctx context.Context, cfg *config.Config) (storage.Backend, func() error, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemoryBackend(), nil, nil
	case config.StorageFile:
		return file.New(cfg.DataDir), nil, nil
	case config.StorageRedis:
		b, err := redis.New(ctx, redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.StorageS3:
		b, err := s3.New(ctx, s3.Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, nil, nil
	case config.StoragePostgres:
		b, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
