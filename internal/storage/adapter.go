package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/storage")

// Adapter reads and writes the whole todo collection through a Backend.
// Neither Load nor Save fails outward: a missing or corrupt blob loads as
// an empty collection and a failed write is logged and dropped.
type Adapter struct {
	backend  Backend
	key      string
	logger   *slog.Logger
	failures metric.Int64Counter
	now      func() time.Time
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithFailureCounter counts swallowed load and save failures.
func WithFailureCounter(c metric.Int64Counter) Option {
	return func(a *Adapter) { a.failures = c }
}

// WithClock overrides the time used to backfill missing createdAt values.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates an Adapter storing under key. An empty key means DefaultKey.
func NewAdapter(backend Backend, key string, logger *slog.Logger, opts ...Option) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		backend: backend,
		key:     key,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the storage key.
func (a *Adapter) Key() string {
	return a.key
}

// Load returns the persisted collection, or an empty one when the key is
// absent or its content cannot be decoded.
func (a *Adapter) Load(ctx context.Context) []model.Todo {
	ctx, span := tracer.Start(ctx, "Adapter.Load", a.spanAttrs())
	defer span.End()

	data, err := a.backend.Get(ctx, a.key)
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("storage.found", false))
		return []model.Todo{}
	}
	if err != nil {
		a.fail(ctx, span, &StorageError{Op: "load", Backend: a.backend.Name(), Key: a.key, Err: err})
		return []model.Todo{}
	}

	todos, err := Decode(data)
	if err != nil {
		a.fail(ctx, span, &StorageError{Op: "decode", Backend: a.backend.Name(), Key: a.key, Err: err})
		return []model.Todo{}
	}

	todos = Normalize(todos, a.now())
	span.SetAttributes(attribute.Bool("storage.found", true), attribute.Int("todo.count", len(todos)))
	return todos
}

// Save replaces the persisted collection with todos. Failures are logged.
func (a *Adapter) Save(ctx context.Context, todos []model.Todo) {
	ctx, span := tracer.Start(ctx, "Adapter.Save", a.spanAttrs())
	defer span.End()

	data, err := Encode(todos)
	if err != nil {
		a.fail(ctx, span, &StorageError{Op: "encode", Backend: a.backend.Name(), Key: a.key, Err: err})
		return
	}

	if err := a.backend.Set(ctx, a.key, data); err != nil {
		a.fail(ctx, span, &StorageError{Op: "save", Backend: a.backend.Name(), Key: a.key, Err: err})
		return
	}

	span.SetAttributes(attribute.Int("todo.count", len(todos)), attribute.Int("storage.bytes", len(data)))
}

func (a *Adapter) spanAttrs() trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("storage.backend", a.backend.Name()),
		attribute.String("storage.key", a.key),
	)
}

func (a *Adapter) fail(ctx context.Context, span trace.Span, err *StorageError) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Op+" failed")
	a.logger.ErrorContext(ctx, "storage "+err.Op+" failed",
		slog.String("backend", err.Backend),
		slog.String("key", err.Key),
		slog.Any("error", err.Err),
	)
	if a.failures != nil {
		a.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("storage.backend", err.Backend),
			attribute.String("storage.op", err.Op),
		))
	}
}

// Encode serializes todos as a JSON array. A nil slice encodes as [].
func Encode(todos []model.Todo) ([]byte, error) {
	if todos == nil {
		todos = []model.Todo{}
	}
	return json.Marshal(todos)
}

// Decode parses a JSON array of todos.
func Decode(data []byte) ([]model.Todo, error) {
	var todos []model.Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}

// Normalize repairs hydrated or imported records: entries without an id are dropped,
// duplicate ids keep their first occurrence and a missing createdAt is
// backfilled with now.
func Normalize(todos []model.Todo, now time.Time) []model.Todo {
	seen := make(map[string]struct{}, len(todos))
	out := make([]model.Todo, 0, len(todos))
	for _, t := range todos {
		if t.ID == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		out = append(out, t)
	}
	return out
}
