// Package store holds the authoritative in-memory todo collection.
//
// Every mutating method writes the full collection through to the
// configured Persister before returning. Mutations and their writes are
// serialized by one lock, so the persisted order of snapshots matches
// the order in which mutations were applied.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/events"
	"github.com/hiroki-koketsu/go-todo/internal/idgen"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/store")

// maxIDAttempts bounds retries when a generator returns an id already in use.
const maxIDAttempts = 5

// Persister receives the full collection after every mutation.
// storage.Adapter implements it.
type Persister interface {
	Save(ctx context.Context, todos []model.Todo)
}

// TodoStore is the ordered todo collection plus its mutation operations.
// Lookups are linear scans; collections are human-sized.
type TodoStore struct {
	mu    sync.RWMutex
	todos []model.Todo

	persist   Persister
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
	newID     idgen.Generator
}

// Option configures a TodoStore.
type Option func(*TodoStore)

// WithClock overrides the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *TodoStore) { s.now = now }
}

// WithIDGenerator overrides the id generator (default idgen.UUID).
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *TodoStore) { s.newID = gen }
}

// WithPublisher emits change events after each mutation.
func WithPublisher(p events.Publisher) Option {
	return func(s *TodoStore) { s.publisher = p }
}

// WithLogger sets the logger used for publish failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *TodoStore) { s.logger = l }
}

// New creates an empty TodoStore writing through to persist.
func New(persist Persister, opts ...Option) *TodoStore {
	s := &TodoStore{
		todos:     []model.Todo{},
		persist:   persist,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     idgen.UUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceAll swaps in todos as the whole collection without persisting.
// It is meant for hydration from storage at startup.
func (s *TodoStore) ReplaceAll(ctx context.Context, todos []model.Todo) {
	_, span := tracer.Start(ctx, "TodoStore.ReplaceAll",
		trace.WithAttributes(attribute.Int("todo.count", len(todos))),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.todos = cloneAll(todos)
}

// Restore replaces the collection like ReplaceAll and then persists it.
// It backs imports, where the data did not come from the store's own key.
func (s *TodoStore) Restore(ctx context.Context, todos []model.Todo) {
	ctx, span := tracer.Start(ctx, "TodoStore.Restore",
		trace.WithAttributes(attribute.Int("todo.count", len(todos))),
	)
	defer span.End()

	s.mu.Lock()
	s.todos = cloneAll(todos)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, events.TopicTodosReplaced, events.TodosReplaced{Count: len(todos)})
}

// Add validates req and appends a new incomplete todo.
func (s *TodoStore) Add(ctx context.Context, req model.CreateTodoRequest) (model.Todo, error) {
	ctx, span := tracer.Start(ctx, "TodoStore.Add")
	defer span.End()

	if err := req.Validate(); err != nil {
		return model.Todo{}, err
	}

	s.mu.Lock()
	id, err := s.uniqueIDLocked()
	if err != nil {
		s.mu.Unlock()
		return model.Todo{}, err
	}

	todo := model.Todo{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		CreatedAt:   s.now(),
	}
	s.todos = append(s.todos, todo)
	s.saveLocked(ctx)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("todo.id", todo.ID))
	s.publish(ctx, events.TopicTodoCreated, events.TodoCreated{Todo: todo})
	return todo.Clone(), nil
}

// Update validates req and merges its fields over the matching todo.
// A missing id is not an error: ok is false and nothing is written.
func (s *TodoStore) Update(ctx context.Context, req model.UpdateTodoRequest) (todo model.Todo, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "TodoStore.Update",
		trace.WithAttributes(attribute.String("todo.id", req.ID)),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return model.Todo{}, false, err
	}

	s.mu.Lock()
	i := s.indexLocked(req.ID)
	if i < 0 {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("todo.found", false))
		return model.Todo{}, false, nil
	}

	req.Apply(&s.todos[i])
	s.todos[i].Touch(s.now())
	todo = s.todos[i].Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	span.SetAttributes(attribute.Bool("todo.found", true))
	s.publish(ctx, events.TopicTodoUpdated, events.TodoUpdated{Todo: todo})
	return todo, true, nil
}

// ToggleComplete flips completed on the matching todo. ok is false when
// the id is absent, in which case nothing is written.
func (s *TodoStore) ToggleComplete(ctx context.Context, id string) (todo model.Todo, ok bool) {
	ctx, span := tracer.Start(ctx, "TodoStore.ToggleComplete",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("todo.found", false))
		return model.Todo{}, false
	}

	s.todos[i].Completed = !s.todos[i].Completed
	s.todos[i].Touch(s.now())
	todo = s.todos[i].Clone()
	s.saveLocked(ctx)
	s.mu.Unlock()

	span.SetAttributes(attribute.Bool("todo.found", true), attribute.Bool("todo.completed", todo.Completed))
	s.publish(ctx, events.TopicTodoUpdated, events.TodoUpdated{Todo: todo})
	return todo, true
}

// Delete removes the matching todo and reports whether it existed.
// The collection is persisted either way.
func (s *TodoStore) Delete(ctx context.Context, id string) bool {
	ctx, span := tracer.Start(ctx, "TodoStore.Delete",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	before := len(s.todos)
	s.todos = slices.DeleteFunc(s.todos, func(t model.Todo) bool { return t.ID == id })
	removed := len(s.todos) < before
	s.saveLocked(ctx)
	s.mu.Unlock()

	span.SetAttributes(attribute.Bool("todo.found", removed))
	if removed {
		s.publish(ctx, events.TopicTodoDeleted, events.TodoDeleted{TodoID: id})
	}
	return removed
}

// DeleteCompleted removes every completed todo and returns how many were
// removed. It persists even when nothing changed.
func (s *TodoStore) DeleteCompleted(ctx context.Context) int {
	ctx, span := tracer.Start(ctx, "TodoStore.DeleteCompleted")
	defer span.End()

	s.mu.Lock()
	before := len(s.todos)
	s.todos = slices.DeleteFunc(s.todos, func(t model.Todo) bool { return t.Completed })
	removed := before - len(s.todos)
	total := len(s.todos)
	s.saveLocked(ctx)
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("todo.removed", removed))
	s.publish(ctx, events.TopicTodosBulk, events.TodosBulk{Op: "delete_completed", Affected: removed, Total: total})
	return removed
}

// MarkAll sets completed on every todo and stamps every updatedAt, even
// for records whose value did not change. It returns the collection size.
func (s *TodoStore) MarkAll(ctx context.Context, completed bool) int {
	ctx, span := tracer.Start(ctx, "TodoStore.MarkAll",
		trace.WithAttributes(attribute.Bool("todo.completed", completed)),
	)
	defer span.End()

	s.mu.Lock()
	now := s.now()
	for i := range s.todos {
		s.todos[i].Completed = completed
		s.todos[i].Touch(now)
	}
	total := len(s.todos)
	s.saveLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, events.TopicTodosBulk, events.TodosBulk{Op: "mark_all", Affected: total, Total: total})
	return total
}

// List returns a copy of the collection in insertion order.
func (s *TodoStore) List(ctx context.Context) []model.Todo {
	_, span := tracer.Start(ctx, "TodoStore.List")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	span.SetAttributes(attribute.Int("todo.count", len(s.todos)))
	return cloneAll(s.todos)
}

// Get returns the todo with id.
func (s *TodoStore) Get(ctx context.Context, id string) (model.Todo, bool) {
	_, span := tracer.Start(ctx, "TodoStore.Get",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	span.SetAttributes(attribute.Bool("todo.found", i >= 0))
	if i < 0 {
		return model.Todo{}, false
	}
	return s.todos[i].Clone(), true
}

// Stats returns total, completed and active counts.
func (s *TodoStore) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Summarize(s.todos)
}

// Count returns the current number of todos.
func (s *TodoStore) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.todos))
}

func (s *TodoStore) indexLocked(id string) int {
	return slices.IndexFunc(s.todos, func(t model.Todo) bool { return t.ID == id })
}

func (s *TodoStore) uniqueIDLocked() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate todo id: %w", err)
		}
		if id != "" && s.indexLocked(id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate todo id: no unique id after %d attempts", maxIDAttempts)
}

func (s *TodoStore) saveLocked(ctx context.Context) {
	if s.persist == nil {
		return
	}
	s.persist.Save(ctx, cloneAll(s.todos))
}

func (s *TodoStore) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.Any("error", err),
		)
	}
}

func cloneAll(todos []model.Todo) []model.Todo {
	out := make([]model.Todo, len(todos))
	for i, t := range todos {
		out[i] = t.Clone()
	}
	return out
}
