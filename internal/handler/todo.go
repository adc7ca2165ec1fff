package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/query"
	"github.com/hiroki-koketsu/go-todo/internal/store"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/handler")

const (
	routeTodos  = "/api/v1/todos"
	routeTodoID = "/api/v1/todos/{id}"
)

// TodoHandler handles HTTP requests for todos.
type TodoHandler struct {
	store   *store.TodoStore
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewTodoHandler creates a new TodoHandler.
func NewTodoHandler(s *store.TodoStore, logger *slog.Logger, metrics *telemetry.Metrics) *TodoHandler {
	return &TodoHandler{
		store:   s,
		logger:  logger,
		metrics: metrics,
	}
}

// Routes returns the chi router with todo routes.
func (h *TodoHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Post("/complete-all", h.CompleteAll)
	r.Delete("/completed", h.DeleteCompleted)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/toggle", h.Toggle)
	r.Delete("/{id}", h.Delete)

	return r
}

// List returns the filtered and sorted projection of the collection.
// Query parameters: q (search), sort (createdAt|title|completed) and
// direction (asc|desc).
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TodoHandler.List")
	defer span.End()

	q, err := parseQuery(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid query", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, err.Error())
		h.recordMetrics(ctx, "GET", routeTodos, http.StatusBadRequest, start)
		return
	}

	todos := query.Collect(h.store.List(ctx), q)

	span.SetAttributes(
		attribute.Int("todo.count", len(todos)),
		attribute.String("todo.sort", string(q.Sort.Option)),
		attribute.String("todo.direction", string(q.Sort.Direction)),
	)
	h.logger.DebugContext(ctx, "todos listed", slog.Int("count", len(todos)), slog.String("search", q.Search))

	h.respondJSON(w, http.StatusOK, todos)
	h.recordMetrics(ctx, "GET", routeTodos, http.StatusOK, start)
}

// Create adds a new todo.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TodoHandler.Create")
	defer span.End()

	var req model.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, "POST", routeTodos, http.StatusBadRequest, start)
		return
	}

	todo, err := h.store.Add(ctx, req)
	if err != nil {
		status := h.respondStoreError(ctx, w, err, "failed to create todo")
		h.recordMetrics(ctx, "POST", routeTodos, status, start)
		return
	}

	span.SetAttributes(attribute.String("todo.id", todo.ID))
	h.logger.InfoContext(ctx, "todo created", slog.String("id", todo.ID))

	h.respondJSON(w, http.StatusCreated, todo)
	h.recordMetrics(ctx, "POST", routeTodos, http.StatusCreated, start)
}

// Stats returns total, completed and active counts.
func (h *TodoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	h.respondJSON(w, http.StatusOK, h.store.Stats())
	h.recordMetrics(ctx, "GET", routeTodos+"/stats", http.StatusOK, start)
}

type completeAllRequest struct {
	Completed *bool `json:"completed"`
}

// CompleteAll sets completed on every todo.
func (h *TodoHandler) CompleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TodoHandler.CompleteAll")
	defer span.End()

	var req completeAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Completed == nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "body must be {\"completed\": bool}")
		h.recordMetrics(ctx, "POST", routeTodos+"/complete-all", http.StatusBadRequest, start)
		return
	}

	n := h.store.MarkAll(ctx, *req.Completed)
	h.logger.InfoContext(ctx, "todos marked", slog.Bool("completed", *req.Completed), slog.Int("count", n))

	h.respondJSON(w, http.StatusOK, h.store.Stats())
	h.recordMetrics(ctx, "POST", routeTodos+"/complete-all", http.StatusOK, start)
}

// DeleteCompleted removes every completed todo.
func (h *TodoHandler) DeleteCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TodoHandler.DeleteCompleted")
	defer span.End()

	n := h.store.DeleteCompleted(ctx)
	h.logger.InfoContext(ctx, "completed todos deleted", slog.Int("count", n))

	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(ctx, "DELETE", routeTodos+"/completed", http.StatusNoContent, start)
}

// GetByID returns a todo by ID.
func (h *TodoHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TodoHandler.GetByID",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	todo, ok := h.store.Get(ctx, id)
	if !ok {
		h.notFound(ctx, w, id)
		h.recordMetrics(ctx, "GET", routeTodoID, http.StatusNotFound, start)
		return
	}

	h.respondJSON(w, http.StatusOK, todo)
	h.recordMetrics(ctx, "GET", routeTodoID, http.StatusOK, start)
}

// Update applies a partial update to an existing todo.
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TodoHandler.Update",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	var req model.UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, "PATCH", routeTodoID, http.StatusBadRequest, start)
		return
	}
	req.ID = id

	todo, ok, err := h.store.Update(ctx, req)
	if err != nil {
		status := h.respondStoreError(ctx, w, err, "failed to update todo")
		h.recordMetrics(ctx, "PATCH", routeTodoID, status, start)
		return
	}
	if !ok {
		h.notFound(ctx, w, id)
		h.recordMetrics(ctx, "PATCH", routeTodoID, http.StatusNotFound, start)
		return
	}

	h.logger.InfoContext(ctx, "todo updated", slog.String("id", id))

	h.respondJSON(w, http.StatusOK, todo)
	h.recordMetrics(ctx, "PATCH", routeTodoID, http.StatusOK, start)
}

// Toggle flips the completed flag of a todo.
func (h *TodoHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TodoHandler.Toggle",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	todo, ok := h.store.ToggleComplete(ctx, id)
	if !ok {
		h.notFound(ctx, w, id)
		h.recordMetrics(ctx, "POST", routeTodoID+"/toggle", http.StatusNotFound, start)
		return
	}

	h.logger.InfoContext(ctx, "todo toggled", slog.String("id", id), slog.Bool("completed", todo.Completed))

	h.respondJSON(w, http.StatusOK, todo)
	h.recordMetrics(ctx, "POST", routeTodoID+"/toggle", http.StatusOK, start)
}

// Delete removes a todo. Deleting an absent id also succeeds.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TodoHandler.Delete",
		trace.WithAttributes(attribute.String("todo.id", id)),
	)
	defer span.End()

	removed := h.store.Delete(ctx, id)
	h.logger.InfoContext(ctx, "todo deleted", slog.String("id", id), slog.Bool("existed", removed))

	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(ctx, "DELETE", routeTodoID, http.StatusNoContent, start)
}

// Health returns a health check response.
func (h *TodoHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseQuery(r *http.Request) (query.Query, error) {
	values := r.URL.Query()
	q := query.Default()
	q.Search = values.Get("q")

	if s := values.Get("sort"); s != "" {
		opt, err := model.ParseSortOption(s)
		if err != nil {
			return q, err
		}
		q.Sort.Option = opt
	}
	if d := values.Get("direction"); d != "" {
		dir, err := model.ParseSortDirection(d, q.Sort.Direction)
		if err != nil {
			return q, err
		}
		q.Sort.Direction = dir
	}
	return q, nil
}

func (h *TodoHandler) notFound(ctx context.Context, w http.ResponseWriter, id string) {
	h.logger.WarnContext(ctx, "todo not found", slog.String("id", id))
	h.respondError(w, http.StatusNotFound, model.ErrTodoNotFound.Error())
}

// respondStoreError writes a 400 for validation failures and a 500
// otherwise, returning the status used.
func (h *TodoHandler) respondStoreError(ctx context.Context, w http.ResponseWriter, err error, msg string) int {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		h.logger.WarnContext(ctx, "validation failed", slog.Any("error", err))
		h.respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  ve.Error(),
			"fields": ve.Fields(),
		})
		return http.StatusBadRequest
	}
	h.logger.ErrorContext(ctx, msg, slog.Any("error", err))
	h.respondError(w, http.StatusInternalServerError, msg)
	return http.StatusInternalServerError
}

func (h *TodoHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *TodoHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func (h *TodoHandler) recordMetrics(ctx context.Context, method, route string, status int, start time.Time) {
	duration := time.Since(start).Seconds()

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	h.metrics.RequestCounter.Add(ctx, 1, attrs)
	h.metrics.RequestDuration.Record(ctx, duration, attrs)
}
