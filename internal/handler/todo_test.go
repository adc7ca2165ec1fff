package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/storage"
	"github.com/hiroki-koketsu/go-todo/internal/store"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/otel/metric/noop"
)

type fixture struct {
	server  *httptest.Server
	store   *store.TodoStore
	adapter *storage.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := storage.NewAdapter(storage.NewMemoryBackend(), "", logger)
	s := store.New(adapter, store.WithLogger(logger))

	metrics, err := telemetry.NewMetrics(noop.NewMeterProvider().Meter("test"), s.Count)
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}

	h := NewTodoHandler(s, logger, metrics)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, store: s, adapter: adapter}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (f *fixture) create(t *testing.T, title, description string) model.Todo {
	t.Helper()
	body, _ := json.Marshal(model.CreateTodoRequest{Title: title, Description: description})
	resp := f.do(t, http.MethodPost, "/", string(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create %q status = %d", title, resp.StatusCode)
	}
	return decode[model.Todo](t, resp)
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	todo := f.create(t, "  Buy milk ", "")

	if todo.Title != "Buy milk" || todo.ID == "" || todo.Completed {
		t.Errorf("created = %+v", todo)
	}

	resp := f.do(t, http.MethodGet, "/"+todo.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if got := decode[model.Todo](t, resp); got.ID != todo.ID {
		t.Errorf("got %+v", got)
	}

	if persisted := f.adapter.Load(context.Background()); len(persisted) != 1 {
		t.Errorf("persisted %d todos, want 1", len(persisted))
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/", `{"title":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, resp)
	if body.Fields["title"] != model.ErrTitleRequired.Error() {
		t.Errorf("fields = %v", body.Fields)
	}

	if resp := f.do(t, http.MethodPost, "/", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
	if f.store.Count() != 0 {
		t.Error("rejected creates must not change the store")
	}
}

func TestListSearchAndSort(t *testing.T) {
	f := newFixture(t)
	milk := f.create(t, "Buy milk", "")
	dog := f.create(t, "Walk dog", "evening")
	f.do(t, http.MethodPost, "/"+milk.ID+"/toggle", "")

	todos := decode[[]model.Todo](t, f.do(t, http.MethodGet, "/?q=DOG", ""))
	if len(todos) != 1 || todos[0].ID != dog.ID {
		t.Errorf("search = %+v", todos)
	}

	todos = decode[[]model.Todo](t, f.do(t, http.MethodGet, "/?sort=completed&direction=asc", ""))
	if len(todos) != 2 || todos[0].ID != dog.ID || todos[1].ID != milk.ID {
		t.Errorf("completed asc = %+v", todos)
	}

	empty := decode[[]model.Todo](t, f.do(t, http.MethodGet, "/?q=zzz", ""))
	if empty == nil || len(empty) != 0 {
		t.Errorf("no match should be an empty array, got %#v", empty)
	}

	if resp := f.do(t, http.MethodGet, "/?sort=priority", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad sort status = %d, want 400", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/?direction=up", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	todo := f.create(t, "Buy milk", "")

	resp := f.do(t, http.MethodPatch, "/"+todo.ID, `{"title":"Buy oat milk","completed":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[model.Todo](t, resp)
	if got.Title != "Buy oat milk" || !got.Completed || got.UpdatedAt == nil {
		t.Errorf("updated = %+v", got)
	}

	if resp := f.do(t, http.MethodPatch, "/missing", `{"title":"x"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", resp.StatusCode)
	}

	long := strings.Repeat("x", model.MaxTitleLength+1)
	resp = f.do(t, http.MethodPatch, "/"+todo.ID, `{"title":"`+long+`"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("too long status = %d, want 400", resp.StatusCode)
	}
}

func TestToggleAndDelete(t *testing.T) {
	f := newFixture(t)
	todo := f.create(t, "Walk dog", "")

	got := decode[model.Todo](t, f.do(t, http.MethodPost, "/"+todo.ID+"/toggle", ""))
	if !got.Completed {
		t.Error("toggle did not complete the todo")
	}
	if resp := f.do(t, http.MethodPost, "/missing/toggle", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("toggle missing status = %d, want 404", resp.StatusCode)
	}

	for i := 0; i < 2; i++ {
		if resp := f.do(t, http.MethodDelete, "/"+todo.ID, ""); resp.StatusCode != http.StatusNoContent {
			t.Errorf("delete #%d status = %d, want 204", i+1, resp.StatusCode)
		}
	}
	if resp := f.do(t, http.MethodGet, "/"+todo.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestBulkOperations(t *testing.T) {
	f := newFixture(t)
	f.create(t, "a", "")
	f.create(t, "b", "")
	f.create(t, "c", "")

	resp := f.do(t, http.MethodPost, "/complete-all", `{"completed":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete-all status = %d", resp.StatusCode)
	}
	if stats := decode[model.Stats](t, resp); stats != (model.Stats{Total: 3, Completed: 3}) {
		t.Errorf("stats after complete-all = %+v", stats)
	}

	if resp := f.do(t, http.MethodPost, "/complete-all", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("complete-all without flag status = %d, want 400", resp.StatusCode)
	}

	if resp := f.do(t, http.MethodDelete, "/completed", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete completed status = %d", resp.StatusCode)
	}
	stats := decode[model.Stats](t, f.do(t, http.MethodGet, "/stats", ""))
	if stats.Total != 0 {
		t.Errorf("stats after delete completed = %+v", stats)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	h := NewTodoHandler(f.store, slog.Default(), nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"ok"`)) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
}
