package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
)

type failingBackend struct {
	getErr error
	setErr error
}

func (f *failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }
func (f *failingBackend) Set(context.Context, string, []byte) error   { return f.setErr }
func (f *failingBackend) Name() string                                { return "failing" }

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func sampleTodos() []model.Todo {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	updated := created.Add(2 * time.Hour)
	return []model.Todo{
		{ID: "a", Title: "Buy milk", CreatedAt: created},
		{ID: "b", Title: "Walk dog", Description: "evening", Completed: true, CreatedAt: created.Add(time.Minute), UpdatedAt: &updated},
	}
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(NewMemoryBackend(), "", nil)

	want := sampleTodos()
	adapter.Save(ctx, want)
	got := adapter.Load(ctx)

	if len(got) != len(want) {
		t.Fatalf("Load() returned %d todos, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Title != want[i].Title ||
			got[i].Description != want[i].Description || got[i].Completed != want[i].Completed ||
			!got[i].CreatedAt.Equal(want[i].CreatedAt) {
			t.Errorf("todo %d = %+v, want %+v", i, got[i], want[i])
		}
		if (got[i].UpdatedAt == nil) != (want[i].UpdatedAt == nil) {
			t.Errorf("todo %d UpdatedAt presence mismatch", i)
		} else if got[i].UpdatedAt != nil && !got[i].UpdatedAt.Equal(*want[i].UpdatedAt) {
			t.Errorf("todo %d UpdatedAt = %v, want %v", i, got[i].UpdatedAt, want[i].UpdatedAt)
		}
	}
}

func TestAdapterUsesDefaultKey(t *testing.T) {
	backend := NewMemoryBackend()
	adapter := NewAdapter(backend, "", nil)
	adapter.Save(context.Background(), nil)

	data, err := backend.Get(context.Background(), DefaultKey)
	if err != nil {
		t.Fatalf("Get(%q): %v", DefaultKey, err)
	}
	if string(data) != "[]" {
		t.Errorf("empty collection encoded as %q, want []", data)
	}
}

func TestAdapterLoadMissingKey(t *testing.T) {
	var logs bytes.Buffer
	adapter := NewAdapter(NewMemoryBackend(), "k", testLogger(&logs))

	got := adapter.Load(context.Background())
	if got == nil || len(got) != 0 {
		t.Fatalf("Load() = %#v, want empty non-nil slice", got)
	}
	if logs.Len() != 0 {
		t.Errorf("missing key should not log, got %q", logs.String())
	}
}

func TestAdapterLoadCorruptData(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"object", `{"id":"a"}`},
		{"bad timestamp", `[{"id":"a","title":"x","completed":false,"createdAt":"yesterday"}]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			backend := NewMemoryBackend()
			_ = backend.Set(context.Background(), "k", []byte(tc.data))
			adapter := NewAdapter(backend, "k", testLogger(&logs))

			if got := adapter.Load(context.Background()); len(got) != 0 {
				t.Errorf("Load() = %+v, want empty", got)
			}
			if !strings.Contains(logs.String(), "storage decode failed") {
				t.Errorf("expected decode failure log, got %q", logs.String())
			}
		})
	}
}

func TestAdapterLoadBackendError(t *testing.T) {
	var logs bytes.Buffer
	adapter := NewAdapter(&failingBackend{getErr: errors.New("unavailable")}, "k", testLogger(&logs))

	if got := adapter.Load(context.Background()); len(got) != 0 {
		t.Errorf("Load() = %+v, want empty", got)
	}
	if !strings.Contains(logs.String(), "storage load failed") {
		t.Errorf("expected load failure log, got %q", logs.String())
	}
}

func TestAdapterSaveFailureIsSwallowed(t *testing.T) {
	var logs bytes.Buffer
	adapter := NewAdapter(&failingBackend{setErr: errors.New("quota exceeded")}, "k", testLogger(&logs))

	adapter.Save(context.Background(), sampleTodos())

	if !strings.Contains(logs.String(), "storage save failed") || !strings.Contains(logs.String(), "quota exceeded") {
		t.Errorf("expected save failure log, got %q", logs.String())
	}
}

func TestAdapterLoadNormalizes(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend()
	raw := `[
		{"id":"a","title":"first","completed":false,"createdAt":"2024-01-01T00:00:00.000Z"},
		{"id":"","title":"no id","completed":false,"createdAt":"2024-01-01T00:00:00Z"},
		{"id":"a","title":"dup","completed":true,"createdAt":"2024-01-02T00:00:00Z"},
		{"id":"b","title":"no created","completed":false}
	]`
	_ = backend.Set(context.Background(), "k", []byte(raw))
	adapter := NewAdapter(backend, "k", nil, WithClock(func() time.Time { return now }))

	got := adapter.Load(context.Background())
	ids := make([]string, len(got))
	for i, td := range got {
		ids[i] = td.ID
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("ids = %v, want [a b]", ids)
	}
	if got[0].Title != "first" {
		t.Errorf("duplicate id should keep first record, got %q", got[0].Title)
	}
	if !got[1].CreatedAt.Equal(now) {
		t.Errorf("missing createdAt = %v, want %v", got[1].CreatedAt, now)
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	err := &StorageError{Op: "save", Backend: "file", Key: "k", Err: ErrNotFound}
	if !errors.Is(err, ErrNotFound) {
		t.Error("StorageError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "storage save k (file)") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
