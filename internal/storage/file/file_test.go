package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hiroki-koketsu/go-todo/internal/storage"
)

func TestBackendGetMissing(t *testing.T) {
	b := New(t.TempDir())
	if _, err := b.Get(context.Background(), "todos"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestBackendSetThenGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := New(dir)
	ctx := context.Background()

	if err := b.Set(ctx, "todos", []byte(`[1]`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := b.Set(ctx, "todos", []byte(`[2]`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := b.Get(ctx, "todos")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != `[2]` {
		t.Errorf("Get() = %q, want [2]", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "todos.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("dir entries = %v, want [todos.json]", names)
	}
}

func TestBackendPathSanitizesKey(t *testing.T) {
	b := New("/data")
	if got := b.Path("../etc/passwd"); got != filepath.Join("/data", "__etc_passwd.json") {
		t.Errorf("Path() = %q", got)
	}
}

func TestBackendWithAdapter(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewAdapter(New(t.TempDir()), "", nil)

	if got := adapter.Load(ctx); len(got) != 0 {
		t.Fatalf("fresh dir should load empty, got %+v", got)
	}
}
