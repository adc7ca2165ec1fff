package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hiroki-koketsu/go-todo/internal/storage"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestBackendGet(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT value FROM todo_blobs WHERE key = \\$1").
		WithArgs("todos-app-data").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`[]`)))

	got, err := NewWithDB(db).Get(context.Background(), "todos-app-data")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("Get() = %q, want []", got)
	}
}

func TestBackendGetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT value FROM todo_blobs WHERE key = \\$1").
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := NewWithDB(db).Get(context.Background(), "k")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestBackendGetQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT value FROM todo_blobs").
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := NewWithDB(db).Get(context.Background(), "k")
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want wrapped query error", err)
	}
}

func TestBackendSet(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO todo_blobs .+ ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs("k", []byte(`[{"id":"a"}]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewWithDB(db).Set(context.Background(), "k", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
}

func TestBackendSetErrorIsSwallowedByAdapter(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO todo_blobs").
		WillReturnError(errors.New("disk full"))

	adapter := storage.NewAdapter(NewWithDB(db), "k", nil)
	adapter.Save(context.Background(), nil)
}
