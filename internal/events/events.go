// Package events publishes change notifications for todo mutations.
package events

import (
	"context"

	"github.com/hiroki-koketsu/go-todo/internal/model"
)

// Event topic constants
const (
	TopicTodoCreated   = "todos.todo.created"
	TopicTodoUpdated   = "todos.todo.updated"
	TopicTodoDeleted   = "todos.todo.deleted"
	TopicTodosReplaced = "todos.collection.replaced"
	TopicTodosBulk     = "todos.collection.bulk"
)

type TodoCreated struct {
	Todo model.Todo `json:"todo"`
}

type TodoUpdated struct {
	Todo model.Todo `json:"todo"`
}

type TodoDeleted struct {
	TodoID string `json:"todo_id"`
}

type TodosReplaced struct {
	Count int `json:"count"`
}

// TodosBulk describes deleteCompleted and markAll.
type TodosBulk struct {
	Op       string `json:"op"` // "delete_completed" | "mark_all"
	Affected int    `json:"affected"`
	Total    int    `json:"total"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
