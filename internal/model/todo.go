package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits enforced by update validation.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// Todo represents a single task record.
//
// Timestamps cross the persistence boundary as RFC 3339 strings
// (time.Time's JSON encoding), so a stored collection is a plain JSON
// array readable by any ISO-8601 aware client.
type Todo struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Completed   bool       `json:"completed" yaml:"completed"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the todo.
func (t Todo) Clone() Todo {
	if t.UpdatedAt != nil {
		ts := *t.UpdatedAt
		t.UpdatedAt = &ts
	}
	return t
}

// Touch stamps UpdatedAt.
func (t *Todo) Touch(now time.Time) {
	t.UpdatedAt = &now
}

// CreateTodoRequest represents the payload for creating a todo.
type CreateTodoRequest struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// UpdateTodoRequest represents a partial update. Nil fields are left as is.
type UpdateTodoRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Validate checks the request and normalizes it in place: the title and
// description are trimmed. Description length is not limited on create.
func (r *CreateTodoRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)

	var ve ValidationError
	if r.Title == "" {
		ve.add("title", ErrTitleRequired)
	}
	return ve.orNil()
}

// Validate checks the partial update. Only provided fields are checked.
func (r *UpdateTodoRequest) Validate() error {
	var ve ValidationError
	if r.ID == "" {
		ve.add("id", ErrIDRequired)
	}
	if r.Title != nil {
		switch {
		case *r.Title == "":
			ve.add("title", ErrTitleRequired)
		case utf8.RuneCountInString(*r.Title) > MaxTitleLength:
			ve.add("title", ErrTitleTooLong)
		}
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > MaxDescriptionLength {
		ve.add("description", ErrDescriptionTooLong)
	}
	return ve.orNil()
}

// Apply merges the provided fields over t.
func (r *UpdateTodoRequest) Apply(t *Todo) {
	if r.Title != nil {
		t.Title = *r.Title
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Completed != nil {
		t.Completed = *r.Completed
	}
}

// Stats summarizes a collection.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Active    int `json:"active"`
}

// Summarize counts completed and active todos.
func Summarize(todos []Todo) Stats {
	s := Stats{Total: len(todos)}
	for _, t := range todos {
		if t.Completed {
			s.Completed++
		}
	}
	s.Active = s.Total - s.Completed
	return s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
