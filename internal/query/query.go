// Package query derives the filtered, sorted view of a todo collection.
// Projections are recomputed from scratch on every iteration and never
// modify the collection they read.
package query

import (
	"iter"
	"slices"
	"strings"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Query is the transient view state applied to a collection.
type Query struct {
	Search string
	Sort   model.SortConfig
	// Locale drives title ordering. The zero value is language.Und (root collation).
	Locale language.Tag
}

// Default returns an empty search with the default sort.
func Default() Query {
	return Query{Sort: model.DefaultSortConfig()}
}

// Project returns a lazy sequence over the todos matching q.Search in
// q.Sort order. Each range over the sequence filters and sorts again, so
// it reflects the contents of todos at iteration time.
func Project(todos []model.Todo, q Query) iter.Seq[model.Todo] {
	return func(yield func(model.Todo) bool) {
		needle := strings.ToLower(q.Search)
		view := make([]model.Todo, 0, len(todos))
		for _, t := range todos {
			if matches(t, needle) {
				view = append(view, t.Clone())
			}
		}

		cmp := comparator(q)
		slices.SortStableFunc(view, cmp)

		for _, t := range view {
			if !yield(t) {
				return
			}
		}
	}
}

// Collect materializes Project.
func Collect(todos []model.Todo, q Query) []model.Todo {
	out := slices.Collect(Project(todos, q))
	if out == nil {
		out = []model.Todo{}
	}
	return out
}

// Matches reports whether t contains search in its title or description,
// ignoring case. An empty search matches everything.
func Matches(t model.Todo, search string) bool {
	return matches(t, strings.ToLower(search))
}

func matches(t model.Todo, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

func comparator(q Query) func(a, b model.Todo) int {
	sign := 1
	if q.Sort.Direction == model.SortDesc {
		sign = -1
	}

	switch q.Sort.Option {
	case model.SortByTitle:
		// Collators keep internal buffers; one per projection run.
		c := collate.New(q.Locale)
		return func(a, b model.Todo) int {
			return sign * c.CompareString(a.Title, b.Title)
		}
	case model.SortByCompleted:
		return func(a, b model.Todo) int {
			return sign * compareBool(a.Completed, b.Completed)
		}
	default:
		return func(a, b model.Todo) int {
			return sign * a.CreatedAt.Compare(b.CreatedAt)
		}
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
