package model

import "fmt"

// SortOption is the field a projection is ordered by.
type SortOption string

const (
	SortByCreatedAt SortOption = "createdAt"
	SortByTitle     SortOption = "title"
	SortByCompleted SortOption = "completed"
)

// SortDirection is the final sign applied to a comparison.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortConfig is transient view state. It is never persisted with todos.
type SortConfig struct {
	Option    SortOption    `json:"option"`
	Direction SortDirection `json:"direction"`
}

// DefaultSortConfig is newest first.
func DefaultSortConfig() SortConfig {
	return SortConfig{Option: SortByCreatedAt, Direction: SortDesc}
}

// Toggle flips the direction.
func (c SortConfig) Toggle() SortConfig {
	if c.Direction == SortAsc {
		c.Direction = SortDesc
	} else {
		c.Direction = SortAsc
	}
	return c
}

// Select picks option. Selecting the active option flips the direction;
// selecting another option keeps the current direction.
func (c SortConfig) Select(option SortOption) SortConfig {
	if c.Option == option {
		return c.Toggle()
	}
	c.Option = option
	return c
}

// ParseSortOption accepts the wire names plus a few aliases.
func ParseSortOption(s string) (SortOption, error) {
	switch s {
	case "", "createdAt", "created_at", "created", "date":
		return SortByCreatedAt, nil
	case "title":
		return SortByTitle, nil
	case "completed", "status":
		return SortByCompleted, nil
	default:
		return "", fmt.Errorf("invalid sort option %q", s)
	}
}

// ParseSortDirection parses "asc" or "desc". Empty means fallback.
func ParseSortDirection(s string, fallback SortDirection) (SortDirection, error) {
	switch s {
	case "":
		return fallback, nil
	case "asc":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", s)
	}
}
