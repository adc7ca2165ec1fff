// Package render formats todos for the command line: an aligned table
// for people and JSON or YAML for scripts.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json, yaml and yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
	}
}

// ColorEnabled reports whether w is a terminal that accepts ANSI styling.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

const cellMaxWidth = 50

type styles struct {
	header lipgloss.Style
	done   lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		done:   r.NewStyle().Foreground(lipgloss.Color("244")).Strikethrough(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Table writes todos as an aligned table. Styling is applied only when
// color is true.
func Table(w io.Writer, todos []model.Todo, color bool) error {
	if len(todos) == 0 {
		_, err := fmt.Fprintln(w, "No todos.")
		return err
	}

	var st *styles
	if color {
		st = newStyles(w)
	}

	headers := []string{"ID", "DONE", "TITLE", "DESCRIPTION", "CREATED"}
	rows := make([][]string, 0, len(todos))
	for _, t := range todos {
		check := "[ ]"
		title := truncate(t.Title)
		if t.Completed {
			check = "[x]"
			if st != nil {
				title = st.done.Render(title)
			}
		}
		created := t.CreatedAt.Local().Format(time.DateTime)
		if st != nil {
			created = st.muted.Render(created)
		}
		rows = append(rows, []string{t.ID, check, title, truncate(t.Description), created})
	}

	if st != nil {
		for i, h := range headers {
			headers[i] = st.header.Render(h)
		}
	}

	_, err := io.WriteString(w, formatTable(headers, rows))
	return err
}

func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		for i, cell := range row {
			b.WriteString(cell)
			if i == len(row)-1 {
				b.WriteByte('\n')
				continue
			}
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
		}
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String()
}

func truncate(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
	r := []rune(s)
	if len(r) <= cellMaxWidth {
		return s
	}
	return string(r[:cellMaxWidth-3]) + "..."
}

// Stats writes the collection counts on one line.
func Stats(w io.Writer, s model.Stats) error {
	_, err := fmt.Fprintf(w, "%d total, %d active, %d completed\n", s.Total, s.Active, s.Completed)
	return err
}

// Encode writes v as indented JSON or as YAML.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("cannot encode as %q", format)
	}
}

// DecodeTodos parses a JSON array or a YAML sequence of todos. JSON is
// detected by a leading '['.
func DecodeTodos(data []byte) ([]model.Todo, error) {
	var todos []model.Todo
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &todos); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &todos); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}
