package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
)

func sample() []model.Todo {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	return []model.Todo{
		{ID: "a1", Title: "Buy milk", CreatedAt: created},
		{ID: "b2", Title: "Walk dog", Description: "evening", Completed: true, CreatedAt: created.Add(time.Minute), UpdatedAt: &updated},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTablePlain(t *testing.T) {
	var buf bytes.Buffer
	if err := Table(&buf, sample(), false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ID  ") || !strings.Contains(lines[0], "TITLE") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ ]") || !strings.Contains(lines[2], "[x]") {
		t.Errorf("completion markers missing:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain table must not contain ANSI codes")
	}
	if strings.Index(lines[1], "Buy milk") != strings.Index(lines[2], "Walk dog") {
		t.Errorf("title column not aligned:\n%s", out)
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	_ = Table(&buf, nil, false)
	if buf.String() != "No todos.\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 80)
	got := truncate(long)
	if n := len([]rune(got)); n != cellMaxWidth {
		t.Errorf("truncated width = %d, want %d", n, cellMaxWidth)
	}
	if truncate("a\nb") != "a b" {
		t.Error("newlines should be flattened")
	}
}

func TestEncodeDecodeYAMLAndJSON(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, format, sample()); err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			got, err := DecodeTodos(buf.Bytes())
			if err != nil {
				t.Fatalf("DecodeTodos() error: %v\n%s", err, buf.String())
			}
			if len(got) != 2 || got[1].Description != "evening" || !got[1].Completed {
				t.Fatalf("decoded = %+v", got)
			}
			if !got[0].CreatedAt.Equal(sample()[0].CreatedAt) || got[1].UpdatedAt == nil {
				t.Errorf("timestamps lost: %+v", got)
			}
		})
	}
}

func TestYAMLUsesCamelCaseKeys(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatYAML, sample()[:1]); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "createdAt:") {
		t.Errorf("yaml output:\n%s", buf.String())
	}
}

func TestDecodeTodosErrors(t *testing.T) {
	if _, err := DecodeTodos([]byte(`[{"id":1`)); err == nil {
		t.Error("expected json error")
	}
	if _, err := DecodeTodos([]byte("id: [")); err == nil {
		t.Error("expected yaml error")
	}
	got, err := DecodeTodos([]byte(""))
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("empty input = %#v, %v", got, err)
	}
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	_ = Stats(&buf, model.Stats{Total: 3, Completed: 1, Active: 2})
	if buf.String() != "3 total, 2 active, 1 completed\n" {
		t.Errorf("got %q", buf.String())
	}
}
