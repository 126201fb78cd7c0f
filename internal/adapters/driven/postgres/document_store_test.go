package postgres

import (
	"strings"
	"testing"

	"github.com/openexams/paperd/internal/core/ports/driven"
)

func TestLikePattern(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"plain", "triangle", "%triangle%"},
		{"percent escaped", "50% marks", `%50\% marks%`},
		{"underscore escaped", "a_b", `%a\_b%`},
		{"backslash escaped", `a\b`, `%a\\b%`},
		{"empty matches everything", "", "%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := likePattern(tt.query); got != tt.want {
				t.Errorf("likePattern(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestEqClause(t *testing.T) {
	t.Run("id only", func(t *testing.T) {
		cond, args, err := eqClause(driven.Eq{"id": "abc"}, []any{"papers"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cond != "d.id = $2" {
			t.Errorf("cond = %q", cond)
		}
		if len(args) != 2 || args[1] != "abc" {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("field containment", func(t *testing.T) {
		cond, args, err := eqClause(driven.Eq{"task_id": "t1"}, []any{"tasks"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cond != "d.doc @> $2::jsonb" {
			t.Errorf("cond = %q", cond)
		}
		if string(args[1].([]byte)) != `{"task_id":"t1"}` {
			t.Errorf("args[1] = %s", args[1])
		}
	})

	t.Run("id plus fields", func(t *testing.T) {
		cond, args, err := eqClause(driven.Eq{"id": "abc", "type": "exam"}, []any{"papers"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cond != "d.id = $2 AND d.doc @> $3::jsonb" {
			t.Errorf("cond = %q", cond)
		}
		if len(args) != 3 {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("empty filter", func(t *testing.T) {
		cond, args, err := eqClause(driven.Eq{}, []any{"papers"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cond != "TRUE" || len(args) != 1 {
			t.Errorf("cond = %q args = %v", cond, args)
		}
	})
}

func TestFilterClause_QuestionText(t *testing.T) {
	cond, args, err := filterClause(driven.QuestionText{Query: "pythagoras"}, []any{"papers"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(cond, "jsonb_array_elements(d.doc->'sections')") {
		t.Errorf("cond missing sections traversal: %q", cond)
	}
	if !strings.Contains(cond, "ILIKE $2") {
		t.Errorf("cond missing parameter reference: %q", cond)
	}
	if args[1] != "%pythagoras%" {
		t.Errorf("args[1] = %v", args[1])
	}
}

func TestOrderClause(t *testing.T) {
	t.Run("default newest first", func(t *testing.T) {
		order, err := orderClause(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order != "d.created_at DESC" {
			t.Errorf("order = %q", order)
		}
	})

	t.Run("document fields", func(t *testing.T) {
		order, err := orderClause([]driven.SortField{
			{Field: "title"},
			{Field: "marks", Desc: true},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order != "d.doc->>'title' ASC, d.doc->>'marks' DESC" {
			t.Errorf("order = %q", order)
		}
	})

	t.Run("rejects injection", func(t *testing.T) {
		if _, err := orderClause([]driven.SortField{{Field: "title'; DROP TABLE documents; --"}}); err == nil {
			t.Error("expected error for malicious field name")
		}
	})
}

func TestIndexMatches(t *testing.T) {
	def := `CREATE UNIQUE INDEX idx_tasks_task_id ON public.documents USING btree ((doc ->> 'task_id'::text)) WHERE (collection = 'genai_tasks'::text)`
	spec := driven.IndexSpec{Name: "idx_tasks_task_id", Keys: []string{"task_id"}, Unique: true}

	if !indexMatches(def, "genai_tasks", spec) {
		t.Error("expected matching definition to be accepted")
	}

	spec.Unique = false
	if indexMatches(def, "genai_tasks", spec) {
		t.Error("expected uniqueness mismatch to be rejected")
	}

	spec.Unique = true
	if indexMatches(def, "other_collection", spec) {
		t.Error("expected collection mismatch to be rejected")
	}
}

func TestValidateIdent(t *testing.T) {
	valid := []string{"task_id", "created_at", "_x", "A1"}
	for _, name := range valid {
		if err := validateIdent(name); err != nil {
			t.Errorf("validateIdent(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "1abc", "a-b", "a b", "a;", "doc'"}
	for _, name := range invalid {
		if err := validateIdent(name); err == nil {
			t.Errorf("validateIdent(%q) = nil, want error", name)
		}
	}
}
