package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

func TestSQLFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sql")
	log := &logger.Logger{Logger: zap.NewNop()}

	repo, err := NewSQLFileRepository(path, log)
	if err != nil {
		t.Fatalf("NewSQLFileRepository: %v", err)
	}
	defer repo.Close()

	stmt := InsertStatement{
		Table:   "public.anonymized_patients",
		Columns: []string{"id", "document_id", "patient", "source_system"},
		Values:  []any{"uuid-1", "doc-1", `{"name":"PERSON_x"}`, nil},
	}
	if _, err := repo.Insert(context.Background(), stmt); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rendered := string(content)

	for _, want := range []string{
		"INSERT INTO public.anonymized_patients",
		"'uuid-1'",
		"'doc-1'",
		"NULL",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("output missing %q in %q", want, rendered)
		}
	}
	if strings.Contains(rendered, "$1") {
		t.Error("placeholders were not inlined")
	}
}

func TestSQLFileRepositoryDollarLiterals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.sql")
	log := &logger.Logger{Logger: zap.NewNop()}

	repo, err := NewSQLFileRepository(path, log)
	if err != nil {
		t.Fatalf("NewSQLFileRepository: %v", err)
	}
	defer repo.Close()

	stmt := InsertStatement{
		Table:   "public.anonymized_patients",
		Columns: []string{"patient", "source_system"},
		Values:  []any{`{"notes":"copay $2 due"}`, "legacy"},
	}
	if _, err := repo.Insert(context.Background(), stmt); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rendered := string(content)

	want := `VALUES ('{"notes":"copay $2 due"}', 'legacy');`
	if !strings.Contains(rendered, want) {
		t.Errorf("output %q missing %q", rendered, want)
	}
}

func TestRenderLiteral(t *testing.T) {
	if got := renderLiteral("O'Brien"); got != "'O''Brien'" {
		t.Errorf("quote escaping failed: %q", got)
	}
	if got := renderLiteral(nil); got != "NULL" {
		t.Errorf("nil = %q", got)
	}
	if got := renderLiteral(true); got != "TRUE" {
		t.Errorf("true = %q", got)
	}
	if got := renderLiteral(42); got != "42" {
		t.Errorf("int = %q", got)
	}
}
