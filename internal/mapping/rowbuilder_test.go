package mapping

import (
	"reflect"
	"testing"

	"github.com/rfranks/ehr-anonymizer/internal/ddl"
)

const tableDDL = `
CREATE TABLE public.anonymized_patients (
    id uuid PRIMARY KEY,
    document_id text NOT NULL,
    patient jsonb NOT NULL,
    source_system text,
    anonymized_at timestamptz NOT NULL DEFAULT now()
);
`

func loadMeta(t *testing.T) *ddl.TableMetadata {
	t.Helper()
	meta, err := ddl.ParseDDL(tableDDL)
	if err != nil {
		t.Fatalf("ParseDDL: %v", err)
	}
	return meta
}

func TestBuildColumnSet(t *testing.T) {
	meta := loadMeta(t)

	t.Run("required plus nullable", func(t *testing.T) {
		got := BuildColumnSet(meta, ColumnSetConfig{IncludeNullable: true})
		want := []string{"id", "document_id", "patient", "source_system"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("defaulted included on demand", func(t *testing.T) {
		got := BuildColumnSet(meta, ColumnSetConfig{IncludeDefaulted: true, IncludeNullable: true})
		want := []string{"id", "document_id", "patient", "source_system", "anonymized_at"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("required only", func(t *testing.T) {
		got := BuildColumnSet(meta, ColumnSetConfig{})
		want := []string{"id", "document_id", "patient"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestRowBuilder(t *testing.T) {
	meta := loadMeta(t)
	resolvers := map[string]Resolver{
		"id": ConstResolver("row-uuid"),
		"patient": func(ctx Context) (any, error) {
			return ctx.Patient, nil
		},
	}

	builder := NewRowBuilder(meta, resolvers, ColumnSetConfig{IncludeNullable: true})

	t.Run("table and columns", func(t *testing.T) {
		if builder.Table() != "public.anonymized_patients" {
			t.Errorf("table = %q", builder.Table())
		}
		want := []string{"id", "document_id", "patient", "source_system"}
		if !reflect.DeepEqual(builder.Columns(), want) {
			t.Errorf("columns = %v", builder.Columns())
		}
	})

	t.Run("builds row", func(t *testing.T) {
		values, err := builder.BuildRow(testContext())
		if err != nil {
			t.Fatalf("BuildRow: %v", err)
		}
		if len(values) != 4 {
			t.Fatalf("got %d values", len(values))
		}
		if values[0] != "row-uuid" || values[1] != "doc-1" {
			t.Errorf("unexpected values %v", values[:2])
		}
		patientJSON, ok := values[2].(string)
		if !ok || patientJSON == "" {
			t.Errorf("patient column not serialized: %v", values[2])
		}
		if values[3] != "legacy" {
			t.Errorf("source_system = %v", values[3])
		}
	})

	t.Run("missing required column fails", func(t *testing.T) {
		ctx := testContext()
		ctx.DocumentID = ""
		empty := NewRowBuilder(meta, map[string]Resolver{
			"id":          ConstResolver("row-uuid"),
			"document_id": ConstResolver(nil),
			"patient":     ConstResolver(nil),
		}, ColumnSetConfig{})

		if _, err := empty.BuildRow(ctx); err == nil {
			t.Error("expected error for missing required column")
		}
	})

	t.Run("optional column missing inserts nil", func(t *testing.T) {
		ctx := testContext()
		delete(ctx.Normalized, "source_system")
		values, err := builder.BuildRow(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if values[3] != nil {
			t.Errorf("source_system = %v, want nil", values[3])
		}
	})
}
