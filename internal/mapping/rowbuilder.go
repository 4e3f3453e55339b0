package mapping

import (
	"fmt"

	"github.com/rfranks/ehr-anonymizer/internal/ddl"
)

// ColumnSetConfig controls which optional columns participate in inserts.
// Required columns are always included.
type ColumnSetConfig struct {
	IncludeDefaulted bool
	IncludeNullable  bool
}

// BuildColumnSet derives the insert column list from table metadata.
// Defaulted columns are governed by IncludeDefaulted; nullable columns
// without a default by IncludeNullable. Declaration order is preserved.
func BuildColumnSet(meta *ddl.TableMetadata, cfg ColumnSetConfig) []string {
	var columns []string
	for _, col := range meta.Columns {
		switch {
		case col.Required():
			columns = append(columns, col.Name)
		case col.HasDefault:
			if cfg.IncludeDefaulted {
				columns = append(columns, col.Name)
			}
		default:
			if cfg.IncludeNullable {
				columns = append(columns, col.Name)
			}
		}
	}
	return columns
}

// RowBuilder resolves and serializes one insert row per run context.
type RowBuilder struct {
	meta      *ddl.TableMetadata
	columns   []string
	resolvers map[string]Resolver
}

// NewRowBuilder wires resolvers to the derived column set. Columns without
// an explicit resolver fall back to a PathResolver on the column name.
func NewRowBuilder(meta *ddl.TableMetadata, resolvers map[string]Resolver, cfg ColumnSetConfig) *RowBuilder {
	merged := make(map[string]Resolver, len(resolvers))
	for column, resolver := range resolvers {
		merged[column] = resolver
	}

	columns := BuildColumnSet(meta, cfg)
	for _, column := range columns {
		if _, ok := merged[column]; !ok {
			merged[column] = PathResolver(column)
		}
	}

	return &RowBuilder{meta: meta, columns: columns, resolvers: merged}
}

// Columns returns the insert column list.
func (b *RowBuilder) Columns() []string {
	return b.columns
}

// Table returns the fully qualified target table name.
func (b *RowBuilder) Table() string {
	return b.meta.FullyQualifiedName()
}

// BuildRow resolves every column for one run. A required column that
// resolves to nothing is an error; optional columns insert NULL.
func (b *RowBuilder) BuildRow(ctx Context) ([]any, error) {
	values := make([]any, 0, len(b.columns))
	for _, column := range b.columns {
		resolved, err := b.resolvers[column](ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving column %s: %w", column, err)
		}

		if resolved == nil {
			if col, ok := b.meta.Column(column); ok && col.Required() {
				return nil, fmt.Errorf("required column %s has no value", column)
			}
			values = append(values, nil)
			continue
		}

		serialized, err := SerializeValue(resolved)
		if err != nil {
			return nil, fmt.Errorf("serializing column %s: %w", column, err)
		}
		values = append(values, serialized)
	}
	return values, nil
}
