// Package ddl parses CREATE TABLE statements into column metadata used to
// derive the pipeline's insert column set.
package ddl

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ColumnMetadata describes one column of the target table.
type ColumnMetadata struct {
	Name       string
	DataType   string
	Nullable   bool
	HasDefault bool
	Default    string
}

// Required reports whether an insert must supply a value for this column.
func (c ColumnMetadata) Required() bool {
	return !c.Nullable && !c.HasDefault
}

// TableMetadata is the parsed shape of a CREATE TABLE statement. Columns
// preserve declaration order.
type TableMetadata struct {
	Schema  string
	Name    string
	Columns []ColumnMetadata
}

// FullyQualifiedName returns schema.name, or just the name when the DDL did
// not qualify the table.
func (t *TableMetadata) FullyQualifiedName() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

// Column looks up a column by name.
func (t *TableMetadata) Column(name string) (ColumnMetadata, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnMetadata{}, false
}

// RequiredColumns returns the columns an insert cannot omit, in declaration
// order.
func (t *TableMetadata) RequiredColumns() []string {
	var names []string
	for _, col := range t.Columns {
		if col.Required() {
			names = append(names, col.Name)
		}
	}
	return names
}

// OptionalColumns returns the columns that are nullable or defaulted, in
// declaration order.
func (t *TableMetadata) OptionalColumns() []string {
	var names []string
	for _, col := range t.Columns {
		if !col.Required() {
			names = append(names, col.Name)
		}
	}
	return names
}

var (
	createTablePattern = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w".]+)\s*\((.*)\)\s*;?\s*$`)
	defaultPattern     = regexp.MustCompile(`(?i)\bDEFAULT\s+(.+?)(?:\s+(?:NOT\s+NULL|NULL|PRIMARY\s+KEY|UNIQUE|REFERENCES|CHECK|CONSTRAINT)\b|$)`)
	notNullPattern     = regexp.MustCompile(`(?i)\bNOT\s+NULL\b`)
	primaryKeyPattern  = regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\b`)
	constraintPrefix   = regexp.MustCompile(`(?i)^(?:CONSTRAINT|PRIMARY\s+KEY|FOREIGN\s+KEY|UNIQUE|CHECK|EXCLUDE)\b`)
)

// ParseDDL parses a single CREATE TABLE statement.
func ParseDDL(ddl string) (*TableMetadata, error) {
	match := createTablePattern.FindStringSubmatch(strings.TrimSpace(ddl))
	if match == nil {
		return nil, fmt.Errorf("no CREATE TABLE statement found")
	}

	meta := &TableMetadata{}
	meta.Schema, meta.Name = splitTableName(match[1])

	for _, definition := range splitDefinitions(match[2]) {
		definition = strings.TrimSpace(definition)
		if definition == "" || constraintPrefix.MatchString(definition) {
			continue
		}

		column, err := parseColumn(definition)
		if err != nil {
			return nil, err
		}
		meta.Columns = append(meta.Columns, column)
	}

	if len(meta.Columns) == 0 {
		return nil, fmt.Errorf("table %s declares no columns", meta.FullyQualifiedName())
	}
	return meta, nil
}

// LoadTableMetadata reads and parses a DDL file.
func LoadTableMetadata(path string) (*TableMetadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading DDL file: %w", err)
	}
	meta, err := ParseDDL(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return meta, nil
}

func parseColumn(definition string) (ColumnMetadata, error) {
	fields := strings.Fields(definition)
	if len(fields) < 2 {
		return ColumnMetadata{}, fmt.Errorf("malformed column definition %q", definition)
	}

	column := ColumnMetadata{
		Name:     strings.Trim(fields[0], `"`),
		DataType: strings.ToLower(fields[1]),
		Nullable: true,
	}

	if notNullPattern.MatchString(definition) || primaryKeyPattern.MatchString(definition) {
		column.Nullable = false
	}
	if match := defaultPattern.FindStringSubmatch(definition); match != nil {
		column.HasDefault = true
		column.Default = strings.TrimSpace(match[1])
	}
	return column, nil
}

// splitDefinitions splits the column list on top-level commas, honoring
// nested parentheses such as numeric(10,2) or CHECK (...) expressions.
func splitDefinitions(body string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, body[start:])
	return parts
}

func splitTableName(raw string) (schema, name string) {
	raw = strings.ReplaceAll(raw, `"`, "")
	if idx := strings.LastIndex(raw, "."); idx >= 0 {
		return raw[:idx], raw[idx+1:]
	}
	return "", raw
}
