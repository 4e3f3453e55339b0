package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

// SQLFileRepository renders inserts to a file instead of executing them.
// It backs the dry-run storage mode so operators can inspect exactly what
// would be written before pointing the pipeline at a live database.
type SQLFileRepository struct {
	mu     sync.Mutex
	file   *os.File
	logger *logger.Logger
}

// NewSQLFileRepository opens (or creates) the output file in append mode.
func NewSQLFileRepository(path string, log *logger.Logger) (*SQLFileRepository, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening SQL output file: %w", err)
	}

	log.Info("sqlfile repository initialized", zap.String("path", path))

	return &SQLFileRepository{file: file, logger: log.WithComponent("sqlfile-repository")}, nil
}

// Insert appends the rendered statement with its bound values inlined as
// literals. Nothing is returned for RETURNING columns in dry-run mode.
func (r *SQLFileRepository) Insert(ctx context.Context, stmt InsertStatement) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	literals := make([]string, len(stmt.Values))
	for i, value := range stmt.Values {
		literals[i] = renderLiteral(value)
	}
	rendered := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		stmt.Table,
		strings.Join(stmt.Columns, ", "),
		strings.Join(literals, ", "))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.file, rendered+";"); err != nil {
		return nil, fmt.Errorf("writing SQL statement: %w", err)
	}
	return nil, nil
}

// Close flushes and closes the output file.
func (r *SQLFileRepository) Close() error {
	return r.file.Close()
}

func renderLiteral(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", "''") + "'"
	case time.Time:
		return "'" + typed.UTC().Format(time.RFC3339) + "'"
	case *time.Time:
		if typed == nil {
			return "NULL"
		}
		return "'" + typed.UTC().Format(time.RFC3339) + "'"
	case bool:
		if typed {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", typed)
	}
}
