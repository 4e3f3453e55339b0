package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

// InsertStatement is one parameterized insert the pipeline wants executed.
type InsertStatement struct {
	Table     string
	Columns   []string
	Values    []any
	Returning []string
}

// Render produces the SQL text with $n placeholders.
func (s InsertStatement) Render() string {
	placeholders := make([]string, len(s.Columns))
	for i := range s.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table,
		strings.Join(s.Columns, ", "),
		strings.Join(placeholders, ", "))
	if len(s.Returning) > 0 {
		query += " RETURNING " + strings.Join(s.Returning, ", ")
	}
	return query
}

// Repository persists anonymized rows.
type Repository interface {
	Insert(ctx context.Context, stmt InsertStatement) (map[string]any, error)
	Close() error
}

// ConstraintViolationError marks a unique constraint violation. It is not
// retryable; the pipeline surfaces it as a duplicate record.
type ConstraintViolationError struct {
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation on %s: %v", e.Constraint, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// IsRetryable classifies repository errors for the retry policy. Constraint
// violations and other integrity errors never retry; connection and
// resource errors do.
func IsRetryable(err error) bool {
	var constraint *ConstraintViolationError
	if errors.As(err, &constraint) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 23 integrity, 22 data, 42 syntax: the row will never succeed.
		class := string(pqErr.Code.Class())
		switch class {
		case "22", "23", "42":
			return false
		}
	}
	return true
}

// PostgresConfig contains repository connection settings.
type PostgresConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PostgresRepository executes inserts against PostgreSQL via sqlx.
type PostgresRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewPostgresRepository connects, configures the pool, and pings.
func NewPostgresRepository(cfg PostgresConfig, log *logger.Logger) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("repository initialized",
		zap.String("database_url", maskURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return &PostgresRepository{db: db, logger: log.WithComponent("postgres-repository")}, nil
}

// Insert executes the statement and returns the RETURNING row, if any.
// Unique violations come back as *ConstraintViolationError.
func (r *PostgresRepository) Insert(ctx context.Context, stmt InsertStatement) (map[string]any, error) {
	query := stmt.Render()

	if len(stmt.Returning) == 0 {
		if _, err := r.db.ExecContext(ctx, query, stmt.Values...); err != nil {
			return nil, classifyInsertError(err)
		}
		return nil, nil
	}

	row := r.db.QueryRowxContext(ctx, query, stmt.Values...)
	returned := make(map[string]any)
	if err := row.MapScan(returned); err != nil {
		return nil, classifyInsertError(err)
	}

	r.logger.Debug("row inserted",
		zap.String("table", stmt.Table),
		zap.Int("columns", len(stmt.Columns)))

	return returned, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func classifyInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &ConstraintViolationError{Constraint: pqErr.Constraint, Err: err}
	}
	return fmt.Errorf("executing insert: %w", err)
}
