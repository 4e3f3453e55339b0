// Package pipeline orchestrates one patient document run: fetch, normalize,
// anonymize, map to a row, and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/events"
	"github.com/rfranks/ehr-anonymizer/internal/logger"
	"github.com/rfranks/ehr-anonymizer/internal/mapping"
	"github.com/rfranks/ehr-anonymizer/internal/phi"
	"github.com/rfranks/ehr-anonymizer/internal/report"
	"github.com/rfranks/ehr-anonymizer/internal/resilience"
	"github.com/rfranks/ehr-anonymizer/internal/store"
)

// Config tunes a Pipeline.
type Config struct {
	// Salt seeds deterministic masking. Every run shares it so surrogates
	// are stable across documents.
	Salt string
	// Returning lists the columns echoed back from the insert.
	Returning []string
	// FetchRetry and PersistRetry govern the two external calls.
	FetchRetry   resilience.RetryPolicy
	PersistRetry resilience.RetryPolicy
}

// Pipeline wires the document store, the anonymization engine, row mapping,
// and the repository into a single Run operation.
type Pipeline struct {
	documents store.DocumentStore
	repo      store.Repository
	engine    *phi.Engine
	generator phi.Generator
	rows      *mapping.RowBuilder
	rules     []FieldRule
	hub       *events.Hub
	logger    *logger.Logger
	config    Config
	clock     func() time.Time
}

// RunSummary is the PHI-free result of one pipeline run.
type RunSummary struct {
	DocumentID       string             `json:"document_id"`
	Collection       string             `json:"collection"`
	Patient          map[string]any     `json:"patient"`
	Transformations  report.Summary     `json:"transformations"`
	RepositoryResult map[string]any     `json:"repository_result,omitempty"`
	PersistenceError string             `json:"persistence_error,omitempty"`
}

// PersistenceSucceeded reports whether the row reached the repository.
func (s *RunSummary) PersistenceSucceeded() bool {
	return s.PersistenceError == ""
}

// New constructs a pipeline. The hub may be nil; the generator may be nil,
// in which case synthesis degrades to deterministic masking.
func New(documents store.DocumentStore, repo store.Repository, engine *phi.Engine, gen phi.Generator, rows *mapping.RowBuilder, rules []FieldRule, hub *events.Hub, cfg Config, log *logger.Logger) (*Pipeline, error) {
	if documents == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if rows == nil {
		return nil, fmt.Errorf("row builder is required")
	}
	if len(rules) == 0 {
		rules = DefaultFieldRules()
	}
	if cfg.PersistRetry.Retryable == nil {
		cfg.PersistRetry.Retryable = store.IsRetryable
	}

	return &Pipeline{
		documents: documents,
		repo:      repo,
		engine:    engine,
		generator: gen,
		rows:      rows,
		rules:     rules,
		hub:       hub,
		logger:    log.WithComponent("pipeline"),
		config:    cfg,
		clock:     time.Now,
	}, nil
}

// RecordUUID derives the stable row identifier for a document.
func RecordUUID(collection, documentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(collection+"/"+documentID)).String()
}

// DefaultResolvers maps the standard patient table columns.
func DefaultResolvers() map[string]mapping.Resolver {
	return map[string]mapping.Resolver{
		"id": func(ctx mapping.Context) (any, error) {
			return RecordUUID(ctx.Collection, ctx.DocumentID), nil
		},
		"document_id": mapping.PathResolver("document_id"),
		"collection":  mapping.PathResolver("collection"),
		"patient": func(ctx mapping.Context) (any, error) {
			return ctx.Patient, nil
		},
	}
}

// Run processes one document end to end. Duplicate rows and validation
// failures are errors; transient persistence exhaustion degrades the
// summary instead of failing the run.
func (p *Pipeline) Run(ctx context.Context, collection, documentID string) (*RunSummary, error) {
	log := p.logger.WithDocumentID(documentID)
	log.Info("run started", zap.String("collection", collection))

	if p.hub != nil {
		p.hub.PublishRun(events.EventTypeRunStarted, events.RunEvent{
			DocumentID: documentID,
			Collection: collection,
		})
	}

	summary, err := p.run(ctx, collection, documentID, log)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		if p.hub != nil {
			p.hub.PublishRun(events.EventTypeRunFailed, events.RunEvent{
				DocumentID: documentID,
				Collection: collection,
				Reason:     failureReason(err),
			})
		}
		return nil, err
	}

	entityCounts := make(map[string]int, len(summary.Transformations.Entities))
	for entityType, entity := range summary.Transformations.Entities {
		entityCounts[entityType] = entity.Count
	}

	log.Info("run completed",
		zap.Int("transformations", summary.Transformations.Total),
		zap.Bool("persisted", summary.PersistenceSucceeded()))

	if p.hub != nil {
		p.hub.PublishRun(events.EventTypeRunCompleted, events.RunEvent{
			DocumentID:      documentID,
			Collection:      collection,
			Transformations: summary.Transformations.Total,
			Entities:        entityCounts,
			Degraded:        !summary.PersistenceSucceeded(),
		})
	}
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, collection, documentID string, log *logger.Logger) (*RunSummary, error) {
	document, err := p.fetch(ctx, collection, documentID)
	if err != nil {
		return nil, err
	}

	normalized, ok := NormalizeKeys(document.Fields).(map[string]any)
	if !ok {
		return nil, &ValidationError{Reason: "document is not an object"}
	}
	patient, err := ExtractPatient(normalized)
	if err != nil {
		return nil, err
	}

	// A fresh context per run keeps surrogate caching from correlating
	// patients across documents.
	rc := phi.NewReplacementContext(p.config.Salt, p.generator)

	transformations, err := AnonymizeFields(ctx, p.engine, rc, patient, p.rules)
	if err != nil {
		return nil, err
	}
	if dobEvent, err := GeneralizeDOB(patient, p.clock()); err != nil {
		return nil, err
	} else if dobEvent != nil {
		transformations = append(transformations, *dobEvent)
	}

	summary := &RunSummary{
		DocumentID:      documentID,
		Collection:      collection,
		Patient:         patient,
		Transformations: report.Summarize(transformations),
	}

	values, err := p.rows.BuildRow(mapping.Context{
		DocumentID: documentID,
		Collection: collection,
		Raw:        document.Fields,
		Normalized: normalized,
		Patient:    patient,
	})
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	stmt := store.InsertStatement{
		Table:     p.rows.Table(),
		Columns:   p.rows.Columns(),
		Values:    values,
		Returning: p.config.Returning,
	}

	result, err := p.persist(ctx, stmt)
	if err != nil {
		var constraint *store.ConstraintViolationError
		if errors.As(err, &constraint) {
			return nil, &DuplicateRecordError{
				Collection: collection,
				DocumentID: documentID,
				Constraint: constraint.Constraint,
			}
		}
		if ctx.Err() != nil {
			return nil, err
		}
		// Transient exhaustion: the anonymized result is still valid, so
		// the run degrades instead of failing.
		log.Warn("persistence exhausted retries", zap.Error(err))
		summary.PersistenceError = fmt.Sprintf("persistence failed: %v", err)
		return summary, nil
	}

	summary.RepositoryResult = result
	return summary, nil
}

func (p *Pipeline) fetch(ctx context.Context, collection, documentID string) (*store.Document, error) {
	policy := p.config.FetchRetry
	if policy.Retryable == nil {
		policy.Retryable = func(err error) bool {
			return !errors.Is(err, store.ErrDocumentNotFound)
		}
	}

	document, err := resilience.Do(ctx, policy, func(ctx context.Context) (*store.Document, error) {
		return p.documents.Fetch(ctx, collection, documentID)
	})
	if errors.Is(err, store.ErrDocumentNotFound) {
		return nil, &NotFoundError{Collection: collection, DocumentID: documentID}
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	return document, nil
}

func (p *Pipeline) persist(ctx context.Context, stmt store.InsertStatement) (map[string]any, error) {
	return resilience.Do(ctx, p.config.PersistRetry, func(ctx context.Context) (map[string]any, error) {
		return p.repo.Insert(ctx, stmt)
	})
}

func failureReason(err error) string {
	var notFound *NotFoundError
	var validation *ValidationError
	var duplicate *DuplicateRecordError
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &duplicate):
		return "duplicate"
	default:
		return "internal"
	}
}
