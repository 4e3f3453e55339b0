package pipeline

import (
	"fmt"

	"github.com/rfranks/ehr-anonymizer/internal/config"
	"github.com/rfranks/ehr-anonymizer/internal/ddl"
	"github.com/rfranks/ehr-anonymizer/internal/events"
	"github.com/rfranks/ehr-anonymizer/internal/generator"
	"github.com/rfranks/ehr-anonymizer/internal/logger"
	"github.com/rfranks/ehr-anonymizer/internal/mapping"
	"github.com/rfranks/ehr-anonymizer/internal/phi"
	"github.com/rfranks/ehr-anonymizer/internal/resilience"
	"github.com/rfranks/ehr-anonymizer/internal/store"
)

// BuildFromConfig assembles a full pipeline from configuration: detector,
// engine, generator, document store, repository, and row mapping. The
// returned cleanup closes the storage connections.
func BuildFromConfig(cfg *config.Config, hub *events.Hub, log *logger.Logger) (*Pipeline, func(), error) {
	detector := buildDetector(cfg, log)

	registry := phi.NewRegistry(phi.RegistryConfig{
		FallbackPrefix: cfg.Anonymizer.HashPrefix,
		FallbackLength: cfg.Anonymizer.HashLength,
	})

	policies := make(map[string]phi.EntityPolicy, len(cfg.Anonymizer.EntityPolicies))
	for entityType, policy := range cfg.Anonymizer.EntityPolicies {
		policies[entityType] = phi.EntityPolicy{
			Action:      phi.Action(policy.Action),
			Replacement: policy.Replacement,
		}
	}

	engine, err := phi.NewEngine(detector, registry, phi.EngineConfig{
		DefaultAction:          phi.Action(cfg.Anonymizer.DefaultAction),
		EntityPolicies:         policies,
		RedactionToken:         cfg.Anonymizer.RedactionToken,
		SurrogatePreviewLength: cfg.Anonymizer.SurrogatePreviewLength,
		Language:               "en",
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building engine: %w", err)
	}

	var gen phi.Generator
	if cfg.Generator.Enabled {
		gen = generator.New(generator.Config{
			Endpoint:          cfg.Generator.Endpoint,
			Model:             cfg.Generator.Model,
			Timeout:           cfg.Generator.Timeout,
			RequestsPerSecond: cfg.Generator.RequestsPerSecond,
			Burst:             cfg.Generator.Burst,
		}, log)
	}

	documents, err := store.NewRedisDocumentStore(store.DocumentsConfig{
		RedisURL:       cfg.Documents.RedisURL,
		KeyPrefix:      cfg.Documents.KeyPrefix,
		MaxConnections: cfg.Documents.MaxConnections,
		MinIdleConns:   cfg.Documents.MinIdleConns,
		FetchTimeout:   cfg.Documents.FetchTimeout,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building document store: %w", err)
	}

	repo, err := buildRepository(cfg, log)
	if err != nil {
		documents.Close()
		return nil, nil, err
	}

	meta, err := ddl.LoadTableMetadata(cfg.Pipeline.DDLPath)
	if err != nil {
		documents.Close()
		repo.Close()
		return nil, nil, fmt.Errorf("loading table metadata: %w", err)
	}

	rows := mapping.NewRowBuilder(meta, DefaultResolvers(), mapping.ColumnSetConfig{
		IncludeDefaulted: cfg.Pipeline.IncludeDefaulted,
		IncludeNullable:  cfg.Pipeline.IncludeNullable,
	})

	retry := resilience.RetryPolicy{
		Attempts:          cfg.Pipeline.Retry.Attempts,
		InitialDelay:      cfg.Pipeline.Retry.InitialDelay,
		MaxDelay:          cfg.Pipeline.Retry.MaxDelay,
		BackoffMultiplier: cfg.Pipeline.Retry.BackoffMultiplier,
	}

	pipe, err := New(documents, repo, engine, gen, rows, DefaultFieldRules(), hub, Config{
		Salt:         cfg.Anonymizer.HashSecret,
		Returning:    cfg.Pipeline.Returning,
		FetchRetry:   retry,
		PersistRetry: retry,
	}, log)
	if err != nil {
		documents.Close()
		repo.Close()
		return nil, nil, err
	}

	cleanup := func() {
		documents.Close()
		repo.Close()
	}
	return pipe, cleanup, nil
}

func buildDetector(cfg *config.Config, log *logger.Logger) phi.Detector {
	pattern := phi.NewPatternDetector(log)
	if cfg.Anonymizer.NERModelPath == "" {
		return pattern
	}

	backend := phi.NewNERBackend(log.Logger, cfg.Anonymizer.NERModelPath)
	if backend == nil {
		log.Warn("NER model configured but backend unavailable in this build")
		return pattern
	}
	return phi.NewCompositeDetector(pattern, phi.NewBackendDetector(backend))
}

func buildRepository(cfg *config.Config, log *logger.Logger) (store.Repository, error) {
	switch cfg.Storage.Mode {
	case "sqlfile":
		repo, err := store.NewSQLFileRepository(cfg.Storage.SQLPath, log)
		if err != nil {
			return nil, fmt.Errorf("building sqlfile repository: %w", err)
		}
		return repo, nil
	default:
		repo, err := store.NewPostgresRepository(store.PostgresConfig{
			DatabaseURL:     cfg.Storage.DatabaseURL,
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Storage.ConnMaxIdleTime,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("building postgres repository: %w", err)
		}
		return repo, nil
	}
}
