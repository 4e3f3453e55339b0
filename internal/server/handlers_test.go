package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/config"
	"github.com/rfranks/ehr-anonymizer/internal/ddl"
	"github.com/rfranks/ehr-anonymizer/internal/logger"
	"github.com/rfranks/ehr-anonymizer/internal/mapping"
	"github.com/rfranks/ehr-anonymizer/internal/phi"
	"github.com/rfranks/ehr-anonymizer/internal/pipeline"
	"github.com/rfranks/ehr-anonymizer/internal/resilience"
	"github.com/rfranks/ehr-anonymizer/internal/store"
)

type stubDocuments struct {
	docs map[string]map[string]any
}

func (s *stubDocuments) Fetch(ctx context.Context, collection, id string) (*store.Document, error) {
	fields, ok := s.docs[collection+"/"+id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrDocumentNotFound)
	}
	return &store.Document{ID: id, Collection: collection, Fields: fields}, nil
}

func (s *stubDocuments) Close() error { return nil }

type stubRepository struct {
	err error
}

func (s *stubRepository) Insert(ctx context.Context, stmt store.InsertStatement) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"id": "row-1"}, nil
}

func (s *stubRepository) Close() error { return nil }

const serverTestDDL = `
CREATE TABLE anonymized_patients (
    id uuid PRIMARY KEY,
    document_id text NOT NULL,
    collection text NOT NULL,
    patient jsonb NOT NULL
);
`

func newTestServer(t *testing.T, docs *stubDocuments, repo *stubRepository) *Server {
	t.Helper()
	log := &logger.Logger{Logger: zap.NewNop()}

	engine, err := phi.NewEngine(
		phi.NewPatternDetector(log),
		phi.NewRegistry(phi.RegistryConfig{}),
		phi.EngineConfig{DefaultAction: phi.ActionReplace},
		log,
	)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := ddl.ParseDDL(serverTestDDL)
	if err != nil {
		t.Fatal(err)
	}
	rows := mapping.NewRowBuilder(meta, pipeline.DefaultResolvers(), mapping.ColumnSetConfig{IncludeNullable: true})

	retry := resilience.RetryPolicy{Attempts: 1, InitialDelay: time.Millisecond}
	pipe, err := pipeline.New(docs, repo, engine, nil, rows, nil, nil, pipeline.Config{
		Salt:         "salt",
		FetchRetry:   retry,
		PersistRetry: retry,
	}, log)
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.GetDefaults()
	cfg.Events.Enabled = false
	return New(cfg, pipe, nil, "test", log)
}

func TestHandleAnonymize(t *testing.T) {
	docs := &stubDocuments{docs: map[string]map[string]any{
		"patients/doc-1": {
			"Patient": map[string]any{
				"Name":  "Jane Doe",
				"Email": "jane@hospital.org",
			},
		},
	}}

	post := func(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		recorder := httptest.NewRecorder()
		srv.router.ServeHTTP(recorder, req)
		return recorder
	}

	t.Run("success returns summary", func(t *testing.T) {
		srv := newTestServer(t, docs, &stubRepository{})
		recorder := post(t, srv, "/v1/patients/patients/doc-1/anonymize")

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
		}
		var summary pipeline.RunSummary
		if err := json.Unmarshal(recorder.Body.Bytes(), &summary); err != nil {
			t.Fatal(err)
		}
		if summary.DocumentID != "doc-1" || summary.Transformations.Total == 0 {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("missing document returns 404", func(t *testing.T) {
		srv := newTestServer(t, docs, &stubRepository{})
		recorder := post(t, srv, "/v1/patients/patients/nope/anonymize")
		if recorder.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", recorder.Code)
		}
	})

	t.Run("duplicate returns 409", func(t *testing.T) {
		srv := newTestServer(t, docs, &stubRepository{
			err: &store.ConstraintViolationError{Constraint: "document_id_key"},
		})
		recorder := post(t, srv, "/v1/patients/patients/doc-1/anonymize")
		if recorder.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", recorder.Code)
		}
	})

	t.Run("invalid document returns 422", func(t *testing.T) {
		badDocs := &stubDocuments{docs: map[string]map[string]any{
			"patients/doc-1": {
				"Patient": map[string]any{
					"Name":        "Jane Doe",
					"DateOfBirth": "not-a-date",
				},
			},
		}}
		srv := newTestServer(t, badDocs, &stubRepository{})
		recorder := post(t, srv, "/v1/patients/patients/doc-1/anonymize")
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", recorder.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &stubDocuments{}, &stubRepository{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	srv.router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}
