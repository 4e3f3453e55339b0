package phi

import (
	"context"
)

// NERBackend is a pluggable model-based recognizer that complements the
// regex rules. Implementations may use ONNX Runtime or other engines.
type NERBackend interface {
	// DetectEntities returns entity spans with byte offsets into text.
	DetectEntities(ctx context.Context, text string) ([]EntitySpan, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewNERBackend creates a backend if supported by the current build.
// The default (no build tags) returns nil to avoid CGO dependencies.
// Implementations live in build-tagged files: ner_backend_onnx.go and
// ner_backend_stub.go.

// CompositeDetector merges spans from several detectors. Overlap resolution
// downstream arbitrates between sources.
type CompositeDetector struct {
	detectors []Detector
}

// NewCompositeDetector builds a detector over the given sources. Nil entries
// are skipped.
func NewCompositeDetector(detectors ...Detector) *CompositeDetector {
	kept := make([]Detector, 0, len(detectors))
	for _, d := range detectors {
		if d != nil {
			kept = append(kept, d)
		}
	}
	return &CompositeDetector{detectors: kept}
}

// Detect concatenates the spans from every source detector.
func (c *CompositeDetector) Detect(ctx context.Context, text, language string) ([]EntitySpan, error) {
	var spans []EntitySpan
	for _, d := range c.detectors {
		found, err := d.Detect(ctx, text, language)
		if err != nil {
			return nil, err
		}
		spans = append(spans, found...)
	}
	return spans, nil
}

// backendDetector adapts an NERBackend to the Detector contract.
type backendDetector struct {
	backend NERBackend
}

// NewBackendDetector wraps backend as a Detector, or returns nil when the
// backend is unavailable in this build.
func NewBackendDetector(backend NERBackend) Detector {
	if backend == nil {
		return nil
	}
	return &backendDetector{backend: backend}
}

func (b *backendDetector) Detect(ctx context.Context, text, _ string) ([]EntitySpan, error) {
	if !b.backend.IsReady() {
		return nil, nil
	}
	return b.backend.DetectEntities(ctx, text)
}
