package phi

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

// EngineConfig controls policy resolution and audit output for an Engine.
type EngineConfig struct {
	// DefaultAction applies to detected entities without an explicit policy.
	DefaultAction Action
	// EntityPolicies override the default action per entity type. Keys are
	// matched case-insensitively.
	EntityPolicies map[string]EntityPolicy
	// RedactionToken replaces redacted entities when the policy carries no
	// replacement of its own.
	RedactionToken string
	// SurrogatePreviewLength bounds the surrogate text recorded on
	// transformation events. Zero disables previews entirely.
	SurrogatePreviewLength int
	// Language is passed through to the detector.
	Language string
}

// Engine anonymizes free text: it detects PHI spans, resolves overlaps,
// applies the configured action per entity, and generalizes residual age
// mentions of 90 and above.
type Engine struct {
	detector Detector
	registry *Registry
	config   EngineConfig
	logger   *logger.Logger
}

// Patterns for ages 90 and above written in prose. Both capture the
// surrounding context so only the number itself is rewritten.
var (
	ageSuffixPattern = regexp.MustCompile(`(?i)\b(9[0-9]|[1-9][0-9]{2,})([\s-]*(?:years?[\s-]*old|years?|yrs?\.?|y/o|yo\b))`)
	agePrefixPattern = regexp.MustCompile(`(?i)\b(aged?\s*(?:is|was|of|:)?\s*)(9[0-9]|[1-9][0-9]{2,})\b`)
)

// NewEngine constructs an engine. The detector and registry are required;
// configuration gaps fall back to redaction defaults.
func NewEngine(detector Detector, registry *Registry, cfg EngineConfig, log *logger.Logger) (*Engine, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.DefaultAction == "" {
		cfg.DefaultAction = ActionRedact
	}
	switch cfg.DefaultAction {
	case ActionRedact, ActionReplace, ActionSynthesize:
	default:
		return nil, fmt.Errorf("unsupported default action %q", cfg.DefaultAction)
	}
	if cfg.RedactionToken == "" {
		cfg.RedactionToken = DefaultRedactionToken
	}

	policies := make(map[string]EntityPolicy, len(cfg.EntityPolicies))
	for entityType, policy := range cfg.EntityPolicies {
		policies[strings.ToUpper(entityType)] = policy
	}
	cfg.EntityPolicies = policies

	return &Engine{
		detector: detector,
		registry: registry,
		config:   cfg,
		logger:   log.WithComponent("phi-engine"),
	}, nil
}

// Anonymize returns the anonymized form of text.
func (e *Engine) Anonymize(ctx context.Context, text string, rc *ReplacementContext) (string, error) {
	anonymized, _, err := e.AnonymizeWithEvents(ctx, text, rc)
	return anonymized, err
}

// AnonymizeWithEvents anonymizes text and returns the transformation events
// recorded along the way. Events carry span offsets into the original text
// and a bounded surrogate preview, never the original value.
func (e *Engine) AnonymizeWithEvents(ctx context.Context, text string, rc *ReplacementContext) (string, []TransformationEvent, error) {
	if text == "" {
		return "", nil, nil
	}

	spans, err := e.detector.Detect(ctx, text, e.config.Language)
	if err != nil {
		return "", nil, fmt.Errorf("detecting entities: %w", err)
	}

	accepted := ResolveOverlaps(spans)

	events := make([]TransformationEvent, 0, len(accepted))
	replacements := make([]string, len(accepted))
	for i, span := range accepted {
		if span.Start < 0 || span.End > len(text) || span.Start >= span.End {
			return "", nil, fmt.Errorf("span [%d,%d) out of bounds for %d bytes", span.Start, span.End, len(text))
		}
		value := text[span.Start:span.End]
		action, replacement := e.dispatch(ctx, span.EntityType, value, rc)
		replacements[i] = replacement
		events = append(events, TransformationEvent{
			EntityType: strings.ToUpper(span.EntityType),
			Action:     action,
			Start:      span.Start,
			End:        span.End,
			Surrogate:  e.preview(replacement),
		})
	}

	// Build the output left to right, copying the gaps between spans.
	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for i, span := range accepted {
		b.WriteString(text[cursor:span.Start])
		b.WriteString(replacements[i])
		cursor = span.End
	}
	b.WriteString(text[cursor:])

	anonymized := GeneralizeAges(b.String())

	e.logger.Debug("anonymized text",
		zap.Int("entities", len(accepted)),
		zap.Int("length", len(text)))

	return anonymized, events, nil
}

// ApplyStrategy anonymizes a single typed field value as entityType without
// running detection. It is the path for structured fields whose type is
// already known.
func (e *Engine) ApplyStrategy(ctx context.Context, entityType, value string, rc *ReplacementContext) (string, TransformationEvent) {
	action, replacement := e.dispatch(ctx, entityType, value, rc)
	return replacement, TransformationEvent{
		EntityType: strings.ToUpper(entityType),
		Action:     action,
		Surrogate:  e.preview(replacement),
	}
}

func (e *Engine) dispatch(ctx context.Context, entityType, value string, rc *ReplacementContext) (Action, string) {
	action := e.config.DefaultAction
	var policy EntityPolicy
	if p, ok := e.config.EntityPolicies[strings.ToUpper(entityType)]; ok {
		policy = p
		if p.Action != "" {
			action = p.Action
		}
	}

	switch action {
	case ActionReplace:
		return action, e.registry.Replace(entityType, value, rc)
	case ActionSynthesize:
		return action, e.registry.Synthesize(ctx, entityType, value, rc)
	default:
		token := policy.Replacement
		if token == "" {
			token = e.config.RedactionToken
		}
		return ActionRedact, token
	}
}

func (e *Engine) preview(replacement string) string {
	limit := e.config.SurrogatePreviewLength
	if limit <= 0 {
		return ""
	}
	runes := []rune(replacement)
	if len(runes) <= limit {
		return replacement
	}
	return string(runes[:limit]) + "..."
}

// GeneralizeAges rewrites prose mentions of ages 90 and above to "90+". It
// runs after entity replacement as a residual pass over the full text.
func GeneralizeAges(text string) string {
	text = ageSuffixPattern.ReplaceAllString(text, "90+${2}")
	return agePrefixPattern.ReplaceAllString(text, "${1}90+")
}
