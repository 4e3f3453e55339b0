package phi

import (
	"context"

	"go.uber.org/zap"

	"github.com/rfranks/ehr-anonymizer/internal/logger"
)

// PatternDetector locates PHI spans with the built-in regex rule set. It is
// the default detector; an NER-backed detector can be layered on top when a
// model is configured.
type PatternDetector struct {
	rules  []DetectionRule
	logger *logger.Logger
}

// NewPatternDetector creates a detector over the default rules.
func NewPatternDetector(log *logger.Logger) *PatternDetector {
	return NewPatternDetectorWithRules(GetDefaultRules(), log)
}

// NewPatternDetectorWithRules creates a detector over a custom rule set.
func NewPatternDetectorWithRules(rules []DetectionRule, log *logger.Logger) *PatternDetector {
	enabled := make([]DetectionRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return &PatternDetector{
		rules:  enabled,
		logger: log.WithComponent("pattern-detector"),
	}
}

// Detect runs every enabled rule over text and returns the raw, possibly
// overlapping spans. The language parameter is accepted for interface
// compatibility; the regex rules are language-agnostic.
func (d *PatternDetector) Detect(ctx context.Context, text, language string) ([]EntitySpan, error) {
	if text == "" {
		return nil, nil
	}

	var spans []EntitySpan
	for _, rule := range d.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches := rule.Pattern.FindAllStringSubmatchIndex(text, -1)
		for _, match := range matches {
			start, end := match[0], match[1]
			if rule.Group > 0 && 2*rule.Group+1 < len(match) && match[2*rule.Group] >= 0 {
				start, end = match[2*rule.Group], match[2*rule.Group+1]
			}
			spans = append(spans, EntitySpan{
				Start:      start,
				End:        end,
				EntityType: rule.EntityType,
				Score:      rule.Score,
			})
		}
	}

	d.logger.Debug("pattern detection complete",
		zap.Int("rules", len(d.rules)),
		zap.Int("spans", len(spans)))

	return spans, nil
}
