package phi

import (
	"context"
	"fmt"
	"strings"
)

// Strategy computes a deterministic replacement for a detected value.
type Strategy func(value string, ctx *ReplacementContext) string

// RegistryConfig tunes the generic fallback token and lets callers swap in
// per-entity strategies.
type RegistryConfig struct {
	// FallbackPrefix labels tokens for entity types without a dedicated
	// strategy. Empty means the upper-cased entity type is used.
	FallbackPrefix string
	// FallbackLength is the digest length of fallback tokens.
	FallbackLength int
	Overrides      map[string]Strategy
}

// Registry maps entity types to replacement strategies. It is immutable
// after construction: overrides are supplied to NewRegistry, never
// registered at runtime, so concurrent document runs can share it freely.
type Registry struct {
	deterministic  map[string]Strategy
	prompts        map[string]string
	fallbackPrefix string
	fallbackLength int
}

// NewRegistry builds a registry from the built-in strategies merged with
// optional per-entity overrides.
func NewRegistry(cfg RegistryConfig) *Registry {
	overrides := cfg.Overrides
	deterministic := map[string]Strategy{
		"PERSON": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "PERSON", c.Salt(), defaultMaskLength)
		},
		"FACILITY_NAME": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "FACILITY", c.Salt(), defaultMaskLength)
		},
		"MEMBER_ID": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "MEMBER", c.Salt(), 10)
		},
		"HEALTH_INSURANCE_ID": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "POLICY", c.Salt(), 10)
		},
		"MEDICAL_RECORD_NUMBER": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "MRN", c.Salt(), 10)
		},
		"ACCOUNT_NUMBER": func(v string, c *ReplacementContext) string {
			return maskNumeric(v, "ACCT", c.Salt())
		},
		"US_SSN": func(v string, c *ReplacementContext) string {
			return maskNumeric(v, "SSN", c.Salt())
		},
		"CREDIT_CARD": func(v string, c *ReplacementContext) string {
			return maskNumeric(v, "CARD", c.Salt())
		},
		"PHONE_NUMBER": func(v string, c *ReplacementContext) string {
			return maskPhone(v, c.Salt())
		},
		"EMAIL_ADDRESS": func(v string, c *ReplacementContext) string {
			return maskEmail(v, c.Salt())
		},
		"DATE_TIME": func(v string, c *ReplacementContext) string {
			return maskDate(v, c.Salt())
		},
		"IP_ADDRESS": func(v string, c *ReplacementContext) string {
			return maskIP(v, c.Salt())
		},
		"LOCATION": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "LOCATION", c.Salt(), defaultMaskLength)
		},
		"CITY": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "CITY", c.Salt(), defaultMaskLength)
		},
		"STATE_OR_PROVINCE": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "STATE", c.Salt(), 6)
		},
		"ZIP_CODE": func(v string, c *ReplacementContext) string {
			return maskNumeric(v, "ZIP", c.Salt())
		},
		"STREET_ADDRESS": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "ADDR", c.Salt(), 12)
		},
		"AGE": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "AGE", c.Salt(), 4)
		},
		"URL": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "URL", c.Salt(), 12)
		},
		"ORGANIZATION": func(v string, c *ReplacementContext) string {
			return maskWithPrefix(v, "ORG", c.Salt(), defaultMaskLength)
		},
	}

	for entityType, strategy := range overrides {
		deterministic[strings.ToUpper(entityType)] = strategy
	}

	prompts := map[string]string{
		"PERSON":        "Generate a realistic but fictional full name that is different from the original: %s. Return only the name.",
		"FACILITY_NAME": "Create a fictional healthcare facility name distinct from: %s. Return just the facility name.",
		"LOCATION":      "Provide a fictional city and state combination different from %s. Return only the location.",
		"CITY":          "Provide a fictional city name different from %s. Return only the city.",
		"ORGANIZATION":  "Invent a fictional organization name distinct from %s. Return only the organization name.",
	}

	return &Registry{
		deterministic:  deterministic,
		prompts:        prompts,
		fallbackPrefix: cfg.FallbackPrefix,
		fallbackLength: cfg.FallbackLength,
	}
}

// Replace returns the deterministic replacement for value, consulting the
// context cache first so that repeated occurrences of the same literal map
// to the same surrogate within one run.
func (r *Registry) Replace(entityType, value string, ctx *ReplacementContext) string {
	if cached, ok := ctx.cached(entityType, value); ok {
		return cached
	}

	replacement := r.apply(entityType, value, ctx)
	ctx.store(entityType, value, replacement)
	return replacement
}

// Synthesize returns a synthetic replacement via the context's generator.
// Any generator failure, missing generator, or empty completion degrades to
// the deterministic path; synthesis never fails outward.
func (r *Registry) Synthesize(ctx context.Context, entityType, value string, rc *ReplacementContext) string {
	if cached, ok := rc.cached(entityType, value); ok {
		return cached
	}

	replacement := ""
	if generator := rc.Generator(); generator != nil {
		prompt, ok := r.prompts[strings.ToUpper(entityType)]
		if !ok {
			prompt = "Generate a realistic but fictional replacement for the detected " +
				strings.ToLower(strings.ReplaceAll(entityType, "_", " ")) +
				", distinct from: %s. Return only the replacement."
		}
		if completion, err := generator.Generate(ctx, fmt.Sprintf(prompt, value)); err == nil {
			replacement = strings.TrimSpace(completion)
		}
	}
	if replacement == "" {
		replacement = r.apply(entityType, value, rc)
	}

	rc.store(entityType, value, replacement)
	return replacement
}

// apply runs the registered strategy for entityType, or falls back to a
// generic prefixed hash token for types without a dedicated strategy.
func (r *Registry) apply(entityType, value string, ctx *ReplacementContext) string {
	upper := strings.ToUpper(entityType)
	if strategy, ok := r.deterministic[upper]; ok {
		return strategy(value, ctx)
	}
	prefix := r.fallbackPrefix
	if prefix == "" {
		prefix = upper
	}
	return maskWithPrefix(value, prefix, ctx.Salt(), r.fallbackLength)
}
