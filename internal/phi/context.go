package phi

import "strings"

type cacheKey struct {
	entityType string
	text       string
}

// ReplacementContext carries per-run replacement state: the hashing salt,
// the optional synthetic generator, and a memo of replacements already
// produced during this run. A context must never be shared across document
// runs; reuse would correlate patients through cache state.
type ReplacementContext struct {
	salt      string
	generator Generator
	cache     map[cacheKey]string
}

// NewReplacementContext creates a fresh context for a single anonymization
// run. The generator may be nil, in which case synthesis always degrades to
// deterministic masking.
func NewReplacementContext(salt string, generator Generator) *ReplacementContext {
	return &ReplacementContext{
		salt:      salt,
		generator: generator,
		cache:     make(map[cacheKey]string),
	}
}

// Salt returns the hashing salt for deterministic masking.
func (c *ReplacementContext) Salt() string {
	return c.salt
}

// Generator returns the configured synthetic generator, or nil.
func (c *ReplacementContext) Generator() Generator {
	return c.generator
}

func (c *ReplacementContext) cached(entityType, text string) (string, bool) {
	replacement, ok := c.cache[cacheKey{entityType: strings.ToUpper(entityType), text: text}]
	return replacement, ok
}

func (c *ReplacementContext) store(entityType, text, replacement string) {
	c.cache[cacheKey{entityType: strings.ToUpper(entityType), text: text}] = replacement
}

// EntityCounts returns the number of distinct source values replaced per
// entity type during this run. Only entity tags and counts escape the
// context; cached originals stay private.
func (c *ReplacementContext) EntityCounts() map[string]int {
	counts := make(map[string]int, len(c.cache))
	for key := range c.cache {
		counts[key.entityType]++
	}
	return counts
}
