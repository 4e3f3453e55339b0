package phi

import "regexp"

// DetectionRule is a single regex recognizer. Group selects the submatch
// that carries the entity; zero means the full match.
type DetectionRule struct {
	EntityType string
	Pattern    *regexp.Regexp
	Score      float64
	Group      int
	Enabled    bool
}

// GetDefaultRules returns the built-in recognizer set. Rules with broad
// patterns carry lower scores; overlap resolution prefers earlier and longer
// spans regardless of score, so the score is informational.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			EntityType: "EMAIL_ADDRESS",
			Pattern:    regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			Score:      1.0,
			Enabled:    true,
		},
		{
			EntityType: "URL",
			Pattern:    regexp.MustCompile(`https?://[^\s<>"']+`),
			Score:      0.9,
			Enabled:    true,
		},
		{
			EntityType: "IP_ADDRESS",
			Pattern:    regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Score:      0.9,
			Enabled:    true,
		},
		{
			EntityType: "US_SSN",
			Pattern:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Score:      0.95,
			Enabled:    true,
		},
		{
			EntityType: "CREDIT_CARD",
			Pattern:    regexp.MustCompile(`\b(?:\d{4}[ \-]){3}\d{4}\b`),
			Score:      0.9,
			Enabled:    true,
		},
		{
			EntityType: "PHONE_NUMBER",
			Pattern:    regexp.MustCompile(`(?:\+?1[\-.\s]?)?\(?\d{3}\)?[\-.\s]?\d{3}[\-.\s]?\d{4}\b`),
			Score:      0.8,
			Enabled:    true,
		},
		{
			EntityType: "MEDICAL_RECORD_NUMBER",
			Pattern:    regexp.MustCompile(`(?i)\bMRN[:#\s]*(\d{5,12})\b`),
			Score:      0.95,
			Group:      1,
			Enabled:    true,
		},
		{
			EntityType: "MEMBER_ID",
			Pattern:    regexp.MustCompile(`(?i)\b(?:member|policy)\s*(?:id|number|#)?[:\s]+([A-Z0-9][A-Z0-9\-]{5,})\b`),
			Score:      0.85,
			Group:      1,
			Enabled:    true,
		},
		{
			EntityType: "FACILITY_NAME",
			Pattern:    regexp.MustCompile(`\b[A-Z][A-Za-z'&.\-]*(?: [A-Z][A-Za-z'&.\-]*)* (?:Hospital|Medical Center|Clinic|Health System|Healthcare Center)\b`),
			Score:      0.7,
			Enabled:    true,
		},
		{
			EntityType: "DATE_TIME",
			Pattern:    regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|(?i:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept?|Oct|Nov|Dec)\.? \d{1,2},? \d{4})\b`),
			Score:      0.75,
			Enabled:    true,
		},
		{
			EntityType: "ZIP_CODE",
			Pattern:    regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
			Score:      0.4,
			Enabled:    true,
		},
		{
			// Prose age mentions are handled by the residual generalization
			// pass, so this recognizer stays off unless a deployment wants
			// every age tokenized.
			EntityType: "AGE",
			Pattern:    regexp.MustCompile(`(?i)\b\d{1,3}[\s\-]*(?:years?[\s\-]*old|y/o|yo)\b`),
			Score:      0.6,
			Enabled:    false,
		},
	}
}
