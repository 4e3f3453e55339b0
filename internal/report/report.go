// Package report aggregates transformation events into audit summaries.
// Summaries carry only entity tags, actions, and counts; no source or
// surrogate text beyond the bounded previews already on the events.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rfranks/ehr-anonymizer/internal/phi"
)

// EntitySummary aggregates events for one entity type.
type EntitySummary struct {
	Count   int            `json:"count"`
	Actions map[string]int `json:"actions"`
}

// Summary is the aggregated audit view of a run's transformations.
type Summary struct {
	Total    int                      `json:"total"`
	Actions  map[string]int           `json:"actions"`
	Entities map[string]EntitySummary `json:"entities"`
}

// Summarize folds events into per-action and per-entity counts.
func Summarize(events []phi.TransformationEvent) Summary {
	summary := Summary{
		Total:    len(events),
		Actions:  make(map[string]int),
		Entities: make(map[string]EntitySummary),
	}

	for _, event := range events {
		action := string(event.Action)
		summary.Actions[action]++

		entity := summary.Entities[event.EntityType]
		if entity.Actions == nil {
			entity.Actions = make(map[string]int)
		}
		entity.Count++
		entity.Actions[action]++
		summary.Entities[event.EntityType] = entity
	}

	return summary
}

// EntityTypes returns the summarized entity types in sorted order.
func (s Summary) EntityTypes() []string {
	types := make([]string, 0, len(s.Entities))
	for entityType := range s.Entities {
		types = append(types, entityType)
	}
	sort.Strings(types)
	return types
}

// FormatText renders a stable plain-text view for CLI output and logs.
func (s Summary) FormatText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transformations: %d\n", s.Total)
	for _, entityType := range s.EntityTypes() {
		entity := s.Entities[entityType]
		actions := make([]string, 0, len(entity.Actions))
		for action := range entity.Actions {
			actions = append(actions, action)
		}
		sort.Strings(actions)

		parts := make([]string, 0, len(actions))
		for _, action := range actions {
			parts = append(parts, fmt.Sprintf("%s=%d", action, entity.Actions[action]))
		}
		fmt.Fprintf(&b, "  %s: %d (%s)\n", entityType, entity.Count, strings.Join(parts, ", "))
	}
	return b.String()
}
