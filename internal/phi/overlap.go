package phi

import "sort"

// ResolveOverlaps filters raw detector output into an ordered,
// non-overlapping accepted set. Spans outside the recognized PHI type set
// are dropped first. The remainder is sorted by (start ascending, end
// descending) so that earlier and, on ties, longer spans win; a span is
// accepted iff it does not overlap any already-accepted span.
func ResolveOverlaps(spans []EntitySpan) []EntitySpan {
	candidates := make([]EntitySpan, 0, len(spans))
	for _, span := range spans {
		if IsSafeHarborEntity(span.EntityType) {
			candidates = append(candidates, span)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		return candidates[i].End > candidates[j].End
	})

	accepted := make([]EntitySpan, 0, len(candidates))
	for _, candidate := range candidates {
		if !overlapsAny(candidate, accepted) {
			accepted = append(accepted, candidate)
		}
	}

	return accepted
}

func overlapsAny(candidate EntitySpan, accepted []EntitySpan) bool {
	for _, span := range accepted {
		if candidate.Start < span.End && span.Start < candidate.End {
			return true
		}
	}
	return false
}
