// Package scoring merges per-section findings into a single prioritized list
// and classifies findings on the impact x effort grid.
package scoring

import (
	"sort"

	"github.com/growthlens/audit-cli/internal/model"
)

// Combine flattens any number of per-section finding lists into one ordered,
// duplicate-free list. Lists are processed in the order given, preserving
// relative order within each list; the first occurrence of each (title, area)
// pair wins and later duplicates are discarded with all their field values.
// The result is sorted by impact descending, then effort ascending, with the
// sort stable over remaining ties. Findings are never mutated, only list
// membership and order change.
//
// Inputs are assumed valid (impact/effort in 1..5); validation is the
// ingestion boundary's job, not this layer's.
func Combine(lists ...[]model.Finding) []model.Finding {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[string]struct{}, total)
	merged := make([]model.Finding, 0, total)
	for _, l := range lists {
		for _, f := range l {
			key := f.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, f)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Impact != merged[j].Impact {
			return merged[i].Impact > merged[j].Impact
		}
		return merged[i].Effort < merged[j].Effort
	})

	return merged
}
