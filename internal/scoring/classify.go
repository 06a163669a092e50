package scoring

import "github.com/growthlens/audit-cli/internal/model"

// Category is the priority bucket derived from an (impact, effort) pair.
type Category string

const (
	CategoryQuickWin         Category = "Quick Win"
	CategoryStrategicProject Category = "Strategic Project"
	CategoryLowPriority      Category = "Low Priority"
	CategoryConsider         Category = "Consider"
)

// Categorize maps an (impact, effort) pair to its priority category. The
// checks must run in this order: the two impact>=4 branches overlap a naive
// reading at impact=4/effort=3, and LowPriority is only reached once both
// high-impact branches are excluded.
func Categorize(impact, effort int) Category {
	if impact >= 4 && effort <= 2 {
		return CategoryQuickWin
	} else if impact >= 4 && effort >= 3 {
		return CategoryStrategicProject
	} else if impact <= 2 {
		return CategoryLowPriority
	}
	return CategoryConsider
}

// QuickWins filters findings with impact >= 4 and effort <= 2. The filter is
// order-preserving and leaves the input untouched, so it can be applied to
// any list without combining first.
func QuickWins(findings []model.Finding) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Impact >= 4 && f.Effort <= 2 {
			out = append(out, f)
		}
	}
	return out
}

// StrategicProjects filters findings with impact >= 4 and effort >= 3.
func StrategicProjects(findings []model.Finding) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Impact >= 4 && f.Effort >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// scaleLabels maps the 1-5 scale to display labels, shared by impact and effort.
var scaleLabels = map[int]string{
	1: "Very low",
	2: "Low",
	3: "Medium",
	4: "High",
	5: "Very high",
}

// ImpactLabel returns the display label for an impact value, "Unknown" for
// anything outside 1..5.
func ImpactLabel(impact int) string {
	if l, ok := scaleLabels[impact]; ok {
		return l
	}
	return "Unknown"
}

// EffortLabel returns the display label for an effort value, "Unknown" for
// anything outside 1..5.
func EffortLabel(effort int) string {
	if l, ok := scaleLabels[effort]; ok {
		return l
	}
	return "Unknown"
}
