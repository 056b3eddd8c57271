// Package schema holds the static catalog of tables in the activity database.
//
// activities is the parent table. Every other table except body_composition
// is a child keyed by activity_id. The reference is logical only: no foreign
// key is declared, so child tables can be regenerated on their own. Code that
// removes parent rows or inserts child rows is responsible for keeping the
// reference meaningful.
package schema

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Table names.
const (
	Activities        = "activities"
	Splits            = "splits"
	FormEfficiency    = "form_efficiency"
	HeartRateZones    = "heart_rate_zones"
	HREfficiency      = "hr_efficiency"
	PerformanceTrends = "performance_trends"
	VO2Max            = "vo2_max"
	LactateThreshold  = "lactate_threshold"
	TimeSeriesMetrics = "time_series_metrics"
	SectionAnalyses   = "section_analyses"
	BodyComposition   = "body_composition"
)

// ParentTable is the table every activity-scoped child refers to.
const ParentTable = Activities

// ActivityColumn is the identifier column shared by the parent and its children.
const ActivityColumn = "activity_id"

// availableTables is the catalog in regeneration order: parent first.
var availableTables = []string{
	Activities,
	Splits,
	FormEfficiency,
	HeartRateZones,
	HREfficiency,
	PerformanceTrends,
	VO2Max,
	LactateThreshold,
	TimeSeriesMetrics,
	SectionAnalyses,
	BodyComposition,
}

var known = func() map[string]int {
	m := make(map[string]int, len(availableTables))
	for i, name := range availableTables {
		m[name] = i
	}
	return m
}()

// AvailableTables returns the full catalog, parent first. The slice is a copy.
func AvailableTables() []string {
	out := make([]string, len(availableTables))
	copy(out, availableTables)
	return out
}

// ChildTables returns the activity-scoped tables other than the parent.
func ChildTables() []string {
	var out []string
	for _, name := range availableTables {
		if name != ParentTable && IsActivityScoped(name) {
			out = append(out, name)
		}
	}
	return out
}

// IsKnown reports whether name is in the catalog.
func IsKnown(name string) bool {
	_, ok := known[name]
	return ok
}

// IsActivityScoped reports whether rows of table are keyed by activity_id.
// Tables outside the catalog are assumed to be; deletion skips them anyway
// when they do not exist.
func IsActivityScoped(table string) bool {
	return table != BodyComposition
}

// Position returns the catalog index of name, or -1.
func Position(name string) int {
	if i, ok := known[name]; ok {
		return i
	}
	return -1
}

// Normalize canonicalizes a table name typed by a user. NFKC folds full-width
// and other compatibility forms to their plain equivalents before the name is
// trimmed and lower-cased.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(name)))
}
