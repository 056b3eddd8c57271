package regen

import (
	"fmt"

	"github.com/roach88/activitydb/internal/schema"
)

// AllTables is accepted in place of a table list and selects the full catalog.
const AllTables = "all"

// FilterTables resolves the requested table names against the catalog.
//
// An empty request, or the single name "all", selects every table in
// catalog order. Otherwise names are normalized, duplicates are dropped and
// the caller's order is kept. Any name outside the catalog fails the whole
// request with CodeUnknownTables; nothing is partially accepted.
func FilterTables(requested []string) ([]string, error) {
	if selectsAll(requested) {
		return schema.AvailableTables(), nil
	}

	seen := make(map[string]bool, len(requested))
	tables := make([]string, 0, len(requested))
	var unknown []string
	for _, raw := range requested {
		name := schema.Normalize(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !schema.IsKnown(name) {
			unknown = append(unknown, name)
			continue
		}
		tables = append(tables, name)
	}

	if len(unknown) > 0 {
		return nil, unknownTablesError(unknown, schema.AvailableTables())
	}
	if len(tables) == 0 {
		return nil, &ValidationError{
			Code:    CodeUnknownTables,
			Message: fmt.Sprintf("no table names in %q", requested),
		}
	}
	return tables, nil
}

// selectsAll reports whether requested means the whole catalog.
func selectsAll(requested []string) bool {
	if len(requested) == 0 {
		return true
	}
	return len(requested) == 1 && schema.Normalize(requested[0]) == AllTables
}

// includesParent reports whether tables contains the parent table.
func includesParent(tables []string) bool {
	for _, t := range tables {
		if schema.Normalize(t) == schema.ParentTable {
			return true
		}
	}
	return false
}

// activityScoped normalizes names, then drops tables that are not keyed by
// activity and duplicates, keeping order.
func activityScoped(tables []string) []string {
	seen := make(map[string]bool, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		name := schema.Normalize(t)
		if name == "" || seen[name] || !schema.IsActivityScoped(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

// uniqueIDs drops repeated IDs, keeping first occurrence.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ValidateActivityIDs rejects identifiers that are zero or negative.
func ValidateActivityIDs(ids []int64) error {
	var invalid []int64
	for _, id := range ids {
		if id <= 0 {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return invalidIDsError(invalid)
	}
	return nil
}
