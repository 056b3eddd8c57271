package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownMigration is returned when a step names no known migration.
	ErrUnknownMigration = errors.New("unknown migration")

	// ErrOutOfOrder is returned when a step would skip an earlier pending migration.
	ErrOutOfOrder = errors.New("earlier migrations are still pending")
)

// ApplyFunc executes one migration's statements inside tx.
type ApplyFunc func(ctx context.Context, tx *sql.Tx) error

// Definition is one released schema change.
type Definition struct {
	// Version is the 1-based position in the migration list.
	Version int

	// Name identifies the migration in schema_version and on the CLI.
	Name string

	// Apply performs the change.
	Apply ApplyFunc
}

// Record is one row of schema_version.
type Record struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// Status describes a database relative to the known migrations.
type Status struct {
	Current int
	Latest  int
	Applied []Record
	Pending []Definition
}

// UpToDate reports whether no migrations are pending.
func (s Status) UpToDate() bool {
	return len(s.Pending) == 0
}

// DefinitionError reports a malformed migration list.
type DefinitionError struct {
	Index   int
	Message string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("migration definition %d: %s", e.Index, e.Message)
}

// HistoryError reports a schema_version row that does not match the
// migration list, which happens when a released migration was renamed or
// renumbered, or the database was written by a newer binary.
type HistoryError struct {
	Version  int
	Recorded string
	Expected string
}

func (e *HistoryError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("schema_version has version %d (%s) which this build does not know", e.Version, e.Recorded)
	}
	return fmt.Sprintf("schema_version records version %d as %q but this build defines it as %q", e.Version, e.Recorded, e.Expected)
}

// Validate checks that defs are numbered 1..N in order with unique,
// non-empty names and non-nil apply functions.
func Validate(defs []Definition) error {
	names := make(map[string]int, len(defs))
	for i, d := range defs {
		if d.Version != i+1 {
			return &DefinitionError{Index: i, Message: fmt.Sprintf("version %d, want %d", d.Version, i+1)}
		}
		if strings.TrimSpace(d.Name) == "" {
			return &DefinitionError{Index: i, Message: "empty name"}
		}
		if prev, ok := names[d.Name]; ok {
			return &DefinitionError{Index: i, Message: fmt.Sprintf("name %q already used by version %d", d.Name, prev)}
		}
		if d.Apply == nil {
			return &DefinitionError{Index: i, Message: fmt.Sprintf("%q has no apply function", d.Name)}
		}
		names[d.Name] = d.Version
	}
	return nil
}

// Exec returns an ApplyFunc that executes stmts in order.
func Exec(stmts ...string) ApplyFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing %q: %w", truncate(stmt, 80), err)
			}
		}
		return nil
	}
}

// truncate shortens a statement for error messages.
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
