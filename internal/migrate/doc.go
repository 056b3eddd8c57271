// Package migrate brings an activity database to the latest schema version.
//
// Migrations are a fixed, ordered list compiled into the binary (see
// Definitions). Version n is the n-th entry; released entries are never
// reordered or renumbered because existing databases record them by number.
//
// Applied migrations are recorded in the schema_version table:
//
//	version    INTEGER PRIMARY KEY  -- 1..N, strictly increasing
//	name       TEXT UNIQUE          -- Definition.Name
//	applied_at TIMESTAMP            -- RFC 3339, UTC
//
// Rows are only ever appended. The current version is MAX(version), or 0 for
// a database without the table (or without a file at all).
//
// # Atomicity
//
// Each migration runs in its own transaction together with its
// schema_version insert. If migration N fails:
//   - Migrations 1 to N-1 remain committed
//   - Migration N leaves neither schema changes nor a record behind
//   - Migrations N+1 onwards are not attempted
//
// Re-running RunPending after fixing the problem continues from N. The
// released migrations are also written to be safe to re-run (CREATE ... IF
// NOT EXISTS, column checks before ALTER TABLE) so databases created before
// version tracking existed migrate cleanly.
package migrate
