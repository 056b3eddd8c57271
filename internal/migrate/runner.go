package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/activitydb/internal/store"
)

// StepAll selects every pending migration in RunStep.
const StepAll = "all"

const trackingTable = "schema_version"

// Opener provides scoped connections to a database file.
// *store.Gateway implements it.
type Opener interface {
	WithReadOnly(ctx context.Context, path string, fn func(*store.Conn) error) error
	WithReadWrite(ctx context.Context, path string, fn func(*store.Conn) error) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the time source for applied_at.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithDefinitions replaces the released migration list. Used for testing.
func WithDefinitions(defs []Definition) Option {
	return func(r *Runner) {
		r.defs = defs
	}
}

// Runner applies pending migrations to one database file.
//
// A Runner holds no connection between calls; each call acquires what it
// needs through the Opener and releases it before returning.
type Runner struct {
	opener Opener
	path   string
	defs   []Definition
	now    func() time.Time
	logger *slog.Logger
}

// NewRunner creates a runner for the database at path. It fails if the
// migration list is malformed.
func NewRunner(opener Opener, path string, opts ...Option) (*Runner, error) {
	r := &Runner{
		opener: opener,
		path:   path,
		defs:   Definitions(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := Validate(r.defs); err != nil {
		return nil, err
	}
	return r, nil
}

// Definitions returns the runner's migration list.
func (r *Runner) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// CurrentVersion returns the highest applied version, or 0 when the file or
// the schema_version table does not exist yet.
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	records, err := r.Applied(ctx)
	if err != nil {
		return 0, err
	}
	return maxVersion(records), nil
}

// Applied returns the schema_version rows in version order. A missing file
// or table yields an empty list.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	var records []Record
	err := r.opener.WithReadOnly(ctx, r.path, func(c *store.Conn) error {
		var err error
		records, err = readRecords(ctx, c.DB())
		return err
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return records, nil
}

// Status reports applied and pending migrations.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	records, err := r.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := r.verifyHistory(records); err != nil {
		return Status{}, err
	}
	current := maxVersion(records)
	return Status{
		Current: current,
		Latest:  len(r.defs),
		Applied: records,
		Pending: r.pendingAfter(current),
	}, nil
}

// RunPending applies every migration newer than the current version, in
// order, and returns the names it applied. When the database is already up
// to date it returns an empty list without opening a write connection.
//
// On failure the names applied before the failing migration are returned
// together with the error.
func (r *Runner) RunPending(ctx context.Context) ([]string, error) {
	return r.run(ctx, StepAll)
}

// RunStep applies the migration called step if it is the next pending one.
// A step that is already applied is a no-op. StepAll behaves like RunPending.
// A step with earlier migrations still pending fails with ErrOutOfOrder, and
// an unknown name fails with ErrUnknownMigration.
func (r *Runner) RunStep(ctx context.Context, step string) ([]string, error) {
	return r.run(ctx, step)
}

func (r *Runner) run(ctx context.Context, step string) ([]string, error) {
	logger := r.logger.With("run_id", uuid.Must(uuid.NewV7()).String(), "db", r.path)
	applied := []string{}

	// Decide from a read-only view first so an up-to-date database sees no writes.
	records, err := r.Applied(ctx)
	if err != nil {
		return applied, err
	}
	if err := r.verifyHistory(records); err != nil {
		return applied, err
	}
	current := maxVersion(records)
	plan, err := r.plan(current, step)
	if err != nil {
		return applied, err
	}
	if len(plan) == 0 {
		logger.Info("schema up to date", "version", current)
		return applied, nil
	}

	err = r.opener.WithReadWrite(ctx, r.path, func(c *store.Conn) error {
		if err := ensureTrackingTable(ctx, c.DB()); err != nil {
			return err
		}

		// Another writer may have migrated between the read and the write lock.
		records, err := readRecords(ctx, c.DB())
		if err != nil {
			return err
		}
		if err := r.verifyHistory(records); err != nil {
			return err
		}
		current := maxVersion(records)
		plan, err := r.plan(current, step)
		if err != nil {
			return err
		}

		for _, d := range plan {
			logger.Info("applying migration", "version", d.Version, "name", d.Name, "from", current)
			start := time.Now()
			if err := r.apply(ctx, c, d); err != nil {
				logger.Error("migration failed", "version", d.Version, "name", d.Name, "error", err)
				return err
			}
			current = d.Version
			applied = append(applied, d.Name)
			logger.Info("migration applied", "version", d.Version, "name", d.Name, "duration", time.Since(start))
		}
		return nil
	})
	return applied, err
}

// plan returns the definitions to apply given the current version.
func (r *Runner) plan(current int, step string) ([]Definition, error) {
	pending := r.pendingAfter(current)
	if step == "" || step == StepAll {
		return pending, nil
	}

	for _, d := range r.defs {
		if d.Name != step {
			continue
		}
		if d.Version <= current {
			return nil, nil
		}
		if d.Version != current+1 {
			names := make([]string, 0, d.Version-current-1)
			for _, p := range pending {
				if p.Version < d.Version {
					names = append(names, p.Name)
				}
			}
			return nil, fmt.Errorf("%w: %s requires %v first", ErrOutOfOrder, step, names)
		}
		return []Definition{d}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMigration, step)
}

// pendingAfter returns the definitions with Version > current, in order.
func (r *Runner) pendingAfter(current int) []Definition {
	var pending []Definition
	for _, d := range r.defs {
		if d.Version > current {
			pending = append(pending, d)
		}
	}
	return pending
}

// verifyHistory checks recorded rows against the definitions.
func (r *Runner) verifyHistory(records []Record) error {
	for _, rec := range records {
		if rec.Version < 1 || rec.Version > len(r.defs) {
			return &HistoryError{Version: rec.Version, Recorded: rec.Name}
		}
		if want := r.defs[rec.Version-1].Name; rec.Name != want {
			return &HistoryError{Version: rec.Version, Recorded: rec.Name, Expected: want}
		}
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (r *Runner) apply(ctx context.Context, c *store.Conn, d Definition) error {
	tx, err := c.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", d.Version, d.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := d.Apply(ctx, tx); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", d.Version, d.Name, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)",
		d.Version,
		d.Name,
		r.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("record migration %d (%s): %w", d.Version, d.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d (%s): %w", d.Version, d.Name, err)
	}
	return nil
}

// ensureTrackingTable creates schema_version if it does not exist.
func ensureTrackingTable(ctx context.Context, db *sql.DB) error {
	exists, err := store.TableExists(ctx, db, trackingTable)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	return nil
}

// readRecords returns schema_version rows, or none when the table is absent.
func readRecords(ctx context.Context, db *sql.DB) ([]Record, error) {
	records := []Record{}

	exists, err := store.TableExists(ctx, db, trackingTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return records, nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT version, name, applied_at FROM schema_version ORDER BY version ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("query schema_version: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		var appliedAt string
		if err := rows.Scan(&rec.Version, &rec.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan schema_version row: %w", err)
		}
		rec.AppliedAt = parseAppliedAt(appliedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_version: %w", err)
	}
	return records, nil
}

// parseAppliedAt accepts our own RFC 3339 format and SQLite's CURRENT_TIMESTAMP.
func parseAppliedAt(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func maxVersion(records []Record) int {
	v := 0
	for _, rec := range records {
		if rec.Version > v {
			v = rec.Version
		}
	}
	return v
}
