package regen

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/roach88/activitydb/internal/schema"
)

// Request describes one regeneration run.
type Request struct {
	// Tables to regenerate. Empty or {"all"} selects the whole catalog.
	Tables []string

	// ActivityIDs restricts deletion to these activities. Empty means every
	// row of each table.
	ActivityIDs []int64

	// DryRun validates and reports the plan without deleting anything.
	DryRun bool
}

// Result reports a regeneration run.
type Result struct {
	RunID       string        `json:"run_id"`
	Tables      []string      `json:"tables"`
	ActivityIDs []int64       `json:"activity_ids,omitempty"`
	DryRun      bool          `json:"dry_run"`
	Deleted     []TableResult `json:"deleted"`
	Reinserted  []string      `json:"reinserted,omitempty"`
}

// Inserter repopulates a table after deletion. activityIDs is empty when the
// whole table was wiped.
type Inserter interface {
	Insert(ctx context.Context, dbPath, table string, activityIDs []int64) error
}

// InserterFunc adapts a function to Inserter.
type InserterFunc func(ctx context.Context, dbPath, table string, activityIDs []int64) error

// Insert calls f.
func (f InserterFunc) Insert(ctx context.Context, dbPath, table string, activityIDs []int64) error {
	return f(ctx, dbPath, table, activityIDs)
}

// RegeneratorOption configures a Regenerator.
type RegeneratorOption func(*Regenerator)

// WithInserter sets the component that repopulates emptied tables.
func WithInserter(ins Inserter) RegeneratorOption {
	return func(r *Regenerator) {
		r.inserter = ins
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegeneratorOption {
	return func(r *Regenerator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Regenerator validates a request, deletes the affected rows and hands each
// table to the Inserter.
type Regenerator struct {
	opener   Opener
	inserter Inserter
	logger   *slog.Logger
}

// NewRegenerator creates a regenerator. Without an Inserter, Run stops after
// deletion.
func NewRegenerator(opener Opener, opts ...RegeneratorOption) *Regenerator {
	r := &Regenerator{opener: opener, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run regenerates the requested tables of the database at dbPath.
//
// Validation errors are returned before anything is written. If deletion
// fails nothing is deleted. If insertion fails the deletion stays committed
// and Result lists the tables reinserted so far.
func (r *Regenerator) Run(ctx context.Context, dbPath string, req Request) (Result, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	logger := r.logger.With("run_id", runID, "db", dbPath)

	result := Result{RunID: runID, DryRun: req.DryRun, Deleted: []TableResult{}}

	if err := ValidateActivityIDs(req.ActivityIDs); err != nil {
		return result, err
	}
	tables, err := FilterTables(req.Tables)
	if err != nil {
		return result, err
	}
	ids := uniqueIDs(req.ActivityIDs)
	result.Tables = tables
	result.ActivityIDs = ids

	validator := NewValidator(r.opener, logger)
	if err := validator.ValidateDependencies(ctx, tables, ids, dbPath); err != nil {
		return result, err
	}

	if req.DryRun {
		for _, t := range activityScoped(tables) {
			result.Deleted = append(result.Deleted, TableResult{Table: t})
		}
		logger.Info("dry run, nothing deleted", "tables", tables, "activities", len(ids))
		return result, nil
	}

	logger.Info("regenerating", "tables", tables, "activities", len(ids))
	deleter := NewDeleter(r.opener, logger)
	if len(ids) > 0 {
		result.Deleted, err = deleter.DeleteActivityRecords(ctx, ids, tables, dbPath)
	} else {
		result.Deleted, err = deleter.DeleteTableAllRecords(ctx, tables, dbPath)
	}
	if err != nil {
		result.Deleted = []TableResult{}
		return result, err
	}

	if r.inserter == nil {
		return result, nil
	}

	// Only tables that were actually emptied are repopulated, parent first so
	// children never point at missing activities.
	ordered := make([]string, 0, len(result.Deleted))
	for _, tr := range result.Deleted {
		if !tr.Skipped {
			ordered = append(ordered, tr.Table)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return schema.Position(ordered[i]) < schema.Position(ordered[j])
	})
	for _, table := range ordered {
		if err := r.inserter.Insert(ctx, dbPath, table, ids); err != nil {
			logger.Error("insert failed", "table", table, "error", err)
			return result, fmt.Errorf("insert %s: %w", table, err)
		}
		result.Reinserted = append(result.Reinserted, table)
	}
	logger.Info("regeneration complete", "tables", len(result.Reinserted))
	return result, nil
}
