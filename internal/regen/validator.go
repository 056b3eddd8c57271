package regen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/roach88/activitydb/internal/schema"
	"github.com/roach88/activitydb/internal/store"
)

// ChunkSize bounds the number of bound parameters in one IN list.
const ChunkSize = 500

// Opener provides scoped connections to a database file.
// *store.Gateway implements it.
type Opener interface {
	WithReadOnly(ctx context.Context, path string, fn func(*store.Conn) error) error
	WithReadWrite(ctx context.Context, path string, fn func(*store.Conn) error) error
}

// Validator checks regeneration requests against the database before
// anything is deleted. It only ever opens read-only connections.
type Validator struct {
	opener Opener
	logger *slog.Logger
}

// NewValidator creates a validator. A nil logger means slog.Default().
func NewValidator(opener Opener, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{opener: opener, logger: logger}
}

// ValidateDependencies fails with CodeMissingParents when child tables are
// to be regenerated for activities that are not in the parent table.
//
// The check is skipped when tables selects the whole catalog or includes the
// parent, since the parent is then regenerated in the same run, and when no
// activity IDs are given. A missing database file or parent table means no
// activity exists. Other database errors are returned as they are.
func (v *Validator) ValidateDependencies(ctx context.Context, tables []string, activityIDs []int64, dbPath string) error {
	if selectsAll(tables) || includesParent(tables) || len(activityIDs) == 0 {
		return nil
	}

	ids := uniqueIDs(activityIDs)
	existing, err := v.existingParents(ctx, ids, dbPath)
	if err != nil {
		return err
	}

	var missing []int64
	for _, id := range ids {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	v.logger.Warn("regeneration refused: missing parent activities",
		"db", dbPath,
		"missing", len(missing),
		"requested", len(ids))
	return missingParentsError(schema.ParentTable, missing)
}

// existingParents returns the subset of ids present in the parent table.
func (v *Validator) existingParents(ctx context.Context, ids []int64, dbPath string) (map[int64]bool, error) {
	existing := make(map[int64]bool, len(ids))

	err := v.opener.WithReadOnly(ctx, dbPath, func(c *store.Conn) error {
		ok, err := c.TableExists(ctx, schema.ParentTable)
		if err != nil {
			return err
		}
		if !ok {
			v.logger.Debug("parent table absent", "db", dbPath, "table", schema.ParentTable)
			return nil
		}

		for _, batch := range chunk(ids, ChunkSize) {
			query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
				schema.ActivityColumn,
				store.QuoteIdent(schema.ParentTable),
				schema.ActivityColumn,
				store.Placeholders(len(batch)))

			rows, err := c.DB().QueryContext(ctx, query, int64Args(batch)...)
			if err != nil {
				return fmt.Errorf("query %s: %w", schema.ParentTable, err)
			}
			for rows.Next() {
				var id int64
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return fmt.Errorf("scan %s: %w", schema.ActivityColumn, err)
				}
				existing[id] = true
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return fmt.Errorf("iterate %s: %w", schema.ParentTable, err)
			}
			rows.Close()
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Debug("database file absent", "db", dbPath)
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("validate dependencies: %w", err)
	}
	return existing, nil
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
