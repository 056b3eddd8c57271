package regen

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/activitydb/internal/schema"
	"github.com/roach88/activitydb/internal/store"
)

// TableResult reports what deletion did to one table.
type TableResult struct {
	Table string `json:"table"`

	// Rows is the number of rows deleted.
	Rows int64 `json:"rows"`

	// Skipped is set when the table does not exist in the database.
	Skipped bool `json:"skipped,omitempty"`
}

// Deleter removes rows ahead of regeneration.
//
// Each call runs in a single write transaction: every listed table loses its
// rows or, on any error, none does. Tables are processed in the order given.
// Tables missing from the database are skipped, and body_composition is
// always excluded because it is not keyed by activity.
type Deleter struct {
	opener Opener
	logger *slog.Logger
}

// NewDeleter creates a deleter. A nil logger means slog.Default().
func NewDeleter(opener Opener, logger *slog.Logger) *Deleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deleter{opener: opener, logger: logger}
}

// DeleteActivityRecords deletes the rows of the given activities from each
// table. An empty ID list deletes nothing and does not open the database.
func (d *Deleter) DeleteActivityRecords(ctx context.Context, activityIDs []int64, tables []string, dbPath string) ([]TableResult, error) {
	ids := uniqueIDs(activityIDs)
	if len(ids) == 0 {
		return []TableResult{}, nil
	}

	return d.deleteEach(ctx, dbPath, tables, func(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
		var total int64
		for _, batch := range chunk(ids, ChunkSize) {
			query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
				store.QuoteIdent(table),
				schema.ActivityColumn,
				store.Placeholders(len(batch)))
			res, err := tx.ExecContext(ctx, query, int64Args(batch)...)
			if err != nil {
				return total, err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	})
}

// DeleteTableAllRecords deletes every row of each table.
func (d *Deleter) DeleteTableAllRecords(ctx context.Context, tables []string, dbPath string) ([]TableResult, error) {
	return d.deleteEach(ctx, dbPath, tables, func(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+store.QuoteIdent(table))
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

type deleteFunc func(ctx context.Context, tx *sql.Tx, table string) (int64, error)

func (d *Deleter) deleteEach(ctx context.Context, dbPath string, tables []string, del deleteFunc) ([]TableResult, error) {
	targets := activityScoped(tables)
	if len(targets) == 0 {
		return []TableResult{}, nil
	}

	start := time.Now()
	var results []TableResult
	err := d.opener.WithReadWrite(ctx, dbPath, func(c *store.Conn) error {
		results = make([]TableResult, 0, len(targets))

		tx, err := c.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

		for _, table := range targets {
			exists, err := store.TableExists(ctx, tx, table)
			if err != nil {
				return err
			}
			if !exists {
				d.logger.Debug("table absent, skipping", "db", c.Path(), "table", table)
				results = append(results, TableResult{Table: table, Skipped: true})
				continue
			}

			n, err := del(ctx, tx, table)
			if err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
			d.logger.Debug("deleted rows", "db", c.Path(), "table", table, "rows", n)
			results = append(results, TableResult{Table: table, Rows: n})
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit deletion: %w", err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("deletion rolled back", "db", dbPath, "tables", targets, "error", err)
		return nil, err
	}

	d.logger.Info("deletion committed", "db", dbPath, "tables", len(targets), "duration", time.Since(start))
	return results, nil
}
