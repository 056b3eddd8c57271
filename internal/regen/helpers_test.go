package regen

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/roach88/activitydb/internal/migrate"
	"github.com/roach88/activitydb/internal/store"
)

func newTestGateway() *store.Gateway {
	return store.NewGateway(store.Config{Retries: 1, Backoff: time.Millisecond})
}

// createTestDatabase builds a fully migrated database holding activities
// 1001, 1002 and 1003, child rows for each, and one body_composition row.
func createTestDatabase(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "activity.db")
	gw := newTestGateway()

	r, err := migrate.NewRunner(gw, path)
	require.NoError(t, err)
	_, err = r.RunPending(ctx)
	require.NoError(t, err)

	execAll(t, path,
		`INSERT INTO activities (activity_id, activity_date, activity_name) VALUES
			(1001, '2025-10-01', 'Easy Run'),
			(1002, '2025-10-02', 'Tempo Run'),
			(1003, '2025-10-03', 'Long Run')`,
		`INSERT INTO splits (activity_id, split_index, distance_km) VALUES
			(1001, 1, 1.0), (1001, 2, 1.0),
			(1002, 1, 1.0), (1002, 2, 1.0), (1002, 3, 1.0),
			(1003, 1, 1.0)`,
		`INSERT INTO form_efficiency (activity_id, overall_score) VALUES (1001, 80), (1002, 75), (1003, 90)`,
		`INSERT INTO heart_rate_zones (activity_id, zone_number, time_in_zone_seconds) VALUES
			(1001, 1, 300), (1001, 2, 600),
			(1002, 1, 120),
			(1003, 1, 900)`,
		`INSERT INTO body_composition (date, weight_kg) VALUES ('2025-10-01', 70.5)`,
	)
	return path
}

func execAll(t *testing.T, path string, stmts ...string) {
	t.Helper()
	err := newTestGateway().WithReadWrite(context.Background(), path, func(c *store.Conn) error {
		for _, stmt := range stmts {
			if _, err := c.DB().Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// countRows counts rows of table, optionally restricted to one activity.
func countRows(t *testing.T, path, table string, activityID ...int64) int64 {
	t.Helper()
	var n int64
	err := newTestGateway().WithReadOnly(context.Background(), path, func(c *store.Conn) error {
		if len(activityID) == 0 {
			var err error
			n, err = store.CountRows(context.Background(), c.DB(), table)
			return err
		}
		return c.DB().QueryRow(
			"SELECT COUNT(*) FROM "+store.QuoteIdent(table)+" WHERE activity_id = ?", activityID[0],
		).Scan(&n)
	})
	require.NoError(t, err)
	return n
}

// mockOpener hands every caller the same sqlmock-backed connection.
type mockOpener struct {
	db *sql.DB
}

func (m mockOpener) WithReadOnly(ctx context.Context, path string, fn func(*store.Conn) error) error {
	return fn(store.NewConn(m.db, path, store.ReadOnly))
}

func (m mockOpener) WithReadWrite(ctx context.Context, path string, fn func(*store.Conn) error) error {
	return fn(store.NewConn(m.db, path, store.ReadWrite))
}

func expectTableExists(mock sqlmock.Sqlmock, table string, exists bool) {
	count := 0
	if exists {
		count = 1
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?")).
		WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}
