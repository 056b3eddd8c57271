package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/activitydb/internal/config"
	"github.com/roach88/activitydb/internal/migrate"
	"github.com/roach88/activitydb/internal/store"
	"github.com/roach88/activitydb/internal/testutil"
)

// isolateEnv points the data directory at a temp dir and clears overrides.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvLogLevel, "")
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testGateway() *store.Gateway {
	return store.NewGateway(store.Config{Retries: 1, Backoff: time.Millisecond})
}

// migratedDatabase applies the first n released migrations with a
// deterministic clock. n <= 0 applies all of them.
func migratedDatabase(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.db")

	defs := migrate.Definitions()
	if n > 0 {
		defs = defs[:n]
	}
	r, err := migrate.NewRunner(testGateway(), path,
		migrate.WithDefinitions(defs),
		migrate.WithClock(testutil.NewDeterministicClock().Now),
	)
	require.NoError(t, err)
	_, err = r.RunPending(context.Background())
	require.NoError(t, err)
	return path
}

// seededDatabase is a fully migrated database with activities 1001-1003.
func seededDatabase(t *testing.T) string {
	t.Helper()
	path := migratedDatabase(t, 0)
	err := testGateway().WithReadWrite(context.Background(), path, func(c *store.Conn) error {
		for _, stmt := range []string{
			`INSERT INTO activities (activity_id, activity_date) VALUES (1001, '2025-10-01'), (1002, '2025-10-02'), (1003, '2025-10-03')`,
			`INSERT INTO splits (activity_id, split_index) VALUES (1001, 1), (1001, 2), (1002, 1), (1003, 1)`,
			`INSERT INTO body_composition (date, weight_kg) VALUES ('2025-10-01', 70.5)`,
		} {
			if _, err := c.DB().Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return path
}

func countRows(t *testing.T, path, table string) int64 {
	t.Helper()
	var n int64
	err := testGateway().WithReadOnly(context.Background(), path, func(c *store.Conn) error {
		var err error
		n, err = store.CountRows(context.Background(), c.DB(), table)
		return err
	})
	require.NoError(t, err)
	return n
}

// assertGolden compares output against testdata/golden/<name>.golden with
// the database path replaced by <db>.
func assertGolden(t *testing.T, name, dbPath, output string) {
	t.Helper()
	if dbPath != "" {
		output = strings.ReplaceAll(output, dbPath, "<db>")
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(output))
}
