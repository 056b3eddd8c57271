package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/activitydb/internal/regen"
)

func TestRegenerate_ActivityScoped(t *testing.T) {
	isolateEnv(t)
	db := seededDatabase(t)

	out, _, err := execute(t, "regenerate", "--db-path", db,
		"--tables", "splits,body_composition", "--activity-ids", "1001")
	require.NoError(t, err)
	assertGolden(t, "regenerate_activity", db, out)

	assert.Equal(t, int64(2), countRows(t, db, "splits"))
	assert.Equal(t, int64(1), countRows(t, db, "body_composition"))
}

func TestRegenerate_MissingParents(t *testing.T) {
	isolateEnv(t)
	db := seededDatabase(t)

	out, _, err := execute(t, "regenerate", "--db-path", db,
		"--tables", "splits", "--activity-ids", "1001,9999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assertGolden(t, "regenerate_missing_parents", db, out)

	assert.Equal(t, int64(4), countRows(t, db, "splits"))
}

func TestRegenerate_UnknownTablesJSON(t *testing.T) {
	isolateEnv(t)
	db := seededDatabase(t)

	out, _, err := execute(t, "regenerate", "--db-path", db, "--tables", "laps", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assertGolden(t, "regenerate_unknown_tables", db, out)
}

func TestRegenerate_InvalidActivityID(t *testing.T) {
	isolateEnv(t)
	db := seededDatabase(t)

	out, _, err := execute(t, "regenerate", "--db-path", db, "--tables", "splits", "--activity-ids=0")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_ACTIVITY_ID]")
}

func TestRegenerate_DryRunJSON(t *testing.T) {
	isolateEnv(t)
	db := seededDatabase(t)

	out, _, err := execute(t, "regenerate", "--db-path", db, "--tables", "all", "--dry-run", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   regen.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.DryRun)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Len(t, resp.Data.Tables, 11)
	assert.Len(t, resp.Data.Deleted, 10)

	assert.Equal(t, int64(3), countRows(t, db, "activities"))
	assert.Equal(t, int64(4), countRows(t, db, "splits"))
}

func TestRegenerate_WholeTable(t *testing.T) {
	isolateEnv(t)
	db := seededDatabase(t)

	out, _, err := execute(t, "regenerate", "--db-path", db, "--tables", "splits")
	require.NoError(t, err)
	assert.Contains(t, out, "Regenerating 1 table(s) for all activities")
	assert.Contains(t, out, "  splits: deleted 4 row(s)")
	assert.Equal(t, int64(0), countRows(t, db, "splits"))
	assert.Equal(t, int64(3), countRows(t, db, "activities"))
}
