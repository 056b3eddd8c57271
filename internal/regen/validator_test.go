package regen

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDependencies_ExistingParent(t *testing.T) {
	path := createTestDatabase(t)
	v := NewValidator(newTestGateway(), nil)

	err := v.ValidateDependencies(context.Background(), []string{"splits"}, []int64{1001}, path)
	assert.NoError(t, err)
}

func TestValidateDependencies_MissingParent(t *testing.T) {
	path := createTestDatabase(t)
	v := NewValidator(newTestGateway(), nil)

	err := v.ValidateDependencies(context.Background(), []string{"splits"}, []int64{1001, 9999}, path)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeMissingParents, ve.Code)
	assert.Equal(t, []int64{9999}, ve.MissingIDs)
	assert.Contains(t, err.Error(), "9999")
	assert.Contains(t, err.Error(), `include "activities"`)
	assert.Contains(t, err.Error(), "regenerate those activities first")

	// Nothing was touched.
	assert.Equal(t, int64(2), countRows(t, path, "splits", 1001))
}

func TestValidateDependencies_Skipped(t *testing.T) {
	// The file does not exist, so any lookup would report every ID missing.
	path := filepath.Join(t.TempDir(), "absent.db")
	v := NewValidator(newTestGateway(), nil)
	ctx := context.Background()

	assert.NoError(t, v.ValidateDependencies(ctx, nil, []int64{9999}, path), "all tables")
	assert.NoError(t, v.ValidateDependencies(ctx, []string{"all"}, []int64{9999}, path), "all keyword")
	assert.NoError(t, v.ValidateDependencies(ctx, []string{"splits", "activities"}, []int64{9999}, path), "parent included")
	assert.NoError(t, v.ValidateDependencies(ctx, []string{"splits"}, nil, path), "no activity ids")
}

func TestValidateDependencies_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	v := NewValidator(newTestGateway(), nil)

	err := v.ValidateDependencies(context.Background(), []string{"splits"}, []int64{1001, 1002}, path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []int64{1001, 1002}, ve.MissingIDs)
	assert.NoFileExists(t, path)
}

func TestValidateDependencies_MissingParentTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.db")
	execAll(t, path, "CREATE TABLE splits (activity_id INTEGER, split_index INTEGER)")
	v := NewValidator(newTestGateway(), nil)

	err := v.ValidateDependencies(context.Background(), []string{"splits"}, []int64{1001}, path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []int64{1001}, ve.MissingIDs)
}

func TestValidateDependencies_MessageTruncated(t *testing.T) {
	path := createTestDatabase(t)
	v := NewValidator(newTestGateway(), nil)

	ids := []int64{9001, 9002, 9003, 9004, 9005, 9006, 9007}
	err := v.ValidateDependencies(context.Background(), []string{"splits"}, ids, path)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.MissingIDs, 7)
	assert.Contains(t, ve.Message, "7 activity ID(s)")
	assert.Contains(t, ve.Message, "9001, 9002, 9003, 9004, 9005 (and 2 more)")
	assert.NotContains(t, ve.Message, "9006")
}

func TestValidateDependencies_ManyIDsChunked(t *testing.T) {
	path := createTestDatabase(t)
	v := NewValidator(newTestGateway(), nil)

	ids := make([]int64, 0, 1200)
	ids = append(ids, 1001, 1002, 1003)
	for id := int64(50000); len(ids) < 1200; id++ {
		ids = append(ids, id)
	}

	err := v.ValidateDependencies(context.Background(), []string{"splits"}, ids, path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.MissingIDs, 1197)
	assert.Equal(t, int64(50000), ve.MissingIDs[0])
}

func TestValidateDependencies_DuplicateIDs(t *testing.T) {
	path := createTestDatabase(t)
	v := NewValidator(newTestGateway(), nil)

	err := v.ValidateDependencies(context.Background(), []string{"splits"}, []int64{9999, 9999, 1001}, path)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []int64{9999}, ve.MissingIDs)
}

func TestValidateDependencies_QueryErrorNotMasked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTableExists(mock, "activities", true)
	mock.ExpectQuery(`SELECT activity_id FROM "activities" WHERE activity_id IN`).
		WithArgs(int64(1001)).
		WillReturnError(errors.New("database disk image is malformed"))

	v := NewValidator(mockOpener{db: db}, nil)
	err = v.ValidateDependencies(context.Background(), []string{"splits"}, []int64{1001}, "mock.db")
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "malformed")
	require.NoError(t, mock.ExpectationsWereMet())
}
