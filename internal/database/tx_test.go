package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryRunsOnceWithNegativeBudget(t *testing.T) {
	db := testutil.SetupTestDB(t)

	calls := 0
	err := database.WithRetry(context.Background(), db, database.SerializableTxOptions(-1), func(tx *sql.Tx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = database.WithRetry(context.Background(), db, database.SerializableTxOptions(-1), func(tx *sql.Tx) error {
		calls++
		return &pq.Error{Code: "40001"}
	})
	assert.True(t, database.IsRetryable(err))
	assert.Equal(t, 1, calls)
}

func TestWithRetryRetriesSerializationFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)

	calls := 0
	err := database.WithRetry(context.Background(), db, database.SerializableTxOptions(2), func(tx *sql.Tx) error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	permanent := errors.New("constraint")
	calls = 0
	err = database.WithRetry(context.Background(), db, database.SerializableTxOptions(2), func(tx *sql.Tx) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}
