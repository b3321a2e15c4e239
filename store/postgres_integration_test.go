//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"nodeconsole/model"
)

// postgresDB opens NODECONSOLE_TEST_POSTGRES_DSN when set, otherwise starts a
// throwaway container.
func postgresDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("NODECONSOLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		ctr, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("nodeconsole"),
			postgres.WithUsername("nodeconsole"),
			postgres.WithPassword("nodeconsole"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
		t.Cleanup(func() { testcontainers.TerminateContainer(ctr) })
		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}
	db, err := OpenPostgresDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	db := postgresDB(t)

	id, err := db.AppendSnapshot(7, KindNodeConfig, "n1", model.NodeConfig{NodeID: "n1"})
	require.NoError(t, err)
	require.NotZero(t, id)

	latest, err := db.LatestSnapshot(KindNodeConfig)
	require.NoError(t, err)
	require.Equal(t, uint64(7), latest.Seq)
	require.False(t, latest.CreatedAt.IsZero())

	_, err = db.InsertNetworkActivity(model.NetworkActivityData{ActiveNodes: 2, TotalCPU: 4.5})
	require.NoError(t, err)
	sample, err := db.LatestNetworkActivity()
	require.NoError(t, err)
	require.Equal(t, 4.5, sample.TotalCPU)

	require.NoError(t, db.ReplaceSubmittedTasks("n1", []model.Task{{ID: "t1", Status: model.TaskPending}}))
	tasks, err := db.ListSubmittedTasks("n1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, db.EnqueueOutbox("topic", []byte("x"), "node.config", "c1"))
	pending, err := db.ListPendingOutbox(10)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	require.NoError(t, db.AckOutbox(pending[0].ID))
}
