//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/ghostview/internal/domain"
)

func TestHistoryRepository_Postgres(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ghostview_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	defer store.Close()

	repo := store.History()
	require.NoError(t, repo.Record(ctx, domain.Result{
		JobID:      "pg-1",
		Task:       domain.TaskRenderPages,
		Status:     domain.StatusCancelled,
		ErrorType:  domain.ErrorTypeCancelled,
		InputFile:  "doc.pdf",
		Duration:   2 * time.Second,
		FinishedAt: time.Now(),
	}))

	entries, err := repo.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.StatusCancelled, entries[0].Status)
	assert.Equal(t, 2*time.Second, entries[0].Duration)
}
