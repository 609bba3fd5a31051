package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/ghostview/internal/config"
	"github.com/spherical/ghostview/internal/domain"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).History()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, domain.Result{
		JobID:      "job-1",
		Task:       domain.TaskDistill,
		Status:     domain.StatusOK,
		InputFile:  "a.ps",
		OutputFile: "a.pdf",
		Duration:   1500 * time.Millisecond,
		FinishedAt: base,
	}))
	require.NoError(t, repo.Record(ctx, domain.Result{
		JobID:      "job-2",
		Task:       domain.TaskCreateOutput,
		Status:     domain.StatusFailed,
		ErrorType:  domain.ErrorTypeEngine,
		Err:        domain.EngineError("init failed", -100),
		ReturnCode: -100,
		InputFile:  "b.pdf",
		FinishedAt: base.Add(time.Minute),
	}))

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "job-2", entries[0].JobID)
	assert.Equal(t, domain.StatusFailed, entries[0].Status)
	assert.Equal(t, domain.ErrorTypeEngine, entries[0].ErrorType)
	assert.Equal(t, -100, entries[0].ReturnCode)
	assert.Contains(t, entries[0].ErrorMessage, "init failed")

	assert.Equal(t, "job-1", entries[1].JobID)
	assert.Equal(t, 1500*time.Millisecond, entries[1].Duration)
	assert.True(t, base.Equal(entries[1].FinishedAt))

	entries, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHistoryRepository_GetByJobID(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).History()

	_, err := repo.GetByJobID(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, repo.Record(ctx, domain.Result{JobID: "job-9", Task: domain.TaskPageCount, Status: domain.StatusOK, NumPages: 12}))
	entry, err := repo.GetByJobID(ctx, "job-9")
	require.NoError(t, err)
	assert.Equal(t, 12, entry.NumPages)
	assert.False(t, entry.FinishedAt.IsZero())
}

func TestOpenConfig(t *testing.T) {
	ctx := context.Background()

	s, err := OpenConfig(ctx, config.HistoryConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = OpenConfig(ctx, config.HistoryConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "h.db"), MaxOpenConns: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, s.Driver)
	require.NoError(t, s.Close())

	_, err = OpenConfig(ctx, config.HistoryConfig{Driver: "mysql"})
	assert.Error(t, err)

	_, err = Open(ctx, "mysql", "")
	assert.Error(t, err)
}
