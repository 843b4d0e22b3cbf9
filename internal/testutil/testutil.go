// Package testutil provides shared helpers for docflow tests.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/docflow/docflow/internal/data"
	"github.com/docflow/docflow/internal/migrate"
)

// FixedNow is the reference instant used by tests that need deterministic
// timestamps.
var FixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

// SetupTestDB opens an in-memory SQLite database with migrations applied.
// The handle is closed automatically when the test finishes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	require.NoError(t, migrate.Run(context.Background(), db))
	return db
}

// NewTestRepos wires job and event repositories over a fresh test database
// with a fixed time provider.
func NewTestRepos(t *testing.T) (*data.JobRepo, *data.EventRepo, *data.FixedTimeProvider) {
	t.Helper()

	db := SetupTestDB(t)
	tp := data.NewFixedTimeProvider(FixedNow)
	cfg := data.RepoConfig{Logger: DiscardLogger(), TimeProvider: tp}
	return data.NewJobRepo(db, cfg), data.NewEventRepo(db, cfg), tp
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
