// Package testutil provides shared test helpers for setting up databases,
// note stores and Markdown directories.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/lore/internal/index"
	"github.com/starford/lore/internal/notestore"
	"github.com/starford/lore/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lore-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// StepClock is a deterministic clock that advances by Step on every call.
type StepClock struct {
	mu   sync.Mutex
	cur  time.Time
	Step time.Duration
}

// NewStepClock returns a clock starting at start and advancing one second per call.
func NewStepClock(start time.Time) *StepClock {
	return &StepClock{cur: start, Step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cur
	c.cur = c.cur.Add(c.Step)
	return now
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a note store over a fresh database with a step clock, so
// every write gets a strictly later timestamp.
func TestStore(t *testing.T, opts ...notestore.Option) *notestore.Service {
	t.Helper()
	clock := NewStepClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	base := []notestore.Option{
		notestore.WithClock(clock.Now),
		notestore.WithLogger(DiscardLogger()),
	}
	return notestore.NewService(TestDB(t), append(base, opts...)...)
}

// TestVault creates a temporary Markdown directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}
