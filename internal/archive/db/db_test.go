package dbarchive

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// newTestBackend creates a Backend with no DB (queue-only mode for unit testing).
func newTestBackend() *Backend {
	return New(Dependencies{
		DB:     nil,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func testCatalog() (*model.Catalog, []quake.Earthquake) {
	events := []quake.Earthquake{
		{ID: "us7000abcd", Latitude: 36.1, Longitude: -117.8, DepthKm: 8.3, Magnitude: 4.2, Time: 1_700_000_000_000},
	}
	cat := &model.Catalog{
		QueryKey:   "2023-11-14|2023-11-15|34|38|-122|-114",
		StartDate:  "2023-11-14",
		EndDate:    "2023-11-15",
		EventCount: len(events),
	}
	return cat, events
}

func TestNew(t *testing.T) {
	b := newTestBackend()
	require.NotNil(t, b)
	assert.Equal(t, defaultFlushInterval, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.Logger)
}

func TestNew_CustomFlushInterval(t *testing.T) {
	b := New(Dependencies{FlushInterval: time.Minute})
	assert.Equal(t, time.Minute, b.deps.FlushInterval)
}

func TestInitClose(t *testing.T) {
	b := newTestBackend()

	err := b.Init()
	require.NoError(t, err)
	require.NotNil(t, b.queue)
	require.NotNil(t, b.stopChan)

	err = b.Close()
	require.NoError(t, err)

	// Close is idempotent
	err = b.Close()
	require.NoError(t, err)
}

func TestSaveCatalog_QueuesToInternalQueue(t *testing.T) {
	b := newTestBackend()
	b.Init()
	defer b.Close()

	cat, events := testCatalog()

	err := b.SaveCatalog(cat, events)
	require.NoError(t, err)
	assert.Equal(t, 1, b.queue.Len())
}

func TestSaveCatalog_NilCatalog(t *testing.T) {
	b := newTestBackend()
	b.Init()
	defer b.Close()

	err := b.SaveCatalog(nil, nil)
	require.Error(t, err)
}

func TestSaveCatalog_CopiesEvents(t *testing.T) {
	b := newTestBackend()
	b.Init()
	defer b.Close()

	cat, events := testCatalog()
	require.NoError(t, b.SaveCatalog(cat, events))

	// Mutating the caller's slice must not change the queued copy
	events[0].Magnitude = 9.9

	pending := b.queue.Drain()
	require.Len(t, pending, 1)
	assert.Equal(t, 4.2, pending[0].events[0].Magnitude)
}

func TestFlush_NoDB_KeepsQueue(t *testing.T) {
	b := newTestBackend()
	b.Init()
	defer b.Close()

	cat, events := testCatalog()
	require.NoError(t, b.SaveCatalog(cat, events))

	b.flush()

	// No connection: nothing may be dropped
	assert.Equal(t, 1, b.queue.Len())
}

func TestCatalogs_NoDB_Error(t *testing.T) {
	b := newTestBackend()
	b.Init()
	defer b.Close()

	_, err := b.Catalogs(10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database connection")
}

func TestPendingSaves(t *testing.T) {
	b := newTestBackend()
	assert.Equal(t, 0, b.PendingSaves())

	b.Init()
	defer b.Close()

	cat, events := testCatalog()
	require.NoError(t, b.SaveCatalog(cat, events))
	assert.Equal(t, 1, b.PendingSaves())
}

func TestGetLastDBWriteDuration(t *testing.T) {
	b := newTestBackend()
	b.Init()
	defer b.Close()

	assert.Equal(t, time.Duration(0), b.GetLastDBWriteDuration())

	b.mu.Lock()
	b.lastDBWriteDuration = 100 * time.Millisecond
	b.mu.Unlock()
	assert.Equal(t, 100*time.Millisecond, b.GetLastDBWriteDuration())
}
