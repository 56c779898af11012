package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

func lineProtocol(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func TestNewFeedFetchPoint(t *testing.T) {
	p := NewFeedFetchPoint("2023-11-14|2023-11-15|34|38|-122|-114", 120, 250*time.Millisecond, false)

	line := lineProtocol(p)
	if !strings.HasPrefix(line, "feed_fetch,") {
		t.Errorf("expected feed_fetch measurement, got %q", line)
	}
	if !strings.Contains(line, "cacheHit=false") {
		t.Errorf("expected cacheHit tag, got %q", line)
	}
	if !strings.Contains(line, "eventCount=120i") {
		t.Errorf("expected eventCount field, got %q", line)
	}
	if !strings.Contains(line, "fetchMs=250i") {
		t.Errorf("expected fetchMs field, got %q", line)
	}
}

func TestNewReconcilePoint(t *testing.T) {
	p := NewReconcilePoint("key", 3, 40, 1, 42, 750*time.Microsecond)

	line := lineProtocol(p)
	if !strings.HasPrefix(line, "reconcile_pass,") {
		t.Errorf("expected reconcile_pass measurement, got %q", line)
	}
	for _, want := range []string{"created=3i", "mutated=40i", "evicted=1i", "activeObjects=42i", "durationUs=750i"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in line protocol, got %q", want, line)
		}
	}
}

func TestNewPlaybackStatePoint(t *testing.T) {
	p := NewPlaybackStatePoint("key", "playing", 2.5, 1_700_000_000_000)

	line := lineProtocol(p)
	if !strings.HasPrefix(line, "playback_state,") {
		t.Errorf("expected playback_state measurement, got %q", line)
	}
	if !strings.Contains(line, "state=playing") {
		t.Errorf("expected state tag, got %q", line)
	}
	if !strings.Contains(line, "speed=2.5") {
		t.Errorf("expected speed field, got %q", line)
	}
	if !strings.Contains(line, "currentTime=1700000000000i") {
		t.Errorf("expected currentTime field, got %q", line)
	}
}

func TestDefaultBucketNames(t *testing.T) {
	want := []string{"overlay_performance", "feed_activity", "playback_sessions"}
	if len(DefaultBucketNames) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(DefaultBucketNames))
	}
	for i, name := range want {
		if DefaultBucketNames[i] != name {
			t.Errorf("bucket %d: expected %q, got %q", i, name, DefaultBucketNames[i])
		}
	}
}

func TestBackupWriter_WriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.gz")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(zerolog.Nop(), path)
	m.BackupWriter = gzip.NewWriter(file)

	p := NewPlaybackStatePoint("key", "stopped", 1, 1000)
	if err := m.WritePoint(context.Background(), BucketPlaybackSessions, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	file.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("expected a flushed gzip stream, got %v", err)
	}
	defer zr.Close()
	buf := make([]byte, 4096)
	n, _ := zr.Read(buf)
	if !strings.Contains(string(buf[:n]), "playback_state") {
		t.Errorf("expected the point in the backup file, got %q", string(buf[:n]))
	}
}

func TestBackupWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.gz")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewManager(zerolog.Nop(), path)
	m.BackupWriter = gzip.NewWriter(file)

	// Engine and monitor goroutines write points concurrently while the
	// backup writer is active.
	const writers = 8
	const points = 200

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < points; j++ {
				p := NewReconcilePoint("key", n, j, 0, 42, time.Microsecond)
				if err := m.WritePoint(context.Background(), BucketOverlayPerformance, p); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	file.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("expected a flushed gzip stream, got %v", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("expected an intact gzip stream, got %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != writers*points {
		t.Errorf("expected %d points in the backup file, got %d", writers*points, got)
	}
}

func TestClose_NoClientIsSafe(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
