// Package dbarchive persists archived catalogs through GORM. Saves are
// queued and flushed on an interval so the caller never waits on the
// database.
package dbarchive

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/internal/queue"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

const (
	defaultFlushInterval = 3 * time.Second
	insertBatchSize      = 1000
)

// Dependencies holds what the backend needs to run. A nil DB leaves
// saves queued, which unit tests rely on.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

type savedCatalog struct {
	catalog model.Catalog
	events  []quake.Earthquake
}

// Backend is the database-backed catalog archive
type Backend struct {
	deps  Dependencies
	queue *queue.Queue[savedCatalog]

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu                  sync.RWMutex
	lastDBWriteDuration time.Duration
}

// New creates a new database backend
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{deps: deps}
}

// Init creates the save queue and starts the flush loop
func (b *Backend) Init() error {
	b.queue = queue.New[savedCatalog]()
	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.flushLoop()
	return nil
}

// Close stops the flush loop after a final drain
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	return nil
}

// SaveCatalog queues the catalog for persistence. The write happens on
// the next flush.
func (b *Backend) SaveCatalog(cat *model.Catalog, events []quake.Earthquake) error {
	if cat == nil {
		return fmt.Errorf("nil catalog")
	}
	b.queue.Push(savedCatalog{
		catalog: *cat,
		events:  append([]quake.Earthquake(nil), events...),
	})
	return nil
}

// Catalogs lists persisted catalogs, newest first. limit <= 0 returns
// everything.
func (b *Backend) Catalogs(limit int) ([]model.Catalog, error) {
	if b.deps.DB == nil {
		return nil, fmt.Errorf("no database connection")
	}

	var cats []model.Catalog
	q := b.deps.DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	return cats, nil
}

func (b *Backend) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flush()
		case <-b.stopChan:
			b.flush()
			return
		}
	}
}

// flush drains the queue into the database. Without a connection the
// queue is left intact so nothing is lost before Connect.
func (b *Backend) flush() {
	if b.deps.DB == nil {
		return
	}

	pending := b.queue.Drain()
	if len(pending) == 0 {
		return
	}

	start := time.Now()
	for i := range pending {
		if err := b.writeCatalog(&pending[i]); err != nil {
			b.deps.Logger.Error("failed to persist catalog",
				"queryKey", pending[i].catalog.QueryKey, "error", err)
		}
	}

	b.mu.Lock()
	b.lastDBWriteDuration = time.Since(start)
	b.mu.Unlock()
}

// writeCatalog upserts the catalog row and replaces its event set.
func (b *Backend) writeCatalog(sc *savedCatalog) error {
	cat := sc.catalog
	if _, err := cat.GetOrInsert(b.deps.DB); err != nil {
		return fmt.Errorf("failed to upsert catalog: %w", err)
	}

	err := b.deps.DB.Where("catalog_id = ?", cat.ID).Delete(&model.CatalogEvent{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear previous events: %w", err)
	}

	if len(sc.events) == 0 {
		return nil
	}

	rows := make([]model.CatalogEvent, 0, len(sc.events))
	for _, ev := range sc.events {
		rows = append(rows, model.EventFromQuake(cat.ID, ev))
	}
	if err := b.deps.DB.CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

// GetLastDBWriteDuration returns the duration of the last flush that
// reached the database.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastDBWriteDuration
}

// PendingSaves returns the number of catalogs waiting for the next
// flush.
func (b *Backend) PendingSaves() int {
	if b.queue == nil {
		return 0
	}
	return b.queue.Len()
}
