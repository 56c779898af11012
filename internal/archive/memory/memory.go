// Package memory keeps archived catalogs in process memory and writes
// each one out as a JSON file for later replay.
package memory

import (
	"fmt"
	"sync"

	"github.com/ScottCrass/quakescene/internal/config"
	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// CatalogRecord groups an archived catalog with its event set
type CatalogRecord struct {
	Catalog model.Catalog
	Events  []quake.Earthquake
}

// Backend stores catalogs in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	catalogs map[string]*CatalogRecord // keyed by QueryKey
	order    []string                  // query keys in insertion order

	idCounter uint
	mu        sync.RWMutex

	lastExportPath string
	lastExported   model.Catalog
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		catalogs: make(map[string]*CatalogRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveCatalog archives the catalog and exports it to disk. Saving a
// catalog with a query key already on record replaces the earlier
// record and keeps its assigned ID.
func (b *Backend) SaveCatalog(cat *model.Catalog, events []quake.Earthquake) error {
	if cat == nil {
		return fmt.Errorf("nil catalog")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.catalogs[cat.QueryKey]; ok {
		cat.ID = existing.Catalog.ID
	} else {
		b.idCounter++
		cat.ID = b.idCounter
		b.order = append(b.order, cat.QueryKey)
	}

	rec := &CatalogRecord{
		Catalog: *cat,
		Events:  append([]quake.Earthquake(nil), events...),
	}
	b.catalogs[cat.QueryKey] = rec

	return b.exportJSON(rec)
}

// Catalogs lists archived catalogs, newest first. limit <= 0 returns
// everything.
func (b *Backend) Catalogs(limit int) ([]model.Catalog, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Catalog, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		out = append(out, b.catalogs[b.order[i]].Catalog)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Events returns the archived event set for a query key.
func (b *Backend) Events(queryKey string) ([]quake.Earthquake, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.catalogs[queryKey]
	if !ok {
		return nil, false
	}
	return rec.Events, true
}

// Len returns the number of archived catalogs.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.catalogs)
}
