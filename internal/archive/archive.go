package archive

import (
	"time"

	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// Backend is the interface all catalog archive implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Catalog archiving
	SaveCatalog(cat *model.Catalog, events []quake.Earthquake) error

	// Catalog listing, newest first. limit <= 0 returns everything.
	Catalogs(limit int) ([]model.Catalog, error)
}

// Exportable is an optional interface for archive backends that write
// catalog files usable outside the process.
type Exportable interface {
	GetExportedFilePath() string
	GetExportedCatalog() model.Catalog
}

// Buffered is an optional interface for backends that queue saves and
// flush them asynchronously.
type Buffered interface {
	PendingSaves() int
	GetLastDBWriteDuration() time.Duration
}
