package archive

import (
	"fmt"
	"log/slog"

	dbarchive "github.com/ScottCrass/quakescene/internal/archive/db"
	"github.com/ScottCrass/quakescene/internal/archive/memory"
	"github.com/ScottCrass/quakescene/internal/config"
	"github.com/ScottCrass/quakescene/internal/database"
)

// NewBackend creates an archive backend based on configuration
func NewBackend(cfg config.ArchiveConfig, dbm *database.Manager, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "db":
		if dbm == nil || dbm.DB == nil {
			return nil, fmt.Errorf("db archive requires a connected database")
		}
		return dbarchive.New(dbarchive.Dependencies{
			DB:     dbm.DB,
			Logger: logger,
		}), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
