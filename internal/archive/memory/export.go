package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// CatalogExport is the root JSON structure written for one archived catalog
type CatalogExport struct {
	Generator   string             `json:"generator"`
	QueryKey    string             `json:"queryKey"`
	StartDate   string             `json:"startDate"`
	EndDate     string             `json:"endDate"`
	Bounds      quake.Bounds       `json:"bounds"`
	Contributor string             `json:"contributor,omitempty"`
	EventCount  int                `json:"eventCount"`
	TimeRange   quake.TimeRange    `json:"timeRange"`
	Events      []quake.Earthquake `json:"events"`
}

// exportJSON writes the catalog to a JSON file. With no output
// directory configured the archive stays memory only. Caller must
// hold mu.
func (b *Backend) exportJSON(rec *CatalogRecord) error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	export := buildExport(rec)

	// Build filename from the query dates plus an archive timestamp
	span := strings.ReplaceAll(rec.Catalog.StartDate+"_"+rec.Catalog.EndDate, "-", "")
	timestamp := time.Now().UTC().Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("catalog_%s_%s.json.gz", span, timestamp)
	} else {
		filename = fmt.Sprintf("catalog_%s_%s.json", span, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	b.lastExported = rec.Catalog
	return nil
}

func buildExport(rec *CatalogRecord) CatalogExport {
	cat := rec.Catalog
	return CatalogExport{
		Generator: "quakescene",
		QueryKey:  cat.QueryKey,
		StartDate: cat.StartDate,
		EndDate:   cat.EndDate,
		Bounds: quake.Bounds{
			MinLat: cat.MinLat,
			MaxLat: cat.MaxLat,
			MinLon: cat.MinLon,
			MaxLon: cat.MaxLon,
		},
		Contributor: cat.Contributor,
		EventCount:  cat.EventCount,
		TimeRange: quake.TimeRange{
			Start: cat.StartTime,
			End:   cat.EndTime,
		},
		Events: rec.Events,
	}
}

func writeJSON(path string, data CatalogExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data CatalogExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

// GetExportedFilePath returns the path of the most recent export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportedCatalog returns the catalog metadata of the most recent export.
func (b *Backend) GetExportedCatalog() model.Catalog {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExported
}
