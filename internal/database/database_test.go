package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"quakescene_20230701_120000.db",
		"quakescene_20230702_120000.db",
		"notes.txt",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// A directory with the suffix must not be listed.
	if err := os.Mkdir(filepath.Join(dir, "nested.db"), 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paths, err := GetBackupDBPaths(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 db files, got %d: %v", len(paths), paths)
	}
	// Timestamped names sort chronologically, so the newest dump is last.
	if filepath.Base(paths[1]) != "quakescene_20230702_120000.db" {
		t.Errorf("expected newest dump last, got %s", paths[1])
	}
}

func TestGetBackupDBPaths_MissingDir(t *testing.T) {
	if _, err := GetBackupDBPaths(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for a missing directory")
	}
}
