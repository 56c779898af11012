// Package monitor publishes a once-per-second snapshot of the engine to
// a status file the host can poll and to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ScottCrass/quakescene/internal/archive"
	"github.com/ScottCrass/quakescene/internal/engine"
	"github.com/ScottCrass/quakescene/internal/influx"
)

// StatusProvider reports the engine's current state.
type StatusProvider interface {
	Status() engine.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Engine    StatusProvider
	Archive   archive.Backend
	Influx    *influx.Manager
	Logger    *slog.Logger
	StatusDir string
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	interval  time.Duration
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		interval: time.Second,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Report is one status snapshot: the engine summary plus the archive
// backlog when the backend buffers its writes.
type Report struct {
	engine.Status
	ArchiveQueue int     `json:"archiveQueue"`
	LastWriteMs  float32 `json:"lastWriteMs"`
}

// StatusReport returns the current snapshot and its rendered form.
func (s *Service) StatusReport() (string, Report) {
	rep := Report{Status: s.deps.Engine.Status()}
	if buf, ok := s.deps.Archive.(archive.Buffered); ok {
		rep.ArchiveQueue = buf.PendingSaves()
		rep.LastWriteMs = float32(buf.GetLastDBWriteDuration().Milliseconds())
	}
	rendered, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		rendered = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	return string(rendered), rep
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("starting status monitor goroutine")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.json")
		if err != nil {
			logger.Error("error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-stop:
				return
			default:
				time.Sleep(s.interval)

				rendered, st := s.StatusReport()
				if st.QueryKey == "" {
					continue
				}

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.WriteString(rendered + "\n")
				}

				if s.deps.Influx != nil {
					point := influx.NewPlaybackStatePoint(st.QueryKey, st.State, st.Speed, st.Cursor)
					if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketPlaybackSessions, point); err != nil {
						logger.Debug("status point not written", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning && s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}
}
