package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Graylog2/go-gelf/gelf"
)

// syslog severities used in GELF messages
const (
	gelfLevelError   = 3
	gelfLevelWarning = 4
	gelfLevelInfo    = 6
	gelfLevelDebug   = 7
)

// GelfHandler is a slog.Handler that ships records to Graylog over UDP.
type GelfHandler struct {
	// the writer is not safe for concurrent use; clones share it and its lock
	writer *gelf.Writer
	wmu    *sync.Mutex

	level slog.Level
	host  string

	// attrs accumulated via WithAttrs, keys already GELF-prefixed
	attrs  map[string]any
	groups []string
}

// NewGelfHandler dials the Graylog address and returns a handler that
// emits records at or above the given level.
func NewGelfHandler(addr string, level slog.Level) (*GelfHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("error creating GELF writer: %w", err)
	}
	w.Facility = "quakescene"

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return &GelfHandler{
		writer: w,
		wmu:    &sync.Mutex{},
		level:  level,
		host:   host,
		attrs:  make(map[string]any),
	}, nil
}

// Writer exposes the underlying GELF writer.
func (h *GelfHandler) Writer() *gelf.Writer {
	return h.writer
}

// Enabled reports whether the record level passes the handler threshold.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle converts the record into a GELF message and writes it out.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		extra[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(extra, a)
		return true
	})

	h.wmu.Lock()
	defer h.wmu.Unlock()
	return h.writer.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(r.Level),
		Extra:    extra,
	})
}

// WithAttrs returns a handler carrying the additional attributes.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		nh.addAttr(nh.attrs, a)
	}
	return nh
}

// WithGroup returns a handler that prefixes subsequent attribute keys.
func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *GelfHandler) clone() *GelfHandler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	groups := make([]string, len(h.groups))
	copy(groups, h.groups)
	return &GelfHandler{
		writer: h.writer,
		wmu:    h.wmu,
		level:  h.level,
		host:   h.host,
		attrs:  attrs,
		groups: groups,
	}
}

// addAttr stores an attribute under its GELF additional-field key.
// Additional field names carry a leading underscore per the GELF spec.
func (h *GelfHandler) addAttr(extra map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	extra["_"+key] = a.Value.Any()
}

// syslogLevel maps slog levels onto syslog severities.
func syslogLevel(level slog.Level) int32 {
	switch {
	case level >= slog.LevelError:
		return gelfLevelError
	case level >= slog.LevelWarn:
		return gelfLevelWarning
	case level >= slog.LevelInfo:
		return gelfLevelInfo
	default:
		return gelfLevelDebug
	}
}
