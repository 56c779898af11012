package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ slog.Handler = (*GelfHandler)(nil)

func gelfListener(t *testing.T) (net.PacketConn, string) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc, pc.LocalAddr().String()
}

// readGelfMessage receives one datagram, gunzips it, and decodes the
// GELF JSON payload.
func readGelfMessage(t *testing.T, pc net.PacketConn) map[string]any {
	t.Helper()
	buf := make([]byte, 64*1024)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(buf[:n]))
	require.NoError(t, err)
	defer zr.Close()

	var msg map[string]any
	require.NoError(t, json.NewDecoder(zr).Decode(&msg))
	return msg
}

func TestGelfHandler_ShipsRecord(t *testing.T) {
	pc, addr := gelfListener(t)

	h, err := NewGelfHandler(addr, slog.LevelDebug)
	require.NoError(t, err)

	logger := slog.New(h)
	logger.Info("catalog loaded", "queryKey", "2023-11-14|2023-11-15|34|38|-122|-114", "eventCount", 12)

	msg := readGelfMessage(t, pc)
	assert.Equal(t, "1.1", msg["version"])
	assert.Equal(t, "catalog loaded", msg["short_message"])
	assert.Equal(t, float64(gelfLevelInfo), msg["level"])
	assert.Equal(t, "2023-11-14|2023-11-15|34|38|-122|-114", msg["_queryKey"])
	assert.Equal(t, float64(12), msg["_eventCount"])
}

func TestGelfHandler_WithAttrsAndGroups(t *testing.T) {
	pc, addr := gelfListener(t)

	h, err := NewGelfHandler(addr, slog.LevelDebug)
	require.NoError(t, err)

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "engine")}).WithGroup("playback"))
	logger.Warn("state change", "state", "playing")

	msg := readGelfMessage(t, pc)
	assert.Equal(t, float64(gelfLevelWarning), msg["level"])
	assert.Equal(t, "engine", msg["_component"], "attrs added before the group keep their key")
	assert.Equal(t, "playing", msg["_playback.state"], "record attrs carry the group prefix")
}

func TestGelfHandler_LevelThreshold(t *testing.T) {
	_, addr := gelfListener(t)

	h, err := NewGelfHandler(addr, slog.LevelWarn)
	require.NoError(t, err)

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestSyslogLevel(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  int32
	}{
		{slog.LevelDebug, gelfLevelDebug},
		{slog.LevelInfo, gelfLevelInfo},
		{slog.LevelWarn, gelfLevelWarning},
		{slog.LevelError, gelfLevelError},
		{slog.LevelError + 4, gelfLevelError},
		{slog.LevelDebug - 4, gelfLevelDebug},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, syslogLevel(tt.level), "level %v", tt.level)
	}
}
