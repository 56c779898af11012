package streaming

import (
	"encoding/json"

	"github.com/ScottCrass/quakescene/pkg/quake"
)

// Message type constants matching the scene stream protocol.
const (
	TypeHello     = "hello"
	TypeGoodbye   = "goodbye"
	TypeFrame     = "frame"
	TypeTimeRange = "time_range"
	TypeSelection = "selection"
	TypeControl   = "control"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the viewer's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload announces a loaded catalog to the viewer.
type HelloPayload struct {
	QueryKey   string          `json:"queryKey"`
	Bounds     quake.Bounds    `json:"bounds"`
	TimeRange  quake.TimeRange `json:"timeRange"`
	EventCount int             `json:"eventCount"`
}

// TimeRangePayload carries a changed playback window. Defined is false
// when the window was cleared.
type TimeRangePayload struct {
	Range   quake.TimeRange `json:"range"`
	Defined bool            `json:"defined"`
}

// SelectionPayload carries the highlighted event ID, empty on clear.
type SelectionPayload struct {
	EventID string `json:"eventId"`
}

// ControlMessage is a playback command sent by the viewer.
type ControlMessage struct {
	Type    string   `json:"type"` // always "control"
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}
