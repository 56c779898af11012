// Package stream publishes scene frames to a viewer over WebSocket and
// feeds viewer playback commands back to the engine.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ScottCrass/quakescene/pkg/quake"
	"github.com/ScottCrass/quakescene/pkg/scene"
	"github.com/ScottCrass/quakescene/pkg/streaming"
)

// Config holds scene stream publisher configuration.
type Config struct {
	URL   string
	Token string
}

// Publisher streams scene frames to a connected viewer. Frames are fire
// and forget; hello/goodbye wait for a viewer ack.
type Publisher struct {
	conn *connection
	cfg  Config
}

// New creates a new publisher.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// OnControl registers the handler invoked for viewer playback commands.
// Must be set before Connect; the handler runs on the read goroutine.
func (p *Publisher) OnControl(fn func(streaming.ControlMessage)) {
	p.conn.onControl = fn
}

// Connect dials the viewer.
func (p *Publisher) Connect() error {
	return p.conn.dial(p.cfg.URL, p.cfg.Token)
}

// Close disconnects from the viewer.
func (p *Publisher) Close() error {
	return p.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (p *Publisher) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	p.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a viewer ack.
func (p *Publisher) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return p.conn.sendAndWait(data, msgType, ackTimeout)
}

// Hello announces a loaded catalog and waits for the viewer ack. The
// message is cached for replay after a reconnect.
func (p *Publisher) Hello(h streaming.HelloPayload) error {
	data, err := marshalEnvelope(streaming.TypeHello, h)
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	p.conn.mu.Lock()
	p.conn.cachedHello = data
	p.conn.mu.Unlock()

	return p.conn.sendAndWait(data, streaming.TypeHello, ackTimeout)
}

// Goodbye tells the viewer the catalog is closing and waits for the ack.
func (p *Publisher) Goodbye() error {
	err := p.sendEnvelopeAndWait(streaming.TypeGoodbye, nil)

	// Clear cached state regardless of error.
	p.conn.mu.Lock()
	p.conn.cachedHello = nil
	p.conn.mu.Unlock()

	return err
}

// PublishFrame streams one reconciliation pass.
func (p *Publisher) PublishFrame(f scene.Frame) error {
	return p.sendEnvelope(streaming.TypeFrame, f)
}

// PublishTimeRange streams a playback window change.
func (p *Publisher) PublishTimeRange(rng quake.TimeRange, defined bool) error {
	return p.sendEnvelope(streaming.TypeTimeRange, streaming.TimeRangePayload{
		Range:   rng,
		Defined: defined,
	})
}

// PublishSelection streams the highlighted event ID, empty on clear.
func (p *Publisher) PublishSelection(eventID string) error {
	return p.sendEnvelope(streaming.TypeSelection, streaming.SelectionPayload{
		EventID: eventID,
	})
}
