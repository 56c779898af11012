// Package scene holds the visual-state types shared with the rendering
// host. Base color and glow are kept as separate fields until the final
// render color is composed, so age derivation and rendering never entangle.
package scene

// Position is a scene-space coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RGB is a color with components in [0,1] before glow scaling.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Scaled returns the color multiplied component-wise by f. The result may
// exceed 1.0; the host's bloom pipeline is responsible for clamping.
func (c RGB) Scaled(f float64) RGB {
	return RGB{R: c.R * f, G: c.G * f, B: c.B * f}
}

// Lerp returns the linear interpolation from c to other at t in [0,1].
func (c RGB) Lerp(other RGB, t float64) RGB {
	return RGB{
		R: c.R + (other.R-c.R)*t,
		G: c.G + (other.G-c.G)*t,
		B: c.B + (other.B-c.B)*t,
	}
}

// MarkerState is the mutable appearance of a point marker.
type MarkerState struct {
	Position Position `json:"position"`
	Scale    float64  `json:"scale"`
	Color    RGB      `json:"color"` // base color, pre-glow
	Glow     float64  `json:"glow"`
	Opacity  float64  `json:"opacity"`
}

// RenderColor composes the final marker color from base color and glow.
func (m MarkerState) RenderColor() RGB {
	return m.Color.Scaled(m.Glow)
}

// SegmentState is the mutable appearance of a depth-indicator segment
// from the surface point down to the hypocenter.
type SegmentState struct {
	Top     Position `json:"top"`
	Bottom  Position `json:"bottom"`
	Color   RGB      `json:"color"`
	Opacity float64  `json:"opacity"`
}

// EntrySnapshot is the wire form of one pooled visual entry.
type EntrySnapshot struct {
	EventID  string       `json:"eventId"`
	Marker   MarkerState  `json:"marker"`
	Segment  SegmentState `json:"segment"`
	Selected bool         `json:"selected,omitempty"`
}

// Frame is one reconciliation pass as sent to the host.
type Frame struct {
	Time    int64           `json:"time"` // cutoff the pass ran at, ms
	Entries []EntrySnapshot `json:"entries"`
	Created int             `json:"created"`
	Evicted int             `json:"evicted"`
}
