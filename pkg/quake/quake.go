// Package quake holds the plain earthquake domain types shared with
// external consumers. No GIS or database dependencies belong here.
package quake

import (
	"encoding/json"
	"time"
)

// Earthquake is one event record. Immutable once loaded.
type Earthquake struct {
	ID         string          `json:"id"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
	DepthKm    float64         `json:"depthKm"`
	Magnitude  float64         `json:"magnitude"`
	Time       int64           `json:"time"` // milliseconds since epoch
	Place      string          `json:"place,omitempty"`
	URL        string          `json:"url,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"` // source feature properties
}

// OccurredAt returns the event time as a time.Time in UTC.
func (e Earthquake) OccurredAt() time.Time {
	return time.UnixMilli(e.Time).UTC()
}

// TimeRange is the span between the earliest and latest event time of a
// loaded set, in milliseconds since epoch.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Duration returns the span length.
func (r TimeRange) Duration() time.Duration {
	return time.Duration(r.End-r.Start) * time.Millisecond
}

// Clamp returns t limited to the range.
func (r TimeRange) Clamp(t int64) int64 {
	if t < r.Start {
		return r.Start
	}
	if t > r.End {
		return r.End
	}
	return t
}

// Bounds is a geographic bounding box in decimal degrees.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}
