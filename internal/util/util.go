// Package util provides common utility functions used across the overlay engine.
package util

import (
	"fmt"
	"strings"
	"time"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// FormatDay renders a millisecond timestamp as a UTC calendar day,
// the form catalog queries use.
func FormatDay(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

// FormatStamp renders a millisecond timestamp as RFC3339 UTC.
func FormatStamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// FormatEventText builds a display string for one event.
// Format: "M4.2 10km NW of Ridgecrest, CA" with empty place omitted.
func FormatEventText(magnitude float64, place string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "M%.1f", magnitude)
	if place != "" {
		b.WriteByte(' ')
		b.WriteString(place)
	}
	return b.String()
}
