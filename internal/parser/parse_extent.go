package parser

import (
	"encoding/json"
	"fmt"

	"github.com/ScottCrass/quakescene/internal/geo"
)

// ParseExtent parses terrain extent arguments. Accepts one JSON
// argument with the full extent, four positional bounds (minLat,
// maxLat, minLon, maxLon) with the scene size derived from the
// mercator footprint, or six positional values with an explicit
// width and height.
func (p *Parser) ParseExtent(data []string) (geo.Extent, error) {
	data = clean(data)

	switch len(data) {
	case 1:
		var ext geo.Extent
		if err := json.Unmarshal([]byte(data[0]), &ext); err != nil {
			return ext, fmt.Errorf("error unmarshalling extent: %w", err)
		}
		if !ext.Ready() {
			return ext, geo.ErrExtentNotReady
		}
		return ext, nil
	case 4, 6:
		vals := make([]float64, len(data))
		for i, s := range data {
			f, err := parseFloat(s)
			if err != nil {
				return geo.Extent{}, fmt.Errorf("invalid extent value: %w", err)
			}
			vals[i] = f
		}
		if len(vals) == 4 {
			return geo.NewExtentFromBounds(vals[0], vals[1], vals[2], vals[3])
		}
		ext := geo.Extent{
			MinLat: vals[0], MaxLat: vals[1],
			MinLon: vals[2], MaxLon: vals[3],
			Width: vals[4], Height: vals[5],
		}
		if !ext.Ready() {
			return ext, geo.ErrExtentNotReady
		}
		return ext, nil
	default:
		return geo.Extent{}, fmt.Errorf("extent expects 1, 4 or 6 args, got %d", len(data))
	}
}
