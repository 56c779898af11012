package parser

import (
	"encoding/json"
	"fmt"

	"github.com/ScottCrass/quakescene/internal/feed"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// ParseLoadQuery parses the arguments of a load command into a catalog
// query. Accepts either one JSON argument carrying the full query, or
// six positional arguments: startDate, endDate, minLat, maxLat, minLon,
// maxLon.
func (p *Parser) ParseLoadQuery(data []string) (feed.Query, error) {
	data = clean(data)
	var q feed.Query

	switch len(data) {
	case 1:
		if err := json.Unmarshal([]byte(data[0]), &q); err != nil {
			return q, fmt.Errorf("error unmarshalling load query: %w", err)
		}
	case 6:
		q.StartDate = data[0]
		q.EndDate = data[1]
		vals := make([]float64, 4)
		for i, s := range data[2:] {
			f, err := parseFloat(s)
			if err != nil {
				return q, fmt.Errorf("invalid bound: %w", err)
			}
			vals[i] = f
		}
		q.Bounds = quake.Bounds{
			MinLat: vals[0], MaxLat: vals[1],
			MinLon: vals[2], MaxLon: vals[3],
		}
	default:
		return q, fmt.Errorf("load expects 1 or 6 args, got %d", len(data))
	}

	if err := q.Validate(); err != nil {
		return q, err
	}

	p.logger.Debug("Parsed load query",
		"startDate", q.StartDate,
		"endDate", q.EndDate)
	return q, nil
}
