package model

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/ScottCrass/quakescene/internal/feed"
	"github.com/ScottCrass/quakescene/internal/geo"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// NewCatalog builds the archive row for one load.
func NewCatalog(q feed.Query, contributor string, events []quake.Earthquake) Catalog {
	c := Catalog{
		QueryKey:    q.Key(),
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
		MinLat:      q.Bounds.MinLat,
		MaxLat:      q.Bounds.MaxLat,
		MinLon:      q.Bounds.MinLon,
		MaxLon:      q.Bounds.MaxLon,
		Contributor: contributor,
		EventCount:  len(events),
	}
	for i, ev := range events {
		if i == 0 || ev.Time < c.StartTime {
			c.StartTime = ev.Time
		}
		if ev.Time > c.EndTime {
			c.EndTime = ev.Time
		}
	}
	return c
}

// EventFromQuake converts one loaded event to its archive row. RawEvent
// carries the source properties as parsed from the feed and stays null
// for events that never had any.
func EventFromQuake(catalogID uint, ev quake.Earthquake) CatalogEvent {
	return CatalogEvent{
		CatalogID: catalogID,
		EventID:   ev.ID,
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
		DepthKm:   ev.DepthKm,
		Magnitude: ev.Magnitude,
		Time:      ev.Time,
		Place:     ev.Place,
		URL:       ev.URL,
		Epicenter: geo.Epicenter3857(ev.Latitude, ev.Longitude, ev.DepthKm),
		RawEvent:  datatypes.JSON(ev.Properties),
	}
}

// EventToQuake converts an archive row back to the in-memory event.
func EventToQuake(e CatalogEvent) quake.Earthquake {
	return quake.Earthquake{
		ID:         e.EventID,
		Latitude:   e.Latitude,
		Longitude:  e.Longitude,
		DepthKm:    e.DepthKm,
		Magnitude:  e.Magnitude,
		Time:       e.Time,
		Place:      e.Place,
		URL:        e.URL,
		Properties: json.RawMessage(e.RawEvent),
	}
}
