package model

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Catalog{},
	&CatalogEvent{},
}

// Catalog is one archived catalog load: the query that produced it plus
// the derived bounds of the result set.
type Catalog struct {
	gorm.Model
	QueryKey    string  `json:"queryKey" gorm:"size:255;index:idx_catalogs_query_key"`
	StartDate   string  `json:"startDate" gorm:"size:10"`
	EndDate     string  `json:"endDate" gorm:"size:10"`
	MinLat      float64 `json:"minLat"`
	MaxLat      float64 `json:"maxLat"`
	MinLon      float64 `json:"minLon"`
	MaxLon      float64 `json:"maxLon"`
	Contributor string  `json:"contributor" gorm:"size:64"`
	EventCount  int     `json:"eventCount"`
	StartTime   int64   `json:"startTime"`
	EndTime     int64   `json:"endTime"`
	Events      []CatalogEvent
}

func (*Catalog) TableName() string {
	return "catalogs"
}

// GetOrInsert looks the catalog up by query key, inserting it when new.
// On a hit the receiver is overwritten with the stored record.
func (c *Catalog) GetOrInsert(db *gorm.DB) (created bool, err error) {
	var existing Catalog
	err = db.Where("query_key = ?", c.QueryKey).First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			err = db.Create(c).Error
			return true, err
		}
		return false, err
	}
	*c = existing
	return false, nil
}

// CatalogEvent is one archived earthquake. The epicenter is stored as
// an EPSG:3857 point carrying the depth in kilometers as Z, alongside
// the plain geographic columns for cheap reads. RawEvent keeps the
// source feature's property map.
type CatalogEvent struct {
	gorm.Model
	CatalogID uint    `json:"catalogId" gorm:"index:idx_catalog_events_catalog_id"`
	Catalog   Catalog `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:CatalogID;"`

	EventID   string         `json:"eventId" gorm:"size:64;index:idx_catalog_events_event_id"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	DepthKm   float64        `json:"depthKm"`
	Magnitude float64        `json:"magnitude"`
	Time      int64          `json:"time" gorm:"index:idx_catalog_events_time"`
	Place     string         `json:"place" gorm:"size:255"`
	URL       string         `json:"url" gorm:"size:255"`
	Epicenter geom.Point     `json:"epicenter"`
	RawEvent  datatypes.JSON `json:"rawEvent"`
}

func (*CatalogEvent) TableName() string {
	return "catalog_events"
}
