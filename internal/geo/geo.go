package geo

import (
	"errors"
	"math"

	"github.com/ScottCrass/quakescene/pkg/scene"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// MetersPerUnit is the vertical and horizontal scale of the terrain
// surface: one scene unit spans 25 meters, matching the elevation
// encoding of the DEM the events are projected onto.
const MetersPerUnit = 25.0

// ErrExtentNotReady is returned when coordinate mapping is attempted
// before the terrain extent has been populated. Mapping against a
// zero-area extent would silently mis-project, which is far harder to
// diagnose downstream than an immediate failure.
var ErrExtentNotReady = errors.New("terrain extent not ready")

// Extent is the geographic bounding box of the terrain surface and its
// scene-space size. Supplied by the terrain collaborator and treated as
// read-only by the mapper.
type Extent struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
	Width  float64 `json:"width"`  // scene units
	Height float64 `json:"height"` // scene units
}

// Ready reports whether the extent can be mapped against: a non-empty
// box and a non-zero scene size.
func (e Extent) Ready() bool {
	return e.MaxLat > e.MinLat && e.MaxLon > e.MinLon &&
		e.Width > 0 && e.Height > 0
}

// NewExtentFromBounds builds an extent whose scene size is derived from
// the EPSG:3857 footprint of the box at MetersPerUnit. This matches the
// scale a mercator-projected DEM tile of the same box renders at.
func NewExtentFromBounds(minLat, maxLat, minLon, maxLon float64) (Extent, error) {
	if maxLat <= minLat || maxLon <= minLon {
		return Extent{}, ErrExtentNotReady
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x0, y0, _ := f(minLon, minLat, 0)
	x1, y1, _ := f(maxLon, maxLat, 0)
	return Extent{
		MinLat: minLat,
		MaxLat: maxLat,
		MinLon: minLon,
		MaxLon: maxLon,
		Width:  math.Abs(x1-x0) / MetersPerUnit,
		Height: math.Abs(y1-y0) / MetersPerUnit,
	}, nil
}

// Project maps a geographic position and depth into scene space.
// Longitude and latitude interpolate linearly into the extent's box,
// scaled to the scene size and re-centered so the box center maps to the
// origin. X is sign-inverted because the terrain surface is mirrored in
// scene space. Depth becomes a negative vertical offset at MetersPerUnit.
// Pure: identical input always yields identical output. Callers must
// check Ready first; MapPosition wraps both.
func (e Extent) Project(lat, lon, depthKm float64) scene.Position {
	fx := (lon - e.MinLon) / (e.MaxLon - e.MinLon)
	fy := (lat - e.MinLat) / (e.MaxLat - e.MinLat)
	return scene.Position{
		X: -(fx*e.Width - e.Width/2),
		Y: fy*e.Height - e.Height/2,
		Z: -(depthKm * 1000) / MetersPerUnit,
	}
}

// MapPosition projects through the extent after validating it.
func MapPosition(lat, lon, depthKm float64, ext Extent) (scene.Position, error) {
	if !ext.Ready() {
		return scene.Position{}, ErrExtentNotReady
	}
	return ext.Project(lat, lon, depthKm), nil
}

// Epicenter3857 builds an EPSG:3857 point for an epicenter, carrying the
// depth in kilometers as Z. Archive rows store geometry in this CRS so
// SQLite fallbacks can round-trip WKB without spatial awareness.
func Epicenter3857(lat, lon, depthKm float64) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(lon, lat, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    depthKm,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}
