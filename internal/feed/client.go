// Package feed queries an fdsnws event service for earthquake catalogs
// in GeoJSON form.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/ScottCrass/quakescene/pkg/quake"
)

const dateLayout = "2006-01-02"

// Query selects one catalog slice: a geographic bounding box plus
// calendar start and end dates.
type Query struct {
	Bounds    quake.Bounds `json:"bounds"`
	StartDate string       `json:"startDate"`
	EndDate   string       `json:"endDate"`
}

// Validate checks the dates parse as YYYY-MM-DD and the box is non-empty.
func (q Query) Validate() error {
	if _, err := time.Parse(dateLayout, q.StartDate); err != nil {
		return fmt.Errorf("invalid start date %q: %w", q.StartDate, err)
	}
	if _, err := time.Parse(dateLayout, q.EndDate); err != nil {
		return fmt.Errorf("invalid end date %q: %w", q.EndDate, err)
	}
	b := q.Bounds
	if b.MaxLat <= b.MinLat || b.MaxLon <= b.MinLon {
		return errors.New("invalid bounds: empty box")
	}
	return nil
}

// Key is a stable cache key for the query.
func (q Query) Key() string {
	b := q.Bounds
	return strings.Join([]string{
		q.StartDate, q.EndDate,
		formatFloat(b.MinLat), formatFloat(b.MaxLat),
		formatFloat(b.MinLon), formatFloat(b.MaxLon),
	}, "|")
}

// Client handles communication with the event service.
type Client struct {
	baseURL     string
	contributor string
	httpClient  *http.Client
	log         *slog.Logger
}

// New creates a feed client. contributor narrows results to one data
// contributor network and may be empty.
func New(baseURL, contributor string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		contributor: contributor,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         logger,
	}
}

// Healthcheck checks if the event service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/fdsnws/event/1/version", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Fetch retrieves and parses the catalog for one query, ordered by time
// ascending. An empty result set is not an error.
func (c *Client) Fetch(ctx context.Context, q Query) ([]quake.Earthquake, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	// fdsnws services answer an empty result set with 204 by default.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog body: %w", err)
	}
	return c.parseCollection(body)
}

func (c *Client) queryURL(q Query) string {
	v := url.Values{}
	v.Set("format", "geojson")
	v.Set("starttime", q.StartDate)
	v.Set("endtime", q.EndDate)
	v.Set("minlatitude", formatFloat(q.Bounds.MinLat))
	v.Set("maxlatitude", formatFloat(q.Bounds.MaxLat))
	v.Set("minlongitude", formatFloat(q.Bounds.MinLon))
	v.Set("maxlongitude", formatFloat(q.Bounds.MaxLon))
	v.Set("orderby", "time-asc")
	if c.contributor != "" {
		v.Set("contributor", c.contributor)
	}
	return c.baseURL + "/fdsnws/event/1/query?" + v.Encode()
}

// parseCollection decodes a GeoJSON feature collection. A malformed
// collection rejects the whole load; individually malformed features
// are skipped with a warning so one bad record cannot sink a catalog.
func (c *Client) parseCollection(data []byte) ([]quake.Earthquake, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}

	events := make([]quake.Earthquake, 0, len(fc.Features))
	for _, f := range fc.Features {
		ev, err := eventFromFeature(f)
		if err != nil {
			c.log.Warn("skipping malformed feature", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// eventFromFeature maps one feature to an event. The geometry carries
// [longitude, latitude, depthKm]; mag and time are required properties,
// place and url optional. The whole property map is retained on the
// event so the archive keeps fields the mapping drops.
func eventFromFeature(f *geojson.Feature) (quake.Earthquake, error) {
	if f == nil || f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
		return quake.Earthquake{}, errors.New("feature is not a point")
	}

	id, err := featureID(f)
	if err != nil {
		return quake.Earthquake{}, err
	}

	ev := quake.Earthquake{
		ID:        id,
		Longitude: f.Geometry.Point[0],
		Latitude:  f.Geometry.Point[1],
	}
	if len(f.Geometry.Point) > 2 {
		ev.DepthKm = f.Geometry.Point[2]
	}
	// Shallow events are occasionally reported slightly above datum.
	if ev.DepthKm < 0 {
		ev.DepthKm = 0
	}

	mag, err := f.PropertyFloat64("mag")
	if err != nil {
		return quake.Earthquake{}, fmt.Errorf("feature %s has no magnitude: %w", id, err)
	}
	ev.Magnitude = mag

	t, err := f.PropertyFloat64("time")
	if err != nil {
		return quake.Earthquake{}, fmt.Errorf("feature %s has no time: %w", id, err)
	}
	ev.Time = int64(t)

	if place, err := f.PropertyString("place"); err == nil {
		ev.Place = place
	}
	if detail, err := f.PropertyString("url"); err == nil {
		ev.URL = detail
	}

	if len(f.Properties) > 0 {
		ev.Properties, _ = json.Marshal(f.Properties)
	}
	return ev, nil
}

func featureID(f *geojson.Feature) (string, error) {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	}
	return "", errors.New("feature has no usable id")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
