package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoadQuery_JSON(t *testing.T) {
	p := newTestParser()

	q, err := p.ParseLoadQuery([]string{
		`{"startDate":"2023-07-01","endDate":"2023-07-31","bounds":{"minLat":34,"maxLat":38,"minLon":-122,"maxLon":-114}}`,
	})

	require.NoError(t, err)
	assert.Equal(t, "2023-07-01", q.StartDate)
	assert.Equal(t, "2023-07-31", q.EndDate)
	assert.Equal(t, 34.0, q.Bounds.MinLat)
	assert.Equal(t, -114.0, q.Bounds.MaxLon)
}

func TestParseLoadQuery_Positional(t *testing.T) {
	p := newTestParser()

	q, err := p.ParseLoadQuery([]string{
		`"2023-07-01"`, `"2023-07-31"`, "34", "38", "-122", "-114",
	})

	require.NoError(t, err)
	assert.Equal(t, "2023-07-01", q.StartDate)
	assert.Equal(t, 38.0, q.Bounds.MaxLat)
	assert.Equal(t, -122.0, q.Bounds.MinLon)
}

func TestParseLoadQuery_BadArgCount(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseLoadQuery([]string{"2023-07-01", "2023-07-31"})
	assert.Error(t, err)
}

func TestParseLoadQuery_InvalidDate(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseLoadQuery([]string{
		"July 1st", "2023-07-31", "34", "38", "-122", "-114",
	})
	assert.Error(t, err)
}

func TestParseLoadQuery_EmptyBox(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseLoadQuery([]string{
		"2023-07-01", "2023-07-31", "38", "34", "-122", "-114",
	})
	assert.Error(t, err)
}

func TestParseLoadQuery_MalformedJSON(t *testing.T) {
	p := newTestParser()

	_, err := p.ParseLoadQuery([]string{`{"startDate":`})
	assert.Error(t, err)
}
