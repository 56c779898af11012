package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeek(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		input   []string
		want    int64
		wantErr bool
	}{
		{"integer", []string{"1690000000000"}, 1690000000000, false},
		{"float serialized", []string{"1690000000000.0"}, 1690000000000, false},
		{"quoted", []string{`"1690000000000"`}, 1690000000000, false},
		{"non-numeric", []string{"later"}, 0, true},
		{"no args", []string{}, 0, true},
		{"too many args", []string{"1", "2"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseSeek(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseSpeed(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		input   []string
		want    float64
		wantErr bool
	}{
		{"integer", []string{"2"}, 2, false},
		{"fractional", []string{"0.5"}, 0.5, false},
		{"zero rejects", []string{"0"}, 0, true},
		{"negative rejects", []string{"-1"}, 0, true},
		{"non-numeric", []string{"fast"}, 0, true},
		{"no args", []string{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ParseSpeed(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseSelect(t *testing.T) {
	p := newTestParser()

	id, err := p.ParseSelect([]string{`"ci40000001"`})
	require.NoError(t, err)
	assert.Equal(t, "ci40000001", id)

	_, err = p.ParseSelect([]string{`""`})
	assert.Error(t, err)

	_, err = p.ParseSelect([]string{})
	assert.Error(t, err)
}
