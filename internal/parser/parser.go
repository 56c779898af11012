// Package parser converts raw control-command arguments into typed
// requests for the overlay engine. Arguments arrive as strings from the
// transport layer, so everything here is pure []string to struct
// conversion with no side effects.
package parser

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ScottCrass/quakescene/internal/util"
)

// Parser provides pure []string -> request conversion. It has zero
// external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// clean strips transport quoting from every argument in place.
func clean(data []string) []string {
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}
	return data
}

// parseIntFromFloat parses a string that may be an integer
// ("1690000000000") or float ("1690000000000.0") into int64. Loosely
// typed transports serialize all numbers as floats.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return f, nil
}
