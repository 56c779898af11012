package parser

import (
	"errors"
	"fmt"
)

// ParseSeek parses a seek target in milliseconds since epoch.
func (p *Parser) ParseSeek(data []string) (int64, error) {
	data = clean(data)
	if len(data) != 1 {
		return 0, fmt.Errorf("seek expects 1 arg, got %d", len(data))
	}
	ms, err := parseIntFromFloat(data[0])
	if err != nil {
		return 0, fmt.Errorf("invalid seek target: %w", err)
	}
	return ms, nil
}

// ParseSpeed parses a playback rate in simulated days per real second.
func (p *Parser) ParseSpeed(data []string) (float64, error) {
	data = clean(data)
	if len(data) != 1 {
		return 0, fmt.Errorf("speed expects 1 arg, got %d", len(data))
	}
	speed, err := parseFloat(data[0])
	if err != nil {
		return 0, err
	}
	if speed <= 0 {
		return 0, fmt.Errorf("speed must be positive, got %f", speed)
	}
	return speed, nil
}

// ParseSelect parses an event identifier for selection.
func (p *Parser) ParseSelect(data []string) (string, error) {
	data = clean(data)
	if len(data) != 1 {
		return "", fmt.Errorf("select expects 1 arg, got %d", len(data))
	}
	if data[0] == "" {
		return "", errors.New("select expects a non-empty event id")
	}
	return data[0], nil
}
