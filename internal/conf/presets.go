package conf

import "github.com/skymonitor/meteor-go/internal/errors"

// Coordinates is a geographic point used for twilight calculations.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// presetLocations maps preset names to observing-site coordinates.
var presetLocations = map[string]Coordinates{
	"Sapporo":   {43.0642, 141.3469},
	"Sendai":    {38.2682, 140.8694},
	"Tokyo":     {35.6762, 139.6503},
	"Nagoya":    {35.1815, 136.9066},
	"Osaka":     {34.6937, 135.5023},
	"Hiroshima": {34.3853, 132.4553},
	"Fukuoka":   {33.5904, 130.4017},
	"Naha":      {26.2124, 127.6809},
}

// PresetCoordinates returns the coordinates for a named preset location.
func PresetCoordinates(name string) (Coordinates, error) {
	if c, ok := presetLocations[name]; ok {
		return c, nil
	}
	return Coordinates{}, errors.Newf("unknown location preset: %q", name).
		Component("conf").
		Category(errors.CategoryValidation).
		Build()
}

// PresetNames returns the available preset location names.
func PresetNames() []string {
	names := make([]string, 0, len(presetLocations))
	for name := range presetLocations {
		names = append(names, name)
	}
	return names
}
