package track

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FleetConfig maps fleet names to track files inside the data directory.
type FleetConfig struct {
	Fleets map[string]string `yaml:"fleets"`
}

// DefaultFleets is used when no fleet file is configured.
func DefaultFleets() FleetConfig {
	return FleetConfig{Fleets: map[string]string{
		"passenger": "passenger_resample10T_ver03.geojson",
		"cargo":     "cargo_resample10T_ver04.geojson",
	}}
}

// LoadFleets reads a YAML fleet mapping from path.
func LoadFleets(path string) (FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FleetConfig{}, fmt.Errorf("reading fleet file: %w", err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FleetConfig{}, fmt.Errorf("decoding fleet file: %w", err)
	}
	if len(cfg.Fleets) == 0 {
		return FleetConfig{}, fmt.Errorf("fleet file %s defines no fleets", path)
	}
	for name, file := range cfg.Fleets {
		if file == "" {
			return FleetConfig{}, fmt.Errorf("fleet %q has no file", name)
		}
	}

	return cfg, nil
}

// Names returns the fleet names in sorted order.
func (c FleetConfig) Names() []string {
	names := make([]string, 0, len(c.Fleets))
	for name := range c.Fleets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
