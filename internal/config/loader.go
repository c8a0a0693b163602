package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a single YAML document into a FileConfig. It performs no
// hot-reload, environment-variable overlay, or secret-store resolution —
// those are out of scope per spec.md §1.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for name, integration := range cfg.Integrations {
		integration.Name = name
		integration.Adapter = normalizeExchangeName(integration.Adapter)
		cfg.Integrations[name] = integration
	}
	return cfg, nil
}
