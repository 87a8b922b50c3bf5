// Package cordconfig loads cord.yaml, the run-level configuration file:
// poll interval, default runtime/model, and any custom runtime adapters
// declared by the operator.
package cordconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved configuration for a run: cord.yaml merged
// over Defaults(). Environment variables are not consulted.
type Config struct {
	PollInterval   time.Duration             `yaml:"poll_interval"`
	DefaultRuntime string                    `yaml:"default_runtime"`
	DefaultModel   string                    `yaml:"default_model"`
	Budget         float64                   `yaml:"budget"`
	Adapters       map[string]AdapterConfig  `yaml:"adapters"`
}

// AdapterConfig describes a custom runtime adapter entry: the binary to
// invoke and any fixed arguments to prepend, for CLIs cord doesn't know
// about out of the box.
type AdapterConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Defaults returns the configuration used when no cord.yaml is present.
func Defaults() Config {
	return Config{
		PollInterval:   500 * time.Millisecond,
		DefaultRuntime: "claude",
		Budget:         2.0,
	}
}

// rawConfig mirrors Config but with a plain string for poll_interval,
// since YAML has no native duration type; Load converts it with
// time.ParseDuration.
type rawConfig struct {
	PollInterval   string                    `yaml:"poll_interval"`
	DefaultRuntime string                    `yaml:"default_runtime"`
	DefaultModel   string                    `yaml:"default_model"`
	Budget         float64                   `yaml:"budget"`
	Adapters       map[string]map[string]any `yaml:"adapters"`
}

// Load reads path, merges it over Defaults(), and returns the result. A
// missing file is not an error: Defaults() is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cordconfig: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("cordconfig: parse %s: %w", path, err)
	}

	if raw.DefaultRuntime != "" {
		cfg.DefaultRuntime = raw.DefaultRuntime
	}
	if raw.DefaultModel != "" {
		cfg.DefaultModel = raw.DefaultModel
	}
	if raw.Budget != 0 {
		cfg.Budget = raw.Budget
	}
	if raw.PollInterval != "" {
		d, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return cfg, fmt.Errorf("cordconfig: poll_interval %q: %w", raw.PollInterval, err)
		}
		cfg.PollInterval = d
	}
	if len(raw.Adapters) > 0 {
		cfg.Adapters = make(map[string]AdapterConfig, len(raw.Adapters))
		for name, fields := range raw.Adapters {
			var ac AdapterConfig
			if err := mapstructure.Decode(fields, &ac); err != nil {
				return cfg, fmt.Errorf("cordconfig: decode adapter %q: %w", name, err)
			}
			cfg.Adapters[name] = ac
		}
	}

	return cfg, nil
}
