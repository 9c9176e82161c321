package wpsync

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/legionews/legio/wpsource"
)

// Config controls one sync run.
type Config struct {
	Source wpsource.Config `yaml:"source"`

	// FullReplace wipes the target content tables before importing. When
	// false the run upserts over whatever is already there.
	FullReplace bool `env:"WP_SYNC_FULL_REPLACE" envDefault:"true" yaml:"fullReplace"`

	// SyncOnStart makes the server run a sync before accepting traffic.
	SyncOnStart bool `env:"WP_SYNC_ON_START" yaml:"syncOnStart"`
}

// ConfigFromEnv builds a Config from the WP_* environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("wpsync: parse env: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile overlays YAML from path onto cfg. Fields absent from the
// file keep their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("wpsync: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("wpsync: parse config %s: %w", path, err)
	}
	return nil
}
