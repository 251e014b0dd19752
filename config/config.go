// Package config loads coretable's configuration via viper: a search path
// over likely config locations, built-in defaults, and environment variable
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Mode selects the engine's startup directory behavior.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeTesting    Mode = "testing"
)

// Config is every option coretable recognizes.
type Config struct {
	Mode              Mode   `mapstructure:"mode"`
	Port              int    `mapstructure:"port"`
	DataDirectory     string `mapstructure:"datadirectory"`
	MemTableSizeLimit int64  `mapstructure:"memtable_size_limit"`
	DiskTableLimit    int    `mapstructure:"disktable_limit"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode:              ModeProduction,
		Port:              7070,
		DataDirectory:     filepath.Join(homeDir, ".coretable", "data"),
		MemTableSizeLimit: 32 * 1024 * 1024,
		DiskTableLimit:    10,
	}
}

// Load reads coretable.{yaml,toml,json} from the current directory,
// ~/.coretable, or /etc/coretable, falling back to defaults when
// no file is found. Environment variables named CORETABLE_<OPTION> (e.g.
// CORETABLE_PORT, CORETABLE_DATADIRECTORY) override whatever the file or
// the defaults provide.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("coretable")
	v.AddConfigPath(".")

	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".coretable"))
	v.AddConfigPath("/etc/coretable")

	setDefaults(v)

	v.SetEnvPrefix("CORETABLE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Mode == ModeTesting {
		dir, err := os.MkdirTemp("", "coretable-test-*")
		if err != nil {
			return nil, fmt.Errorf("creating scratch directory: %w", err)
		}
		cfg.DataDirectory = dir
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("mode", string(d.Mode))
	v.SetDefault("port", d.Port)
	v.SetDefault("datadirectory", d.DataDirectory)
	v.SetDefault("memtable_size_limit", d.MemTableSizeLimit)
	v.SetDefault("disktable_limit", d.DiskTableLimit)
}

// Validate rejects configurations that would leave the engine unable to
// start.
func (c *Config) Validate() error {
	if c.Mode != ModeProduction && c.Mode != ModeTesting {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeProduction, ModeTesting, c.Mode)
	}
	if c.DataDirectory == "" {
		return fmt.Errorf("datadirectory is required")
	}
	if c.MemTableSizeLimit <= 0 {
		return fmt.Errorf("memtable_size_limit must be positive")
	}
	if c.DiskTableLimit < 1 {
		return fmt.Errorf("disktable_limit must be >= 1")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
