// Package config loads the device inventory and collection settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultNetconfPort     = 830
	DefaultCollectInterval = 5 * time.Minute
	DefaultProbeInterval   = 30 * time.Second
	DefaultMaxAlternates   = 10
)

// Device is one router in the inventory.
type Device struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Vendor selects the collection driver: cisco, arista, juniper,
	// local, or auto to detect from the NETCONF hello.
	Vendor string `yaml:"vendor,omitempty"`
}

// Config holds the daemon configuration.
type Config struct {
	Devices []Device `yaml:"devices"`

	CollectInterval time.Duration `yaml:"collect_interval,omitempty"`
	ProbeInterval   time.Duration `yaml:"probe_interval,omitempty"`
	MaxAlternates   int           `yaml:"max_alternates,omitempty"`

	// DBPath is the sqlite file the RIB is persisted to. Empty disables
	// persistence; the RIB is then rebuilt from scratch on restart.
	DBPath string `yaml:"db_path,omitempty"`
}

// Load reads and parses a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	ApplyDefaults(&cfg)

	seen := make(map[string]struct{})
	for _, d := range cfg.Devices {
		if d.Name == "" {
			return nil, fmt.Errorf("device with host %q has no name", d.Host)
		}
		if _, ok := seen[d.Name]; ok {
			return nil, fmt.Errorf("duplicate device name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}

	return &cfg, nil
}

// ApplyDefaults fills in unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.CollectInterval == 0 {
		cfg.CollectInterval = DefaultCollectInterval
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.MaxAlternates == 0 {
		cfg.MaxAlternates = DefaultMaxAlternates
	}
	for i := range cfg.Devices {
		if cfg.Devices[i].Port == 0 {
			cfg.Devices[i].Port = DefaultNetconfPort
		}
		if cfg.Devices[i].Vendor == "" {
			cfg.Devices[i].Vendor = "auto"
		}
	}
}
