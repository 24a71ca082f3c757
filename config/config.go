// Package config loads a pub-sub node's tuning knobs (spec.md §6).
//
// Config is stored at $XDG_CONFIG_HOME/pubsubd/config.yaml (defaults to
// ~/.config/pubsubd/config.yaml), following the teacher's single-file
// yaml.v3 load/save idiom.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ddatapubsub/internal/pubsub/ddata"
	"ddatapubsub/internal/pubsub/node"
)

// Config holds every knob spec.md §6 names, plus the listener addresses a
// running daemon needs and the replicator's write timeout (the
// "ddataConfig" the host runtime supplies alongside the pub-sub tree).
type Config struct {
	HashFamilySize         int               `yaml:"hash-family-size"`
	RestartDelay           time.Duration     `yaml:"restart-delay"`
	UpdateInterval         time.Duration     `yaml:"update-interval"`
	ForceUpdateProbability float64           `yaml:"force-update-probability"`
	Seed                   string            `yaml:"seed"`
	WriteConsistency       ddata.Consistency `yaml:"writeConsistency"`
	WriteTimeout           time.Duration     `yaml:"write-timeout"`

	ListenAddr    string `yaml:"listen-addr"`
	FrontDoorAddr string `yaml:"front-door-addr"`
}

// Default returns the configuration spec.md §6's defaults describe.
func Default() *Config {
	return &Config{
		HashFamilySize:         2,
		RestartDelay:           10 * time.Second,
		UpdateInterval:         3 * time.Second,
		ForceUpdateProbability: 0.01,
		Seed:                   "pubsubd-default-seed",
		WriteConsistency:       ddata.Local,
		WriteTimeout:           2 * time.Second,
		ListenAddr:             "127.0.0.1:7780",
		FrontDoorAddr:          "127.0.0.1:7781",
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/pubsubd/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "pubsubd", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pubsubd", "config.yaml")
}

// Load reads the config file at path, layering it over Default so an
// absent file, or one that only overrides a few keys, still yields a
// complete Config. An empty path resolves to Path().
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ToNodeConfig adapts Config to node.Config, the shape the pub-sub tree
// actually consumes.
func (c *Config) ToNodeConfig() node.Config {
	return node.Config{
		HashFamilySize:         c.HashFamilySize,
		RestartDelay:           c.RestartDelay,
		UpdateInterval:         c.UpdateInterval,
		ForceUpdateProbability: c.ForceUpdateProbability,
		Seed:                   c.Seed,
		WriteConsistency:       c.WriteConsistency,
		WriteTimeout:           c.WriteTimeout,
	}
}
