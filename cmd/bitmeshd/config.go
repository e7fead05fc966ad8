package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bitmesh/bitmesh-node/pkg/mesh"
)

// fileConfig is the daemon's YAML configuration file. Durations are
// strings in time.ParseDuration form ("30s", "5m").
type fileConfig struct {
	Nickname  string `yaml:"nickname"`
	APIPort   int    `yaml:"api_port"`
	QueuePath string `yaml:"queue_path"`

	AnnounceInterval string `yaml:"announce_interval"`
	GCInterval       string `yaml:"gc_interval"`
	PeerEvictAfter   string `yaml:"peer_evict_after"`
}

// loadConfig reads a YAML config file; an empty path returns defaults.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{
		APIPort: 8080,
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// meshConfig maps the file settings onto the protocol defaults.
func (c *fileConfig) meshConfig() *mesh.Config {
	out := mesh.DefaultConfig()
	setDuration(&out.AnnounceInterval, c.AnnounceInterval)
	setDuration(&out.GCInterval, c.GCInterval)
	setDuration(&out.PeerEvictAfter, c.PeerEvictAfter)
	return out
}

func setDuration(dst *time.Duration, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		*dst = d
	}
}
