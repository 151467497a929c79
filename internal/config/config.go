// Package config loads the engine's build/serve configuration: the study
// area's OSM/GTFS sources, the registered profiles, and the optional
// server-side stores (external GTFS index, query cache).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ProfileConfig names a profile to register; the concrete cost function
// lives in internal/profile and is selected by Name.
type ProfileConfig struct {
	Name string `mapstructure:"name"`
}

// GtfsConfig controls how GTFS data reaches the graph.
type GtfsConfig struct {
	// Dir points at a directory of GTFS CSVs (file-based path, §4.3).
	Dir string `mapstructure:"dir"`
	// ExternalIndexDSN, if set, loads the external spatial-indexed
	// extract from Postgres/PostGIS instead (§4.3 external-index path).
	ExternalIndexDSN string `mapstructure:"external_index_dsn"`
}

// ServerConfig controls the optional HTTP veneer (internal/apiserver).
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	RedisAddr  string `mapstructure:"redis_addr"`
	CacheTTLS  int    `mapstructure:"cache_ttl_seconds"`
	RequireKey bool   `mapstructure:"require_key"`
	APIKeys    []string `mapstructure:"api_keys"`
}

// Config is the engine's full configuration surface.
type Config struct {
	OSMPath  string          `mapstructure:"osm_path"`
	Profiles []ProfileConfig `mapstructure:"profiles"`
	Gtfs     GtfsConfig      `mapstructure:"gtfs"`
	Server   ServerConfig    `mapstructure:"server"`
	LogLevel string          `mapstructure:"log_level"`
}

// defaults mirrors the teacher's getEnv-with-fallback pattern for the
// handful of knobs not worth putting in a config file.
func defaults() *Config {
	return &Config{
		Profiles: []ProfileConfig{{Name: "car"}, {Name: "bicycle"}, {Name: "foot"}},
		Server: ServerConfig{
			Addr:      ":8080",
			RedisAddr: "localhost:6379",
			CacheTTLS: 600,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path (YAML/JSON/TOML, auto-detected by
// viper from the extension) layered over defaults, with ENGINE_-prefixed
// environment variables taking precedence over both.
func Load(path string) (*Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return cfg, nil
}
