// Package config holds runtime settings for the souzou client.
package config

import "time"

// Config holds runtime settings for the client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the sync authority.
//   - AccessToken: bearer token attached to every request; may be empty.
//   - StorageBackend: "sqlite" (durable) or "memory" (ephemeral).
//   - DatabasePath: DSN/path of the local database (sqlite backend only).
//   - OnlineCheckInterval: how often the watcher probes server reachability.
//   - SyncEveryProbes: successful probes between periodic syncs while online.
//   - RequestTimeout: upper bound on a single pull/push/ping request.
type Config struct {
	ServerEndpointAddr  string
	AccessToken         string
	StorageBackend      string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	SyncEveryProbes     int
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.StorageBackend = "sqlite"
	c.DatabasePath = "souzou.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncEveryProbes = 10
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
