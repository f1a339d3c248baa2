// Package config loads and validates the cache-node and proxy processes'
// configuration: environment overrides (via envconfig, optionally loaded
// from a .env file with godotenv) layered under explicit CLI flags, then
// validated with ozzo-validation before being handed to the rest of the
// program.
package config

import (
	"log"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// NodeConfig is the cache-node process's configuration (C3 + C1's tunables).
type NodeConfig struct {
	Host          string        `envconfig:"CACHENODE_HOST" default:"127.0.0.1"`
	Port          int           `envconfig:"CACHENODE_PORT" default:"8001"`
	Capacity      int           `envconfig:"CACHENODE_CAPACITY" default:"1000"`
	SweepInterval time.Duration `envconfig:"CACHENODE_SWEEP_INTERVAL" default:"1s"`
}

// LoadNodeConfig reads environment overrides (after an optional .env load)
// into a NodeConfig seeded with defaults, without yet applying CLI flags.
func LoadNodeConfig() (NodeConfig, error) {
	loadDotenvBestEffort()

	var cfg NodeConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// Validate checks the node configuration is in range.
func (c NodeConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.SweepInterval, validation.Required),
	)
}

// ProxyConfig is the proxy process's configuration (C4/C6/C7/C8's tunables).
type ProxyConfig struct {
	Host              string        `envconfig:"PROXY_HOST" default:"127.0.0.1"`
	Port              int           `envconfig:"PROXY_PORT" default:"8000"`
	DBPath            string        `envconfig:"PROXY_DB_PATH" default:"./backing_store.json"`
	ReplicationFactor int           `envconfig:"PROXY_REPLICATION_FACTOR" default:"2"`
	VirtualNodes      int           `envconfig:"PROXY_VIRTUAL_NODES" default:"50"`
	HealthCheckPeriod time.Duration `envconfig:"PROXY_HEALTH_CHECK_PERIOD" default:"3s"`
	HTTPTimeout       time.Duration `envconfig:"PROXY_HTTP_TIMEOUT" default:"2s"`
}

// LoadProxyConfig reads environment overrides (after an optional .env load)
// into a ProxyConfig seeded with defaults, without yet applying CLI flags.
func LoadProxyConfig() (ProxyConfig, error) {
	loadDotenvBestEffort()

	var cfg ProxyConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ProxyConfig{}, err
	}
	return cfg, nil
}

// Validate checks the proxy configuration is in range.
func (c ProxyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.ReplicationFactor, validation.Required, validation.Min(1)),
		validation.Field(&c.VirtualNodes, validation.Required, validation.Min(10)),
		validation.Field(&c.HealthCheckPeriod, validation.Required),
		validation.Field(&c.HTTPTimeout, validation.Required),
	)
}

// loadDotenvBestEffort loads a .env file in the working directory if present.
// A missing file is not an error; any other load failure is only logged,
// matching the rarible-integration example's tolerant startup behavior.
func loadDotenvBestEffort() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}
}
