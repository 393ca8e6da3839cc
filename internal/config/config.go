// Package config loads the relay's process-wide environment-variable
// configuration (spec.md §6) via envconfig, the teacher's direct
// dependency for this concern.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from environment variables at startup. Per-route
// secrets (HMAC, API keys, target auth) are resolved later, at send
// time, from the env var names the rule document references — they are
// not part of this process-wide struct.
type Config struct {
	RulesPath           string `envconfig:"ALERTBRIDGE_RULES_PATH" default:"/etc/alertbridge/rules.yaml"`
	ConfigWatchInterval int    `envconfig:"CONFIG_WATCH_INTERVAL" default:"30"`
	ConfigMapName       string `envconfig:"CONFIGMAP_NAME"`
	BasicAuthUser       string `envconfig:"BASIC_AUTH_USER"`
	BasicAuthPassword   string `envconfig:"BASIC_AUTH_PASSWORD"`
	ListenAddr          string `envconfig:"LISTEN_ADDR" default:":8080"`
	Namespace           string `envconfig:"POD_NAMESPACE" default:"default"`
}

// Load reads and validates the process environment into a Config.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// WatchInterval converts ConfigWatchInterval into a time.Duration, the
// unit ruleset.Store.Watch expects. Zero or negative disables
// auto-reload (spec.md §4.5).
func (c Config) WatchInterval() time.Duration {
	if c.ConfigWatchInterval <= 0 {
		return 0
	}
	return time.Duration(c.ConfigWatchInterval) * time.Second
}
