// Package config centralises runtime configuration for the grasshopper
// runtime: it loads YAML settings and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CredentialSettings holds one environment's API credentials. The empty
// environment suffix is the default credential set.
type CredentialSettings struct {
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

// TransportSettings tunes the host HTTP transport.
type TransportSettings struct {
	Timeout    time.Duration `yaml:"timeout"`
	LocalAddrs []string      `yaml:"localAddrs"`
	HostRPS    float64       `yaml:"hostRps"`
	HostBurst  int           `yaml:"hostBurst"`
	QueueSize  int           `yaml:"queueSize"`
}

// Settings is the configuration tree loaded from defaults, file, and
// environment overrides.
type Settings struct {
	// ScriptsDir holds the JavaScript strategy modules.
	ScriptsDir string `yaml:"scriptsDir"`
	// MetricsAddr is the Prometheus /metrics listen address; empty disables
	// the listener.
	MetricsAddr string `yaml:"metricsAddr"`
	// Transport tunes the host HTTP layer.
	Transport TransportSettings `yaml:"transport"`
	// Credentials maps environment suffixes to API credentials.
	Credentials map[string]CredentialSettings `yaml:"credentials"`
}

// Default returns the default configuration.
func Default() Settings {
	return Settings{
		ScriptsDir:  "scripts",
		MetricsAddr: "0.0.0.0:8000",
		Transport: TransportSettings{
			Timeout:    2 * time.Second,
			LocalAddrs: nil,
			HostRPS:    20,
			HostBurst:  10,
			QueueSize:  256,
		},
		Credentials: map[string]CredentialSettings{},
	}
}

// Load reads settings from the YAML file at path, starting from defaults.
// A missing file is not an error; the defaults are returned with
// loadedFromFile false.
func Load(path string) (Settings, bool, error) {
	cfg := Default()
	raw, err := os.ReadFile(path) // #nosec G304 -- path is the operator-provided config location.
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), false, nil
		}
		return cfg, false, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, false, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.Credentials == nil {
		cfg.Credentials = map[string]CredentialSettings{}
	}
	return applyEnv(cfg), true, nil
}

// applyEnv layers environment variable overrides on top of cfg.
func applyEnv(cfg Settings) Settings {
	if v := strings.TrimSpace(os.Getenv("GRASSHOPPER_SCRIPTS_DIR")); v != "" {
		cfg.ScriptsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("GRASSHOPPER_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("GRASSHOPPER_LOCAL_ADDRS")); v != "" {
		addrs := strings.Split(v, ",")
		cfg.Transport.LocalAddrs = cfg.Transport.LocalAddrs[:0]
		for _, addr := range addrs {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.Transport.LocalAddrs = append(cfg.Transport.LocalAddrs, addr)
			}
		}
	}
	if key := strings.TrimSpace(os.Getenv("GRASSHOPPER_API_KEY")); key != "" {
		creds := cfg.Credentials[""]
		creds.APIKey = key
		cfg.Credentials[""] = creds
	}
	if secret := strings.TrimSpace(os.Getenv("GRASSHOPPER_API_SECRET")); secret != "" {
		creds := cfg.Credentials[""]
		creds.APISecret = secret
		cfg.Credentials[""] = creds
	}
	return cfg
}
