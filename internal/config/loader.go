package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "FLIGHTBOARD_"
	envConfigFile = envPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. YAML file at path, or at $FLIGHTBOARD_CONFIG when path is empty
//  3. env (prefix FLIGHTBOARD_); FLIGHTBOARD_ENDPOINTS__FLIGHT_EVENT sets
//     endpoints.flight-event
func Load(_ context.Context, path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(envConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	cfg.Endpoints = map[string]string{}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FLIGHTBOARD_REFRESH_INTERVAL_MS -> refresh_interval_ms and
// FLIGHTBOARD_ENDPOINTS__FLIGHT_EVENT -> endpoints.flight-event.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if s == "config" {
		return ""
	}
	if group, name, ok := strings.Cut(s, "__"); ok {
		return group + "." + strings.ReplaceAll(name, "_", "-")
	}
	return s
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "" && c.UI != UIConsole:
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.UI != UIWeb && c.UI != UIConsole && c.UI != UIBoth:
		return fmt.Errorf("%w: unknown ui %q", ErrInvalidConfig, c.UI)
	case c.RefreshIntervalMS <= 0:
		return fmt.Errorf("%w: refresh_interval_ms must be positive", ErrInvalidConfig)
	case c.BannerTTLMS <= 0:
		return fmt.Errorf("%w: banner_ttl_ms must be positive", ErrInvalidConfig)
	case c.RequestTimeoutMS < 0:
		return fmt.Errorf("%w: request_timeout_ms must not be negative", ErrInvalidConfig)
	case strings.TrimSpace(c.TimeFormat) == "":
		return fmt.Errorf("%w: time_format must not be empty", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base_url %q is not an absolute URL", ErrInvalidConfig, c.BaseURL)
	}
	return nil
}
