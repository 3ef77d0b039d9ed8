// Package config defines the flightboard configuration and its loading.
//
// Values are layered: defaults from New, then an optional YAML file, then
// FLIGHTBOARD_* environment variables.
package config

import (
	"time"
)

// UI modes.
const (
	UIWeb     = "web"
	UIConsole = "console"
	UIBoth    = "both"
)

// LocaleTimeFormat mimics the en-US locale date/time string.
const LocaleTimeFormat = "1/2/2006, 3:04:05 PM"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// UI selects the renderers: web, console or both.
	UI string `koanf:"ui"`

	// BaseURL is the gateway in front of the upstream services.
	BaseURL string `koanf:"base_url"`

	// Endpoints overrides individual upstream URLs by logical name.
	Endpoints map[string]string `koanf:"endpoints"`

	// RefreshIntervalMS is the poll cycle period.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// BannerTTLMS is how long an error banner stays visible.
	BannerTTLMS int `koanf:"banner_ttl_ms"`

	// RequestTimeoutMS bounds a single upstream request; 0 disables the bound.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// TimeFormat renders the last-updated label and banner timestamps.
	TimeFormat string `koanf:"time_format"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9090",
		UI:                UIWeb,
		BaseURL:           "http://localhost",
		Endpoints:         map[string]string{},
		RefreshIntervalMS: 4000,
		BannerTTLMS:       7000,
		RequestTimeoutMS:  0,
		TimeFormat:        LocaleTimeFormat,
	}
}

// RefreshInterval returns the poll period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// BannerTTL returns the banner lifetime.
func (c *Config) BannerTTL() time.Duration {
	return time.Duration(c.BannerTTLMS) * time.Millisecond
}

// RequestTimeout returns the per-request bound, zero when unbounded.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// WebEnabled reports whether the HTTP dashboard should be served.
func (c *Config) WebEnabled() bool { return c.UI == UIWeb || c.UI == UIBoth }

// ConsoleEnabled reports whether the terminal dashboard should run.
func (c *Config) ConsoleEnabled() bool { return c.UI == UIConsole || c.UI == UIBoth }
