package config

import (
	"fmt"
	"sync"
)

// Config is the root configuration for the PageRelay gateway.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Platform  PlatformConfig  `json:"platform"`
	Control   ControlConfig   `json:"control"`
	Store     StoreConfig     `json:"store"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Tailscale TailscaleConfig `json:"tailscale,omitempty"`
	mu        sync.RWMutex
}

// GatewayConfig configures the HTTP listener and its operational surface.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Token          string   `json:"-"` // from env PAGERELAY_GATEWAY_TOKEN only
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	// RateLimitPerSender caps webhook events dispatched per sender per
	// minute. 0 disables rate limiting.
	RateLimitPerSender int `json:"rate_limit_per_sender,omitempty"`
}

// PlatformConfig configures the Meta Graph API integration.
// VerifyToken and AccessToken are secrets and NEVER read from the config
// file — env only.
type PlatformConfig struct {
	VerifyToken string `json:"-"` // from env PAGERELAY_VERIFY_TOKEN only
	AccessToken string `json:"-"` // from env PAGERELAY_PAGE_ACCESS_TOKEN only
	GraphBaseURL string `json:"graph_base_url,omitempty"`
	APIVersion   string `json:"api_version,omitempty"`
	// SendRatePerSec paces outbound Graph send calls. 0 means unpaced.
	SendRatePerSec float64 `json:"send_rate_per_sec,omitempty"`
	SendBurst      int     `json:"send_burst,omitempty"`
}

// ControlConfig tunes the thread-control dispatch behaviour.
// These fields are hot-reloadable via the config watcher.
type ControlConfig struct {
	// HandoffPhrases are system-message substrings that suppress a reply
	// even when the bot owns the thread. Matched case-insensitively.
	HandoffPhrases []string `json:"handoff_phrases,omitempty"`
	ReplyPrefix    string   `json:"reply_prefix,omitempty"`
	// ThreadTTLHours evicts ownership entries untouched for this long.
	// 0 disables eviction.
	ThreadTTLHours int `json:"thread_ttl_hours,omitempty"`
	// SweepSchedule is a cron expression for the eviction sweeper.
	SweepSchedule string `json:"sweep_schedule,omitempty"`
}

// StoreConfig selects the thread-control store backend.
type StoreConfig struct {
	// Mode: "memory" (default), "sqlite", or "postgres".
	Mode        string `json:"mode,omitempty"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"` // from env PAGERELAY_POSTGRES_DSN only
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"` // host:port of the OTLP/HTTP collector
	ServiceName string `json:"service_name,omitempty"`
	Insecure    bool   `json:"insecure,omitempty"`
}

// TailscaleConfig configures the optional Tailscale tsnet listener.
// Requires building with -tags tsnet. Auth key from env only (never persisted).
type TailscaleConfig struct {
	Hostname  string `json:"hostname,omitempty"`
	StateDir  string `json:"state_dir,omitempty"`
	AuthKey   string `json:"-"` // from env PAGERELAY_TSNET_AUTH_KEY only
	Ephemeral bool   `json:"ephemeral,omitempty"`
	EnableTLS bool   `json:"enable_tls,omitempty"`
}

// Validate checks that required secrets are present. Missing required
// configuration is fatal at process start — the relay never runs without
// the webhook verify token and send credential.
func (c *Config) Validate() error {
	if c.Platform.VerifyToken == "" {
		return fmt.Errorf("missing verify token: set PAGERELAY_VERIFY_TOKEN")
	}
	if c.Platform.AccessToken == "" {
		return fmt.Errorf("missing page access token: set PAGERELAY_PAGE_ACCESS_TOKEN")
	}
	if c.Store.Mode == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store mode is postgres but PAGERELAY_POSTGRES_DSN is not set")
	}
	return nil
}

// HandoffPhrases returns the current suppression phrase list.
// Safe to call concurrently with ApplyReload.
func (c *Config) HandoffPhrases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.Control.HandoffPhrases))
	copy(out, c.Control.HandoffPhrases)
	return out
}

// ReplyPrefix returns the current outbound reply prefix.
func (c *Config) ReplyPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Control.ReplyPrefix
}

// ApplyReload swaps in hot-reloadable tunables from a freshly loaded
// config. Listener addresses, store mode, and secrets are deliberately
// not reloadable — those require a restart.
func (c *Config) ApplyReload(fresh *Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Control = fresh.Control
}
