package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// DefaultHandoffPhrase is the platform system message that announces a
// human handoff inside a normal message event. It must never be echoed.
const DefaultHandoffPhrase = "assigned the conversation to you"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:               "0.0.0.0",
			Port:               3000,
			RateLimitPerSender: 0,
		},
		Platform: PlatformConfig{
			GraphBaseURL:   "https://graph.facebook.com",
			APIVersion:     "v19.0",
			SendRatePerSec: 10,
			SendBurst:      5,
		},
		Control: ControlConfig{
			HandoffPhrases: []string{DefaultHandoffPhrase},
			ReplyPrefix:    "Echo: ",
			ThreadTTLHours: 24 * 30,
			SweepSchedule:  "0 * * * *",
		},
		Store: StoreConfig{
			Mode:       "memory",
			SQLitePath: "~/.pagerelay/threads.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "pagerelay",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Secrets are env-only.
	envStr("PAGERELAY_VERIFY_TOKEN", &c.Platform.VerifyToken)
	envStr("PAGERELAY_PAGE_ACCESS_TOKEN", &c.Platform.AccessToken)
	envStr("PAGERELAY_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("PAGERELAY_POSTGRES_DSN", &c.Store.PostgresDSN)

	envStr("PAGERELAY_GRAPH_BASE_URL", &c.Platform.GraphBaseURL)
	envStr("PAGERELAY_GRAPH_API_VERSION", &c.Platform.APIVersion)

	envStr("PAGERELAY_HOST", &c.Gateway.Host)
	if v := os.Getenv("PAGERELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("PAGERELAY_STORE_MODE", &c.Store.Mode)
	envStr("PAGERELAY_SQLITE_PATH", &c.Store.SQLitePath)

	// Telemetry
	envStr("PAGERELAY_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("PAGERELAY_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("PAGERELAY_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PAGERELAY_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	// Tailscale (tsnet)
	envStr("PAGERELAY_TSNET_HOSTNAME", &c.Tailscale.Hostname)
	envStr("PAGERELAY_TSNET_AUTH_KEY", &c.Tailscale.AuthKey)
	envStr("PAGERELAY_TSNET_DIR", &c.Tailscale.StateDir)

	// Extra handoff phrases from env (comma-separated), appended to the
	// configured list.
	if v := os.Getenv("PAGERELAY_HANDOFF_PHRASES"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Control.HandoffPhrases = append(c.Control.HandoffPhrases, p)
			}
		}
	}

	// Store auto-enable: a DSN in the environment implies postgres mode
	// unless the file pinned one explicitly.
	if c.Store.PostgresDSN != "" && c.Store.Mode == "memory" {
		c.Store.Mode = "postgres"
	}
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
