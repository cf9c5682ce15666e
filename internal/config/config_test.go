package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoad_MissingFileUsesDefaults verifies that a nonexistent config
// path yields defaults plus env overrides rather than an error.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if cfg.Gateway.Port != 3000 {
		t.Errorf("default port = %d, want 3000", cfg.Gateway.Port)
	}
	if cfg.Store.Mode != "memory" {
		t.Errorf("default store mode = %q, want memory", cfg.Store.Mode)
	}
	if len(cfg.Control.HandoffPhrases) != 1 || cfg.Control.HandoffPhrases[0] != DefaultHandoffPhrase {
		t.Errorf("default handoff phrases = %v", cfg.Control.HandoffPhrases)
	}
}

// TestLoad_FileOverridesDefaults verifies JSON5 parsing and that file
// values replace defaults.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		// relay listener
		gateway: { host: "127.0.0.1", port: 8080 },
		control: { reply_prefix: "Bot: ", handoff_phrases: ["taken over"] },
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Host != "127.0.0.1" || cfg.Gateway.Port != 8080 {
		t.Errorf("gateway = %s:%d, want 127.0.0.1:8080", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	if got := cfg.ReplyPrefix(); got != "Bot: " {
		t.Errorf("reply prefix = %q, want %q", got, "Bot: ")
	}
	if got := cfg.HandoffPhrases(); len(got) != 1 || got[0] != "taken over" {
		t.Errorf("handoff phrases = %v", got)
	}
}

// TestLoad_EnvOverrides verifies env vars take precedence and that
// secrets are only ever sourced from the environment.
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAGERELAY_VERIFY_TOKEN", "vt")
	t.Setenv("PAGERELAY_PAGE_ACCESS_TOKEN", "at")
	t.Setenv("PAGERELAY_PORT", "9999")
	t.Setenv("PAGERELAY_HANDOFF_PHRASES", "передал диалог, transferred to agent")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform.VerifyToken != "vt" || cfg.Platform.AccessToken != "at" {
		t.Errorf("secrets not loaded from env")
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Gateway.Port)
	}
	if got := len(cfg.Control.HandoffPhrases); got != 3 {
		t.Errorf("handoff phrases count = %d, want 3 (default + 2 env)", got)
	}
}

// TestValidate_RequiredSecrets verifies missing credentials are fatal.
func TestValidate_RequiredSecrets(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name: "both present",
			mutate: func(c *Config) {
				c.Platform.VerifyToken = "v"
				c.Platform.AccessToken = "a"
			},
			wantErr: false,
		},
		{
			name: "missing verify token",
			mutate: func(c *Config) {
				c.Platform.AccessToken = "a"
			},
			wantErr: true,
		},
		{
			name: "missing access token",
			mutate: func(c *Config) {
				c.Platform.VerifyToken = "v"
			},
			wantErr: true,
		},
		{
			name: "postgres mode without DSN",
			mutate: func(c *Config) {
				c.Platform.VerifyToken = "v"
				c.Platform.AccessToken = "a"
				c.Store.Mode = "postgres"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestApplyReload_SwapsControlOnly verifies hot reload replaces control
// tunables without touching listener settings.
func TestApplyReload_SwapsControlOnly(t *testing.T) {
	cfg := Default()
	fresh := Default()
	fresh.Control.ReplyPrefix = "Re: "
	fresh.Gateway.Port = 1234

	cfg.ApplyReload(fresh)

	if got := cfg.ReplyPrefix(); got != "Re: " {
		t.Errorf("reply prefix after reload = %q, want %q", got, "Re: ")
	}
	if cfg.Gateway.Port != 3000 {
		t.Errorf("port changed on reload: %d", cfg.Gateway.Port)
	}
}
