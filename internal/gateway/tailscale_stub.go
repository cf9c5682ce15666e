//go:build !tsnet

package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/pagerelay/internal/config"
)

// InitTailscale is a no-op without the tsnet build tag.
func InitTailscale(ctx context.Context, cfg *config.Config, mux *http.ServeMux) func() {
	if cfg.Tailscale.Hostname != "" {
		slog.Warn("tailscale configured but binary built without -tags tsnet; skipping")
	}
	return nil
}
