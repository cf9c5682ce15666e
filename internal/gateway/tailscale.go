//go:build tsnet

package gateway

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"

	"github.com/nextlevelbuilder/pagerelay/internal/config"
)

// InitTailscale starts a tsnet node serving the given mux inside the
// tailnet. Returns a cleanup function, or nil when Tailscale is not
// configured or fails to start. Failures are logged, never fatal: the
// main listener keeps serving either way.
func InitTailscale(ctx context.Context, cfg *config.Config, mux *http.ServeMux) func() {
	tsCfg := cfg.Tailscale
	if tsCfg.Hostname == "" {
		return nil
	}

	stateDir := tsCfg.StateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("tailscale: resolve home dir failed", "error", err)
			return nil
		}
		stateDir = filepath.Join(home, ".pagerelay", "tsnet")
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		slog.Error("tailscale: create state dir failed", "dir", stateDir, "error", err)
		return nil
	}

	authKey := tsCfg.AuthKey
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}

	srv := &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	status, err := srv.Up(ctx)
	if err != nil {
		slog.Error("tailscale: node start failed", "error", err)
		srv.Close()
		return nil
	}

	var tsAddr string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	}
	slog.Info("tailscale node ready", "hostname", tsCfg.Hostname, "tailscale_ip", tsAddr)

	var ln net.Listener
	if tsCfg.EnableTLS {
		ln, err = srv.ListenTLS("tcp", ":443")
	} else {
		ln, err = srv.Listen("tcp", ":80")
	}
	if err != nil {
		slog.Error("tailscale: listen failed", "error", err)
		srv.Close()
		return nil
	}

	httpSrv := &http.Server{Handler: mux}
	go httpSrv.Serve(ln)

	return func() {
		httpSrv.Close()
		srv.Close()
	}
}
