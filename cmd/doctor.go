package cmd

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/pagerelay/internal/config"
	"github.com/nextlevelbuilder/pagerelay/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("pagerelay doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	// Credentials
	fmt.Println()
	fmt.Println("  Credentials:")
	checkSecret("Verify token", cfg.Platform.VerifyToken, "PAGERELAY_VERIFY_TOKEN")
	checkSecret("Access token", cfg.Platform.AccessToken, "PAGERELAY_PAGE_ACCESS_TOKEN")
	checkSecret("Gateway token", cfg.Gateway.Token, "PAGERELAY_GATEWAY_TOKEN (optional)")

	// Store
	fmt.Println()
	fmt.Println("  Store:")
	fmt.Printf("    %-12s %s\n", "Mode:", cfg.Store.Mode)
	switch cfg.Store.Mode {
	case "sqlite":
		path := config.ExpandHome(cfg.Store.SQLitePath)
		fmt.Printf("    %-12s %s", "Path:", path)
		if _, err := os.Stat(path); err != nil {
			fmt.Println(" (will be created)")
		} else {
			fmt.Println(" (OK)")
		}
	case "postgres":
		if cfg.Store.PostgresDSN == "" {
			fmt.Printf("    %-12s PAGERELAY_POSTGRES_DSN not set\n", "Status:")
			break
		}
		db, dbErr := sql.Open("pgx", cfg.Store.PostgresDSN)
		if dbErr != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", dbErr)
			break
		}
		if pingErr := db.Ping(); pingErr != nil {
			fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", pingErr)
		} else {
			fmt.Printf("    %-12s connected\n", "Status:")
		}
		db.Close()
	}

	// Graph API reachability
	fmt.Println()
	fmt.Println("  Graph API:")
	fmt.Printf("    %-12s %s/%s\n", "Endpoint:", cfg.Platform.GraphBaseURL, cfg.Platform.APIVersion)
	checkGraphReachable(cfg.Platform.GraphBaseURL)

	// Dispatch
	fmt.Println()
	fmt.Println("  Dispatch:")
	fmt.Printf("    %-16s %q\n", "Reply prefix:", cfg.ReplyPrefix())
	fmt.Printf("    %-16s %d configured\n", "Handoff phrases:", len(cfg.HandoffPhrases()))
	if cfg.Control.ThreadTTLHours > 0 {
		fmt.Printf("    %-16s %dh (schedule %q)\n", "Thread TTL:", cfg.Control.ThreadTTLHours, cfg.Control.SweepSchedule)
	} else {
		fmt.Printf("    %-16s disabled\n", "Thread TTL:")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkSecret(name, value, envHint string) {
	if value != "" {
		fmt.Printf("    %-14s %s\n", name+":", maskSecret(value))
	} else {
		fmt.Printf("    %-14s (not set — %s)\n", name+":", envHint)
	}
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

func checkGraphReachable(baseURL string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL)
	if err != nil {
		fmt.Printf("    %-12s UNREACHABLE (%s)\n", "Status:", err)
		return
	}
	resp.Body.Close()
	// Any HTTP response means the host resolves and answers; auth is
	// only checked at send time.
	fmt.Printf("    %-12s reachable (HTTP %d)\n", "Status:", resp.StatusCode)
}
