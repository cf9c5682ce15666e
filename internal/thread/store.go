// Package thread holds per-conversation thread-control ownership: whether
// a human agent or the bot currently owns a conversation. Absence of an
// entry means bot-controlled. Only control-handoff events mutate it.
package thread

import (
	"fmt"
	"time"

	"github.com/nextlevelbuilder/pagerelay/internal/config"
)

// ControlStore tracks which conversations are human-controlled.
// All operations are total and idempotent; implementations are safe for
// concurrent use. SQL-backed implementations serve reads from a
// write-through cache, so a backend hiccup degrades to last-known state
// rather than an error (the dispatch path has no fallible branches).
type ControlStore interface {
	// IsHumanControlled reports whether a human agent owns the thread.
	IsHumanControlled(conversationID string) bool

	// SetHumanControlled marks the thread human-controlled.
	SetHumanControlled(conversationID string)

	// ClearHumanControlled returns the thread to bot control.
	ClearHumanControlled(conversationID string)

	// Snapshot lists all currently human-controlled conversation ids,
	// for the introspection endpoint.
	Snapshot() []string

	// EvictBefore removes entries not touched since the cutoff and
	// returns the number evicted.
	EvictBefore(cutoff time.Time) int

	// Close releases backend resources.
	Close() error
}

// NewStore builds the ControlStore selected by config:
// "memory" (default), "sqlite", or "postgres".
func NewStore(cfg config.StoreConfig) (ControlStore, error) {
	switch cfg.Mode {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(config.ExpandHome(cfg.SQLitePath))
	case "postgres":
		return NewPGStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store mode %q", cfg.Mode)
	}
}
