package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file and applies hot-reloadable tunables
// when it changes. Secrets and listener settings are not reloaded.
// Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, cfg *Config) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save
	// and the inode-level watch would be lost.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors fire several events per save; coalesce them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				fresh, loadErr := Load(path)
				if loadErr != nil {
					slog.Warn("config reload failed", "path", path, "error", loadErr)
					return
				}
				cfg.ApplyReload(fresh)
				slog.Info("config reloaded",
					"handoff_phrases", len(fresh.Control.HandoffPhrases),
					"reply_prefix", fresh.Control.ReplyPrefix,
				)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}
