package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vthunder/ambientflow/internal/logging"
)

// reloadDebounce coalesces the burst of events editors produce on save
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the config at path whenever it changes and hands the new
// value to onChange, until ctx is cancelled. The parent directory is watched
// so that editors which save via rename are still seen. Parse failures keep
// the previous config and are logged.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(path)
	var pending <-chan time.Time

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
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}

		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				logging.Warn("config", "Reload of %s failed, keeping previous config: %v", path, err)
				continue
			}
			logging.Info("config", "Reloaded %s", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
			logging.Debug("config", "watch error: %v", err)
		}
	}
}
