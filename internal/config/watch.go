package config

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"researchnerd/internal/logging"
)

// Watch re-loads the config file whenever it changes and hands the fresh
// Config to onChange. Blocks until ctx is cancelled. Reload failures are
// logged and the previous configuration stays in effect.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logging.Get(logging.CategoryBoot).Warn("config reload failed, keeping previous: %v", err)
				continue
			}
			logging.Get(logging.CategoryBoot).Info("config reloaded from %s", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryBoot).Warn("config watcher error: %v", err)
		}
	}
}
