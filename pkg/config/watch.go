package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the global configuration whenever the config file is
// written, created or renamed into place. onChange is called with the new
// configuration after every successful reload. Watch blocks until ctx is done.
//
// The containing directory is watched rather than the file itself so that
// editors and config management tools that replace the file atomically are
// picked up.
func Watch(ctx context.Context, onChange func(*HasadConfig)) error {
	path := Get().ConfigFilePath()
	dir := filepath.Dir(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := Reload(); err != nil {
				log.Printf("config: reload of %s failed, keeping previous configuration: %v", path, err)
				continue
			}
			log.Printf("config: reloaded %s", path)
			if onChange != nil {
				onChange(Get())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config: watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}
