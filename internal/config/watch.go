package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watch reloads the config at path whenever it changes and hands each
// successfully loaded result to onChange. Load failures go to onError and the
// previous config stays in effect.
//
// The parent directory is watched so editors that replace the file by rename
// are still observed.
func Watch(ctx context.Context, path string, onChange func(Loaded), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config dir %q: %w", dir, err)
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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(fmt.Errorf("config watcher: %w", err))
			}
		case <-pending:
			pending = nil
			loaded, err := LoadFile(path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(loaded)
		}
	}
}
