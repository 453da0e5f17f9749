package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the providers file whenever it changes and hands the decoded
// result to onChange. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors that
// replace the file via rename are still picked up.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(*ProvidersFile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(debounce)
				fire = timer.C
			}

		case <-fire:
			fire = nil
			pf, err := LoadProvidersFile(abs)
			if err != nil {
				log.Printf("WARN: providers file reload failed: %v", err)
				continue
			}
			onChange(pf)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WARN: providers file watcher error: %v", err)
		}
	}
}
