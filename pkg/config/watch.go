package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors paths for changes and calls onChange with every path that
// changed since the previous call, sorted, at most once per debounce
// interval. It runs until ctx is cancelled.
//
// The parent directories are watched rather than the files themselves so
// that editors and log rotators that replace a file (write to a temp file,
// then rename) are still seen.
func Watch(ctx context.Context, paths []string, debounce time.Duration, onChange func(paths []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("config: watch %s: %w", p, err)
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("config: watch %s: %w", d, err)
		}
	}

	slog.Info("config: watching for changes", "paths", paths, "debounce", debounce)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]bool)
	)
	flush := func() {
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		sort.Strings(changed)
		clear(pending)
		onChange(changed)
	}
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
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !wanted[abs] {
				continue
			}
			slog.Debug("config: file changed", "path", abs, "op", event.Op.String())
			pending[abs] = true
			if debounce <= 0 {
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			flush()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
