package csvfile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/logger"
)

// Watch signals whenever the change log is created, written or replaced.
// The parent directory is watched so atomic replacements are seen.
// Bursts of events coalesce into a single pending signal.
func (c *Connector) Watch(ctx context.Context) (<-chan struct{}, error) {
	if c.config.ChangelogPath == "" {
		return nil, fmt.Errorf("%w: no changelog configured", domain.ErrUnsupportedType)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dirOf(c.config.ChangelogPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dirOf(c.config.ChangelogPath), err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		watcher.Close()
		return nil, domain.ErrConnectorClosed
	}
	c.watchers = append(c.watchers, watcher.Close)
	c.mu.Unlock()

	target := filepath.Clean(c.config.ChangelogPath)
	signals := make(chan struct{}, 1)

	go func() {
		defer close(signals)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isChangelogEvent(event, target) {
					continue
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("csvfile %s: watch error: %v", c.resource, err)
			}
		}
	}()

	return signals, nil
}

// isChangelogEvent reports whether event may have added change log entries.
func isChangelogEvent(event fsnotify.Event, target string) bool {
	if filepath.Clean(event.Name) != target {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write)
}

func dirOf(path string) string {
	dir := filepath.Dir(path)
	if dir == "" {
		return "."
	}
	return dir
}
