// Package watcher implements compile --watch: polling the files under the
// repo root for changes and handing a debounced batch of events to the
// driver so it can start another incremental run.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"incrc/internal/logging"
)

// EventType represents the kind of change observed for a source path.
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a single detected source change.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler receives a debounced batch of source changes.
type ChangeHandler func(events []Event)

// Config mirrors config.WatchConfig plus the polling interval, which is set
// from compile's --watch-interval flag and so isn't persisted
// (PollInterval json:"-").
type Config struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	DebounceMs     int           `json:"debounceMs" mapstructure:"debounce_ms"`
	IgnorePatterns []string      `json:"ignorePatterns" mapstructure:"ignore_patterns"`
	PollInterval   time.Duration `json:"-"`
}

// DefaultConfig returns the default watch configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		DebounceMs: 300,
		IgnorePatterns: []string{
			"*.class",
			"*.tmp",
			".incrc/**",
		},
		PollInterval: 500 * time.Millisecond,
	}
}

// Watcher polls a source tree and reports debounced batches of changes.
type Watcher struct {
	config  Config
	logger  *logging.Logger
	handler ChangeHandler

	mu    sync.RWMutex
	root  string
	known map[string]time.Time

	batch  *eventBatch
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new source watcher.
func New(config Config, logger *logging.Logger, handler ChangeHandler) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		known:   make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.batch = newEventBatch(time.Duration(config.DebounceMs)*time.Millisecond, w.deliver)
	return w
}

// deliver is the batch's emit hook: one call per quiet period, with every
// event observed since the last delivery.
func (w *Watcher) deliver(events []Event) {
	w.logger.Debug("source changes detected", map[string]interface{}{
		"eventCount": len(events),
	})
	if w.handler != nil {
		w.handler(events)
	}
}

// Watch begins polling root for changes. It seeds the known-mtime table
// from the current state of sources (repo-relative paths, as produced by
// internal/manifest) so the first poll doesn't report every source as
// newly created. Each poll walks every non-ignored file under root, so a
// file outside sources is reported as created by the first poll that
// sees it.
func (w *Watcher) Watch(root string, sources map[string]bool) error {
	if !w.config.Enabled {
		w.logger.Info("source watcher is disabled", nil)
		return nil
	}

	w.mu.Lock()
	w.root = root
	for src := range sources {
		if w.isIgnoredLocked(src) {
			continue
		}
		if info, err := os.Stat(filepath.Join(root, src)); err == nil {
			w.known[src] = info.ModTime()
		}
	}
	w.mu.Unlock()

	w.logger.Info("starting source watcher", map[string]interface{}{
		"root":       root,
		"sources":    len(sources),
		"debounceMs": w.config.DebounceMs,
	})

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops the watcher, waits for its poll loop to exit, and drops any
// batched events that were still waiting out their quiet period.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	w.batch.stop()
	w.logger.Info("source watcher stopped", nil)
	return nil
}

// loop polls on a fixed interval. Polling, not fsnotify, keeps this
// cross-platform and dependency-free.
func (w *Watcher) loop() {
	defer w.wg.Done()

	interval := w.config.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-w.ctx.Done():
			return
		}
	}
}

// poll walks root, diffs observed mtimes against the known table, and
// queues a debounced handler call if anything changed.
func (w *Watcher) poll() {
	w.mu.Lock()
	root := w.root
	seen := make(map[string]bool, len(w.known))
	var events []Event

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if w.isIgnoredLocked(rel) {
			return nil
		}

		seen[rel] = true
		if prev, existed := w.known[rel]; !existed {
			events = append(events, Event{Type: EventCreate, Path: rel, Timestamp: info.ModTime()})
		} else if info.ModTime().After(prev) {
			events = append(events, Event{Type: EventModify, Path: rel, Timestamp: info.ModTime()})
		}
		w.known[rel] = info.ModTime()
		return nil
	})

	for rel := range w.known {
		if !seen[rel] {
			events = append(events, Event{Type: EventDelete, Path: rel, Timestamp: time.Now()})
			delete(w.known, rel)
		}
	}
	w.mu.Unlock()

	w.batch.add(events)
}

// IsIgnored checks if a repo-relative path matches an ignore pattern.
func (w *Watcher) IsIgnored(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isIgnoredLocked(path)
}

func (w *Watcher) isIgnoredLocked(path string) bool {
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}

		if strings.Contains(pattern, "**") {
			parts := strings.Split(pattern, "**")
			if len(parts) == 2 {
				if strings.HasPrefix(path, strings.TrimSuffix(parts[0], "/")) &&
					(parts[1] == "" || strings.HasSuffix(path, strings.TrimPrefix(parts[1], "/"))) {
					return true
				}
			}
		}
	}
	return false
}

// Stats returns watcher statistics for diagnostics.
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]interface{}{
		"enabled":        w.config.Enabled,
		"watchedSources": len(w.known),
		"debounceMs":     w.config.DebounceMs,
		"ignorePatterns": len(w.config.IgnorePatterns),
	}
}
