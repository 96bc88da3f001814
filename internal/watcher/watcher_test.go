package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"incrc/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Format: logging.HumanFormat, Level: logging.ErrorLevel})
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventRename, "rename"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.eventType.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Enabled {
		t.Error("Enabled should be false by default")
	}
	if config.DebounceMs != 300 {
		t.Errorf("DebounceMs = %d, want 300", config.DebounceMs)
	}
	if len(config.IgnorePatterns) == 0 {
		t.Error("IgnorePatterns should not be empty")
	}
	if config.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", config.PollInterval)
	}
}

func TestNewWatcher(t *testing.T) {
	config := DefaultConfig()
	handler := func(events []Event) {}

	w := New(config, testLogger(), handler)
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.known == nil {
		t.Error("known map should be initialized")
	}
	if w.ctx == nil {
		t.Error("context should be initialized")
	}
	if w.cancel == nil {
		t.Error("cancel func should be initialized")
	}
}

func TestWatcherStats(t *testing.T) {
	config := DefaultConfig()
	config.DebounceMs = 1000

	w := New(config, testLogger(), nil)
	stats := w.Stats()

	if stats["enabled"] != false {
		t.Errorf("stats[enabled] = %v, want false", stats["enabled"])
	}
	if stats["watchedSources"] != 0 {
		t.Errorf("stats[watchedSources] = %v, want 0", stats["watchedSources"])
	}
	if stats["debounceMs"] != 1000 {
		t.Errorf("stats[debounceMs] = %v, want 1000", stats["debounceMs"])
	}
}

func TestWatcherIsIgnored(t *testing.T) {
	config := Config{
		IgnorePatterns: []string{
			"*.class",
			"*.tmp",
			".incrc/**",
		},
	}

	w := New(config, testLogger(), nil)

	tests := []struct {
		path    string
		ignored bool
	}{
		{"pkg/A.class", true},
		{"temp.tmp", true},
		{".incrc/staging/x", true},
		{"src/pkg/A.scala", false},
		{"B.scala", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := w.IsIgnored(tt.path)
			if got != tt.ignored {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.path, got, tt.ignored)
			}
		})
	}
}

func TestWatcherDisabledDoesNotPoll(t *testing.T) {
	config := Config{Enabled: false}

	w := New(config, testLogger(), nil)
	if err := w.Watch(t.TempDir(), nil); err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if len(w.known) != 0 {
		t.Error("disabled watcher should not seed the known-mtime table")
	}
}

func TestWatcherStopWithoutWatch(t *testing.T) {
	w := New(DefaultConfig(), testLogger(), nil)
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestWatcherDetectsSourceChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "A.scala")
	if err := os.WriteFile(path, []byte("class A"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var mu sync.Mutex
	var received []Event
	handler := func(events []Event) {
		mu.Lock()
		received = append(received, events...)
		mu.Unlock()
	}

	config := Config{
		Enabled:      true,
		DebounceMs:   20,
		PollInterval: 20 * time.Millisecond,
	}
	w := New(config, testLogger(), handler)
	if err := w.Watch(root, map[string]bool{"A.scala": true}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	time.Sleep(40 * time.Millisecond)
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 {
		t.Fatal("expected a change event after touching A.scala")
	}
	found := false
	for _, e := range received {
		if e.Path == "A.scala" && e.Type == EventModify {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a modify event for A.scala, got %+v", received)
	}
}

func TestEventStructure(t *testing.T) {
	now := time.Now()
	event := Event{
		Type:      EventModify,
		Path:      "src/A.scala",
		Timestamp: now,
	}

	if event.Type != EventModify {
		t.Errorf("Type = %v, want %v", event.Type, EventModify)
	}
	if event.Path != "src/A.scala" {
		t.Errorf("Path = %q, want 'src/A.scala'", event.Path)
	}
	if !event.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, now)
	}
}

func TestConfigStructure(t *testing.T) {
	config := Config{
		Enabled:        true,
		DebounceMs:     3000,
		IgnorePatterns: []string{"*.class"},
		PollInterval:   5 * time.Second,
	}

	if !config.Enabled {
		t.Error("Enabled should be true")
	}
	if config.DebounceMs != 3000 {
		t.Errorf("DebounceMs = %d, want 3000", config.DebounceMs)
	}
	if len(config.IgnorePatterns) != 1 {
		t.Errorf("IgnorePatterns len = %d, want 1", len(config.IgnorePatterns))
	}
}

// eventBatch tests

func TestEventBatchAccumulatesAcrossAdds(t *testing.T) {
	var mu sync.Mutex
	var got [][]Event
	b := newEventBatch(40*time.Millisecond, func(events []Event) {
		mu.Lock()
		got = append(got, events)
		mu.Unlock()
	})

	// Two poll ticks inside one quiet period must land in a single batch.
	b.add([]Event{{Type: EventModify, Path: "A.scala"}})
	b.add([]Event{{Type: EventModify, Path: "B.scala"}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	if len(got[0]) != 2 {
		t.Errorf("expected both events in the batch, got %v", got[0])
	}
}

func TestEventBatchFlushEmitsImmediately(t *testing.T) {
	var mu sync.Mutex
	delivered := 0
	b := newEventBatch(time.Hour, func(events []Event) {
		mu.Lock()
		delivered += len(events)
		mu.Unlock()
	})

	b.add([]Event{{Type: EventCreate, Path: "A.scala"}})
	b.flush()

	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Errorf("flush should deliver the pending event, delivered = %d", delivered)
	}
}

func TestEventBatchStopDropsPending(t *testing.T) {
	b := newEventBatch(time.Hour, func(events []Event) {
		t.Error("stopped batch must not emit")
	})

	b.add([]Event{{Type: EventDelete, Path: "A.scala"}})
	if b.pending() != 1 {
		t.Fatalf("pending = %d, want 1", b.pending())
	}
	b.stop()
	if b.pending() != 0 {
		t.Errorf("pending after stop = %d, want 0", b.pending())
	}
	b.flush() // nothing left; must not emit
}

func TestEventBatchAddEmptyIsNoOp(t *testing.T) {
	b := newEventBatch(10*time.Millisecond, func(events []Event) {
		t.Error("an empty add must not schedule a delivery")
	})
	b.add(nil)
	time.Sleep(50 * time.Millisecond)
}
