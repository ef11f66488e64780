package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashverse/animato/internal/config"
)

const watcherConfigV1 = `
server:
  listen_addr: ":8080"
  log_level: info
persona:
  name: Aria
`

const watcherConfigV2 = `
server:
  listen_addr: ":8080"
  log_level: debug
persona:
  name: Aria
`

// writeConfig writes content to path with a bumped mtime so the poller's
// cheap mtime check fires even on coarse-grained filesystems.
func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "animato.yaml")
	writeConfig(t, path, watcherConfigV1)

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("expected initial log level info, got %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "animato.yaml")
	writeConfig(t, path, "server:\n  log_level: loud\n")

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "animato.yaml")
	writeConfig(t, path, watcherConfigV1)

	var (
		mu     sync.Mutex
		gotOld *config.Config
		gotNew *config.Config
	)
	changed := make(chan struct{}, 1)
	onChange := func(old, new *config.Config) {
		mu.Lock()
		gotOld, gotNew = old, new
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	w, err := config.NewWatcher(path, onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, watcherConfigV2)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotOld.Server.LogLevel != config.LogInfo {
		t.Errorf("expected old level info, got %q", gotOld.Server.LogLevel)
	}
	if gotNew.Server.LogLevel != config.LogDebug {
		t.Errorf("expected new level debug, got %q", gotNew.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current should reflect the reload, got %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_KeepsOldConfigOnInvalidChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "animato.yaml")
	writeConfig(t, path, watcherConfigV1)

	w, err := config.NewWatcher(path, func(_, _ *config.Config) {
		t.Error("onChange must not fire for an invalid config")
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "server:\n  log_level: loud\n")
	time.Sleep(200 * time.Millisecond)

	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("expected old config kept, got level %q", w.Current().Server.LogLevel)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "animato.yaml")
	writeConfig(t, path, watcherConfigV1)

	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Stop()
	w.Stop()
}
