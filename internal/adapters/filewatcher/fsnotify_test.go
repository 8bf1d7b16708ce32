package filewatcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/logging"
)

func TestFSNotifyWatcher_Creation(t *testing.T) {
	watcher, err := NewFSNotifyWatcher([]string{".md"}, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()
}

func TestFSNotifyWatcher_DefaultSuffix(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil, nil)
	defer watcher.Stop()

	if len(watcher.suffixes) != 1 || watcher.suffixes[0] != ".md" {
		t.Errorf("expected .md default, got %v", watcher.suffixes)
	}
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()

	watcher, _ := NewFSNotifyWatcher(nil, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "index.md"), []byte("# hi"), 0644)
	}()

	select {
	case event := <-events:
		if event.Operation != ports.FileCreated {
			t.Errorf("expected create event, got %v", event.Operation)
		}
	case <-ctx.Done():
		t.Error("timeout waiting for event")
	}
}

func TestFSNotifyWatcher_WatchesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "guides", "integrations")
	os.MkdirAll(nested, 0755)

	watcher, _ := NewFSNotifyWatcher(nil, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		os.WriteFile(filepath.Join(nested, "spaces.md"), []byte("spaces"), 0644)
	}()

	select {
	case event := <-events:
		if filepath.Base(event.Path) != "spaces.md" {
			t.Errorf("unexpected path %s", event.Path)
		}
	case <-ctx.Done():
		t.Error("timeout waiting for nested event")
	}
}

func TestFSNotifyWatcher_FiltersBySuffix(t *testing.T) {
	dir := t.TempDir()

	watcher, _ := NewFSNotifyWatcher(nil, nil)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	events, _ := watcher.Watch(ctx, dir)

	os.WriteFile(filepath.Join(dir, "conf.py"), []byte("x = 1"), 0644)

	select {
	case <-events:
		t.Error("should not receive event for .py")
	case <-time.After(300 * time.Millisecond):
		// Expected - no event
	}
}

func TestReportStale(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("warn", "json", &buf)

	events := make(chan ports.FileEvent, 1)
	events <- ports.FileEvent{Path: "/docs/index.md", Operation: ports.FileModified}
	close(events)

	ReportStale(events, logger)

	out := buf.String()
	if !strings.Contains(out, StaleIndexMessage) || !strings.Contains(out, "modified") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, _ := NewFSNotifyWatcher(nil, nil)
	err := watcher.Stop()
	if err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
