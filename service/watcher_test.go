package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

func TestWatchArtifactReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan fsnotify.Event, 8)
	if err := WatchArtifact(ctx, path, zap.NewNop(), func(e fsnotify.Event) { changed <- e }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"model_type":"decision_tree"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-changed:
		if filepath.Base(e.Name) != "model.json" {
			t.Fatalf("unexpected event for %s", e.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}
}

func TestWatchArtifactMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "model.json")
	if err := WatchArtifact(context.Background(), path, zap.NewNop(), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
