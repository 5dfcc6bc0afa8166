package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/withObsrvr/asset-graph-indexer/pkg/event"
)

func TestNewManager(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name         string
		dir          string
		pipelineName string
		wantErr      bool
	}{
		{name: "valid manager creation", dir: filepath.Join(tmpDir, "test1"), pipelineName: "assets"},
		{name: "empty directory", dir: "", pipelineName: "assets", wantErr: true},
		{name: "empty pipeline name", dir: tmpDir, pipelineName: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, err := NewManager(tt.dir, tt.pipelineName, nil, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewManager() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && mgr == nil {
				t.Error("NewManager() returned nil manager without error")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets")
	mgr, err := NewManager(dir, "assets", map[string]string{"store": "leveldb"}, nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	mgr.UpdateStats(10, 2)

	pos := event.Position{BlockNumber: 12345, LogIndex: 7}
	if err := mgr.Save(pos); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "checkpoint-assets-latest.json")); err != nil {
		t.Fatalf("checkpoint file not created: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Position != pos {
		t.Errorf("Position = %+v, want %+v", loaded.Position, pos)
	}
	if loaded.Version != CheckpointVersion {
		t.Errorf("Version = %s, want %s", loaded.Version, CheckpointVersion)
	}
	if loaded.Statistics == nil || loaded.Statistics.Applied != 10 || loaded.Statistics.Skipped != 2 {
		t.Errorf("Statistics = %+v, want applied=10 skipped=2", loaded.Statistics)
	}
}

func TestLoadNotFound(t *testing.T) {
	mgr, err := NewManager(t.TempDir(), "assets", nil, nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	if _, err := mgr.Load(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestLoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, "assets", nil, nil)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "checkpoint-assets-latest.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Load(); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want a corruption error", err)
	}
}

func TestConfigHashChange(t *testing.T) {
	dir := t.TempDir()
	first, _ := NewManager(dir, "assets", map[string]int{"v": 1}, nil)
	if err := first.Save(event.Position{BlockNumber: 1}); err != nil {
		t.Fatal(err)
	}
	second, _ := NewManager(dir, "assets", map[string]int{"v": 2}, nil)
	loaded, err := second.Load()
	if err != nil {
		t.Fatalf("Load() should tolerate a config change: %v", err)
	}
	if loaded.ConfigHash == second.configHash {
		t.Error("expected the stored hash to differ from the current one")
	}
}

func TestStartAutoCheckpointSavesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	mgr, _ := NewManager(dir, "assets", nil, nil)
	mgr.SetInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.StartAutoCheckpoint(ctx, func() event.Position { return event.Position{BlockNumber: 99, LogIndex: 1} })
		close(done)
	}()
	cancel()
	<-done

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Position.BlockNumber != 99 {
		t.Errorf("BlockNumber = %d, want 99", loaded.Position.BlockNumber)
	}
}

func TestWriteAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "file.json")
	for _, body := range []string{"one", "two"} {
		if err := WriteAtomic(target, []byte(body)); err != nil {
			t.Fatalf("WriteAtomic() failed: %v", err)
		}
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "two" {
		t.Fatalf("content = %q, %v; want two", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("found %d entries, want only the target", len(entries))
	}
}
