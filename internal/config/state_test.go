package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	state := LoadRunState(path)
	if _, ok := state.LastRun(); ok {
		t.Error("expected no last run on fresh state")
	}
	for _, c := range []string{"tasks", "projects", "todo"} {
		if state.NotionMappings[c] == nil {
			t.Errorf("expected mapping for %s", c)
		}
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := state.SetLastRun(now); err != nil {
		t.Fatalf("SetLastRun failed: %v", err)
	}
	if err := state.AddMapping("tasks", "tr-1", "page-1"); err != nil {
		t.Fatalf("AddMapping failed: %v", err)
	}
	if err := state.MarkProcessed("tr-1", "tr-2", "tr-1"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	state2 := LoadRunState(path)
	last, ok := state2.LastRun()
	if !ok || !last.Equal(now) {
		t.Errorf("expected last run %v, got %v (ok=%v)", now, last, ok)
	}
	if id, ok := state2.DestinationID("tasks", "tr-1"); !ok || id != "page-1" {
		t.Errorf("expected page-1, got %q", id)
	}
	if !state2.IsProcessed("tr-2") {
		t.Error("expected tr-2 to be processed after reload")
	}
	if state2.IsProcessed("tr-3") {
		t.Error("expected tr-3 to not be processed")
	}

	stats := state2.Stats()
	if stats.TotalTranscriptsProcessed != 2 {
		t.Errorf("expected 2 processed transcripts, got %d", stats.TotalTranscriptsProcessed)
	}
	if stats.ItemsCreated["tasks"] != 1 {
		t.Errorf("expected 1 task created, got %d", stats.ItemsCreated["tasks"])
	}
}

func TestRunStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	state := LoadRunState(path)
	if len(state.ProcessedTranscripts) != 0 {
		t.Errorf("expected fresh state, got %v", state.ProcessedTranscripts)
	}
	if err := state.AddMapping("lifelog", "tr-9", "page-9"); err != nil {
		t.Fatalf("AddMapping failed: %v", err)
	}
	if LoadRunState(path).Stats().ItemsCreated["lifelog"] != 1 {
		t.Error("expected corrupt file to be replaced on save")
	}
}
