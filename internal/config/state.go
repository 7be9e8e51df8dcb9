package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Statistics accumulates counters across runs
type Statistics struct {
	TotalTranscriptsProcessed int            `json:"total_transcripts_processed"`
	ItemsCreated              map[string]int `json:"items_created"`
}

// RunState records the last successful run and destination ids per collection.
// NotionMappings maps collection -> transcript id -> destination page id.
type RunState struct {
	LastRunTime          *time.Time                   `json:"last_run_time"`
	ProcessedTranscripts []string                     `json:"processed_transcripts"`
	NotionMappings       map[string]map[string]string `json:"notion_mappings"`
	Statistics           Statistics                   `json:"statistics"`

	path string
	mu   sync.Mutex
}

var stateCollections = []string{"tasks", "projects", "todo"}

func newRunState(path string) *RunState {
	s := &RunState{
		ProcessedTranscripts: []string{},
		NotionMappings:       make(map[string]map[string]string),
		Statistics:           Statistics{ItemsCreated: make(map[string]int)},
		path:                 path,
	}
	for _, c := range stateCollections {
		s.NotionMappings[c] = make(map[string]string)
		s.Statistics.ItemsCreated[c] = 0
	}
	return s
}

// LoadRunState reads the state file. A missing file starts fresh; a corrupt
// one is logged and replaced by a fresh state.
func LoadRunState(path string) *RunState {
	s := newRunState(path)
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s
	}
	if err != nil {
		slog.Error("failed to read run state, starting fresh", "path", path, "error", err)
		return s
	}

	var loaded RunState
	if err := json.Unmarshal(data, &loaded); err != nil {
		slog.Error("corrupt run state, starting fresh", "path", path, "error", err)
		return s
	}

	s.LastRunTime = loaded.LastRunTime
	if loaded.ProcessedTranscripts != nil {
		s.ProcessedTranscripts = loaded.ProcessedTranscripts
	}
	for coll, m := range loaded.NotionMappings {
		if m == nil {
			m = make(map[string]string)
		}
		s.NotionMappings[coll] = m
	}
	s.Statistics.TotalTranscriptsProcessed = loaded.Statistics.TotalTranscriptsProcessed
	for coll, n := range loaded.Statistics.ItemsCreated {
		s.Statistics.ItemsCreated[coll] = n
	}
	return s
}

// Save writes the state file atomically
func (s *RunState) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *RunState) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	return WriteFileAtomic(s.path, data, 0600)
}

// LastRun returns the last successful run time, if any
func (s *RunState) LastRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LastRunTime == nil {
		return time.Time{}, false
	}
	return *s.LastRunTime, true
}

// SetLastRun records t as the last successful run and persists the state
func (s *RunState) SetLastRun(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t = t.UTC()
	s.LastRunTime = &t
	return s.saveLocked()
}

// MarkProcessed records transcript ids as processed and persists the state
func (s *RunState) MarkProcessed(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, id := range ids {
		if id == "" || s.isProcessedLocked(id) {
			continue
		}
		s.ProcessedTranscripts = append(s.ProcessedTranscripts, id)
		s.Statistics.TotalTranscriptsProcessed++
		changed = true
	}
	if !changed {
		return nil
	}
	return s.saveLocked()
}

func (s *RunState) IsProcessed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isProcessedLocked(id)
}

func (s *RunState) isProcessedLocked(id string) bool {
	for _, p := range s.ProcessedTranscripts {
		if p == id {
			return true
		}
	}
	return false
}

// AddMapping records the destination id written for a transcript and bumps
// the per-collection counter. Each call is persisted on its own.
func (s *RunState) AddMapping(collection, transcriptID, destinationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NotionMappings[collection] == nil {
		s.NotionMappings[collection] = make(map[string]string)
	}
	s.NotionMappings[collection][transcriptID] = destinationID
	s.Statistics.ItemsCreated[collection]++
	return s.saveLocked()
}

// DestinationID returns the mapped destination id for a transcript
func (s *RunState) DestinationID(collection, transcriptID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.NotionMappings[collection][transcriptID]
	return id, ok
}

// Stats returns a copy of the accumulated statistics
func (s *RunState) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Statistics{
		TotalTranscriptsProcessed: s.Statistics.TotalTranscriptsProcessed,
		ItemsCreated:              make(map[string]int, len(s.Statistics.ItemsCreated)),
	}
	for k, v := range s.Statistics.ItemsCreated {
		out.ItemsCreated[k] = v
	}
	return out
}
