package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/limitless"
)

const (
	indexFileName     = "transcript_index.json"
	transcriptsSubdir = "transcripts"
)

// Document is the self-contained archive file written per transcript
type Document struct {
	TranscriptID      string             `json:"transcript_id"`
	Content           string             `json:"content"`
	TranscriptDetails *limitless.Details `json:"transcript_details,omitempty"`
	ExtractedMarkers  []limitless.Marker `json:"extracted_markers,omitempty"`
	ArchivedAt        string             `json:"archived_at"`
	Metadata          map[string]any     `json:"metadata"`
}

// Archiver writes transcripts to disk and keeps the id -> path index
type Archiver struct {
	dir   string
	force bool
	now   func() time.Time
	index map[string]string
}

// ArchiverOption configures an Archiver
type ArchiverOption func(*Archiver)

// WithForce re-archives transcripts that are already indexed
func WithForce(force bool) ArchiverOption {
	return func(a *Archiver) {
		a.force = force
	}
}

// WithArchiveClock sets the time source for file names and archived_at
func WithArchiveClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		a.now = now
	}
}

// NewArchiver loads the index under dir. A corrupt index is logged and treated as empty.
func NewArchiver(dir string, opts ...ArchiverOption) *Archiver {
	a := &Archiver{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	a.index = a.loadIndex()
	return a
}

func (a *Archiver) indexPath() string {
	return filepath.Join(a.dir, indexFileName)
}

func (a *Archiver) loadIndex() map[string]string {
	index := make(map[string]string)
	data, err := os.ReadFile(a.indexPath())
	if os.IsNotExist(err) {
		return index
	}
	if err != nil {
		slog.Error("failed to read archive index, treating as empty", "path", a.indexPath(), "error", err)
		return index
	}
	if err := json.Unmarshal(data, &index); err != nil {
		slog.Error("corrupt archive index, treating as empty", "path", a.indexPath(), "error", err)
		return make(map[string]string)
	}
	return index
}

func (a *Archiver) saveIndex() error {
	data, err := json.MarshalIndent(a.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive index: %w", err)
	}
	return config.WriteFileAtomic(a.indexPath(), data, 0644)
}

// IsArchived reports whether id is present in the index
func (a *Archiver) IsArchived(id string) bool {
	_, ok := a.index[id]
	return ok
}

// Len returns the number of indexed transcripts
func (a *Archiver) Len() int {
	return len(a.index)
}

// ArchiveAll archives every transcript not yet in the index and returns the
// id -> path map for all of them. Each successful write updates the index on
// disk before the next transcript is handled.
func (a *Archiver) ArchiveAll(transcripts []limitless.Transcript) map[string]string {
	paths := make(map[string]string, len(transcripts))
	for _, t := range transcripts {
		if t.ID == "" {
			slog.Warn("skipping transcript without id")
			continue
		}
		if existing, ok := a.index[t.ID]; ok && !a.force {
			paths[t.ID] = existing
			continue
		}

		now := a.now()
		name := fmt.Sprintf("%s_%s.json", now.Format("20060102-150405"), safeName(t.ID))
		path := filepath.Join(a.dir, transcriptsSubdir, name)

		doc := Document{
			TranscriptID:      t.ID,
			Content:           t.Content,
			TranscriptDetails: t.Details,
			ArchivedAt:        now.Format(time.RFC3339),
			Metadata:          t.MetadataMap(),
		}
		if err := writeDocument(path, doc); err != nil {
			slog.Error("failed to archive transcript", "transcript_id", t.ID, "error", err)
			continue
		}

		a.index[t.ID] = path
		if err := a.saveIndex(); err != nil {
			slog.Error("failed to save archive index", "error", err)
		}
		paths[t.ID] = path
	}
	slog.Info("archived transcripts", "count", len(paths), "indexed", len(a.index))
	return paths
}

// ArchiveMarked writes every transcript carrying special markers into a
// dated directory, independent of the index.
func ArchiveMarked(dir string, transcripts []limitless.Transcript, now time.Time) []string {
	var written []string
	for _, t := range transcripts {
		if !HasMarkers(t) {
			continue
		}
		path := filepath.Join(dir, now.Format("2006-01-02"),
			fmt.Sprintf("%s_%s_TB.json", now.Format("150405"), safeName(t.ID)))
		doc := Document{
			TranscriptID:     t.ID,
			Content:          t.Content,
			ExtractedMarkers: t.Details.ExtractedMarkers,
			ArchivedAt:       now.Format(time.RFC3339),
			Metadata:         t.MetadataMap(),
		}
		if err := writeDocument(path, doc); err != nil {
			slog.Error("failed to archive marked transcript", "transcript_id", t.ID, "error", err)
			continue
		}
		written = append(written, path)
	}
	if len(written) > 0 {
		slog.Info("archived marked transcripts", "count", len(written))
	}
	return written
}

func writeDocument(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive document: %w", err)
	}
	return config.WriteFileAtomic(path, data, 0644)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// safeName makes an id usable as a file name component
func safeName(id string) string {
	return unsafeChars.ReplaceAllString(id, "_")
}
