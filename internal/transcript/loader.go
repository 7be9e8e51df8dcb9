package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

// LoadFromPath reads transcripts from a JSON file or a directory of JSON
// files. A file may hold a list, an object with a "transcripts" list, or a
// single transcript (archive documents included). Unreadable files in a
// directory are logged and skipped.
func LoadFromPath(path string) ([]limitless.Transcript, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return loadFile(path)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var all []limitless.Transcript
	for _, f := range files {
		if filepath.Base(f) == indexFileName {
			continue
		}
		items, err := loadFile(f)
		if err != nil {
			slog.Warn("skipping transcript file", "path", f, "error", err)
			continue
		}
		all = append(all, items...)
	}
	return all, nil
}

func loadFile(path string) ([]limitless.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	if data[0] == '[' {
		var list []limitless.Transcript
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse transcript list: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Transcripts []limitless.Transcript `json:"transcripts"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Transcripts) > 0 {
		return wrapped.Transcripts, nil
	}

	var single limitless.Transcript
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	if single.ID == "" && single.Content == "" {
		return nil, fmt.Errorf("no transcript found")
	}
	return []limitless.Transcript{single}, nil
}
