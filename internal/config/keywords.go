package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// Keywords is the keyword dictionary that drives filtering and tag generation.
// It is loaded once and persisted back when learned tags change.
type Keywords struct {
	PriorityKeywords        map[string][]string `json:"priority_keywords"`
	StatusKeywords          map[string][]string `json:"status_keywords"`
	ActionKeywords          []string            `json:"action_keywords"`
	ExcludedCommonWords     []string            `json:"excluded_common_words"`
	ProjectCategoryKeywords map[string][]string `json:"project_category_keywords"`
	DateKeywords            []string            `json:"date_keywords"`
	ExistingNotionTags      []string            `json:"existing_notion_tags"`
	DescriptorTags          map[string][]string `json:"descriptor_tags"`

	path string
	mu   sync.Mutex
}

// DefaultKeywords returns the built-in keyword dictionary
func DefaultKeywords() *Keywords {
	return &Keywords{
		PriorityKeywords: map[string][]string{
			"high":   {"urgent", "asap", "critical", "important", "high priority", "p0", "p1"},
			"medium": {"moderate", "medium priority", "p2", "soon"},
			"low":    {"low priority", "whenever", "p3", "p4", "sometime"},
		},
		StatusKeywords: map[string][]string{
			"Not Started": {"todo", "to-do", "to do", "planned", "not started", "upcoming", "new", "need to"},
			"In Progress": {"in progress", "started", "working on", "ongoing", "underway", "beginning"},
			"Completed":   {"done", "completed", "finished", "complete", "resolved"},
		},
		ActionKeywords: []string{
			"todo", "to-do", "to do", "task", "need to", "should", "must", "have to",
			"deadline", "due", "by tomorrow", "by next week", "schedule", "meeting",
			"call", "email", "send", "follow up", "follow-up", "remind", "reminder",
			"project", "plan", "research", "look into", "investigate", "find out",
			"message", "tell", "ask", "let know", "don't forget", "remember to",
			"action item", "next step", "assign",
			"TB", "TeeBee",
		},
		ExcludedCommonWords: []string{
			"the", "and", "or", "but", "if", "then", "to", "a", "an", "of", "for",
			"in", "on", "at", "by", "with", "about", "task", "todo", "need",
			"should", "must", "important", "critical", "high", "medium", "low",
			"tb", "teebee",
		},
		ProjectCategoryKeywords: map[string][]string{},
		DateKeywords: []string{
			"today", "tomorrow", "tonight", "next week", "next month", "this week",
			"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		},
		ExistingNotionTags: []string{},
		DescriptorTags: map[string][]string{
			"task":     {"action", "task", "todo", "assignment", "work", "responsibility", "duty", "job", "activity"},
			"project":  {"project", "initiative", "endeavor", "undertaking", "plan", "effort", "venture", "mission"},
			"meeting":  {"meeting", "discussion", "call", "conference", "gathering", "session", "huddle", "sync"},
			"research": {"research", "investigation", "analysis", "study", "exploration", "review", "assessment"},
			"message":  {"message", "communication", "email", "notification", "update", "reminder", "alert"},
		},
	}
}

// LoadKeywords reads the keyword file at path. A missing or unreadable file
// yields the defaults; keys absent from the file keep their default values.
func LoadKeywords(path string) *Keywords {
	kw := DefaultKeywords()
	kw.path = path
	if path == "" {
		return kw
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kw
	}
	if err != nil {
		slog.Error("failed to read keyword config, using defaults", "path", path, "error", err)
		return kw
	}

	if err := json.Unmarshal(data, kw); err != nil {
		slog.Error("failed to parse keyword config, using defaults", "path", path, "error", err)
		kw = DefaultKeywords()
		kw.path = path
	}
	return kw
}

// Save persists the keyword dictionary to its file
func (k *Keywords) Save() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.saveLocked()
}

func (k *Keywords) saveLocked() error {
	if k.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keyword config: %w", err)
	}
	return WriteFileAtomic(k.path, data, 0644)
}

// Path returns the backing file path, empty for in-memory dictionaries
func (k *Keywords) Path() string {
	return k.path
}

// SetPath sets the backing file used by Save
func (k *Keywords) SetPath(path string) {
	k.path = path
}

// ExistingTags returns a copy of the tags learned from the destination
func (k *Keywords) ExistingTags() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.ExistingNotionTags...)
}

// UpdateExistingTags merges newly observed destination tags, keeps them
// sorted and persists the result when anything changed.
func (k *Keywords) UpdateExistingTags(tags []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	seen := make(map[string]bool, len(k.ExistingNotionTags))
	for _, t := range k.ExistingNotionTags {
		seen[t] = true
	}
	changed := false
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] || strings.HasPrefix(strings.ToLower(t), "priority:") {
			continue
		}
		seen[t] = true
		k.ExistingNotionTags = append(k.ExistingNotionTags, t)
		changed = true
	}
	if !changed {
		return nil
	}
	sort.Strings(k.ExistingNotionTags)
	return k.saveLocked()
}

// AddDescriptorTag adds a descriptor tag for an item type and persists it
func (k *Keywords) AddDescriptorTag(itemType, tag string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	itemType = strings.ToLower(strings.TrimSpace(itemType))
	tag = strings.TrimSpace(tag)
	if itemType == "" || tag == "" {
		return fmt.Errorf("item type and tag are required")
	}
	if k.DescriptorTags == nil {
		k.DescriptorTags = make(map[string][]string)
	}
	for _, existing := range k.DescriptorTags[itemType] {
		if strings.EqualFold(existing, tag) {
			return nil
		}
	}
	k.DescriptorTags[itemType] = append(k.DescriptorTags[itemType], tag)
	return k.saveLocked()
}

// Descriptors returns descriptor tags for an item type
func (k *Keywords) Descriptors(itemType string) []string {
	return k.DescriptorTags[strings.ToLower(itemType)]
}

// IsExcluded reports whether word is in the excluded common words list
func (k *Keywords) IsExcluded(word string) bool {
	word = strings.ToLower(word)
	for _, w := range k.ExcludedCommonWords {
		if w == word {
			return true
		}
	}
	return false
}

// priorityOrder fixes iteration order over the priority levels
var priorityOrder = []string{"high", "medium", "low"}

// OrderedKeys returns map keys with the known priority levels first and the
// rest sorted, so scans are deterministic.
func OrderedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	used := make(map[string]bool, len(m))
	for _, p := range priorityOrder {
		if _, ok := m[p]; ok {
			keys = append(keys, p)
			used[p] = true
		}
	}
	var rest []string
	for k := range m {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
