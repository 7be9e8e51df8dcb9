package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var codeBlockRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ParseExtraction extracts the JSON object from a model response and decodes
// it into typed items. Keys are matched to categories case-insensitively;
// unknown keys are ignored. Any malformed item fails the whole response.
func ParseExtraction(content string) (*Result, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction: %w", err)
	}

	result := &Result{}
	for key, value := range raw {
		cat, ok := ParseCategory(key)
		if !ok {
			slog.Debug("ignoring unknown extraction key", "key", key)
			continue
		}
		list, err := asList(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if err := decodeInto(result, cat, list); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	return result, nil
}

// asList normalizes a category value to a list of raw items. A single object
// is treated as a one-element list and null as empty.
func asList(value json.RawMessage) ([]json.RawMessage, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 || string(value) == "null" {
		return nil, nil
	}
	switch value[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(value, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		return []json.RawMessage{value}, nil
	}
	return nil, fmt.Errorf("expected list of objects, got %s", preview(value))
}

func decodeInto(r *Result, cat Category, list []json.RawMessage) error {
	for i, raw := range list {
		if string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		var err error
		switch cat {
		case Tasks:
			it := &Task{}
			if err = json.Unmarshal(raw, it); err == nil {
				r.Tasks = append(r.Tasks, it)
			}
		case Meetings:
			it := &Meeting{}
			if err = json.Unmarshal(raw, it); err == nil {
				r.Meetings = append(r.Meetings, it)
			}
		case Projects:
			it := &Project{}
			if err = json.Unmarshal(raw, it); err == nil {
				r.Projects = append(r.Projects, it)
			}
		case Research:
			it := &ResearchItem{}
			if err = json.Unmarshal(raw, it); err == nil {
				r.Research = append(r.Research, it)
			}
		case Messages:
			it := &Message{}
			if err = json.Unmarshal(raw, it); err == nil {
				r.Messages = append(r.Messages, it)
			}
		}
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// extractJSON finds the first JSON object in the content
func extractJSON(content string) string {
	// Look for JSON object between triple backticks
	matches := codeBlockRegex.FindStringSubmatch(content)
	if len(matches) > 1 {
		trimmed := strings.TrimSpace(matches[1])
		if isJSONObject(trimmed) {
			return trimmed
		}
	}

	startIdx := strings.Index(content, "{")
	if startIdx == -1 {
		return ""
	}

	// Find matching closing brace, ignoring braces inside strings
	depth := 0
	inString := false
	escaped := false
	for i := startIdx; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(content[startIdx : i+1])
			}
		}
	}
	return ""
}

// isJSONObject checks if the string starts with { and ends with }
func isJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}
