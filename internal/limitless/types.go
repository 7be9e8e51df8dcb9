package limitless

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexibleTime is a time.Time that can parse multiple date formats and epoch numbers
type FlexibleTime struct {
	time.Time
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a timestamp string in any of the accepted formats
func ParseTime(str string) (time.Time, error) {
	str = strings.TrimSpace(str)
	for _, format := range timeFormats {
		if t, err := time.Parse(format, str); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseFloat(str, 64); err == nil {
		return epochToTime(n), nil
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %s", str)
}

// epochToTime treats values beyond year 5138 in seconds as milliseconds
func epochToTime(n float64) time.Time {
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec := int64(n)
	return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC()
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleTime
func (ft *FlexibleTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" || string(data) == `""` {
		ft.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("unable to parse time: %s", data)
		}
		ft.Time = epochToTime(n)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	t, err := ParseTime(str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON implements custom JSON marshaling
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	if ft.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("\"%s\"", ft.Format(time.RFC3339))), nil
}

// Importance is the derived importance of a transcript
type Importance string

const (
	ImportanceLow        Importance = "low"
	ImportanceMedium     Importance = "medium"
	ImportanceMediumHigh Importance = "medium-high"
	ImportanceHigh       Importance = "high"
)

func (i Importance) rank() int {
	switch i {
	case ImportanceLow:
		return 1
	case ImportanceMedium:
		return 2
	case ImportanceMediumHigh:
		return 3
	case ImportanceHigh:
		return 4
	default:
		return 0
	}
}

// Raise returns the higher of i and to. Importance never goes down.
func (i Importance) Raise(to Importance) Importance {
	if to.rank() > i.rank() {
		return to
	}
	return i
}

// PriorityIndicator is a priority keyword hit with surrounding text
type PriorityIndicator struct {
	Priority string `json:"priority"`
	Keyword  string `json:"keyword"`
	Context  string `json:"context"`
}

// StatusIndicator is a status keyword hit with surrounding text
type StatusIndicator struct {
	Status  string `json:"status"`
	Keyword string `json:"keyword"`
	Context string `json:"context"`
}

// DateIndicator is a date keyword hit
type DateIndicator struct {
	Date     string `json:"date"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Marker is one occurrence of a special marker keyword
type Marker struct {
	Keyword     string `json:"keyword"`
	Position    int    `json:"position"`
	Before      string `json:"before"`
	After       string `json:"after"`
	FullContext string `json:"full_context"`
}

// Details is the keyword-context metadata attached to a transcript during filtering
type Details struct {
	TranscriptID       string              `json:"transcript_id"`
	Content            string              `json:"content"`
	CreatedAt          string              `json:"created_at"`
	Context            string              `json:"context"`
	PriorityIndicators []PriorityIndicator `json:"priority_indicators"`
	StatusIndicators   []StatusIndicator   `json:"status_indicators"`
	DateIndicators     []DateIndicator     `json:"date_indicators"`
	Keywords           []string            `json:"keywords"`
	WordCount          int                 `json:"word_count"`
	TranscriptDate     string              `json:"transcript_date"`
	ProcessedDate      string              `json:"processed_date"`
	ImportanceLevel    Importance          `json:"importance_level"`
	SourceType         string              `json:"source_type"`
	ActionKeywords     []string            `json:"action_keywords"`
	ExtractedMarkers   []Marker            `json:"extracted_markers,omitempty"`
}

// Clone returns a deep copy of the details
func (d *Details) Clone() *Details {
	if d == nil {
		return nil
	}
	c := *d
	c.PriorityIndicators = append([]PriorityIndicator(nil), d.PriorityIndicators...)
	c.StatusIndicators = append([]StatusIndicator(nil), d.StatusIndicators...)
	c.DateIndicators = append([]DateIndicator(nil), d.DateIndicators...)
	c.Keywords = append([]string(nil), d.Keywords...)
	c.ActionKeywords = append([]string(nil), d.ActionKeywords...)
	c.ExtractedMarkers = append([]Marker(nil), d.ExtractedMarkers...)
	return &c
}

// Transcript is one voice-to-text record
type Transcript struct {
	ID           string
	Timestamp    FlexibleTime
	Content      string
	Participants []string
	Details      *Details

	// Metadata holds every other field the source returned, kept verbatim
	Metadata map[string]json.RawMessage
}

var knownTranscriptFields = map[string]bool{
	"id": true, "transcript_id": true, "timestamp": true, "startTime": true,
	"created_at": true, "content": true, "contents": true, "participants": true,
	"transcript_details": true, "metadata": true, "archived_at": true,
	"extracted_markers": true,
}

// UnmarshalJSON accepts the service's transcript and lifelog shapes as well as
// archive documents, hoisting nested contents[0].content to Content.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Transcript{}
	t.ID = rawString(raw["id"])
	if t.ID == "" {
		t.ID = rawString(raw["transcript_id"])
	}

	var nested map[string]json.RawMessage
	if v, ok := raw["metadata"]; ok {
		_ = json.Unmarshal(v, &nested)
	}

	for _, key := range []string{"timestamp", "startTime", "created_at"} {
		v, ok := raw[key]
		if !ok {
			v, ok = nested[key]
		}
		if !ok {
			continue
		}
		var ft FlexibleTime
		if err := json.Unmarshal(v, &ft); err == nil && !ft.IsZero() {
			t.Timestamp = ft
			break
		}
	}

	t.Content = rawString(raw["content"])
	if t.Content == "" {
		t.Content = hoistContents(raw["contents"])
	}
	if t.Content == "" {
		t.Content = rawString(raw["markdown"])
	}

	if v, ok := raw["participants"]; ok {
		t.Participants = decodeParticipants(v)
	} else if v, ok := nested["participants"]; ok {
		t.Participants = decodeParticipants(v)
	}

	if v, ok := raw["transcript_details"]; ok && string(v) != "null" {
		var d Details
		if err := json.Unmarshal(v, &d); err == nil {
			t.Details = &d
		}
	}

	t.Metadata = make(map[string]json.RawMessage)
	for k, nv := range nested {
		if !knownTranscriptFields[k] {
			t.Metadata[k] = nv
		}
	}
	for k, v := range raw {
		if !knownTranscriptFields[k] {
			t.Metadata[k] = v
		}
	}
	return nil
}

// MarshalJSON writes the transcript in the flat service shape
func (t Transcript) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Metadata)+5)
	for k, v := range t.Metadata {
		out[k] = v
	}
	out["id"] = t.ID
	out["timestamp"] = t.Timestamp
	out["content"] = t.Content
	if t.Participants != nil {
		out["participants"] = t.Participants
	}
	if t.Details != nil {
		out["transcript_details"] = t.Details
	}
	return json.Marshal(out)
}

// MetadataMap returns everything except content and details, for archive documents
func (t Transcript) MetadataMap() map[string]any {
	out := make(map[string]any, len(t.Metadata)+3)
	for k, v := range t.Metadata {
		out[k] = v
	}
	out["id"] = t.ID
	if !t.Timestamp.IsZero() {
		out["timestamp"] = t.Timestamp.Format(time.RFC3339)
	}
	if len(t.Participants) > 0 {
		out["participants"] = t.Participants
	}
	return out
}

func rawString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

func hoistContents(v json.RawMessage) string {
	var items []json.RawMessage
	if len(v) == 0 || json.Unmarshal(v, &items) != nil || len(items) == 0 {
		return ""
	}
	if s := rawString(items[0]); s != "" {
		return s
	}
	var first struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(items[0], &first); err == nil {
		return first.Content
	}
	return ""
}

func decodeParticipants(v json.RawMessage) []string {
	var names []string
	if err := json.Unmarshal(v, &names); err == nil {
		return names
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(v, &objs); err == nil {
		for _, o := range objs {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
	}
	return names
}
