package transform

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

const (
	minTags          = 5
	maxTags          = 10
	maxKeywordTagLen = 20
	frequentWords    = 20
	priorityPrefix   = "Priority: "
)

var wordPattern = regexp.MustCompile(`\w+`)

var defaultTypeTags = map[string][]string{
	"task":     {"Task", "Action", "Voice", "Transcript"},
	"todo":     {"Task", "Action", "Voice", "Transcript"},
	"project":  {"Project", "Initiative", "Planning", "Voice", "Transcript"},
	"meeting":  {"Meeting", "Discussion", "Event", "Voice", "Transcript"},
	"research": {"Research", "Analysis", "Investigation", "Voice", "Transcript"},
	"message":  {"Message", "Communication", "Follow-up", "Voice", "Transcript"},
}

// TagInput is what the tag generator needs to know about one item
type TagInput struct {
	ItemType string // task, todo, project, meeting, research or message
	Explicit []string
	Priority string
	Project  string
	DueDate  string
	URL      string
	Details  *limitless.Details
}

type tagList struct {
	tags []string
	seen map[string]bool
}

func (l *tagList) add(tag string) bool {
	tag = strings.TrimSpace(tag)
	key := strings.ToLower(tag)
	if tag == "" || l.seen[key] {
		return false
	}
	if l.seen == nil {
		l.seen = make(map[string]bool)
	}
	l.seen[key] = true
	l.tags = append(l.tags, tag)
	return true
}

func (l *tagList) len() int { return len(l.tags) }

// Tags generates the tag list for an item. The result holds at least five
// tags and at most ten, the last of which is the only "Priority: X" tag.
func (t *Transformer) Tags(in TagInput) []string {
	var l tagList
	itemType := strings.ToLower(in.ItemType)
	d := in.Details
	var content string
	if d != nil {
		content = d.Content
	}

	for _, tag := range in.Explicit {
		if isPriorityTag(tag) {
			continue
		}
		l.add(tag)
	}

	if d != nil {
		for _, kw := range d.Keywords {
			if t.keywords.IsExcluded(kw) || len([]rune(kw)) <= 2 {
				continue
			}
			if r := []rune(kw); len(r) > maxKeywordTagLen {
				kw = string(r[:maxKeywordTagLen])
			}
			l.add(capitalize(kw))
		}
	}

	if l.len() < minTags {
		for _, w := range t.frequentWords(content) {
			if l.len() >= minTags {
				break
			}
			l.add(capitalize(w))
		}
	}

	if content != "" {
		lower := strings.ToLower(content)
		for _, tag := range t.keywords.ExistingTags() {
			if tag != "" && !isPriorityTag(tag) && strings.Contains(lower, strings.ToLower(tag)) {
				l.add(tag)
			}
		}
	}

	for _, tag := range t.keywords.Descriptors(itemType) {
		if l.len() >= minTags {
			break
		}
		l.add(capitalize(tag))
	}

	if l.len() < minTags {
		defaults, ok := defaultTypeTags[itemType]
		if !ok {
			defaults = []string{"Voice", "Transcript", capitalize(itemType)}
		}
		for _, tag := range defaults {
			if l.len() >= minTags {
				break
			}
			l.add(tag)
		}
	}

	switch itemType {
	case "task", "todo":
		if !isPriorityTag(in.Project) {
			l.add(in.Project)
		}
		if tag := dueTag(in.DueDate, t.today()); tag != "" {
			l.add(tag)
		}
	case "project":
		if strings.TrimSpace(in.URL) != "" {
			l.add("Has URL")
		}
		if p := t.inferProject(d); !isPriorityTag(p) {
			l.add(p)
		}
	}

	tags := l.tags
	if len(tags) > maxTags-1 {
		tags = tags[:maxTags-1]
	}
	return append(tags, priorityPrefix+NormalizePriority(in.Priority))
}

// isPriorityTag reports whether tag has the reserved "Priority: X" form
func isPriorityTag(tag string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(tag)), strings.ToLower(priorityPrefix))
}

// frequentWords returns up to 20 words of content by descending frequency,
// ties broken by first appearance, keeping those longer than three
// characters that are not excluded.
func (t *Transformer) frequentWords(content string) []string {
	words := wordPattern.FindAllString(strings.ToLower(content), -1)
	if len(words) == 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > frequentWords {
		order = order[:frequentWords]
	}

	var out []string
	for _, w := range order {
		if len([]rune(w)) > 3 && !t.keywords.IsExcluded(w) {
			out = append(out, w)
		}
	}
	return out
}

// dueTag classifies a due date relative to today. Only the date part is
// compared; unparseable dates give no tag.
func dueTag(due string, today time.Time) string {
	due = strings.TrimSpace(due)
	if len(due) < len(dateLayout) {
		return ""
	}
	d, err := time.ParseInLocation(dateLayout, due[:len(dateLayout)], today.Location())
	if err != nil {
		return ""
	}
	days := int(math.Round(d.Sub(today).Hours() / 24))
	switch {
	case d.Before(today):
		return "Overdue"
	case days == 0:
		return "Due Today"
	case days <= 3:
		return "Due Soon"
	}
	return "Future Due Date"
}
