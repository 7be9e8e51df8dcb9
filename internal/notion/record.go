package notion

import (
	"fmt"

	"github.com/mcao2/lifelog-sync/internal/limitless"
)

// Collection is a destination database
type Collection int

const (
	CollectionTasks Collection = iota
	CollectionProjects
	CollectionTodo
	CollectionLifelog
)

// Collections lists destinations in write order. Tasks precede Todo so that
// parent relations can be resolved.
var Collections = []Collection{CollectionTasks, CollectionProjects, CollectionTodo, CollectionLifelog}

func (c Collection) String() string {
	switch c {
	case CollectionTasks:
		return "tasks"
	case CollectionProjects:
		return "projects"
	case CollectionTodo:
		return "todo"
	case CollectionLifelog:
		return "lifelog"
	}
	return fmt.Sprintf("collection(%d)", int(c))
}

// Singular is the display name of one entry, used for default titles
func (c Collection) Singular() string {
	switch c {
	case CollectionTasks:
		return "Task"
	case CollectionProjects:
		return "Project"
	case CollectionTodo:
		return "Todo"
	case CollectionLifelog:
		return "Lifelog Entry"
	}
	return c.String()
}

// ParseCollection maps a collection name to a Collection
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// ParentTaskProperty is the relation linking a Todo to its Task page
const ParentTaskProperty = "Parent Task"

// Record is one page to be created
type Record struct {
	ItemID       string             `json:"item_id,omitempty"`
	TranscriptID string             `json:"transcript_id,omitempty"`
	ParentItemID string             `json:"parent_item_id,omitempty"`
	Details      *limitless.Details `json:"transcript_details,omitempty"`
	Properties   Properties         `json:"properties"`
}

// RecordSet groups records by destination collection
type RecordSet map[Collection][]Record

// Total returns the number of records across collections
func (s RecordSet) Total() int {
	n := 0
	for _, recs := range s {
		n += len(recs)
	}
	return n
}
