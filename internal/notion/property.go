// Package notion maps generic records onto live Notion database schemas and
// writes them through the Notion REST API.
package notion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PropertyType is a Notion property type
type PropertyType string

const (
	TypeTitle       PropertyType = "title"
	TypeRichText    PropertyType = "rich_text"
	TypeSelect      PropertyType = "select"
	TypeMultiSelect PropertyType = "multi_select"
	TypeDate        PropertyType = "date"
	TypeCheckbox    PropertyType = "checkbox"
	TypeNumber      PropertyType = "number"
	TypeRelation    PropertyType = "relation"
	TypeStatus      PropertyType = "status"
	TypePeople      PropertyType = "people"
)

// maxTextChunk is the Notion limit for one rich text object
const maxTextChunk = 2000

// DateValue is a Notion date with optional end
type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Property is a tagged property value. Only the fields for Type are meaningful.
type Property struct {
	Type     PropertyType
	Text     string     // title, rich_text
	Name     string     // select, status
	Names    []string   // multi_select
	Date     *DateValue // date
	Checkbox bool       // checkbox
	Number   *float64   // number
	IDs      []string   // relation page ids, people user ids
}

func Title(text string) Property    { return Property{Type: TypeTitle, Text: text} }
func RichText(text string) Property { return Property{Type: TypeRichText, Text: text} }
func Select(name string) Property   { return Property{Type: TypeSelect, Name: name} }
func Status(name string) Property   { return Property{Type: TypeStatus, Name: name} }
func Checkbox(v bool) Property      { return Property{Type: TypeCheckbox, Checkbox: v} }

func MultiSelect(names ...string) Property {
	return Property{Type: TypeMultiSelect, Names: names}
}

func Date(start string) Property {
	return Property{Type: TypeDate, Date: &DateValue{Start: start}}
}

func DateRange(start, end string) Property {
	return Property{Type: TypeDate, Date: &DateValue{Start: start, End: end}}
}

func Number(v float64) Property {
	return Property{Type: TypeNumber, Number: &v}
}

// Relation links to pages by id; no ids yields an empty relation
func Relation(pageIDs ...string) Property {
	return Property{Type: TypeRelation, IDs: pageIDs}
}

// People references users by id; no ids yields an empty list
func People(userIDs ...string) Property {
	return Property{Type: TypePeople, IDs: userIDs}
}

// PlainText renders the value as text, used when coercing across types
func (p Property) PlainText() string {
	switch p.Type {
	case TypeTitle, TypeRichText:
		return p.Text
	case TypeSelect, TypeStatus:
		return p.Name
	case TypeMultiSelect:
		return strings.Join(p.Names, ", ")
	case TypeDate:
		if p.Date == nil {
			return ""
		}
		if p.Date.End != "" {
			return p.Date.Start + " to " + p.Date.End
		}
		return p.Date.Start
	case TypeCheckbox:
		return strconv.FormatBool(p.Checkbox)
	case TypeNumber:
		if p.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*p.Number, 'f', -1, 64)
	}
	return ""
}

type textContent struct {
	Content string `json:"content"`
}

type richTextObject struct {
	Text textContent `json:"text"`
}

type nameObject struct {
	Name string `json:"name"`
}

type idObject struct {
	Object string `json:"object,omitempty"`
	ID     string `json:"id"`
}

// richTextArray splits text into rich text objects of at most 2000 characters
func richTextArray(text string) []richTextObject {
	out := []richTextObject{}
	for len(text) > 0 {
		n, cut := 0, len(text)
		for i := range text {
			if n == maxTextChunk {
				cut = i
				break
			}
			n++
		}
		out = append(out, richTextObject{Text: textContent{Content: text[:cut]}})
		text = text[cut:]
	}
	return out
}

// MarshalJSON encodes the value in the Notion page properties format
func (p Property) MarshalJSON() ([]byte, error) {
	var v any
	switch p.Type {
	case TypeTitle, TypeRichText:
		v = richTextArray(p.Text)
	case TypeSelect, TypeStatus:
		if p.Name == "" {
			v = nil
		} else {
			v = nameObject{Name: p.Name}
		}
	case TypeMultiSelect:
		names := make([]nameObject, 0, len(p.Names))
		for _, n := range p.Names {
			names = append(names, nameObject{Name: n})
		}
		v = names
	case TypeDate:
		if p.Date == nil {
			v = nil
		} else {
			v = p.Date
		}
	case TypeCheckbox:
		v = p.Checkbox
	case TypeNumber:
		if p.Number == nil {
			v = nil
		} else {
			v = *p.Number
		}
	case TypeRelation:
		ids := make([]idObject, 0, len(p.IDs))
		for _, id := range p.IDs {
			ids = append(ids, idObject{ID: id})
		}
		v = ids
	case TypePeople:
		ids := make([]idObject, 0, len(p.IDs))
		for _, id := range p.IDs {
			ids = append(ids, idObject{Object: "user", ID: id})
		}
		v = ids
	default:
		return nil, fmt.Errorf("unknown property type %q", p.Type)
	}
	return json.Marshal(map[string]any{string(p.Type): v})
}

// Properties is a page property map keyed by property name
type Properties map[string]Property

// Clone returns a shallow copy with slice and pointer fields duplicated
func (ps Properties) Clone() Properties {
	out := make(Properties, len(ps))
	for name, p := range ps {
		out[name] = p.clone()
	}
	return out
}

func (p Property) clone() Property {
	c := p
	if p.Names != nil {
		c.Names = append([]string(nil), p.Names...)
	}
	if p.IDs != nil {
		c.IDs = append([]string(nil), p.IDs...)
	}
	if p.Date != nil {
		d := *p.Date
		c.Date = &d
	}
	if p.Number != nil {
		n := *p.Number
		c.Number = &n
	}
	return c
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
}

// ValidDate reports whether s is an ISO 8601 date or date-time Notion accepts
func ValidDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// SanitizeDates returns a copy where every date property has a valid start
// (today when missing or invalid) and an end that is either valid or absent.
// Applying it twice gives the same result as applying it once.
func (ps Properties) SanitizeDates(today time.Time) Properties {
	out := ps.Clone()
	for name, p := range out {
		if p.Type != TypeDate {
			continue
		}
		d := DateValue{}
		if p.Date != nil {
			d = *p.Date
		}
		d.Start = strings.TrimSpace(d.Start)
		d.End = strings.TrimSpace(d.End)
		if !ValidDate(d.Start) {
			d.Start = today.Format("2006-01-02")
		}
		if d.End != "" && !ValidDate(d.End) {
			d.End = ""
		}
		p.Date = &d
		out[name] = p
	}
	return out
}

// TitleText returns the text of the first populated title property
func (ps Properties) TitleText() string {
	for _, p := range ps {
		if p.Type == TypeTitle && strings.TrimSpace(p.Text) != "" {
			return p.Text
		}
	}
	return ""
}
