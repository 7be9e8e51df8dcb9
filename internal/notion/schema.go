package notion

import (
	"encoding/json"
	"sort"
	"strings"
)

// SchemaProperty is one column of a database schema
type SchemaProperty struct {
	Name    string
	Type    PropertyType
	Options []string // select, multi_select and status option names in schema order
}

// Schema maps property names to their definitions
type Schema map[string]SchemaProperty

// TagPropertyNames are the multi-select properties treated as tag vocabularies
var TagPropertyNames = []string{"Tags", "Keywords", "Categories"}

// TitleProperty returns the name of the title column, or "" if none
func (s Schema) TitleProperty() string {
	for name, p := range s {
		if p.Type == TypeTitle {
			return name
		}
	}
	return ""
}

// Lookup finds a property by exact name, then case-insensitively
func (s Schema) Lookup(name string) (SchemaProperty, bool) {
	if p, ok := s[name]; ok {
		return p, true
	}
	for n, p := range s {
		if strings.EqualFold(n, name) {
			return p, true
		}
	}
	return SchemaProperty{}, false
}

// ExistingTags returns the options of the first tag-like multi-select property
func (s Schema) ExistingTags() []string {
	for _, name := range TagPropertyNames {
		if p, ok := s[name]; ok && p.Type == TypeMultiSelect {
			return append([]string(nil), p.Options...)
		}
	}
	return nil
}

// Names returns the property names sorted
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type schemaOption struct {
	Name string `json:"name"`
}

type optionList struct {
	Options []schemaOption `json:"options"`
}

type databaseResponse struct {
	ID         string `json:"id"`
	Properties map[string]struct {
		Name        string      `json:"name"`
		Type        string      `json:"type"`
		Select      *optionList `json:"select"`
		MultiSelect *optionList `json:"multi_select"`
		Status      *optionList `json:"status"`
	} `json:"properties"`
}

// ParseSchema decodes a Notion database object into a Schema
func ParseSchema(data []byte) (Schema, error) {
	var resp databaseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	schema := make(Schema, len(resp.Properties))
	for key, p := range resp.Properties {
		name := p.Name
		if name == "" {
			name = key
		}
		sp := SchemaProperty{Name: name, Type: PropertyType(p.Type)}
		for _, list := range []*optionList{p.Select, p.MultiSelect, p.Status} {
			if list == nil {
				continue
			}
			for _, o := range list.Options {
				sp.Options = append(sp.Options, o.Name)
			}
		}
		schema[key] = sp
	}
	return schema, nil
}
