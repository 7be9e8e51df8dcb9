package notion

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

const (
	defaultStatus     = "Not Started"
	maxOptionNameLen  = 100
	resolveExact      = 0
	resolveAlias      = 1
	resolveFold       = 2
	resolveTitleField = 3
)

var commonAliases = map[string]string{
	"Description": "Notes",
	"Content":     "Notes",
	"Due Date":    "Due",
	"Timeline":    "Date Range",
}

var collectionAliases = map[Collection]map[string]string{
	CollectionTasks:    {"Title": "Name"},
	CollectionProjects: {"Name": "Project"},
	CollectionTodo:     {"Title": "Task", "Status": "Done"},
	CollectionLifelog:  {"Entry": "Title"},
}

// Alias returns the alternative destination name for a generic property name
func Alias(c Collection, name string) (string, bool) {
	if a, ok := collectionAliases[c][name]; ok {
		return a, true
	}
	a, ok := commonAliases[name]
	return a, ok
}

type resolution struct {
	source string
	target string
	rank   int
}

// Reconcile adapts generic properties to a live schema. Names are matched
// exactly, then through the alias table, then case-insensitively; values are
// coerced to the schema type; properties the schema cannot hold are dropped.
// The result always populates the schema's title property when it has one.
// A nil schema returns a copy of props unchanged.
func Reconcile(c Collection, props Properties, schema Schema) Properties {
	if schema == nil {
		return props.Clone()
	}

	titleField := schema.TitleProperty()
	var resolved []resolution
	for name, p := range props {
		if target, rank, ok := resolveName(c, name, p, schema, titleField); ok {
			resolved = append(resolved, resolution{source: name, target: target, rank: rank})
		} else {
			slog.Debug("dropping property not in schema", "collection", c, "property", name)
		}
	}
	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].rank != resolved[j].rank {
			return resolved[i].rank < resolved[j].rank
		}
		return resolved[i].source < resolved[j].source
	})

	out := make(Properties, len(resolved))
	for _, r := range resolved {
		if _, taken := out[r.target]; taken {
			slog.Debug("property target already mapped", "collection", c, "property", r.source, "target", r.target)
			continue
		}
		sp := schema[r.target]
		value, ok := coerce(props[r.source], sp)
		if !ok {
			slog.Debug("dropping property with incompatible type", "collection", c, "property", r.source,
				"type", props[r.source].Type, "schema_type", sp.Type)
			continue
		}
		out[r.target] = value
	}

	if status, ok := props["Status"]; ok {
		alias, _ := Alias(c, "Status")
		for name, sp := range schema {
			if sp.Type != TypeCheckbox || !isDoneColumn(name, alias) {
				continue
			}
			if _, ok := out[name]; !ok {
				out[name] = Checkbox(isDoneValue(status.PlainText()))
			}
		}
	}

	for name, sp := range schema {
		if sp.Type != TypeStatus {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = Status(firstOr(sp.Options, defaultStatus))
		}
	}

	if titleField != "" && strings.TrimSpace(out[titleField].Text) == "" {
		text := props.TitleText()
		if text == "" {
			text = "New " + c.Singular()
		}
		out[titleField] = Title(text)
	}
	return out
}

func resolveName(c Collection, name string, p Property, schema Schema, titleField string) (string, int, bool) {
	if _, ok := schema[name]; ok {
		return name, resolveExact, true
	}
	if alias, ok := Alias(c, name); ok {
		if _, ok := schema[alias]; ok {
			return alias, resolveAlias, true
		}
	}
	for n := range schema {
		if strings.EqualFold(n, name) {
			return n, resolveFold, true
		}
	}
	if p.Type == TypeTitle && titleField != "" {
		return titleField, resolveTitleField, true
	}
	return "", 0, false
}

// coerce converts p to the schema property's type
func coerce(p Property, sp SchemaProperty) (Property, bool) {
	switch sp.Type {
	case TypeTitle, TypeRichText:
		if p.Type == TypeRelation || p.Type == TypePeople {
			return Property{}, false
		}
		return Property{Type: sp.Type, Text: p.PlainText()}, true

	case TypeSelect:
		name := candidateName(p)
		if name == "" {
			return Property{}, false
		}
		if len(sp.Options) == 0 {
			return Select(name), true
		}
		if opt, ok := matchOption(sp.Options, name); ok {
			return Select(opt), true
		}
		slog.Info("select value not in schema, using first option", "property", sp.Name,
			"value", name, "fallback", sp.Options[0])
		return Select(sp.Options[0]), true

	case TypeStatus:
		name := candidateName(p)
		if name == "" {
			return Status(firstOr(sp.Options, defaultStatus)), true
		}
		if len(sp.Options) == 0 {
			return Status(name), true
		}
		if opt, ok := matchOption(sp.Options, name); ok {
			return Status(opt), true
		}
		slog.Info("status value not in schema, using first option", "property", sp.Name,
			"value", name, "fallback", sp.Options[0])
		return Status(sp.Options[0]), true

	case TypeMultiSelect:
		var names []string
		if p.Type == TypeMultiSelect {
			names = p.Names
		} else if n := candidateName(p); n != "" {
			names = []string{n}
		}
		return MultiSelect(cleanOptionNames(names, sp.Options)...), true

	case TypeDate:
		if p.Type == TypeDate && p.Date != nil {
			return p.clone(), true
		}
		if text := strings.TrimSpace(p.PlainText()); ValidDate(text) {
			return Date(text), true
		}
		return Property{}, false

	case TypeCheckbox:
		if p.Type == TypeCheckbox {
			return p, true
		}
		return Checkbox(isDoneValue(p.PlainText())), true

	case TypeNumber:
		if p.Type == TypeNumber && p.Number != nil {
			return p.clone(), true
		}
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p.PlainText()), "%"))
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return Number(v), true
		}
		return Property{}, false

	case TypeRelation:
		if p.Type == TypeRelation {
			return p.clone(), true
		}
		return Relation(), true

	case TypePeople:
		if p.Type == TypePeople {
			return p.clone(), true
		}
		return People(), true
	}
	return Property{}, false
}

func candidateName(p Property) string {
	switch p.Type {
	case TypeSelect, TypeStatus:
		return strings.TrimSpace(p.Name)
	case TypeMultiSelect:
		if len(p.Names) > 0 {
			return strings.TrimSpace(p.Names[0])
		}
		return ""
	case TypeTitle, TypeRichText:
		return strings.TrimSpace(p.Text)
	case TypeCheckbox:
		if p.Checkbox {
			return "Done"
		}
		return ""
	}
	return ""
}

func matchOption(options []string, name string) (string, bool) {
	for _, o := range options {
		if strings.EqualFold(o, name) {
			return o, true
		}
	}
	return "", false
}

// cleanOptionNames drops commas, caps length, dedupes case-insensitively and
// reuses the schema's spelling of existing options.
func cleanOptionNames(names, options []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if n == "" {
			continue
		}
		if r := []rune(n); len(r) > maxOptionNameLen {
			n = string(r[:maxOptionNameLen])
		}
		if opt, ok := matchOption(options, n); ok {
			n = opt
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// isDoneColumn reports whether a checkbox column tracks completion
func isDoneColumn(name, alias string) bool {
	if alias != "" && name == alias {
		return true
	}
	switch strings.ToLower(name) {
	case "done", "completed", "complete":
		return true
	}
	return false
}

func isDoneValue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "done", "completed", "finished", "true":
		return true
	}
	return false
}

func firstOr(options []string, fallback string) string {
	if len(options) > 0 {
		return options[0]
	}
	return fallback
}
