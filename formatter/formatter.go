// Package formatter converts executed template rows into retrieval
// context items, applying a template's response mapping and a
// domain's field display formats.
package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/executor"
	"github.com/orbitretrieval/engine/template"
)

// Metadata describes the provenance of one ContextItem.
type Metadata struct {
	TemplateID     string
	ParametersUsed map[string]any
	ResultCount    int
	Error          string
	SourceKind     domain.Type
}

// ContextItem is one piece of retrieval context handed back to the
// caller.
type ContextItem struct {
	Content    string
	Confidence float64
	Metadata   Metadata
}

// Formatter turns executor rows into ContextItems.
type Formatter struct {
	config *domain.Config
}

// New returns a Formatter that resolves display formats against
// config.
func New(config *domain.Config) *Formatter {
	return &Formatter{config: config}
}

// Format builds the ContextItem list for one template invocation.
// confidence is the winning candidate's similarity; parametersUsed is
// the extracted parameter map recorded into every item's metadata.
func (f *Formatter) Format(tmpl *template.Template, kind domain.Type, rows []executor.Row, confidence float64, parametersUsed map[string]any) []ContextItem {
	meta := Metadata{
		TemplateID:     tmpl.ID,
		ParametersUsed: parametersUsed,
		SourceKind:     kind,
	}

	items := f.locateItems(tmpl, rows)
	meta.ResultCount = len(items)

	if len(items) == 0 {
		meta.ResultCount = 0
		return []ContextItem{{Content: "No results found.", Confidence: confidence, Metadata: meta}}
	}

	switch tmpl.ResultFormat {
	case template.ResultFormatScalar:
		return []ContextItem{{Content: f.renderRow(tmpl, items[0]), Confidence: confidence, Metadata: meta}}
	case template.ResultFormatSummary:
		return []ContextItem{{Content: f.renderSummary(tmpl, items), Confidence: confidence, Metadata: meta}}
	default:
		result := make([]ContextItem, 0, len(items))
		for _, row := range items {
			itemMeta := meta
			itemMeta.ResultCount = 1
			result = append(result, ContextItem{Content: f.renderRow(tmpl, row), Confidence: confidence, Metadata: itemMeta})
		}
		return result
	}
}

// locateItems navigates response_mapping.items_path to find the record
// list within a nested GraphQL/HTTP result. SQL rows are already flat,
// so with no items_path configured the rows pass through unchanged.
func (f *Formatter) locateItems(tmpl *template.Template, rows []executor.Row) []executor.Row {
	if tmpl.ResponseMapping == nil || tmpl.ResponseMapping.ItemsPath == "" {
		return rows
	}
	if len(rows) == 0 {
		return nil
	}

	var root any = map[string]any(rows[0])
	for _, segment := range strings.Split(tmpl.ResponseMapping.ItemsPath, ".") {
		navigated, ok := navigate(root, segment)
		if !ok {
			return nil
		}
		root = navigated
	}

	switch v := root.(type) {
	case []any:
		items := make([]executor.Row, 0, len(v))
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				items = append(items, executor.Row(m))
			}
		}
		return items
	case map[string]any:
		return []executor.Row{v}
	default:
		return nil
	}
}

func navigate(root any, segment string) (any, bool) {
	if index, err := strconv.Atoi(segment); err == nil {
		list, ok := root.([]any)
		if !ok || index < 0 || index >= len(list) {
			return nil, false
		}
		return list[index], true
	}

	m, ok := root.(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := m[segment]
	return value, ok
}

// renderRow formats a single item's fields, applying field mappings
// and display formats when declared.
func (f *Formatter) renderRow(tmpl *template.Template, row executor.Row) string {
	if tmpl.ResponseMapping != nil && len(tmpl.ResponseMapping.Fields) > 0 {
		var parts []string
		for _, mapping := range tmpl.ResponseMapping.Fields {
			value, ok := lookupPath(row, mapping.Path)
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %s", mapping.Field, f.formatField(mapping.Field, value)))
		}
		return strings.Join(parts, ", ")
	}

	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	var parts []string
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, f.formatField(key, row[key])))
	}
	return strings.Join(parts, ", ")
}

func (f *Formatter) renderSummary(tmpl *template.Template, items []executor.Row) string {
	return fmt.Sprintf("Found %d result(s) for %s.", len(items), tmpl.ID)
}

// formatField applies the display_format declared on the domain field
// that name resolves to (by field name, "entity.field" or alias),
// falling back to the plain value when no field or format is known.
func (f *Formatter) formatField(name string, value any) string {
	field, err := f.config.ResolveField(name)
	if err != nil || field.DisplayFormat == "" {
		return fmt.Sprintf("%v", value)
	}
	return applyDisplayFormat(field.DisplayFormat, value)
}

func lookupPath(row executor.Row, path string) (any, bool) {
	var root any = map[string]any(row)
	for _, segment := range strings.Split(path, ".") {
		navigated, ok := navigate(root, segment)
		if !ok {
			return nil, false
		}
		root = navigated
	}
	return root, true
}
