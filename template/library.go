package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Library holds a set of Templates with O(1) lookup by id. A Library
// is immutable after New/Load returns; a reload constructs a new
// Library and the owner swaps the reference atomically (see the
// engine package).
type Library struct {
	byID map[string]*Template
	ids  []string // preserves load order for deterministic iteration
}

type document struct {
	Templates []*Template `yaml:"templates"`
}

// Load reads one or more template library YAML documents from paths
// and merges them into a single Library. Each document is expected to
// have a top-level "templates" list.
func Load(paths ...string) (*Library, []error, error) {
	var all []*Template
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("template: read %s: %w", path, err)
		}
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("template: parse %s: %w", path, err)
		}
		all = append(all, doc.Templates...)
	}
	return New(all)
}

// New builds a Library from an in-memory template slice, validating
// each one. Templates that fail validation (including duplicate ids)
// are reported but excluded from the Library; the remaining valid
// templates still load ("the library still loads the valid
// ones; the caller decides whether to continue").
func New(templates []*Template) (*Library, []error, error) {
	lib := &Library{byID: make(map[string]*Template, len(templates))}
	var problems []error

	seen := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		if _, dup := seen[t.ID]; dup {
			problems = append(problems, fmt.Errorf("template %q: duplicate id", t.ID))
			continue
		}
		if err := Validate(t); err != nil {
			problems = append(problems, fmt.Errorf("template %q: %w", t.ID, err))
			continue
		}
		seen[t.ID] = struct{}{}
		lib.byID[t.ID] = t
		lib.ids = append(lib.ids, t.ID)
	}
	return lib, problems, nil
}

// Get returns the template registered under id, or false if none
// exists.
func (l *Library) Get(id string) (*Template, bool) {
	t, ok := l.byID[id]
	return t, ok
}

// All returns every valid template in load order. The returned slice
// is owned by the caller; mutating it does not affect the Library.
func (l *Library) All() []*Template {
	out := make([]*Template, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.byID[id])
	}
	return out
}

// Len returns the number of templates held by the Library.
func (l *Library) Len() int {
	return len(l.ids)
}
