// Package template holds the in-memory Template library: parameterized
// query templates plus the metadata needed to select, validate, and
// execute them.
package template

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/orbitretrieval/engine/domain"
	"gopkg.in/yaml.v3"
)

// ResultFormat controls how ResultFormatter turns rows into context
// items.
type ResultFormat string

const (
	ResultFormatList    ResultFormat = "list"
	ResultFormatScalar  ResultFormat = "scalar"
	ResultFormatSummary ResultFormat = "summary"
)

// ParameterLocation is where an HTTP-bound parameter is placed.
type ParameterLocation string

const (
	LocationPath   ParameterLocation = "path"
	LocationQuery  ParameterLocation = "query"
	LocationHeader ParameterLocation = "header"
	LocationBody   ParameterLocation = "body"
)

// Parameter is one named, typed slot in a template body.
type Parameter struct {
	Name            string          `yaml:"name"`
	DataType        domain.DataType `yaml:"data_type"`
	Required        bool            `yaml:"required"`
	Description     string          `yaml:"description"`
	Example         string          `yaml:"example"`
	Default         any             `yaml:"default"`
	EnumValues      []string        `yaml:"enum_values"`
	ValidationRegex string          `yaml:"validation_regex"`
	GraphQLType     string          `yaml:"graphql_type"`
	Location        ParameterLocation `yaml:"location"`
}

// HasDefault reports whether the parameter declares a default value.
func (p *Parameter) HasDefault() bool {
	return p.Default != nil
}

// SemanticTags classify what kind of intent a template answers.
type SemanticTags struct {
	Action          string   `yaml:"action"`
	PrimaryEntity   string   `yaml:"primary_entity"`
	SecondaryEntity string   `yaml:"secondary_entity"`
	Qualifiers      []string `yaml:"qualifiers"`
}

// FieldMapping maps one output field name to a path within a raw
// result record (used for GraphQL/HTTP response shapes).
type FieldMapping struct {
	Field string `yaml:"field"`
	Path  string `yaml:"path"`
}

// ResponseMapping locates the list of result items within a nested
// result document and maps their fields for display.
type ResponseMapping struct {
	ItemsPath string         `yaml:"items_path"`
	Fields    []FieldMapping `yaml:"fields"`
}

// Template is a parameterized query (SQL text, GraphQL document, or
// HTTP endpoint+method+body) plus the metadata needed to find, fill,
// and run it.
type Template struct {
	ID              string          `yaml:"id"`
	Version         string          `yaml:"version"`
	Description     string          `yaml:"description"`
	Body            string          `yaml:"sql"`
	GraphQLBody     string          `yaml:"graphql"`
	HTTPMethod      string          `yaml:"http_method"`
	HTTPEndpoint    string          `yaml:"http_endpoint"`
	Parameters      []*Parameter    `yaml:"parameters"`
	NLExamples      []string        `yaml:"nl_examples"`
	SemanticTags    *SemanticTags   `yaml:"semantic_tags"`
	ResponseMapping *ResponseMapping `yaml:"response_mapping"`
	ResultFormat    ResultFormat    `yaml:"result_format"`
	Approved        bool            `yaml:"approved"`
}

// UnmarshalYAML accepts the original project's sql_template key as an
// alias for sql, so SQL template libraries authored for the upstream
// project load unchanged.
func (t *Template) UnmarshalYAML(value *yaml.Node) error {
	type alias Template
	var raw struct {
		alias       `yaml:",inline"`
		SQLTemplate string `yaml:"sql_template"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*t = Template(raw.alias)
	if t.Body == "" && raw.SQLTemplate != "" {
		t.Body = raw.SQLTemplate
	}
	return nil
}

// RawBody returns whichever of Body, GraphQLBody, or HTTPEndpoint
// applies, based on kind.
func (t *Template) RawBody(kind domain.Type) string {
	switch kind {
	case domain.TypeGraphQL:
		return t.GraphQLBody
	case domain.TypeHTTP:
		return t.HTTPEndpoint
	default:
		return t.Body
	}
}

// Parameter returns the declared parameter named name, or nil.
func (t *Template) Parameter(name string) *Parameter {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`),  // SQL
	regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`), // GraphQL variables
	regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`), // HTTP
}

// Placeholders returns the set of distinct parameter names referenced
// by body, across all three placeholder syntaxes (:name, $name,
// {name}), deduplicated.
func Placeholders(body string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, pattern := range placeholderPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			name := match[1]
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	return names
}

// EmbeddingText deterministically concatenates the fields used to
// derive this template's vector embedding: description, nl_examples,
// semantic tags, and underscore-spaced parameter names, joined with a
// fixed separator. Two calls on the same Template value always return
// byte-identical output (invariant required by TemplateMatcher and by
// the content-hash reconciliation in the vector store).
func (t *Template) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Description))
	b.WriteString("\n---\n")
	b.WriteString(strings.Join(t.NLExamples, "\n"))
	b.WriteString("\n---\n")
	if t.SemanticTags != nil {
		parts := []string{t.SemanticTags.Action, t.SemanticTags.PrimaryEntity, t.SemanticTags.SecondaryEntity}
		parts = append(parts, t.SemanticTags.Qualifiers...)
		b.WriteString(strings.Join(nonEmpty(parts), " "))
	}
	b.WriteString("\n---\n")
	names := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		names = append(names, strings.ReplaceAll(p.Name, "_", " "))
	}
	b.WriteString(strings.Join(names, " "))
	return b.String()
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ContentHash returns the sha256 hex digest of the template's
// embedding text. It changes if and only if EmbeddingText changes,
// which drives the diff-based reconciliation against the vector
// store: a template is only re-embedded when this hash changes.
//
// A single sha256 sum needs no third-party dependency; crypto/sha256
// is the idiomatic choice here even in a codebase that otherwise
// prefers ecosystem libraries.
func (t *Template) ContentHash() string {
	sum := sha256.Sum256([]byte(t.EmbeddingText()))
	return hex.EncodeToString(sum[:])
}
