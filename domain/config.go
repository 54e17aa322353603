// Package domain parses and exposes lookups over a DomainConfig document:
// the declarative description of one target domain's entities, fields,
// relationships, vocabulary, and semantic types that drives tokenization,
// parameter resolution, and result display for the retrieval engine.
package domain

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataType is the tagged type of a Field or Parameter value, replacing
// runtime type introspection with a fixed coercion matrix (see the
// extractor package).
type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeInteger  DataType = "integer"
	DataTypeDecimal  DataType = "decimal"
	DataTypeDate     DataType = "date"
	DataTypeDateTime DataType = "datetime"
	DataTypeBoolean  DataType = "boolean"
	DataTypeEnum     DataType = "enum"
)

// EntityType classifies how an entity participates in queries.
type EntityType string

const (
	EntityTypePrimary     EntityType = "primary"
	EntityTypeTransaction EntityType = "transaction"
	EntityTypeReference   EntityType = "reference"
	EntityTypeLookup      EntityType = "lookup"
)

// Type is the datasource kind a DomainConfig targets.
type Type string

const (
	TypeSQL     Type = "sql"
	TypeGraphQL Type = "graphql"
	TypeHTTP    Type = "http"
)

// Entity describes one addressable noun in the domain: a SQL table, a
// GraphQL type, or an HTTP resource collection.
type Entity struct {
	Name              string   `yaml:"-"`
	EntityType        EntityType `yaml:"entity_type"`
	PhysicalName      string   `yaml:"physical_name"`
	PrimaryKey        string   `yaml:"primary_key"`
	DisplayNameField  string   `yaml:"display_name_field"`
	SearchableFields  []string `yaml:"searchable_fields"`
	CommonFilters     []string `yaml:"common_filters"`
	DefaultSortField  string   `yaml:"default_sort_field"`
}

// UnmarshalYAML accepts the original project's entity key names
// (table_name / endpoint / graphql_type) as aliases for physical_name,
// so domain documents authored for the upstream Python project load
// here without rewriting.
func (e *Entity) UnmarshalYAML(value *yaml.Node) error {
	type alias Entity
	var raw struct {
		alias       `yaml:",inline"`
		TableName   string `yaml:"table_name"`
		Endpoint    string `yaml:"endpoint"`
		GraphQLType string `yaml:"graphql_type"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*e = Entity(raw.alias)
	for _, legacy := range []string{raw.TableName, raw.Endpoint, raw.GraphQLType} {
		if e.PhysicalName == "" && legacy != "" {
			e.PhysicalName = legacy
		}
	}
	return nil
}

// Field describes one attribute of an Entity.
type Field struct {
	Entity         string   `yaml:"-"`
	Name           string   `yaml:"-"`
	DataType       DataType `yaml:"data_type"`
	PhysicalColumn string   `yaml:"physical_column"`
	Required       bool     `yaml:"required"`
	Searchable     bool     `yaml:"searchable"`
	Filterable     bool     `yaml:"filterable"`
	Sortable       bool     `yaml:"sortable"`
	DisplayFormat  string   `yaml:"display_format"`
	EnumValues     []string `yaml:"enum_values"`
	Aliases        []string `yaml:"aliases"`
}

// UnmarshalYAML accepts the original project's db_column key as an
// alias for physical_column.
func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	type alias Field
	var raw struct {
		alias    `yaml:",inline"`
		DBColumn string `yaml:"db_column"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*f = Field(raw.alias)
	if f.PhysicalColumn == "" && raw.DBColumn != "" {
		f.PhysicalColumn = raw.DBColumn
	}
	return nil
}

// RelationType is the cardinality of a Relationship.
type RelationType string

const (
	RelationOneToOne   RelationType = "one_to_one"
	RelationOneToMany  RelationType = "one_to_many"
	RelationManyToMany RelationType = "many_to_many"
)

// Relationship links two entities through a named field pair.
type Relationship struct {
	Name         string       `yaml:"name"`
	FromEntity   string       `yaml:"from_entity"`
	ToEntity     string       `yaml:"to_entity"`
	RelationType RelationType `yaml:"relation_type"`
	FromField    string       `yaml:"from_field"`
	ToField      string       `yaml:"to_field"`
}

// Vocabulary holds the phrase-level knowledge used to normalize a raw
// query before parameter extraction and to detect relative time windows.
type Vocabulary struct {
	EntitySynonyms  map[string][]string `yaml:"entity_synonyms"`
	ActionVerbs     map[string][]string `yaml:"action_verbs"`
	FieldSynonyms   map[string][]string `yaml:"field_synonyms"`
	TimeExpressions map[string]int      `yaml:"time_expressions"`
	CommonPhrases   map[string]string   `yaml:"common_phrases"`
}

// SemanticType names a recognizable literal or pattern-based value kind
// (e.g. "email", "zip_code") independent of any single field.
type SemanticType struct {
	Description   string   `yaml:"description"`
	Patterns      []string `yaml:"patterns"`
	RegexPatterns []string `yaml:"regex_patterns"`

	compiled []*regexp.Regexp
}

// Config is the parsed, immutable DomainConfig document. A Config is
// safe for concurrent read access once returned from Load; it is never
// mutated in place; a reload builds a new Config and the owner swaps
// the pointer atomically.
type Config struct {
	DomainName    string                    `yaml:"domain_name"`
	Description   string                    `yaml:"description"`
	DomainType    Type                      `yaml:"domain_type"`
	Entities      map[string]*Entity        `yaml:"entities"`
	Fields        map[string]map[string]*Field `yaml:"fields"`
	Relationships []*Relationship           `yaml:"relationships"`
	Vocabulary    *Vocabulary               `yaml:"vocabulary"`
	SemanticTypes map[string]*SemanticType  `yaml:"semantic_types"`

	// fieldIndex maps a normalized lookup key (lower-cased field name,
	// "entity.field", or any alias) to the resolved field. Built once
	// after unmarshal; read-only thereafter.
	fieldIndex map[string]*Field
}

var (
	// ErrUnknownField is returned by ResolveField when no field or
	// alias matches the requested name.
	ErrUnknownField = errors.New("domain: unknown field")

	// ErrInvalidConfig is returned by Load when a required top-level
	// section is missing from the document.
	ErrInvalidConfig = errors.New("domain: invalid config")
)

var requiredTopLevelFields = []string{
	"domain_name", "description", "entities", "fields", "relationships", "vocabulary",
}

// Load reads and parses a DomainConfig document from path, builds the
// field resolution index, and compiles semantic-type regex patterns.
//
// Load rejects a document missing any of the required top-level
// sections (domain_name, description, entities, fields, relationships,
// vocabulary); unknown optional sections are ignored by yaml.v3's
// default unmarshalling but remain present in the source file for
// forward compatibility — this package simply never reads them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("domain: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a DomainConfig document from raw YAML bytes. It is
// exposed separately from Load so callers that already hold the bytes
// (e.g. fetched from a config service) do not need a filesystem round
// trip.
func Parse(data []byte) (*Config, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("domain: parse: %w", err)
	}
	var missing []string
	for _, field := range requiredTopLevelFields {
		if _, ok := raw[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required field(s): %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("domain: unmarshal: %w", err)
	}

	for name, entity := range cfg.Entities {
		entity.Name = name
	}
	for entityName, fields := range cfg.Fields {
		for fieldName, field := range fields {
			field.Entity = entityName
			field.Name = fieldName
		}
	}
	for name, st := range cfg.SemanticTypes {
		for _, pattern := range st.RegexPatterns {
			compiled, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("domain: semantic type %q: compile regex %q: %w", name, pattern, err)
			}
			st.compiled = append(st.compiled, compiled)
		}
	}

	cfg.buildFieldIndex()
	return cfg, nil
}

func (c *Config) buildFieldIndex() {
	c.fieldIndex = make(map[string]*Field)
	for entityName, fields := range c.Fields {
		for fieldName, field := range fields {
			c.indexField(fieldName, field)
			c.indexField(entityName+"."+fieldName, field)
			for _, alias := range field.Aliases {
				c.indexField(alias, field)
			}
		}
	}
}

func (c *Config) indexField(key string, field *Field) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return
	}
	if _, exists := c.fieldIndex[normalized]; !exists {
		c.fieldIndex[normalized] = field
	}
}

// ResolveField returns the field (from any entity) whose name or alias
// matches name, case-insensitively. name may also be qualified as
// "entity.field". It fails with ErrUnknownField when nothing matches.
func (c *Config) ResolveField(name string) (*Field, error) {
	field, ok := c.fieldIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return field, nil
}

// SemanticType returns the semantic type definition registered under
// name, or false if none is registered.
func (c *Config) SemanticType(name string) (*SemanticType, bool) {
	st, ok := c.SemanticTypes[name]
	return st, ok
}

// Matches reports whether value satisfies this semantic type, either by
// exact (case-insensitive) literal match against Patterns or by
// matching one of the compiled RegexPatterns.
func (st *SemanticType) Matches(value string) bool {
	for _, literal := range st.Patterns {
		if strings.EqualFold(literal, value) {
			return true
		}
	}
	for _, re := range st.compiled {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// NormalizeVocabulary rewrites text using the domain's common-phrases
// table with longest-match-first substitution, and returns the
// rewritten text plus the set of entity names mentioned in it (matched
// against entity keys and their entity_synonyms).
func (c *Config) NormalizeVocabulary(text string) (string, map[string]struct{}) {
	rewritten := c.rewriteCommonPhrases(text)
	mentioned := c.entitiesMentioned(rewritten)
	return rewritten, mentioned
}

func (c *Config) rewriteCommonPhrases(text string) string {
	if c.Vocabulary == nil || len(c.Vocabulary.CommonPhrases) == 0 {
		return text
	}
	phrases := make([]string, 0, len(c.Vocabulary.CommonPhrases))
	for phrase := range c.Vocabulary.CommonPhrases {
		phrases = append(phrases, phrase)
	}
	// Longest match first so "orders from last week" doesn't get
	// partially rewritten by a shorter overlapping phrase.
	sortByLengthDesc(phrases)

	result := text
	lower := strings.ToLower(result)
	for _, phrase := range phrases {
		replacement := c.Vocabulary.CommonPhrases[phrase]
		needle := strings.ToLower(phrase)
		for {
			idx := strings.Index(lower, needle)
			if idx == -1 {
				break
			}
			result = result[:idx] + replacement + result[idx+len(phrase):]
			lower = strings.ToLower(result)
		}
	}
	return result
}

func sortByLengthDesc(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && len(s[j-1]) < len(s[j]); j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (c *Config) entitiesMentioned(text string) map[string]struct{} {
	mentioned := make(map[string]struct{})
	lower := strings.ToLower(text)
	for name := range c.Entities {
		if strings.Contains(lower, strings.ToLower(name)) {
			mentioned[name] = struct{}{}
		}
	}
	if c.Vocabulary != nil {
		for entity, synonyms := range c.Vocabulary.EntitySynonyms {
			for _, synonym := range synonyms {
				if strings.Contains(lower, strings.ToLower(synonym)) {
					mentioned[entity] = struct{}{}
					break
				}
			}
		}
	}
	return mentioned
}

var relativeTimePattern = regexp.MustCompile(`(?i)last\s+(\d+)\s*(day|days|week|weeks|month|months)`)

// TimePhraseToDays returns the recognized integer day count for phrase,
// or nil if it is not recognized.
//
// The domain's explicit vocabulary.time_expressions table is checked
// first (exact, case-insensitive match). If nothing matches, a small
// "last N <unit>" grammar is applied as a fallback: weeks convert to
// 7 days and months to 30 days.
func (c *Config) TimePhraseToDays(phrase string) *int {
	normalized := strings.ToLower(strings.TrimSpace(phrase))
	if c.Vocabulary != nil {
		for known, days := range c.Vocabulary.TimeExpressions {
			if strings.ToLower(known) == normalized {
				d := days
				return &d
			}
		}
	}

	match := relativeTimePattern.FindStringSubmatch(normalized)
	if match == nil {
		return nil
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	switch {
	case strings.HasPrefix(match[2], "week"):
		n *= 7
	case strings.HasPrefix(match[2], "month"):
		n *= 30
	}
	return &n
}
