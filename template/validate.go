package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/orbitretrieval/engine/domain"
)

// Validate checks a single Template for internal consistency, per
// the following invariants:
//   - id, description, body, and at least one nl_example are present
//   - the set of placeholders in body is a subset of parameter names
//   - conditional blocks (if any) are flat, not nested or overlapping
//   - a parameter with validation_regex compiles
func Validate(t *Template) error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.Description == "" {
		return errors.New("description is required")
	}
	if len(t.NLExamples) == 0 {
		return errors.New("at least one nl_example is required")
	}

	body := t.Body
	if body == "" {
		body = t.GraphQLBody
	}
	if body == "" {
		body = t.HTTPEndpoint
	}
	if body == "" {
		return errors.New("body (sql, graphql, or http_endpoint) is required")
	}

	if _, err := ConditionalBlocks(body); err != nil {
		return err
	}

	paramNames := make(map[string]struct{}, len(t.Parameters))
	for _, p := range t.Parameters {
		if p.Name == "" {
			return errors.New("parameter with empty name")
		}
		paramNames[p.Name] = struct{}{}
		if p.Required && p.HasDefault() {
			return fmt.Errorf("parameter %q: required parameters must not declare a default", p.Name)
		}
		if p.ValidationRegex != "" {
			if _, err := regexp.Compile(p.ValidationRegex); err != nil {
				return fmt.Errorf("parameter %q: invalid validation_regex: %w", p.Name, err)
			}
		}
	}

	for _, placeholder := range Placeholders(body) {
		if _, ok := paramNames[placeholder]; !ok {
			return fmt.Errorf("placeholder %q in body has no matching parameter", placeholder)
		}
	}

	return nil
}

// ValidateAgainstDomain additionally checks that every parameter name
// resolves to a domain field (directly or via alias) or a recognized
// semantic type, per the DomainConfig invariant. It also checks
// that a parameter's enum_values, when both the parameter and the
// field it names declare one, agree with the field's enum_values.
func ValidateAgainstDomain(t *Template, cfg *domain.Config) error {
	for _, p := range t.Parameters {
		field, fieldErr := cfg.ResolveField(p.Name)
		_, isSemantic := cfg.SemanticType(p.Name)

		if fieldErr != nil && !isSemantic {
			return fmt.Errorf("parameter %q: %w (not a field alias or semantic type)", p.Name, domain.ErrUnknownField)
		}

		if fieldErr == nil && len(p.EnumValues) > 0 && len(field.EnumValues) > 0 {
			if !enumValuesAgree(p.EnumValues, field.EnumValues) {
				return fmt.Errorf("parameter %q: enum_values %v disagree with field enum_values %v", p.Name, p.EnumValues, field.EnumValues)
			}
		}
	}
	return nil
}

func enumValuesAgree(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	normalized := make(map[string]struct{}, len(b))
	for _, v := range b {
		normalized[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range a {
		if _, ok := normalized[strings.ToLower(v)]; !ok {
			return false
		}
	}
	return true
}
