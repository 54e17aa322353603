package extractor

import (
	"fmt"
	"strings"

	"github.com/orbitretrieval/engine/template"
)

const systemPrompt = `You extract structured parameters from a user's question for one specific query template.
Respond with a single JSON object mapping parameter name to value. Match each value to its declared data type.
Omit any parameter you cannot determine from the question. Do not include any text outside the JSON object.`

// BuildPrompt renders the system and user prompt halves of the
// extraction request: the system half states the output contract, the
// user half lists the template's declared parameters, a handful of
// example questions the template was written against, and the query
// text verbatim. examples is normally tmpl.NLExamples, but callers
// trim it to stay within a token budget, so it's taken separately
// rather than read off tmpl directly.
func BuildPrompt(tmpl *template.Template, query string, examples []string) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\n%s\n\nParameters:\n", tmpl.ID, tmpl.Description)

	for _, p := range tmpl.Parameters {
		fmt.Fprintf(&b, "- name: %s\n", p.Name)
		fmt.Fprintf(&b, "  data_type: %s\n", p.DataType)
		if p.Description != "" {
			fmt.Fprintf(&b, "  description: %s\n", p.Description)
		}
		if p.Example != "" {
			fmt.Fprintf(&b, "  example: %s\n", p.Example)
		}
		if p.HasDefault() {
			fmt.Fprintf(&b, "  default: %v\n", p.Default)
		}
		if len(p.EnumValues) > 0 {
			fmt.Fprintf(&b, "  enum_values: %s\n", strings.Join(p.EnumValues, ", "))
		}
		fmt.Fprintf(&b, "  required: %t\n", p.Required)
	}

	if len(examples) > 0 {
		b.WriteString("\nExample questions this template answers:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "- %s\n", ex)
		}
	}

	fmt.Fprintf(&b, "\nUser question: %s\n", query)
	b.WriteString("\nRespond with only the JSON object.")

	return systemPrompt, b.String()
}
