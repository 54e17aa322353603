package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/template"
)

// ErrUnboundRequired is returned when a placeholder in a template body
// has no bound value after extraction and conditional resolution,
// detected before dispatch.
var ErrUnboundRequired = errors.New("executor: unbound required placeholder")

// renderBody strips conditional blocks whose guard parameter has no
// value, leaving the rest of the body (including bound blocks' markers
// stripped) intact, then verifies every remaining placeholder has a
// bound value.
func renderBody(kind domain.Type, tmpl *template.Template, values map[string]any) (string, error) {
	body := tmpl.RawBody(kind)

	resolved, err := resolveConditionals(body, values)
	if err != nil {
		return "", err
	}

	for _, name := range template.Placeholders(resolved) {
		if _, ok := values[name]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnboundRequired, name)
		}
	}

	return resolved, nil
}

// resolveConditionals removes each {if name}...{endif} block (markers
// included) when name has no value in values, and strips just the
// markers (keeping the enclosed text) when it does.
func resolveConditionals(body string, values map[string]any) (string, error) {
	blocks, err := template.ConditionalBlocks(body)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return body, nil
	}

	var b strings.Builder
	cursor := 0
	for _, block := range blocks {
		b.WriteString(body[cursor:block.Start])

		inner := innerText(body, block)
		if _, ok := values[block.Parameter]; ok {
			b.WriteString(inner)
		}

		cursor = block.End
	}
	b.WriteString(body[cursor:])

	return b.String(), nil
}

func innerText(body string, block template.ConditionalBlock) string {
	openEnd := strings.Index(body[block.Start:block.End], "}") + block.Start + 1
	closeStart := strings.LastIndex(body[block.Start:block.End], "{endif}") + block.Start
	if openEnd >= closeStart {
		return ""
	}
	return body[openEnd:closeStart]
}
