package template

import (
	"errors"
	"fmt"
	"regexp"
)

// ConditionalBlock is a span of a template body delimited by
// "{if name} ... {endif}" markers. The text between the markers is
// retained in the rendered body (markers stripped) only when the named
// parameter has a value after extraction; otherwise the whole block,
// markers included, is removed.
type ConditionalBlock struct {
	Parameter  string
	Start, End int // byte offsets into the body, End exclusive, markers included
}

var (
	ifOpen  = regexp.MustCompile(`\{if\s+([A-Za-z_][A-Za-z0-9_]*)\}`)
	ifClose = regexp.MustCompile(`\{endif\}`)

	// ErrOverlappingConditionals is returned when a template's
	// conditional blocks are nested or overlap. Nested blocks are
	// invalid and rejected at load time.
	ErrOverlappingConditionals = errors.New("template: overlapping or nested conditional blocks")

	// ErrUnmatchedConditional is returned when an {if} marker has no
	// matching {endif}, or vice versa.
	ErrUnmatchedConditional = errors.New("template: unmatched conditional marker")
)

// ConditionalBlocks scans body for {if name}...{endif} markers and
// returns them in order. It returns ErrUnmatchedConditional if opens
// and closes don't pair up one-to-one in document order, and
// ErrOverlappingConditionals if any block's marker pair is nested
// inside another's (flat, non-overlapping usage is the only form this
// engine accepts).
func ConditionalBlocks(body string) ([]ConditionalBlock, error) {
	opens := ifOpen.FindAllStringSubmatchIndex(body, -1)
	closes := ifClose.FindAllStringIndex(body, -1)

	if len(opens) != len(closes) {
		return nil, fmt.Errorf("%w: %d {if} marker(s), %d {endif} marker(s)", ErrUnmatchedConditional, len(opens), len(closes))
	}

	blocks := make([]ConditionalBlock, 0, len(opens))
	lastEnd := -1
	for i, open := range opens {
		openStart, openEnd := open[0], open[1]
		name := body[open[2]:open[3]]

		if i >= len(closes) {
			return nil, fmt.Errorf("%w: {if %s} has no matching {endif}", ErrUnmatchedConditional, name)
		}
		closeStart, closeEnd := closes[i][0], closes[i][1]

		if closeStart < openEnd {
			return nil, fmt.Errorf("%w: {endif} for %q appears before its {if}", ErrOverlappingConditionals, name)
		}
		if openStart < lastEnd {
			return nil, fmt.Errorf("%w: block for %q starts inside a previous block", ErrOverlappingConditionals, name)
		}

		blocks = append(blocks, ConditionalBlock{
			Parameter: name,
			Start:     openStart,
			End:       closeEnd,
		})
		lastEnd = closeEnd
	}
	return blocks, nil
}
