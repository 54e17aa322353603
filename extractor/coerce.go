package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/orbitretrieval/engine/domain"
)

// stripCodeFences removes a single leading/trailing ``` fenced block if
// the LLM wrapped its JSON output in one, tolerating an optional
// language tag on the opening fence.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{\"") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// firstBalancedObject scans text for the first top-level balanced
// {...} span, so prose the model adds around the JSON object (contrary
// to instructions) doesn't break parsing.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseJSONObject strips fences and extracts the first balanced JSON
// object from raw, then unmarshals it into a generic map.
func parseJSONObject(raw string) (map[string]any, error) {
	stripped := stripCodeFences(raw)
	objectText, ok := firstBalancedObject(stripped)
	if !ok {
		return nil, fmt.Errorf("extractor: no JSON object found in response")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(objectText), &out); err != nil {
		return nil, fmt.Errorf("extractor: failed to parse JSON object: %w", err)
	}
	return out, nil
}

// coerceValue converts raw into the declared data type, matching the
// coercions the extraction pipeline promises: string->int, string->
// decimal via safe parse, ISO date/datetime for date types, boolean
// literal parse.
func coerceValue(dataType domain.DataType, raw any) (any, error) {
	switch dataType {
	case domain.DataTypeInteger:
		return cast.ToInt64E(raw)
	case domain.DataTypeDecimal:
		return cast.ToFloat64E(raw)
	case domain.DataTypeBoolean:
		return cast.ToBoolE(raw)
	case domain.DataTypeDate:
		return parseISODate(raw, "2006-01-02")
	case domain.DataTypeDateTime:
		return parseISODate(raw, time.RFC3339)
	case domain.DataTypeString, domain.DataTypeEnum:
		return cast.ToStringE(raw)
	default:
		return cast.ToStringE(raw)
	}
}

func parseISODate(raw any, layout string) (time.Time, error) {
	s, err := cast.ToStringE(raw)
	if err != nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("extractor: %q is not a valid %s value: %w", s, layout, err)
	}
	return parsed, nil
}
