// Package extractor turns a user query plus a matched template into
// typed parameter values, by prompting an LLM and running its response
// through a fixed post-processing pipeline.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/llm"
	"github.com/orbitretrieval/engine/template"
	"github.com/orbitretrieval/engine/tokenizer"
)

// Status classifies the outcome of an extraction attempt.
type Status string

const (
	StatusOK              Status = "ok"
	StatusMissingRequired  Status = "missing_required"
	StatusTypeError        Status = "type_error"
	StatusLLMParseError    Status = "llm_parse_error"
)

// Result is the outcome of extracting parameters for one template
// against one query.
type Result struct {
	Values     map[string]any
	Status     Status
	TypeErrors []string
}

// Extractor prompts an LLM for structured parameter values and runs
// the result through type coercion, defaulting, and enum validation.
type Extractor struct {
	llm       llm.LLM
	config    *domain.Config
	timeout   time.Duration
	maxTokens int64
	estimator tokenizer.Estimator
	logger    zerolog.Logger
}

// New returns an Extractor. timeout bounds every LLM call; a timed-out
// call surfaces as StatusLLMParseError so the engine can fall back to
// the next candidate template.
func New(model llm.LLM, config *domain.Config, timeout time.Duration, logger zerolog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Extractor{
		llm:     model,
		config:  config,
		timeout: timeout,
		logger:  logger.With().Str("component", "extractor").Logger(),
	}
}

// WithTokenBudget enables prompt trimming: once estimator reports the
// rendered prompt would exceed maxTokens, Extract drops the template's
// nl_examples one at a time, re-estimating after each drop, until the
// prompt fits or no examples remain. Returns e so it can be chained
// onto New.
func (e *Extractor) WithTokenBudget(maxTokens int64, estimator tokenizer.Estimator) *Extractor {
	e.maxTokens = maxTokens
	e.estimator = estimator
	return e
}

// timeWindowKeywords are substrings that mark a parameter (or a
// domain field alias it resolves to) as plausibly denoting a recency
// window, so a detected "last N days" phrase in the query can seed a
// default the LLM is free to override. A substring match, rather than
// a fixed list of exact parameter names, is what lets a date-typed
// parameter like "since" or "from_date" pick up the same default an
// integer "days_back" parameter would.
var timeWindowKeywords = []string{"time", "date", "days", "since", "window", "period", "recency"}

// Extract runs semantic enrichment on query, prompts the LLM for tmpl's
// declared parameters, and post-processes the response into typed,
// defaulted, validated values.
func (e *Extractor) Extract(ctx context.Context, query string, tmpl *template.Template) (*Result, error) {
	normalizedQuery, _ := e.config.NormalizeVocabulary(query)
	timeWindowDays := detectTimeWindow(e.config, normalizedQuery)

	system, user := e.buildBudgetedPrompt(ctx, tmpl, normalizedQuery)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.llm.Generate(callCtx, system, user, llm.Options{})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			e.logger.Warn().Str("template_id", tmpl.ID).Msg("parameter extraction timed out")
			return &Result{Status: StatusLLMParseError}, nil
		}
		return nil, fmt.Errorf("extractor: llm call failed: %w", err)
	}

	parsed, err := parseJSONObject(raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("template_id", tmpl.ID).Msg("failed to parse LLM response as JSON")
		return &Result{Status: StatusLLMParseError}, nil
	}

	return e.postProcess(tmpl, parsed, timeWindowDays), nil
}

// buildBudgetedPrompt renders the prompt for tmpl/query with its full
// nl_examples, then, if a token budget is configured, drops examples
// from the end until the estimated token count fits or none remain. A
// failed estimate is logged and the full prompt is used as-is rather
// than blocking extraction on a budgeting failure.
func (e *Extractor) buildBudgetedPrompt(ctx context.Context, tmpl *template.Template, query string) (system, user string) {
	examples := tmpl.NLExamples
	system, user = BuildPrompt(tmpl, query, examples)

	if e.estimator == nil || e.maxTokens <= 0 {
		return system, user
	}

	for len(examples) > 0 {
		count, err := e.estimator.EstimateText(ctx, system+user)
		if err != nil {
			e.logger.Warn().Err(err).Str("template_id", tmpl.ID).Msg("token estimation failed; using untrimmed prompt")
			return system, user
		}
		if int64(count) <= e.maxTokens {
			return system, user
		}
		examples = examples[:len(examples)-1]
		system, user = BuildPrompt(tmpl, query, examples)
	}

	return system, user
}

func (e *Extractor) postProcess(tmpl *template.Template, parsed map[string]any, timeWindowDays *int) *Result {
	values := make(map[string]any)
	var typeErrors []string

	for _, p := range tmpl.Parameters {
		raw, present := parsed[p.Name]

		if present && raw != nil {
			coerced, err := coerceValue(p.DataType, raw)
			if err != nil {
				typeErrors = append(typeErrors, fmt.Sprintf("%s: %v", p.Name, err))
				continue
			}
			values[p.Name] = coerced
			continue
		}

		if timeWindowDays != nil && isTimeWindowParameter(e.config, p) {
			values[p.Name] = timeWindowDefault(p.DataType, *timeWindowDays)
			continue
		}

		if p.HasDefault() {
			values[p.Name] = p.Default
			continue
		}

		// missing, not required, no default: leave unset
	}

	if len(typeErrors) > 0 {
		return &Result{Values: values, Status: StatusTypeError, TypeErrors: typeErrors}
	}

	for _, p := range tmpl.Parameters {
		if p.Required {
			if _, ok := values[p.Name]; !ok {
				return &Result{Values: values, Status: StatusMissingRequired}
			}
		}
	}

	for _, p := range tmpl.Parameters {
		if len(p.EnumValues) == 0 {
			continue
		}
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if !enumContains(p.EnumValues, s) {
			return &Result{
				Values:     values,
				Status:     StatusTypeError,
				TypeErrors: []string{fmt.Sprintf("%s: %q is not one of %v", p.Name, s, p.EnumValues)},
			}
		}
	}

	return &Result{Values: values, Status: StatusOK}
}

func enumContains(values []string, candidate string) bool {
	for _, v := range values {
		if strings.EqualFold(v, candidate) {
			return true
		}
	}
	return false
}

// isTimeWindowParameter reports whether p's name, or the alias list of
// the domain field it resolves to, suggests a recency window. Matching
// is by substring rather than exact name so both an integer
// "days_back" parameter and a date-typed "since" or "order_date"
// parameter can pick up a detected "last N days" default.
func isTimeWindowParameter(config *domain.Config, p *template.Parameter) bool {
	if containsTimeWindowKeyword(p.Name) {
		return true
	}

	field, err := config.ResolveField(p.Name)
	if err != nil {
		return false
	}
	if containsTimeWindowKeyword(field.Name) {
		return true
	}
	for _, alias := range field.Aliases {
		if containsTimeWindowKeyword(alias) {
			return true
		}
	}
	return false
}

func containsTimeWindowKeyword(name string) bool {
	lowered := strings.ToLower(name)
	for _, keyword := range timeWindowKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// timeWindowDefault renders a detected "last N days" window as the
// value a parameter of dataType expects: the raw day count for an
// integer parameter, or the resulting calendar date for a date or
// datetime parameter. The layouts mirror coerceValue's so a value
// produced here round-trips through the same parsing the LLM's own
// answer would go through.
func timeWindowDefault(dataType domain.DataType, days int) any {
	switch dataType {
	case domain.DataTypeDate:
		cutoff := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
		parsed, err := time.Parse("2006-01-02", cutoff)
		if err != nil {
			return cutoff
		}
		return parsed
	case domain.DataTypeDateTime:
		return time.Now().AddDate(0, 0, -days)
	default:
		return days
	}
}

func detectTimeWindow(config *domain.Config, query string) *int {
	words := strings.Fields(strings.ToLower(query))
	for i := range words {
		for length := 1; length <= 4 && i+length <= len(words); length++ {
			phrase := strings.Join(words[i:i+length], " ")
			if days := config.TimePhraseToDays(phrase); days != nil {
				return days
			}
		}
	}
	return nil
}
