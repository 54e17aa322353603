// Package engine orchestrates the retrieval pipeline: match a query
// against the template library, extract parameters, execute the
// winning template, and format the result into retrieval context.
package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/executor"
	"github.com/orbitretrieval/engine/extractor"
	"github.com/orbitretrieval/engine/formatter"
	"github.com/orbitretrieval/engine/matcher"
	"github.com/orbitretrieval/engine/template"
)

// Options adjusts a single RetrieveContext call, overriding the
// engine's configured defaults when set.
type Options struct {
	MaxResults          *int
	ConfidenceThreshold *float64
	Trace               bool
}

// Config holds the engine's default retrieval parameters.
type Config struct {
	MaxTemplates        int
	ConfidenceThreshold float64
	RequireApproved     bool
}

// Engine is the intent-driven retrieval engine. Reload atomically
// swaps the library and domain config; in-flight RetrieveContext calls
// continue to use whichever snapshot they loaded at entry.
type Engine struct {
	library *atomic.Pointer[template.Library]
	domain  *atomic.Pointer[domain.Config]

	matcher   *matcher.Matcher
	extractor *extractor.Extractor
	executor  *executor.Executor
	formatter *formatter.Formatter

	config Config
	logger zerolog.Logger
}

// New constructs an Engine over an already-loaded library and domain
// config. Use the engine/reconcile helpers at startup before calling
// this, or call Reload immediately after construction.
func New(
	lib *template.Library,
	cfg *domain.Config,
	m *matcher.Matcher,
	ex *extractor.Extractor,
	exec *executor.Executor,
	fmt_ *formatter.Formatter,
	engineConfig Config,
	logger zerolog.Logger,
) *Engine {
	libPtr := &atomic.Pointer[template.Library]{}
	libPtr.Store(lib)
	domainPtr := &atomic.Pointer[domain.Config]{}
	domainPtr.Store(cfg)

	return &Engine{
		library:   libPtr,
		domain:    domainPtr,
		matcher:   m,
		extractor: ex,
		executor:  exec,
		formatter: fmt_,
		config:    engineConfig,
		logger:    logger.With().Str("component", "engine").Logger(),
	}
}

// RetrieveContext is the engine's single entry point: it matches
// query against the current template library, extracts parameters
// from the winning candidate (falling back through up to MaxTemplates
// candidates on extraction or rendering failure), executes it, and
// formats the rows into context items. It never returns an error to
// the caller; failures are encoded as a single error-carrying item.
func (e *Engine) RetrieveContext(ctx context.Context, query string, opts Options) []formatter.ContextItem {
	maxTemplates := e.config.MaxTemplates
	if opts.MaxResults != nil {
		maxTemplates = *opts.MaxResults
	}
	threshold := e.config.ConfidenceThreshold
	if opts.ConfidenceThreshold != nil {
		threshold = *opts.ConfidenceThreshold
	}

	lib := e.library.Load()
	if lib == nil || lib.Len() == 0 {
		return []formatter.ContextItem{noMatchItem("template library is empty")}
	}

	candidates := e.matcher.FindBest(ctx, query, maxTemplates, threshold)
	if len(candidates) == 0 {
		return []formatter.ContextItem{noMatchItem("no candidate template met the confidence threshold")}
	}

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return []formatter.ContextItem{cancelledItem()}
		}

		items, fallback, err := e.tryCandidate(ctx, query, candidate)
		if err == nil {
			return items
		}
		if !fallback {
			return items
		}
		e.logger.Warn().Err(err).Str("template_id", candidate.Template.ID).Msg("candidate failed, trying next")
	}

	return []formatter.ContextItem{{
		Content:    "Unable to extract parameters from the query.",
		Confidence: 0,
		Metadata:   formatter.Metadata{Error: string(KindParameterExtractionFailed)},
	}}
}

// tryCandidate runs extraction and execution for one candidate. The
// bool return reports whether the caller should fall back to the next
// candidate (parameter_extraction_failed, template_rendering_failed)
// as opposed to surfacing the failure directly (datasource_error,
// datasource_timeout).
func (e *Engine) tryCandidate(ctx context.Context, query string, candidate matcher.Candidate) ([]formatter.ContextItem, bool, error) {
	tmpl := candidate.Template

	result, err := e.extractor.Extract(ctx, query, tmpl)
	if err != nil {
		return nil, true, err
	}
	if result.Status != extractor.StatusOK {
		return nil, true, errors.New(string(result.Status))
	}

	kind := e.domain.Load().DomainType
	execResult := e.executor.Execute(ctx, kind, tmpl, result.Values)
	if execResult.Err != nil {
		if errors.Is(execResult.Err, executor.ErrUnboundRequired) ||
			errors.Is(execResult.Err, template.ErrOverlappingConditionals) ||
			errors.Is(execResult.Err, template.ErrUnmatchedConditional) ||
			errors.Is(execResult.Err, executor.ErrTemplateNotApproved) {
			return nil, true, execResult.Err
		}
		errKind := KindDatasourceError
		if errors.Is(execResult.Err, context.DeadlineExceeded) {
			errKind = KindDatasourceTimeout
		}
		return []formatter.ContextItem{{
			Content:    "The data source failed to return results.",
			Confidence: candidate.Similarity,
			Metadata: formatter.Metadata{
				TemplateID:     tmpl.ID,
				ParametersUsed: result.Values,
				Error:          string(errKind),
				SourceKind:     kind,
			},
		}}, false, execResult.Err
	}

	items := e.formatter.Format(tmpl, kind, execResult.Rows, candidate.Similarity, result.Values)
	return items, false, nil
}

func noMatchItem(reason string) formatter.ContextItem {
	return formatter.ContextItem{
		Content:    "No matching template found.",
		Confidence: 0,
		Metadata:   formatter.Metadata{Error: string(KindNoMatchingTemplate) + ": " + reason},
	}
}

func cancelledItem() formatter.ContextItem {
	return formatter.ContextItem{
		Content:    "Request cancelled.",
		Confidence: 0,
		Metadata:   formatter.Metadata{Error: "cancelled"},
	}
}
