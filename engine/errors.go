package engine

import "errors"

// Kind classifies a retrieval failure by the point in the pipeline
// that produced it (error taxonomy, kinds not implementation
// names).
type Kind string

const (
	KindNoMatchingTemplate       Kind = "no_matching_template"
	KindParameterExtractionFailed Kind = "parameter_extraction_failed"
	KindTemplateRenderingFailed  Kind = "template_rendering_failed"
	KindDatasourceError          Kind = "datasource_error"
	KindDatasourceTimeout        Kind = "datasource_timeout"
	KindEmbedderUnavailable      Kind = "embedder_unavailable"
	KindVectorStoreUnavailable   Kind = "vector_store_unavailable"
)

// ErrVectorStoreUnavailable is returned by Reconcile, and so by
// Reload, when the vector store's stored records cannot be read.
var ErrVectorStoreUnavailable = errors.New("engine: vector store unavailable")
