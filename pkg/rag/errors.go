package rag

import "errors"

// Retrieval and orchestration failures surfaced to the caller as a
// terminal error event. External-service failures are wrapped into the
// nearest of these at the call boundary.
var (
	// ErrEmbeddingUnavailable means the embedding service returned nothing.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable means the generation client is not configured.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrNoIndexedContent means no vector or metadata files were found
	// for any requested document.
	ErrNoIndexedContent = errors.New("no indexed content for requested documents")

	// ErrNoRelevantContent means search executed but nothing cleared
	// the similarity threshold.
	ErrNoRelevantContent = errors.New("no relevant content found")

	// ErrRoutingEmpty means the document router selected no candidates.
	ErrRoutingEmpty = errors.New("no documents matched the query")
)
