package embedding

import "context"

// Task types hint the backend how the embedding will be used.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Provider defines the interface for generating text embeddings
type Provider interface {
	// Embed returns one vector per input text, in input order. An empty
	// result without an error never occurs: len(out) == len(texts).
	Embed(ctx context.Context, texts []string, taskType string) ([][]float64, error)
}
