package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Dim returns the vector dimensionality.
func (r EmbeddingResult) Dim() int { return len(r.Embedding) }

// DimensionCheck is the outcome of the embedding-dimension compatibility
// diagnostic. A mismatch is a reportable configuration fault: the corpus must
// be re-embedded or the provider reconfigured before similarity search can
// work again.
type DimensionCheck struct {
	QueryDim  int  `json:"query_dim"`
	StoredDim int  `json:"stored_dim"`
	Matches   bool `json:"matches"`
}
