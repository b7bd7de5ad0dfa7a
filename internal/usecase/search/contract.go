package search

import (
	"context"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Repository defines the storage contract for retrieval.
type Repository interface {
	// SearchKNN returns up to k nearest chunks by vector similarity.
	SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)

	// AllChunks returns every stored chunk in deterministic scan order.
	// Serves the lexical fallback, which must work without the index.
	AllChunks(ctx context.Context) ([]domain.Chunk, error)
}
