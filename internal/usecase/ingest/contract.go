package ingest

import (
	"context"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Repository defines the storage contract for ingestion.
type Repository interface {
	InsertDocument(ctx context.Context, doc *domain.Document) error
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
	FindDocumentID(ctx context.Context, fileName string) (string, error)
}

// Embedder vectorizes chunk text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
