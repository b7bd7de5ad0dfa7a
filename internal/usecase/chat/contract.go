package chat

import (
	"context"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	"github.com/JohnsonChin1009/open-pay/internal/usecase/answer"
	"github.com/JohnsonChin1009/open-pay/internal/usecase/search"
)

// Embedder vectorizes the question for retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher retrieves general-knowledge chunks.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]domain.SearchResult, error)
}

// Reporter runs the P&L workflow.
type Reporter interface {
	Generate(ctx context.Context, userID string, period domain.Period) (*domain.FinancialReport, string, error)
}

// Answerer produces the user-facing reply.
type Answerer interface {
	Answer(ctx context.Context, question string, general []domain.SearchResult,
		financial []domain.Chunk, history []domain.Turn) answer.Result
	Phrase(ctx context.Context, prompt string, history []domain.Turn) answer.Result
}

// PnLReader fetches the user's stored report chunks for context.
type PnLReader interface {
	LatestPnLChunks(ctx context.Context, userID string, limit int) ([]domain.Chunk, error)
}
