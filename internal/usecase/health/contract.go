package health

import (
	"context"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// DBPinger checks corpus store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// LedgerPinger checks ledger database availability.
type LedgerPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Embedder produces a probe vector for the dimension diagnostic.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DimReader samples the stored embedding dimensionality.
type DimReader interface {
	StoredDim(ctx context.Context) (int, error)
}
