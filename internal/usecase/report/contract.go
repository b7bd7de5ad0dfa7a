package report

import (
	"context"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Ledger defines the transaction store contract.
type Ledger interface {
	ListByUser(ctx context.Context, userID string, period domain.Period) ([]domain.Transaction, error)
	SaveReport(ctx context.Context, rep *domain.FinancialReport) error
}

// Ingestor feeds the derived report chunk back into the corpus.
type Ingestor interface {
	IngestGenerated(ctx context.Context, fileName, text string, pnl *domain.PnLMetadata) (string, error)
}
