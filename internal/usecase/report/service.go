package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Service computes P&L reports from the ledger and feeds the result back
// into the corpus as a retrievable chunk.
type Service struct {
	ledger   Ledger
	ingestor Ingestor
	logger   *zap.Logger
}

// New creates a report service.
func New(ledger Ledger, ingestor Ingestor, logger *zap.Logger) *Service {
	return &Service{ledger: ledger, ingestor: ingestor, logger: logger}
}

// Compute aggregates the user's transactions into a report. Returns
// domain.ErrNoTransactions when the period holds no entries; the caller
// renders a "no data" message instead of a report.
func (s *Service) Compute(ctx context.Context, userID string, period domain.Period) (*domain.FinancialReport, error) {
	txs, err := s.ledger.ListByUser(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNoTransactions)
	}

	rep := &domain.FinancialReport{
		ID:               uuid.NewString(),
		UserID:           userID,
		GeneratedAt:      time.Now().UTC(),
		TransactionCount: len(txs),
		Period:           period,
	}
	if rep.Period.Start.IsZero() {
		rep.Period.Start = txs[0].CreatedAt
	}
	if rep.Period.End.IsZero() {
		rep.Period.End = txs[len(txs)-1].CreatedAt
	}

	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionIncome:
			rep.TotalIncome += tx.Amount
		case domain.TransactionExpense:
			rep.TotalExpenses += tx.Amount
		}
	}
	rep.NetIncome = rep.TotalIncome - rep.TotalExpenses

	return rep, nil
}

// Generate computes the report, persists it, and submits exactly one derived
// chunk to the corpus. Returns the report and its textual summary.
func (s *Service) Generate(ctx context.Context, userID string, period domain.Period) (*domain.FinancialReport, string, error) {
	rep, err := s.Compute(ctx, userID, period)
	if err != nil {
		return nil, "", err
	}

	if err := s.ledger.SaveReport(ctx, rep); err != nil {
		return nil, "", fmt.Errorf("persist report: %w", err)
	}

	summary := Summarize(rep)
	pnl := &domain.PnLMetadata{
		UserID:           rep.UserID,
		GeneratedAt:      rep.GeneratedAt,
		TotalIncome:      rep.TotalIncome,
		TotalExpenses:    rep.TotalExpenses,
		NetIncome:        rep.NetIncome,
		TransactionCount: rep.TransactionCount,
		PeriodStart:      rep.Period.Start,
		PeriodEnd:        rep.Period.End,
	}

	fileName := fmt.Sprintf("pnl-%s-%s.txt", rep.UserID, rep.GeneratedAt.Format("2006-01-02T15-04-05"))
	docID, err := s.ingestor.IngestGenerated(ctx, fileName, summary, pnl)
	if err != nil {
		return nil, "", fmt.Errorf("ingest report chunk: %w", err)
	}

	s.logger.Info("pnl report generated",
		zap.String("user_id", rep.UserID),
		zap.String("report_id", rep.ID),
		zap.String("document_id", docID),
		zap.Float64("net_income", rep.NetIncome))

	return rep, summary, nil
}

// Summarize renders the report as retrievable text. Net income above zero
// classifies as PROFITABLE, everything else as OPERATING AT LOSS.
func Summarize(rep *domain.FinancialReport) string {
	status := "OPERATING AT LOSS"
	if rep.Profitable() {
		status = "PROFITABLE"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "P&L Report generated %s\n", rep.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Period: %s to %s\n", rep.Period.Start.Format("2006-01-02"), rep.Period.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total Income: RM %.2f\n", rep.TotalIncome)
	fmt.Fprintf(&b, "Total Expenses: RM %.2f\n", rep.TotalExpenses)
	fmt.Fprintf(&b, "Net Income: RM %.2f\n", rep.NetIncome)
	fmt.Fprintf(&b, "Transactions Analyzed: %d\n", rep.TransactionCount)
	fmt.Fprintf(&b, "Financial Status: %s", status)
	return b.String()
}
