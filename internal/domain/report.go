package domain

import "time"

// Transaction types in the ledger.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction is a single ledger entry.
type Transaction struct {
	ID            string
	UserID        string
	Type          string
	Amount        float64
	Category      string
	Description   string
	PaymentMethod string
	CreatedAt     time.Time
}

// Period bounds a report. Zero values mean unbounded.
type Period struct {
	Start time.Time
	End   time.Time
}

// FinancialReport is a computed P&L snapshot for one user over one period.
// Each generation produces a new, independent report; prior reports stay valid.
type FinancialReport struct {
	ID               string
	UserID           string
	GeneratedAt      time.Time
	TotalIncome      float64
	TotalExpenses    float64
	NetIncome        float64
	TransactionCount int
	Period           Period
}

// Profitable classifies the report's net-income sign.
func (r FinancialReport) Profitable() bool { return r.NetIncome > 0 }
