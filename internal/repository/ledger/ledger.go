package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Store keeps the transaction ledger and generated report records in SQLite.
// The corpus holds the retrievable text; this store holds the numbers the
// reports are computed from.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	type           TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	amount         REAL NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	payment_method TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_created
	ON transactions (user_id, created_at);

CREATE TABLE IF NOT EXISTS pnl_reports (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	generated_at      INTEGER NOT NULL,
	total_income      REAL NOT NULL,
	total_expenses    REAL NOT NULL,
	net_income        REAL NOT NULL,
	transaction_count INTEGER NOT NULL,
	period_start      INTEGER NOT NULL,
	period_end        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pnl_reports_user_generated
	ON pnl_reports (user_id, generated_at);
`

// Open opens or creates the ledger database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddTransaction records one ledger entry.
func (s *Store) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, category, description, payment_method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Category, tx.Description, tx.PaymentMethod,
		tx.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// ListByUser returns the user's transactions inside the period, oldest
// first. Zero period bounds are unbounded on that side.
func (s *Store) ListByUser(ctx context.Context, userID string, period domain.Period) ([]domain.Transaction, error) {
	query := `SELECT id, user_id, type, amount, category, description, payment_method, created_at
		FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if !period.Start.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, period.Start.Unix())
	}
	if !period.End.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, period.End.Unix())
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var createdAt int64
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount,
			&tx.Category, &tx.Description, &tx.PaymentMethod, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.CreatedAt = time.Unix(createdAt, 0).UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// SaveReport persists a generated report's numeric profile.
func (s *Store) SaveReport(ctx context.Context, rep *domain.FinancialReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pnl_reports (id, user_id, generated_at, total_income, total_expenses,
			net_income, transaction_count, period_start, period_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.UserID, rep.GeneratedAt.Unix(),
		rep.TotalIncome, rep.TotalExpenses, rep.NetIncome, rep.TransactionCount,
		rep.Period.Start.Unix(), rep.Period.End.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", rep.ID, err)
	}
	return nil
}

// ListReports returns the user's reports, newest first, up to limit.
func (s *Store) ListReports(ctx context.Context, userID string, limit int) ([]domain.FinancialReport, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, generated_at, total_income, total_expenses,
			net_income, transaction_count, period_start, period_end
		 FROM pnl_reports WHERE user_id = ?
		 ORDER BY generated_at DESC, id ASC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports for %s: %w", userID, err)
	}
	defer rows.Close()

	var reps []domain.FinancialReport
	for rows.Next() {
		var rep domain.FinancialReport
		var generatedAt, periodStart, periodEnd int64
		if err := rows.Scan(&rep.ID, &rep.UserID, &generatedAt,
			&rep.TotalIncome, &rep.TotalExpenses, &rep.NetIncome, &rep.TransactionCount,
			&periodStart, &periodEnd); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rep.GeneratedAt = time.Unix(generatedAt, 0).UTC()
		rep.Period = domain.Period{
			Start: time.Unix(periodStart, 0).UTC(),
			End:   time.Unix(periodEnd, 0).UTC(),
		}
		reps = append(reps, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reps, nil
}
