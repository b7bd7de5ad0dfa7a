package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	chatuc "github.com/JohnsonChin1009/open-pay/internal/usecase/chat"
	healthuc "github.com/JohnsonChin1009/open-pay/internal/usecase/health"
	ingestuc "github.com/JohnsonChin1009/open-pay/internal/usecase/ingest"
)

type mockChat struct {
	handleFn func(ctx context.Context, req chatuc.Ask) (chatuc.Reply, error)
}

func (m *mockChat) Handle(ctx context.Context, req chatuc.Ask) (chatuc.Reply, error) {
	return m.handleFn(ctx, req)
}

type mockIngest struct {
	ingestTextFn func(ctx context.Context, fileName, content, source string) (string, int, error)
	ingestDirFn  func(ctx context.Context, dir string) (*ingestuc.BatchResult, error)
}

func (m *mockIngest) IngestText(ctx context.Context, fileName, content, source string) (string, int, error) {
	return m.ingestTextFn(ctx, fileName, content, source)
}

func (m *mockIngest) IngestDir(ctx context.Context, dir string) (*ingestuc.BatchResult, error) {
	return m.ingestDirFn(ctx, dir)
}

type mockReporter struct {
	generateFn func(ctx context.Context, userID string, period domain.Period) (*domain.FinancialReport, string, error)
}

func (m *mockReporter) Generate(
	ctx context.Context, userID string, period domain.Period,
) (*domain.FinancialReport, string, error) {
	return m.generateFn(ctx, userID, period)
}

type mockLedger struct {
	addFn         func(ctx context.Context, tx *domain.Transaction) error
	listFn        func(ctx context.Context, userID string, period domain.Period) ([]domain.Transaction, error)
	listReportsFn func(ctx context.Context, userID string, limit int) ([]domain.FinancialReport, error)
}

func (m *mockLedger) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	return m.addFn(ctx, tx)
}

func (m *mockLedger) ListByUser(
	ctx context.Context, userID string, period domain.Period,
) ([]domain.Transaction, error) {
	return m.listFn(ctx, userID, period)
}

func (m *mockLedger) ListReports(
	ctx context.Context, userID string, limit int,
) ([]domain.FinancialReport, error) {
	return m.listReportsFn(ctx, userID, limit)
}

type mockHealth struct {
	checkFn func(ctx context.Context) healthuc.Report
}

func (m *mockHealth) Check(ctx context.Context) healthuc.Report {
	return m.checkFn(ctx)
}

type serverMocks struct {
	chat    *mockChat
	ingest  *mockIngest
	reports *mockReporter
	ledger  *mockLedger
	health  *mockHealth
}

func newTestServer() (*httptest.Server, *serverMocks) {
	m := &serverMocks{
		chat:    &mockChat{},
		ingest:  &mockIngest{},
		reports: &mockReporter{},
		ledger:  &mockLedger{},
		health:  &mockHealth{},
	}
	s := NewServer(m.chat, m.ingest, m.reports, m.ledger, m.health, zap.NewNop())
	r := chi.NewRouter()
	s.Routes(r)
	return httptest.NewServer(r), m
}

func jsonPost(ts *httptest.Server, path, body string) (*http.Response, error) {
	return http.Post(ts.URL+path, "application/json", strings.NewReader(body))
}
