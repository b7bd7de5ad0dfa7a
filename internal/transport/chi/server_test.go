package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	chatuc "github.com/JohnsonChin1009/open-pay/internal/usecase/chat"
	healthuc "github.com/JohnsonChin1009/open-pay/internal/usecase/health"
	ingestuc "github.com/JohnsonChin1009/open-pay/internal/usecase/ingest"
)

func TestAsk_ReturnsAnswerWithProvenance(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	var got chatuc.Ask
	m.chat.handleFn = func(_ context.Context, req chatuc.Ask) (chatuc.Reply, error) {
		got = req
		return chatuc.Reply{
			Answer:     "Rent is an expense.",
			Provenance: domain.ProvenanceRAG,
			Sources:    []string{"faq.txt"},
		}, nil
	}

	resp, err := jsonPost(ts, "/api/v1/ask",
		`{"question":"What is rent?","user_id":"u1","history":[{"role":"user","content":"hi"}]}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body askResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Answer != "Rent is an expense." {
		t.Errorf("answer: got %q", body.Answer)
	}
	if body.Provenance != string(domain.ProvenanceRAG) {
		t.Errorf("provenance: got %q, want rag", body.Provenance)
	}
	if len(body.SourcesUsed) != 1 || body.SourcesUsed[0] != "faq.txt" {
		t.Errorf("sources: got %v", body.SourcesUsed)
	}

	if got.Question != "What is rent?" || got.UserID != "u1" {
		t.Errorf("request not forwarded: %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Role != domain.RoleUser {
		t.Errorf("history not forwarded: %+v", got.History)
	}
}

func TestAsk_EmptyQuestion_400(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := jsonPost(ts, "/api/v1/ask", `{"user_id":"u1"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeValidationFailed {
		t.Errorf("code: got %q, want %q", errResp.Code, codeValidationFailed)
	}
}

func TestAsk_InvalidJSON_400(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := jsonPost(ts, "/api/v1/ask", `{"question":`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestAsk_EmbeddingProviderError_502(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.chat.handleFn = func(context.Context, chatuc.Ask) (chatuc.Reply, error) {
		return chatuc.Reply{}, domain.ErrEmbeddingProvider
	}

	resp, err := jsonPost(ts, "/api/v1/ask", `{"question":"hi"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusBadGateway)
	}
}

func TestCreateReport_201(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	generated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.reports.generateFn = func(_ context.Context, userID string, period domain.Period) (*domain.FinancialReport, string, error) {
		if userID != "u1" {
			t.Errorf("user: got %q", userID)
		}
		if period.Start.IsZero() || period.Start.Month() != time.May {
			t.Errorf("period start not forwarded: %v", period.Start)
		}
		return &domain.FinancialReport{
			ID:               "rep-1",
			UserID:           userID,
			GeneratedAt:      generated,
			TotalIncome:      100,
			TotalExpenses:    40,
			NetIncome:        60,
			TransactionCount: 2,
			Period:           period,
		}, "P&L Report generated", nil
	}

	resp, err := jsonPost(ts, "/api/v1/reports",
		`{"user_id":"u1","period_start":"2025-05-01T00:00:00Z"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body reportResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ReportID != "rep-1" || body.NetIncome != 60 || body.TransactionCount != 2 {
		t.Errorf("report body: %+v", body)
	}
	if body.Summary == "" {
		t.Error("summary missing from response")
	}
}

func TestCreateReport_NoTransactions_404(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.reports.generateFn = func(context.Context, string, domain.Period) (*domain.FinancialReport, string, error) {
		return nil, "", domain.ErrNoTransactions
	}

	resp, err := jsonPost(ts, "/api/v1/reports", `{"user_id":"u1"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != codeNoTransactionData {
		t.Errorf("code: got %q, want %q", errResp.Code, codeNoTransactionData)
	}
}

func TestCreateReport_MissingUserID_400(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := jsonPost(ts, "/api/v1/reports", `{}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateReport_InternalError_NoDetailLeak(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.reports.generateFn = func(context.Context, string, domain.Period) (*domain.FinancialReport, string, error) {
		return nil, "", errors.New("sqlite: database is locked")
	}

	resp, err := jsonPost(ts, "/api/v1/reports", `{"user_id":"u1"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	var errResp errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Message != "internal error" {
		t.Errorf("internal detail leaked: %q", errResp.Message)
	}
}

func TestIngest_InlineBatch_PartialFailure(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.ingest.ingestTextFn = func(_ context.Context, fileName, _, _ string) (string, int, error) {
		if fileName == "bad.txt" {
			return "", 0, errors.New("embed chunk 0: connection refused")
		}
		return "doc-" + fileName, 3, nil
	}

	resp, err := jsonPost(ts, "/api/v1/ingest",
		`{"files":[{"file_name":"good.txt","content":"hello world"},{"file_name":"bad.txt","content":"x"}]}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Succeeded != 1 || body.Failed != 1 {
		t.Errorf("counts: succeeded=%d failed=%d", body.Succeeded, body.Failed)
	}
	if len(body.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(body.Results))
	}
	if body.Results[0].DocumentID != "doc-good.txt" || body.Results[0].ChunkCount != 3 {
		t.Errorf("good file result: %+v", body.Results[0])
	}
	if body.Results[1].Error != "internal error" {
		t.Errorf("failure detail leaked: %q", body.Results[1].Error)
	}
}

func TestIngest_Dir(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.ingest.ingestDirFn = func(_ context.Context, dir string) (*ingestuc.BatchResult, error) {
		if dir != "docs" {
			t.Errorf("dir: got %q", dir)
		}
		return &ingestuc.BatchResult{
			Succeeded: 2,
			Skipped:   1,
			Results: []ingestuc.FileResult{
				{FileName: "a.txt", DocumentID: "d1", ChunkCount: 4},
				{FileName: "b.txt", DocumentID: "d2", ChunkCount: 1},
			},
		}, nil
	}

	resp, err := jsonPost(ts, "/api/v1/ingest", `{"dir":"docs"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var body ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Succeeded != 2 || body.Skipped != 1 {
		t.Errorf("counts: %+v", body)
	}
}

func TestIngest_NoDirNoFiles_400(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	for _, payload := range []string{`{}`, `{"dir":"docs","files":[{"file_name":"a.txt"}]}`} {
		resp, err := jsonPost(ts, "/api/v1/ingest", payload)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("payload %s: got %d, want %d", payload, resp.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestAddTransaction_201(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	var saved *domain.Transaction
	m.ledger.addFn = func(_ context.Context, tx *domain.Transaction) error {
		saved = tx
		return nil
	}

	resp, err := jsonPost(ts, "/api/v1/transactions",
		`{"user_id":"u1","type":"income","amount":150.5,"category":"sales"}`)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if saved == nil {
		t.Fatal("transaction not persisted")
	}
	if saved.ID == "" {
		t.Error("id not assigned")
	}
	if saved.Amount != 150.5 || saved.Type != domain.TransactionIncome {
		t.Errorf("saved: %+v", saved)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("created_at not defaulted")
	}
}

func TestAddTransaction_Validation(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	cases := []string{
		`{"type":"income","amount":10}`,
		`{"user_id":"u1","type":"transfer","amount":10}`,
		`{"user_id":"u1","type":"income","amount":0}`,
		`{"user_id":"u1","type":"expense","amount":-5}`,
	}
	for _, payload := range cases {
		resp, err := jsonPost(ts, "/api/v1/transactions", payload)
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("payload %s: got %d, want %d", payload, resp.StatusCode, http.StatusBadRequest)
		}
	}
}

func TestListTransactions_PeriodForwarded(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.ledger.listFn = func(_ context.Context, userID string, period domain.Period) ([]domain.Transaction, error) {
		if userID != "u1" {
			t.Errorf("user: got %q", userID)
		}
		if period.Start.IsZero() || period.End.IsZero() {
			t.Errorf("period not parsed: %+v", period)
		}
		return []domain.Transaction{{ID: "t1", UserID: userID, Type: "income", Amount: 10}}, nil
	}

	resp, err := http.Get(ts.URL +
		"/api/v1/transactions?user_id=u1&from=2025-01-01T00:00:00Z&to=2025-02-01T00:00:00Z")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	var body struct {
		Items []transactionResponse `json:"items"`
		Total int                   `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Items[0].ID != "t1" {
		t.Errorf("body: %+v", body)
	}
}

func TestListTransactions_MissingUserID_400(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/transactions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHealth_Degraded_503(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.health.checkFn = func(context.Context) healthuc.Report {
		return healthuc.Report{
			Status: healthuc.Degraded,
			Checks: map[string]healthuc.CheckResult{
				"database":  healthuc.CheckError,
				"ledger":    healthuc.CheckOK,
				"embedding": healthuc.CheckOK,
			},
			Dimension: &domain.DimensionCheck{QueryDim: 768, StoredDim: 3072, Matches: false},
		}
	}

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != string(healthuc.Degraded) {
		t.Errorf("status: got %q", body.Status)
	}
	if body.Dimension == nil || body.Dimension.Matches {
		t.Errorf("dimension diagnostic: %+v", body.Dimension)
	}
}

func TestHealth_OK_200(t *testing.T) {
	ts, m := newTestServer()
	defer ts.Close()

	m.health.checkFn = func(context.Context) healthuc.Report {
		return healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}
	}

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
