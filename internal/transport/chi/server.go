package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	chatuc "github.com/JohnsonChin1009/open-pay/internal/usecase/chat"
	healthuc "github.com/JohnsonChin1009/open-pay/internal/usecase/health"
	ingestuc "github.com/JohnsonChin1009/open-pay/internal/usecase/ingest"
)

// Error codes returned to clients.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeNotFound          = "not_found"
	codeNoTransactionData = "no_transaction_data"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternalError     = "internal_error"
)

// Chatter answers questions and report requests.
type Chatter interface {
	Handle(ctx context.Context, req chatuc.Ask) (chatuc.Reply, error)
}

// Ingestor loads documents into the corpus.
type Ingestor interface {
	IngestText(ctx context.Context, fileName, content, source string) (string, int, error)
	IngestDir(ctx context.Context, dir string) (*ingestuc.BatchResult, error)
}

// Reporter synthesizes P&L reports.
type Reporter interface {
	Generate(ctx context.Context, userID string, period domain.Period) (*domain.FinancialReport, string, error)
}

// Ledger is the transaction feed backing the report synthesizer.
type Ledger interface {
	AddTransaction(ctx context.Context, tx *domain.Transaction) error
	ListByUser(ctx context.Context, userID string, period domain.Period) ([]domain.Transaction, error)
	ListReports(ctx context.Context, userID string, limit int) ([]domain.FinancialReport, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the assistant pipeline over HTTP.
type Server struct {
	chat          Chatter
	ingest        Ingestor
	reports       Reporter
	ledger        Ledger
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chat Chatter,
	ingest Ingestor,
	reports Reporter,
	ledger Ledger,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		chat:    chat,
		ingest:  ingest,
		reports: reports,
		ledger:  ledger,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoTransactions, http.StatusNotFound, codeNoTransactionData),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusConflict, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidChunking, http.StatusBadRequest, codeValidationFailed),
	}
	return s
}

// Routes mounts all API routes on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/reports", s.handleCreateReport)
	r.Get("/api/v1/reports", s.handleListReports)
	r.Post("/api/v1/transactions", s.handleAddTransaction)
	r.Get("/api/v1/transactions", s.handleListTransactions)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

type ingestFileRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
	Source   string `json:"source,omitempty"`
}

type ingestRequest struct {
	Dir   string              `json:"dir,omitempty"`
	Files []ingestFileRequest `json:"files,omitempty"`
}

type ingestFileResponse struct {
	FileName   string `json:"file_name"`
	DocumentID string `json:"document_id,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ingestResponse struct {
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Results   []ingestFileResponse `json:"results"`
}

// handleIngest handles POST /api/v1/ingest. Accepts either a server-side
// directory or an inline file batch. One file's failure never aborts the rest.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Dir == "" && len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "either dir or files is required")
		return
	}
	if req.Dir != "" && len(req.Files) > 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "dir and files are mutually exclusive")
		return
	}

	if req.Dir != "" {
		batch, err := s.ingest.IngestDir(r.Context(), req.Dir)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, batchToResponse(batch))
		return
	}

	resp := ingestResponse{Results: make([]ingestFileResponse, 0, len(req.Files))}
	for _, f := range req.Files {
		if f.FileName == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "file_name is required for every file")
			return
		}
		source := f.Source
		if source == "" {
			source = f.FileName
		}
		item := ingestFileResponse{FileName: f.FileName}
		docID, chunks, err := s.ingest.IngestText(r.Context(), f.FileName, f.Content, source)
		if err != nil {
			item.Error = safeDomainMessage(err)
			resp.Failed++
			s.logger.Warn("ingest file failed", zap.String("file", f.FileName), zap.Error(err))
		} else {
			item.DocumentID = docID
			item.ChunkCount = chunks
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func batchToResponse(b *ingestuc.BatchResult) ingestResponse {
	resp := ingestResponse{
		Succeeded: b.Succeeded,
		Failed:    b.Failed,
		Skipped:   b.Skipped,
		Results:   make([]ingestFileResponse, 0, len(b.Results)),
	}
	for _, fr := range b.Results {
		item := ingestFileResponse{
			FileName:   fr.FileName,
			DocumentID: fr.DocumentID,
			ChunkCount: fr.ChunkCount,
		}
		if fr.Err != nil {
			item.Error = safeDomainMessage(fr.Err)
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

type askTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Question string    `json:"question"`
	UserID   string    `json:"user_id,omitempty"`
	History  []askTurn `json:"history,omitempty"`
}

type askResponse struct {
	Answer      string   `json:"answer"`
	Provenance  string   `json:"provenance"`
	SourcesUsed []string `json:"sources_used,omitempty"`
}

// handleAsk handles POST /api/v1/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "question is required")
		return
	}

	history := make([]domain.Turn, 0, len(req.History))
	for _, t := range req.History {
		history = append(history, domain.Turn{Role: t.Role, Content: t.Content})
	}

	reply, err := s.chat.Handle(r.Context(), chatuc.Ask{
		Question: req.Question,
		UserID:   req.UserID,
		History:  history,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:      reply.Answer,
		Provenance:  string(reply.Provenance),
		SourcesUsed: reply.Sources,
	})
}

type reportRequest struct {
	UserID      string     `json:"user_id"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

type reportResponse struct {
	ReportID         string    `json:"report_id"`
	UserID           string    `json:"user_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	TotalIncome      float64   `json:"total_income"`
	TotalExpenses    float64   `json:"total_expenses"`
	NetIncome        float64   `json:"net_income"`
	TransactionCount int       `json:"transaction_count"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	Summary          string    `json:"summary"`
}

// handleCreateReport handles POST /api/v1/reports.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	var period domain.Period
	if req.PeriodStart != nil {
		period.Start = req.PeriodStart.UTC()
	}
	if req.PeriodEnd != nil {
		period.End = req.PeriodEnd.UTC()
	}

	rep, summary, err := s.reports.Generate(r.Context(), req.UserID, period)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reportToResponse(rep, summary))
}

// handleListReports handles GET /api/v1/reports?user_id=&limit=.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := s.ledger.ListReports(r.Context(), userID, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]reportResponse, len(reports))
	for i := range reports {
		items[i] = reportToResponse(&reports[i], "")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func reportToResponse(rep *domain.FinancialReport, summary string) reportResponse {
	return reportResponse{
		ReportID:         rep.ID,
		UserID:           rep.UserID,
		GeneratedAt:      rep.GeneratedAt,
		TotalIncome:      rep.TotalIncome,
		TotalExpenses:    rep.TotalExpenses,
		NetIncome:        rep.NetIncome,
		TransactionCount: rep.TransactionCount,
		PeriodStart:      rep.Period.Start,
		PeriodEnd:        rep.Period.End,
		Summary:          summary,
	}
}

type transactionRequest struct {
	UserID        string     `json:"user_id"`
	Type          string     `json:"type"`
	Amount        float64    `json:"amount"`
	Category      string     `json:"category,omitempty"`
	Description   string     `json:"description,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Category      string    `json:"category,omitempty"`
	Description   string    `json:"description,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// handleAddTransaction handles POST /api/v1/transactions.
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}
	if req.Type != domain.TransactionIncome && req.Type != domain.TransactionExpense {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "type must be income or expense")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "amount must be positive")
		return
	}

	createdAt := time.Now().UTC()
	if req.CreatedAt != nil {
		createdAt = req.CreatedAt.UTC()
	}

	tx := &domain.Transaction{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Type:          req.Type,
		Amount:        req.Amount,
		Category:      req.Category,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     createdAt,
	}
	if err := s.ledger.AddTransaction(r.Context(), tx); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transactionToResponse(tx))
}

// handleListTransactions handles GET /api/v1/transactions?user_id=&from=&to=.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	var period domain.Period
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "from must be RFC3339")
			return
		}
		period.Start = t.UTC()
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "to must be RFC3339")
			return
		}
		period.End = t.UTC()
	}

	txs, err := s.ledger.ListByUser(r.Context(), userID, period)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]transactionResponse, len(txs))
	for i := range txs {
		items[i] = transactionToResponse(&txs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

func transactionToResponse(tx *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		UserID:        tx.UserID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Category:      tx.Category,
		Description:   tx.Description,
		PaymentMethod: tx.PaymentMethod,
		CreatedAt:     tx.CreatedAt,
	}
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Checks    map[string]string      `json:"checks"`
	Dimension *domain.DimensionCheck `json:"dimension,omitempty"`
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:    string(report.Status),
		Checks:    checks,
		Dimension: report.Dimension,
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNoTransactions,
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrEmbeddingProvider,
		domain.ErrDimensionMismatch,
		domain.ErrInvalidChunking,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
