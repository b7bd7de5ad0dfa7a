package chat

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	"github.com/JohnsonChin1009/open-pay/internal/domain/intent"
	"github.com/JohnsonChin1009/open-pay/internal/usecase/search"
)

// noDataMessage is shown when a report is requested but the ledger is empty.
const noDataMessage = "I couldn't find any transaction data for your account. " +
	"Add some transactions first, then ask me to generate your P&L again. " +
	"Once you have transaction data, I can create detailed financial reports and tailored recommendations."

// reportFailedMessage is shown when the report workflow fails for any reason
// other than an empty ledger.
const reportFailedMessage = "I wasn't able to generate your P&L statement right now. Please try again later."

// Config holds retrieval and context limits for the chat pipeline.
type Config struct {
	TopK          int
	MinScore      float64
	MaxPnLReports int
}

// Service routes each message by intent and orchestrates the full pipeline.
type Service struct {
	embed   Embedder
	search  Searcher
	reports Reporter
	answers Answerer
	pnl     PnLReader
	cfg     Config
	logger  *zap.Logger
}

// New creates a chat service.
func New(
	embed Embedder,
	searcher Searcher,
	reports Reporter,
	answers Answerer,
	pnl PnLReader,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		embed:   embed,
		search:  searcher,
		reports: reports,
		answers: answers,
		pnl:     pnl,
		cfg:     cfg,
		logger:  logger,
	}
}

// Ask is one inbound chat message.
type Ask struct {
	Question string
	UserID   string
	History  []domain.Turn
}

// Reply is the user-facing outcome.
type Reply struct {
	Answer     string
	Provenance domain.Provenance
	Sources    []string
}

// Handle classifies the message and runs the matching workflow. Report
// intent without a user ID falls through to the question path: there is no
// ledger to report on.
func (s *Service) Handle(ctx context.Context, req Ask) (Reply, error) {
	it := intent.Detect(req.Question)

	if it.Kind == intent.ReportRequest && req.UserID != "" {
		return s.handleReport(ctx, req)
	}
	return s.handleQuestion(ctx, req)
}

// handleReport synthesizes a fresh P&L. The derived chunk re-ingestion
// happens inside the report service and is never skipped: future questions
// depend on the new chunk existing.
func (s *Service) handleReport(ctx context.Context, req Ask) (Reply, error) {
	rep, summary, err := s.reports.Generate(ctx, req.UserID, domain.Period{})
	if err != nil {
		if errors.Is(err, domain.ErrNoTransactions) {
			return Reply{Answer: noDataMessage, Provenance: domain.ProvenanceDirect}, nil
		}
		s.logger.Error("report workflow failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return Reply{Answer: reportFailedMessage, Provenance: domain.ProvenanceFallback}, nil
	}

	prompt := "Present this freshly generated P&L statement to the user in a friendly, professional tone. " +
		"Keep every figure exactly as given and mention they can now ask follow-up questions about their finances.\n\n" + summary
	res := s.answers.Phrase(ctx, prompt, req.History)

	s.logger.Info("report request served",
		zap.String("user_id", req.UserID),
		zap.String("report_id", rep.ID))

	return Reply{Answer: res.Answer, Provenance: res.Provenance, Sources: res.Sources}, nil
}

// handleQuestion runs the RAG path: embed, retrieve, fetch the user's
// financial context, assemble, generate. Retrieval failures degrade the
// answer instead of failing the request.
func (s *Service) handleQuestion(ctx context.Context, req Ask) (Reply, error) {
	var vector []float32
	if emb, err := s.embed.Embed(ctx, req.Question); err != nil {
		// Lexical fallback still works without a vector.
		s.logger.Warn("question embedding failed", zap.Error(err))
	} else {
		vector = emb.Embedding
	}

	general, err := s.search.Search(ctx, search.Query{
		Vector:   vector,
		Text:     req.Question,
		TopK:     s.cfg.TopK,
		MinScore: s.cfg.MinScore,
	})
	if err != nil {
		s.logger.Warn("retrieval failed, answering without corpus context", zap.Error(err))
		general = nil
	}

	var financial []domain.Chunk
	if req.UserID != "" {
		financial, err = s.pnl.LatestPnLChunks(ctx, req.UserID, s.cfg.MaxPnLReports)
		if err != nil {
			s.logger.Warn("financial context fetch failed",
				zap.String("user_id", req.UserID),
				zap.Error(err))
			financial = nil
		}
	}

	res := s.answers.Answer(ctx, req.Question, general, financial, req.History)
	return Reply{Answer: res.Answer, Provenance: res.Provenance, Sources: res.Sources}, nil
}
