package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	"github.com/JohnsonChin1009/open-pay/internal/metrics"
)

// Strategy names, in evaluation order.
const (
	StrategySimilarity = "similarity"
	StrategyLexical    = "lexical"
)

// fallbackScore is the uniform mid-confidence score assigned to lexical hits.
// Lexical matching has no meaningful ranking signal, so every hit scores the same.
const fallbackScore = 0.5

// Query is one retrieval request. Vector drives the similarity strategy,
// Text drives the lexical fallback.
type Query struct {
	Vector   []float32
	Text     string
	TopK     int
	MinScore float64
}

// Service runs retrieval as an ordered strategy list: similarity first,
// lexical fallback second. Each strategy failure reason is captured and
// logged once per distinct reason, not per query.
type Service struct {
	repo   Repository
	logger *zap.Logger

	mu            sync.Mutex
	loggedReasons map[string]struct{}
}

// New creates a search service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		logger:        logger,
		loggedReasons: make(map[string]struct{}),
	}
}

type strategy struct {
	name string
	run  func(ctx context.Context, q Query) ([]domain.SearchResult, error)
}

// Search evaluates the strategies in order and returns the first successful
// result set. An empty result from a working strategy is a valid outcome and
// stops the chain; only strategy errors advance to the next entry.
func (s *Service) Search(ctx context.Context, q Query) ([]domain.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	strategies := []strategy{
		{name: StrategySimilarity, run: s.searchSimilarity},
		{name: StrategyLexical, run: s.searchLexical},
	}

	var failures []string
	var lastErr error

	for _, st := range strategies {
		results, err := st.run(ctx, q)
		if err != nil {
			failures = append(failures, st.name+": "+err.Error())
			lastErr = err
			s.logFailureOnce(st.name, err)
			metrics.SearchStrategyTotal.WithLabelValues(st.name, "error").Inc()
			continue
		}

		status := "ok"
		if len(results) == 0 {
			status = "empty"
		}
		metrics.SearchStrategyTotal.WithLabelValues(st.name, status).Inc()
		return results, nil
	}

	return nil, fmt.Errorf("all strategies failed (%s): %w", strings.Join(failures, "; "), lastErr)
}

// searchSimilarity runs KNN retrieval and applies the minScore post-filter.
func (s *Service) searchSimilarity(ctx context.Context, q Query) ([]domain.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("no query vector")
	}

	results, err := s.repo.SearchKNN(ctx, q.Vector, q.TopK)
	if err != nil {
		return nil, err
	}

	// Stable sort keeps backend order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= q.MinScore {
			filtered = append(filtered, r)
		}
	}
	return capTopK(filtered, q.TopK), nil
}

// searchLexical scans all chunks for a case-insensitive substring match.
// Hits keep chunk scan order and share one fixed score.
func (s *Service) searchLexical(ctx context.Context, q Query) ([]domain.SearchResult, error) {
	chunks, err := s.repo.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, nil
	}

	var results []domain.SearchResult
	for _, c := range chunks {
		if !strings.Contains(strings.ToLower(c.Text), needle) {
			continue
		}
		if fallbackScore < q.MinScore {
			continue
		}
		results = append(results, domain.SearchResult{
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			FileName:   c.FileName,
			Score:      fallbackScore,
			PnL:        c.PnL,
		})
	}
	return capTopK(results, q.TopK), nil
}

// logFailureOnce logs one warning per distinct strategy failure reason to
// avoid flooding the log when the backend stays broken across many queries.
func (s *Service) logFailureOnce(name string, err error) {
	reason := name + ": " + err.Error()

	s.mu.Lock()
	_, seen := s.loggedReasons[reason]
	if !seen {
		s.loggedReasons[reason] = struct{}{}
	}
	s.mu.Unlock()

	if !seen {
		s.logger.Warn("search strategy failed",
			zap.String("strategy", name),
			zap.Error(err))
	}
}

func capTopK(results []domain.SearchResult, topK int) []domain.SearchResult {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}
