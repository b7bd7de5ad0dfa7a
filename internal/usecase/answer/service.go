package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// apology is the only text a model failure is allowed to surface. Internal
// detail goes to the log, never to the user.
const apology = "I apologize, but I'm having trouble generating a response right now. Please try again or rephrase your question."

// Result is a generated reply with its provenance and citation list.
type Result struct {
	Answer     string
	Provenance domain.Provenance
	Sources    []string
}

// Service assembles prompts and runs generation. Model errors stop here.
type Service struct {
	gen             Generator
	maxContextChars int
	logger          *zap.Logger
}

// New creates an answer service. maxContextChars bounds the combined length
// of all context block text in the assembled prompt.
func New(gen Generator, maxContextChars int, logger *zap.Logger) *Service {
	return &Service{gen: gen, maxContextChars: maxContextChars, logger: logger}
}

// Answer assembles the prompt from both context sources and generates the
// reply. Never returns an error: a model failure becomes the apology with
// fallback provenance.
func (s *Service) Answer(
	ctx context.Context,
	question string,
	general []domain.SearchResult,
	financial []domain.Chunk,
	history []domain.Turn,
) Result {
	general, financial = s.truncate(general, financial)
	prompt := s.Assemble(general, financial, question)

	provenance := domain.ProvenanceRAG
	if len(general) == 0 && len(financial) == 0 {
		provenance = domain.ProvenanceFallback
	}

	reply, err := s.gen.Generate(ctx, prompt, history)
	if err != nil {
		s.logger.Error("answer generation failed", zap.Error(err))
		return Result{Answer: apology, Provenance: domain.ProvenanceFallback}
	}

	sources := collectSources(general, financial)
	if len(sources) > 0 {
		reply += "\n\nSources: " + strings.Join(sources, ", ")
	}

	return Result{Answer: reply, Provenance: provenance, Sources: sources}
}

// Phrase runs generation over a prepared text without retrieval context.
// Used by the report workflow; the numbers are already computed, the model
// only phrases them.
func (s *Service) Phrase(ctx context.Context, prompt string, history []domain.Turn) Result {
	reply, err := s.gen.Generate(ctx, prompt, history)
	if err != nil {
		s.logger.Error("phrasing failed", zap.Error(err))
		return Result{Answer: apology, Provenance: domain.ProvenanceFallback}
	}
	return Result{Answer: reply, Provenance: domain.ProvenanceDirect}
}

// Assemble builds the prompt: general knowledge first, the user's financial
// profile second, the question last. Both context sources empty still yields
// a valid question-only prompt.
func (s *Service) Assemble(general []domain.SearchResult, financial []domain.Chunk, question string) string {
	var b strings.Builder
	b.WriteString("You are a professional financial advisor. Use the context below to answer the user's question accurately. If the context does not contain enough information, say so.\n")

	if len(general) > 0 {
		b.WriteString("\nGENERAL KNOWLEDGE:\n")
		for i, r := range general {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Text)
		}
	}

	if len(financial) > 0 {
		b.WriteString("\nUSER'S FINANCIAL PROFILE:\n")
		for _, c := range financial {
			b.WriteString(c.Text)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nUSER QUESTION: ")
	b.WriteString(question)
	return b.String()
}

// truncate enforces the context budget: lowest-scored general chunks go
// first (equal scores drop the later one), then the oldest financial chunks.
// Same inputs always truncate the same way.
func (s *Service) truncate(general []domain.SearchResult, financial []domain.Chunk) ([]domain.SearchResult, []domain.Chunk) {
	if s.maxContextChars <= 0 {
		return general, financial
	}

	general = append([]domain.SearchResult(nil), general...)
	financial = append([]domain.Chunk(nil), financial...)

	total := func() int {
		n := 0
		for _, r := range general {
			n += len(r.Text)
		}
		for _, c := range financial {
			n += len(c.Text)
		}
		return n
	}

	for total() > s.maxContextChars && len(general) > 0 {
		drop := 0
		for i := 1; i < len(general); i++ {
			if general[i].Score <= general[drop].Score {
				drop = i
			}
		}
		general = append(general[:drop], general[drop+1:]...)
	}

	// Financial chunks arrive newest first; trim from the tail.
	for total() > s.maxContextChars && len(financial) > 0 {
		financial = financial[:len(financial)-1]
	}

	return general, financial
}

// collectSources returns the unique file names cited by the context, in
// first-appearance order.
func collectSources(general []domain.SearchResult, financial []domain.Chunk) []string {
	seen := make(map[string]struct{})
	var sources []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		sources = append(sources, name)
	}

	for _, r := range general {
		add(r.FileName)
	}
	for _, c := range financial {
		add(c.FileName)
	}
	return sources
}
