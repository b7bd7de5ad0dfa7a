package domain

import "time"

// KeyPrefix namespaces every Redis key the service writes.
const KeyPrefix = "openpay:"

// Source tags record chunk provenance in the corpus.
const (
	SourceInitialIngest   = "initial-ingest"
	SourceGeneratedReport = "generated-report"
)

// ChunkTypePnLReport marks chunks derived from a P&L report.
const ChunkTypePnLReport = "pnl_report"

// Document is a source text unit ingested once. Immutable after creation;
// the pipeline never deletes documents.
type Document struct {
	ID         string
	FileName   string
	Content    string
	Source     string
	UploadedAt time.Time
}

// Chunk is a retrievable unit derived from a Document: one text window plus
// its embedding. Chunks are appended, never updated; a fresher report
// supersedes older chunks without invalidating them.
type Chunk struct {
	DocumentID string
	FileName   string
	Index      int
	Text       string
	Embedding  []float32
	Source     string
	UploadedAt time.Time

	// Set only for generated-report chunks.
	PnL *PnLMetadata
}

// PnLMetadata carries the numeric profile of a generated P&L report so the
// pipeline can answer questions about the user's own finances.
type PnLMetadata struct {
	UserID           string
	GeneratedAt      time.Time
	TotalIncome      float64
	TotalExpenses    float64
	NetIncome        float64
	TransactionCount int
	PeriodStart      time.Time
	PeriodEnd        time.Time
}

// SearchResult is a single retrieval hit. Ephemeral, never persisted.
// Score semantics: higher is more relevant; cosine similarity in [0,1] for
// the vector strategy, a uniform mid-confidence constant for the lexical
// fallback. Scores are comparable only within one search call.
type SearchResult struct {
	DocumentID string
	ChunkIndex int
	Text       string
	FileName   string
	Score      float64
	PnL        *PnLMetadata
}
