package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/chunker"
	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Service turns source texts into embedded chunks in the corpus.
type Service struct {
	repo    Repository
	embed   Embedder
	chunker *chunker.Chunker
	logger  *zap.Logger
}

// New creates an ingestion service.
func New(repo Repository, embed Embedder, ch *chunker.Chunker, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, chunker: ch, logger: logger}
}

// FileResult is the outcome for one file in a batch.
type FileResult struct {
	FileName   string
	DocumentID string
	ChunkCount int
	Err        error
}

// BatchResult aggregates a directory or multi-file ingestion.
type BatchResult struct {
	Succeeded int
	Failed    int
	Skipped   int
	Results   []FileResult
}

// IngestText chunks, embeds, and stores one source text. Chunk ordinals are
// strictly increasing in split order. Returns the new document ID.
func (s *Service) IngestText(ctx context.Context, fileName, content, source string) (string, int, error) {
	pieces := s.chunker.Split(content)
	if len(pieces) == 0 {
		return "", 0, fmt.Errorf("file %s: no chunkable content", fileName)
	}

	docID := uuid.NewString()
	now := time.Now().UTC()

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, text := range pieces {
		result, err := s.embed.Embed(ctx, text)
		if err != nil {
			return "", 0, fmt.Errorf("embed chunk %d of %s: %w", i, fileName, err)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: docID,
			FileName:   fileName,
			Index:      i,
			Text:       text,
			Embedding:  result.Embedding,
			Source:     source,
			UploadedAt: now,
		})
	}

	doc := &domain.Document{
		ID:         docID,
		FileName:   fileName,
		Content:    content,
		Source:     source,
		UploadedAt: now,
	}
	if err := s.repo.InsertDocument(ctx, doc); err != nil {
		return "", 0, fmt.Errorf("store document %s: %w", fileName, err)
	}
	if err := s.repo.InsertChunks(ctx, chunks); err != nil {
		return "", 0, fmt.Errorf("store chunks of %s: %w", fileName, err)
	}

	s.logger.Info("document ingested",
		zap.String("file_name", fileName),
		zap.String("document_id", docID),
		zap.Int("chunks", len(chunks)))

	return docID, len(chunks), nil
}

// IngestGenerated stores a single derived chunk carrying report metadata.
// The whole summary stays in one chunk so retrieval returns the complete
// numeric picture.
func (s *Service) IngestGenerated(ctx context.Context, fileName, text string, pnl *domain.PnLMetadata) (string, error) {
	result, err := s.embed.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed generated chunk %s: %w", fileName, err)
	}

	docID := uuid.NewString()
	now := time.Now().UTC()

	doc := &domain.Document{
		ID:         docID,
		FileName:   fileName,
		Content:    text,
		Source:     domain.SourceGeneratedReport,
		UploadedAt: now,
	}
	if err := s.repo.InsertDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("store generated document %s: %w", fileName, err)
	}

	chunk := domain.Chunk{
		DocumentID: docID,
		FileName:   fileName,
		Index:      0,
		Text:       text,
		Embedding:  result.Embedding,
		Source:     domain.SourceGeneratedReport,
		UploadedAt: now,
		PnL:        pnl,
	}
	if err := s.repo.InsertChunks(ctx, []domain.Chunk{chunk}); err != nil {
		return "", fmt.Errorf("store generated chunk %s: %w", fileName, err)
	}

	return docID, nil
}

// IngestDir ingests every .txt and .md file under dir. One file's failure
// does not abort the batch.
func (s *Service) IngestDir(ctx context.Context, dir string) (*BatchResult, error) {
	return s.ingestDir(ctx, dir, false)
}

// Seed ingests the directory but skips files already present in the corpus,
// so restarting the service does not duplicate the initial documents.
func (s *Service) Seed(ctx context.Context, dir string) (*BatchResult, error) {
	return s.ingestDir(ctx, dir, true)
}

func (s *Service) ingestDir(ctx context.Context, dir string, skipExisting bool) (*BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir %s: %w", dir, err)
	}

	batch := &BatchResult{}
	for _, entry := range entries {
		if entry.IsDir() || !ingestableFile(entry.Name()) {
			continue
		}
		name := entry.Name()

		if skipExisting {
			if _, err := s.repo.FindDocumentID(ctx, name); err == nil {
				batch.Skipped++
				continue
			} else if !errors.Is(err, domain.ErrDocumentNotFound) {
				batch.Failed++
				batch.Results = append(batch.Results, FileResult{FileName: name, Err: err})
				continue
			}
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			batch.Failed++
			batch.Results = append(batch.Results, FileResult{FileName: name, Err: err})
			continue
		}

		docID, count, err := s.IngestText(ctx, name, string(data), domain.SourceInitialIngest)
		if err != nil {
			s.logger.Warn("file ingestion failed", zap.String("file_name", name), zap.Error(err))
			batch.Failed++
			batch.Results = append(batch.Results, FileResult{FileName: name, Err: err})
			continue
		}

		batch.Succeeded++
		batch.Results = append(batch.Results, FileResult{
			FileName:   name,
			DocumentID: docID,
			ChunkCount: count,
		})
	}

	return batch, nil
}

func ingestableFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".txt" || ext == ".md"
}
