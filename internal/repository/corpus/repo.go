package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/JohnsonChin1009/open-pay/internal/db"
	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

const (
	docKeyPrefix   = domain.KeyPrefix + "doc:"
	nameKeyPrefix  = domain.KeyPrefix + "docname:"
	chunkKeyPrefix = domain.KeyPrefix + "chunk:"
	chunkIndexName = domain.KeyPrefix + "chunks:idx"
)

// store is the consumer interface for the corpus (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo stores documents and chunks as Redis hashes under the openpay:
// namespace and serves vector retrieval over the chunk index.
type Repo struct {
	store store
}

// New creates a corpus repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the chunk vector index if it does not exist yet.
// The dimension is fixed at creation; changing the embedding model requires
// dropping the index and re-ingesting.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, chunkIndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:        chunkIndexName,
		StorageType: db.StorageHash,
		Prefixes:    []string{chunkKeyPrefix},
		Fields: []db.IndexField{
			{Name: fieldSource, Type: db.IndexFieldTag},
			{Name: fieldChunkType, Type: db.IndexFieldTag},
			{Name: fieldUserID, Type: db.IndexFieldTag},
			{
				Name:           fieldEmbedding,
				Type:           db.IndexFieldVector,
				VectorAlgo:     db.VectorHNSW,
				VectorDim:      dim,
				VectorDistance: db.DistanceCosine,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", chunkIndexName, err)
	}
	return nil
}

// InsertDocument stores a document and its file-name marker. Documents are
// append-only.
func (r *Repo) InsertDocument(ctx context.Context, doc *domain.Document) error {
	key := docKeyPrefix + doc.ID
	if err := r.store.HSet(ctx, key, buildDocumentFields(doc)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}

	nameKey := nameKeyPrefix + doc.FileName
	if err := r.store.Set(ctx, nameKey, []byte(doc.ID)); err != nil {
		return fmt.Errorf("set %s: %w", nameKey, err)
	}
	return nil
}

// FindDocumentID resolves a file name to its document ID. Returns
// domain.ErrDocumentNotFound when the file was never ingested.
func (r *Repo) FindDocumentID(ctx context.Context, fileName string) (string, error) {
	id, err := r.store.Get(ctx, nameKeyPrefix+fileName)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrDocumentNotFound
		}
		return "", fmt.Errorf("get docname %s: %w", fileName, err)
	}
	return string(id), nil
}

// InsertChunks writes a batch of chunks in one pipelined round trip.
func (r *Repo) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		items = append(items, db.HashSetItem{
			Key:    chunkKey(c.DocumentID, c.Index),
			Fields: buildChunkFields(c),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset chunks: %w", err)
	}
	return nil
}

// SearchKNN runs vector retrieval over the chunk index. A missing index maps
// to domain.ErrIndexUnavailable so the caller can fall back to lexical search.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: chunkIndexName,
		Vector:    vector,
		K:         k,
		ReturnFields: []string{
			fieldDocumentID, fieldFileName, fieldChunkIndex, fieldTextChunk,
			fieldChunkType, fieldUserID, fieldGeneratedAt,
			fieldTotalIncome, fieldTotalExpenses, fieldNetIncome,
			fieldTransactionCount, fieldPeriodStart, fieldPeriodEnd,
			fieldScore,
		},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("index %s: %w", chunkIndexName, domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]domain.SearchResult, 0, len(res.Entries))
	for _, e := range res.Entries {
		c := parseChunkFields(e.Fields)
		hits = append(hits, domain.SearchResult{
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			FileName:   c.FileName,
			Score:      e.Score,
			PnL:        c.PnL,
		})
	}
	return hits, nil
}

// AllChunks loads every stored chunk, ordered by key for a deterministic
// scan. Serves the lexical fallback, which must not depend on the index.
func (r *Repo) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	keys, err := r.store.Scan(ctx, chunkKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		chunks = append(chunks, parseChunkFields(m))
	}
	return chunks, nil
}

// LatestPnLChunks returns up to limit report chunks for the user, newest
// first by generation time, ties broken by document ID for stable output.
func (r *Repo) LatestPnLChunks(ctx context.Context, userID string, limit int) ([]domain.Chunk, error) {
	all, err := r.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	var reports []domain.Chunk
	for _, c := range all {
		if c.PnL != nil && c.PnL.UserID == userID {
			reports = append(reports, c)
		}
	}

	sort.Slice(reports, func(i, j int) bool {
		gi, gj := reports[i].PnL.GeneratedAt, reports[j].PnL.GeneratedAt
		if !gi.Equal(gj) {
			return gi.After(gj)
		}
		return reports[i].DocumentID < reports[j].DocumentID
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// StoredDim samples one stored chunk and reports its embedding
// dimensionality. Returns domain.ErrNotFound on an empty corpus.
func (r *Repo) StoredDim(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, chunkKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return 0, domain.ErrNotFound
	}
	sort.Strings(keys)

	fields, err := r.store.HGetAll(ctx, keys[0])
	if err != nil {
		return 0, fmt.Errorf("hgetall %s: %w", keys[0], err)
	}
	return len(bytesToVector(fields[fieldEmbedding])), nil
}

// CountChunks returns the number of indexed chunks.
func (r *Repo) CountChunks(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, chunkIndexName, "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("index %s: %w", chunkIndexName, domain.ErrIndexUnavailable)
		}
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func chunkKey(docID string, index int) string {
	return fmt.Sprintf("%s%s:%d", chunkKeyPrefix, docID, index)
}
