package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	"github.com/JohnsonChin1009/open-pay/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

// mockRepo implements Repository for tests.
type mockRepo struct {
	searchKNNFn func(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
	allChunksFn func(ctx context.Context) ([]domain.Chunk, error)
}

func (m *mockRepo) SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, vector, k)
	}
	return nil, nil
}

func (m *mockRepo) AllChunks(ctx context.Context) ([]domain.Chunk, error) {
	if m.allChunksFn != nil {
		return m.allChunksFn(ctx)
	}
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	mr := &mockRepo{}
	return New(mr, zap.NewNop()), mr
}

func hit(docID string, score float64) domain.SearchResult {
	return domain.SearchResult{DocumentID: docID, Text: "chunk text", Score: score}
}

func TestSearch_SimilarityOrderedAndCapped(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, k int) ([]domain.SearchResult, error) {
		return []domain.SearchResult{
			hit("a", 0.5), hit("b", 0.9), hit("c", 0.7), hit("d", 0.6),
		}, nil
	}

	got, err := svc.Search(context.Background(), Query{
		Vector: []float32{0.1}, Text: "q", TopK: 3,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("topK cap violated: got %d results", len(got))
	}
	want := []string{"b", "c", "d"}
	for i, r := range got {
		if r.DocumentID != want[i] {
			t.Errorf("result[%d] = %s, expected %s", i, r.DocumentID, want[i])
		}
	}
}

func TestSearch_MinScoreFilter(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return []domain.SearchResult{hit("a", 0.9), hit("b", 0.3)}, nil
	}

	got, err := svc.Search(context.Background(), Query{
		Vector: []float32{0.1}, Text: "q", TopK: 5, MinScore: 0.5,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].DocumentID != "a" {
		t.Errorf("minScore filter wrong: %+v", got)
	}
}

func TestSearch_EqualScoresKeepBackendOrder(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return []domain.SearchResult{hit("first", 0.8), hit("second", 0.8), hit("third", 0.8)}, nil
	}

	got, err := svc.Search(context.Background(), Query{Vector: []float32{0.1}, Text: "q", TopK: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, r := range got {
		if r.DocumentID != want[i] {
			t.Errorf("tie order not preserved: result[%d] = %s", i, r.DocumentID)
		}
	}
}

func TestSearch_EmptySimilarityIsValidResult(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return nil, nil
	}
	mr.allChunksFn = func(_ context.Context) ([]domain.Chunk, error) {
		t.Fatal("lexical fallback must not run when similarity succeeds with zero rows")
		return nil, nil
	}

	got, err := svc.Search(context.Background(), Query{Vector: []float32{0.1}, Text: "q", TopK: 5})
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}

func TestSearch_FallsBackToLexicalOnBackendError(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return nil, fmt.Errorf("ft.search: %w", domain.ErrIndexUnavailable)
	}
	mr.allChunksFn = func(_ context.Context) ([]domain.Chunk, error) {
		return []domain.Chunk{
			{DocumentID: "doc-1", Index: 0, Text: "Budgeting basics for small firms"},
			{DocumentID: "doc-1", Index: 1, Text: "unrelated content"},
			{DocumentID: "doc-2", Index: 0, Text: "advanced BUDGETING techniques"},
		}, nil
	}

	got, err := svc.Search(context.Background(), Query{
		Vector: []float32{0.1}, Text: "budgeting", TopK: 5,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lexical hits, got %d", len(got))
	}
	for _, r := range got {
		if r.Score != fallbackScore {
			t.Errorf("lexical score = %v, expected uniform %v", r.Score, fallbackScore)
		}
	}
	if got[0].DocumentID != "doc-1" || got[1].DocumentID != "doc-2" {
		t.Errorf("scan order not preserved: %s, %s", got[0].DocumentID, got[1].DocumentID)
	}
}

func TestSearch_FallbackIsDeterministic(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return nil, errors.New("backend down")
	}
	mr.allChunksFn = func(_ context.Context) ([]domain.Chunk, error) {
		return []domain.Chunk{
			{DocumentID: "doc-1", Index: 0, Text: "savings plan alpha"},
			{DocumentID: "doc-2", Index: 0, Text: "savings plan beta"},
		}, nil
	}

	q := Query{Vector: []float32{0.1}, Text: "savings", TopK: 5}

	first, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("fallback not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestSearch_MinScoreAboveFallbackExcludesLexicalHits(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return nil, errors.New("backend down")
	}
	mr.allChunksFn = func(_ context.Context) ([]domain.Chunk, error) {
		return []domain.Chunk{{DocumentID: "doc-1", Text: "matching text"}}, nil
	}

	got, err := svc.Search(context.Background(), Query{
		Vector: []float32{0.1}, Text: "matching", TopK: 5, MinScore: 0.8,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("lexical hits below minScore must be dropped, got %d", len(got))
	}
}

func TestSearch_AllStrategiesFail(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return nil, errors.New("knn down")
	}
	mr.allChunksFn = func(_ context.Context) ([]domain.Chunk, error) {
		return nil, errors.New("scan down")
	}

	_, err := svc.Search(context.Background(), Query{Vector: []float32{0.1}, Text: "q", TopK: 5})
	if err == nil {
		t.Fatal("expected error when every strategy fails")
	}
}

func TestSearch_FailureLoggedOncePerReason(t *testing.T) {
	svc, mr := newTestService(t)

	mr.searchKNNFn = func(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
		return nil, errors.New("index gone")
	}
	mr.allChunksFn = func(_ context.Context) ([]domain.Chunk, error) {
		return nil, nil
	}

	q := Query{Vector: []float32{0.1}, Text: "q", TopK: 5}
	for i := 0; i < 3; i++ {
		if _, err := svc.Search(context.Background(), q); err != nil {
			t.Fatalf("Search failed: %v", err)
		}
	}

	svc.mu.Lock()
	n := len(svc.loggedReasons)
	svc.mu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 distinct logged reason, got %d", n)
	}
}
