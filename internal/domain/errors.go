package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoTransactions signals that a user has no ledger entries in the
	// requested period. A normal outcome, not a system fault.
	ErrNoTransactions = errors.New("no transactions for user")
	// ErrIndexUnavailable signals that the similarity search backend is
	// missing or misconfigured. Triggers the lexical fallback.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrEmbeddingProvider signals an embedding provider failure
	// (network, rate limit, invalid input). Transient class: retryable.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrGenerationFailed signals a language model call failure. Converted
	// to a user-safe apology at the answer generator boundary.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrDimensionMismatch signals an embedding dimension mismatch between
	// the configured provider and stored vectors. Configuration class:
	// requires operator action, never auto-corrected.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidChunking signals an invalid chunker configuration.
	ErrInvalidChunking = errors.New("invalid chunking configuration")
)

// DimensionMismatchError wraps ErrDimensionMismatch with both dimensions.
type DimensionMismatchError struct {
	QueryDim  int
	StoredDim int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: query produces %d dims, store holds %d dims",
		ErrDimensionMismatch.Error(), e.QueryDim, e.StoredDim)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(queryDim, storedDim int) error {
	return &DimensionMismatchError{QueryDim: queryDim, StoredDim: storedDim}
}
