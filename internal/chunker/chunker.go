// Package chunker splits raw document text into overlapping word windows
// suitable for embedding.
package chunker

import (
	"fmt"
	"strings"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Defaults match the corpus the service was originally ingested with.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunker produces sliding word windows of Size tokens advancing by
// Size-Overlap per step. Stateless: no retained state between calls.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. overlap >= size would never advance,
// so it is rejected as a configuration error.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, domain.ErrInvalidChunking)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d: %w", overlap, domain.ErrInvalidChunking)
	}
	if overlap >= size {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d: %w",
			overlap, size, domain.ErrInvalidChunking)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a chunker with the standard 500/50 window.
func Default() *Chunker {
	c, _ := New(DefaultSize, DefaultOverlap)
	return c
}

// Split tokenizes on whitespace and returns the windows in order. The final
// window reaches the end of the input exactly once: once a window covers the
// last token, iteration stops.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
