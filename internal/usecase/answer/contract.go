package answer

import (
	"context"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
)

// Generator sends an assembled prompt to the language model.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []domain.Turn) (string, error)
}
