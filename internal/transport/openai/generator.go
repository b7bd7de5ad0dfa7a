package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JohnsonChin1009/open-pay/internal/domain"
	"github.com/JohnsonChin1009/open-pay/internal/metrics"
)

// Generator produces chat completions through the OpenAI-compatible API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// GeneratorConfig holds the chat completion settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration // per-call deadline; 0 disables
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat completion provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
}

// Generate sends the assembled prompt with prior history and returns the
// model's reply. History turns with unknown roles are skipped rather than
// failing the whole request.
func (g *Generator) Generate(ctx context.Context, prompt string, history []domain.Turn) (string, error) {
	// A stalled provider must surface as ErrGenerationFailed, which the
	// answer boundary converts to the apology reply.
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, t := range history {
		role, ok := chatRole(t.Role)
		if !ok {
			g.logger.Warn("skipping history turn with unknown role", zap.String("role", t.Role))
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", wrapGenerationError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationFailed)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.model).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}

func chatRole(role string) (string, bool) {
	switch role {
	case domain.RoleUser:
		return openai.ChatMessageRoleUser, true
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant, true
	default:
		return "", false
	}
}

// wrapGenerationError maps API failures onto domain.ErrGenerationFailed so
// callers can convert them to a user-safe reply.
func wrapGenerationError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrGenerationFailed)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGenerationFailed)
	}

	return fmt.Errorf("completion request failed: %w", domain.ErrGenerationFailed)
}
