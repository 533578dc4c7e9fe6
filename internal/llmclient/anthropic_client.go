// internal/llmclient/anthropic_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// anthropicMaxTokens caps one completion; the Anthropic API requires an
// explicit limit.
const anthropicMaxTokens = 4096

// anthropicClient drives Claude models through langchaingo.
type anthropicClient struct {
	llm   llms.Model
	model string
	log   *zap.Logger
}

var _ Client = (*anthropicClient)(nil)

func newAnthropicClient(cfg *schemas.Configuration, logger *zap.Logger) (*anthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, schemas.NewConfigError("ANTHROPIC_API_KEY", "", "required when LLM_PROVIDER=anthropic")
	}
	model := modelOrDefault(cfg.Model, defaultAnthropicModel)

	llm, err := anthropic.New(
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize anthropic client: %w", err)
	}

	return &anthropicClient{
		llm:   llm,
		model: model,
		log:   logger.Named("llm_client.anthropic"),
	}, nil
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	userParts := []llms.ContentPart{llms.TextPart(req.User)}
	if len(req.ImagePNG) > 0 {
		userParts = append(userParts, llms.BinaryPart("image/png", req.ImagePNG))
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		{Role: llms.ChatMessageTypeHuman, Parts: userParts},
	}

	var content string
	operation := func() error {
		start := time.Now()
		resp, err := c.llm.GenerateContent(ctx, messages,
			llms.WithTemperature(0),
			llms.WithMaxTokens(anthropicMaxTokens),
		)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			// The SDK does not type its API errors; retry within the
			// bounded policy.
			c.log.Warn("Provider error during LLM request, retrying.", zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("anthropic returned no choices"))
		}

		c.log.Info("LLM generation complete.", zap.Duration("duration", time.Since(start)))
		content = resp.Choices[0].Content
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}
	return content, nil
}
