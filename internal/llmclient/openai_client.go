// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
)

const (
	deepseekBaseURL = "https://api.deepseek.com/v1"
	azureAPIVersion = "2024-02-29"
)

// openAIClient serves every provider that speaks the OpenAI chat API:
// openai itself, Azure deployments, DeepSeek, and local Ollama instances.
type openAIClient struct {
	client   *openai.Client
	provider schemas.Provider
	model    string
	// forceJSONOK marks providers whose endpoint accepts the json_object
	// response format.
	forceJSONOK bool
	log         *zap.Logger
}

var _ Client = (*openAIClient)(nil)

func newOpenAIClient(cfg *schemas.Configuration, logger *zap.Logger) (*openAIClient, error) {
	c := &openAIClient{provider: cfg.Provider}

	var cc openai.ClientConfig
	switch cfg.Provider {
	case schemas.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, schemas.NewConfigError("OPENAI_API_KEY", "", "required when LLM_PROVIDER=openai")
		}
		cc = openai.DefaultConfig(cfg.APIKey)
		c.model = modelOrDefault(cfg.Model, defaultOpenAIModel)
		c.forceJSONOK = true

	case schemas.ProviderAzure:
		if cfg.APIKey == "" || cfg.Endpoint == "" {
			return nil, schemas.NewConfigError("AZURE_OPENAI_KEY", "", "key and endpoint required when LLM_PROVIDER=azure")
		}
		cc = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		cc.APIVersion = azureAPIVersion
		c.model = modelOrDefault(cfg.Model, defaultAzureModel)
		c.forceJSONOK = true

	case schemas.ProviderDeepSeek, schemas.ProviderDeepSeekR1:
		if cfg.APIKey == "" {
			return nil, schemas.NewConfigError("DEEPSEEK_API_KEY", "", fmt.Sprintf("required when LLM_PROVIDER=%s", cfg.Provider))
		}
		cc = openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = deepseekBaseURL
		if cfg.Provider == schemas.ProviderDeepSeekR1 {
			c.model = modelOrDefault(cfg.Model, defaultDeepSeekR1Model)
			// The reasoner endpoint rejects response_format.
		} else {
			c.model = modelOrDefault(cfg.Model, defaultDeepSeekModel)
			c.forceJSONOK = true
		}

	case schemas.ProviderOllama:
		if cfg.Endpoint == "" {
			return nil, schemas.NewConfigError("OLLAMA_HOST", "", "required when LLM_PROVIDER=ollama")
		}
		// Ollama exposes an OpenAI-compatible surface under /v1 and
		// ignores the bearer token.
		cc = openai.DefaultConfig("ollama")
		cc.BaseURL = strings.TrimRight(cfg.Endpoint, "/") + "/v1"
		c.model = modelOrDefault(cfg.Model, defaultOllamaModel)

	default:
		return nil, fmt.Errorf("provider %s does not speak the OpenAI API", cfg.Provider)
	}

	c.client = openai.NewClientWithConfig(cc)
	c.log = logger.Named("llm_client." + string(cfg.Provider))
	return c, nil
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			c.userMessage(req),
		},
	}
	if req.ForceJSON && c.forceJSONOK {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var content string
	operation := func() error {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return c.classify(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("%s returned no choices", c.provider))
		}

		c.log.Info("LLM generation complete.",
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
		content = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.provider, err)
	}
	return content, nil
}

// userMessage builds the user turn, attaching the screenshot as a data URL
// part when present.
func (c *openAIClient) userMessage(req Request) openai.ChatCompletionMessage {
	if len(req.ImagePNG) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User}
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.User},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.ImagePNG),
				},
			},
		},
	}
}

// classify splits provider errors into transient (retried) and permanent.
func (c *openAIClient) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			c.log.Warn("Transient provider error, retrying.", zap.Int("status", apiErr.HTTPStatusCode))
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	// Network-level failure; worth retrying.
	c.log.Warn("Network error during LLM request, retrying.", zap.Error(err))
	return err
}
