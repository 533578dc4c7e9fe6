// internal/llmclient/client.go
package llmclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// Request is one completion exchange: a system prompt, a user prompt, and
// optionally one PNG screenshot attached to the user turn.
type Request struct {
	System string
	User   string
	// ImagePNG carries a viewport screenshot when vision is enabled.
	ImagePNG []byte
	// ForceJSON asks providers that support it to emit a JSON-only
	// response. Providers without the feature ignore it; the response
	// parser copes with fenced output either way.
	ForceJSON bool
}

// Client is the minimal completion surface the agent consumes. One client is
// built per process for the configured provider.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model reports the resolved model identifier, including any default
	// the factory applied.
	Model() string
}

// Per-provider default models, applied when the model key is unset.
const (
	defaultOpenAIModel     = "gpt-4o"
	defaultAnthropicModel  = "claude-3-5-sonnet-20241022"
	defaultAzureModel      = "gpt-4o"
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultDeepSeekModel   = "deepseek-chat"
	defaultDeepSeekR1Model = "deepseek-reasoner"
	defaultOllamaModel     = "llama3.1"
)

// New builds the client for the configured provider. Credentials were
// validated during configuration resolution; the guards here only catch a
// Configuration assembled outside the resolver.
func New(cfg *schemas.Configuration, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case schemas.ProviderGemini:
		return newGeminiClient(cfg, logger)
	case schemas.ProviderAnthropic:
		return newAnthropicClient(cfg, logger)
	case schemas.ProviderOpenAI, schemas.ProviderAzure, schemas.ProviderDeepSeek,
		schemas.ProviderDeepSeekR1, schemas.ProviderOllama:
		return newOpenAIClient(cfg, logger)
	default:
		return nil, &schemas.ConfigError{
			Key:      "LLM_PROVIDER",
			Value:    string(cfg.Provider),
			Reason:   "unsupported provider",
			Accepted: schemas.Providers(),
		}
	}
}

// retryPolicy is the shared backoff schedule for transient provider
// failures.
func retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// modelOrDefault applies fallback when the configured model is empty.
func modelOrDefault(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}
