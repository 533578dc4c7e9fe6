// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// geminiClient drives the Gemini API through the google genai SDK.
type geminiClient struct {
	apiKey string
	model  string
	log    *zap.Logger

	// newSDKClient is swappable for tests.
	newSDKClient func(ctx context.Context) (*genai.Client, error)
}

var _ Client = (*geminiClient)(nil)

func newGeminiClient(cfg *schemas.Configuration, logger *zap.Logger) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, schemas.NewConfigError("GEMINI_API_KEY", "", "required when LLM_PROVIDER=gemini")
	}
	c := &geminiClient{
		apiKey: cfg.APIKey,
		model:  modelOrDefault(cfg.Model, defaultGeminiModel),
		log:    logger.Named("llm_client.gemini"),
	}
	c.newSDKClient = func(ctx context.Context) (*genai.Client, error) {
		return genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	}
	return c, nil
}

func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) Complete(ctx context.Context, req Request) (string, error) {
	sdk, err := c.newSDKClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(req.User)}
	if len(req.ImagePNG) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.ImagePNG, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.ForceJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	var content string
	operation := func() error {
		start := time.Now()
		resp, err := sdk.Models.GenerateContent(ctx, c.model, contents, genCfg)
		if err != nil {
			return c.classify(err)
		}

		text := resp.Text()
		if text == "" {
			return backoff.Permanent(fmt.Errorf("gemini returned no text candidates"))
		}

		c.log.Info("LLM generation complete.", zap.Duration("duration", time.Since(start)))
		content = text
		return nil
	}

	if err := backoff.Retry(operation, retryPolicy(ctx)); err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	return content, nil
}

func (c *geminiClient) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			c.log.Warn("Transient provider error, retrying.", zap.Int("status", apiErr.Code))
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	c.log.Warn("Network error during LLM request, retrying.", zap.Error(err))
	return err
}
