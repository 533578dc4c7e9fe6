// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// Environment keys recognized by the resolver. Every key has a documented
// default; provider credential keys are required only when their provider is
// selected. Booleans accept case-insensitive true/false, list keys accept a
// JSON array literal, numeric keys plain decimal text.
const (
	KeyLLMProvider  = "LLM_PROVIDER"
	KeySystemPrompt = "SYSTEM_PROMPT"
	KeyUseVision    = "USE_VISION"
	KeyMaxSteps     = "MAX_STEPS"

	KeyOpenAIModel     = "OPENAI_MODEL"
	KeyOpenAIAPIKey    = "OPENAI_API_KEY"
	KeyAnthropicModel  = "ANTHROPIC_MODEL"
	KeyAnthropicAPIKey = "ANTHROPIC_API_KEY"
	KeyAzureModel      = "AZURE_OPENAI_MODEL"
	KeyAzureAPIKey     = "AZURE_OPENAI_KEY"
	KeyAzureEndpoint   = "AZURE_OPENAI_ENDPOINT"
	KeyGeminiModel     = "GEMINI_MODEL"
	KeyGeminiAPIKey    = "GEMINI_API_KEY"
	KeyDeepSeekModel   = "DEEPSEEK_MODEL"
	KeyDeepSeekAPIKey  = "DEEPSEEK_API_KEY"
	KeyOllamaModel     = "OLLAMA_MODEL"
	KeyOllamaHost      = "OLLAMA_HOST"

	KeyChromePath = "CHROME_INSTANCE_PATH"
	KeyWSSURL     = "BROWSER_WSS_URL"
	KeyCDPURL     = "BROWSER_CDP_URL"

	KeyPageLoadTimeout   = "PAGE_LOAD_TIMEOUT"
	KeyNavigationTimeout = "NAVIGATION_TIMEOUT_MS"
	KeyViewportWidth     = "VIEWPORT_WIDTH"
	KeyViewportHeight    = "VIEWPORT_HEIGHT"

	KeyAllowedDomains  = "ALLOWED_DOMAINS"
	KeyOutputFormat    = "OUTPUT_FORMAT"
	KeyExcludedActions = "EXCLUDED_ACTIONS"

	KeyOutputDir = "OUTPUT_DIR"
	KeyLogLevel  = "LOG_LEVEL"
)

// allKeys drives environment binding. ALLOWED_DOMAINS is deliberately absent
// from the defaults so that unset (nil, unrestricted) stays distinguishable
// from an explicitly empty list.
var allKeys = []string{
	KeyLLMProvider, KeySystemPrompt, KeyUseVision, KeyMaxSteps,
	KeyOpenAIModel, KeyOpenAIAPIKey, KeyAnthropicModel, KeyAnthropicAPIKey,
	KeyAzureModel, KeyAzureAPIKey, KeyAzureEndpoint,
	KeyGeminiModel, KeyGeminiAPIKey, KeyDeepSeekModel, KeyDeepSeekAPIKey,
	KeyOllamaModel, KeyOllamaHost,
	KeyChromePath, KeyWSSURL, KeyCDPURL,
	KeyPageLoadTimeout, KeyNavigationTimeout, KeyViewportWidth, KeyViewportHeight,
	KeyAllowedDomains, KeyOutputFormat, KeyExcludedActions,
	KeyOutputDir, KeyLogLevel,
}

// SetDefaults registers the documented default for every key that has one.
// Defaults are stored as strings so that default and operator-supplied values
// flow through the exact same strict parsers.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLLMProvider, string(schemas.ProviderOpenAI))
	v.SetDefault(KeySystemPrompt, string(schemas.PromptDefault))
	v.SetDefault(KeyUseVision, "true")
	v.SetDefault(KeyMaxSteps, "100")

	v.SetDefault(KeyOpenAIModel, "gpt-4o")
	v.SetDefault(KeyAnthropicModel, "claude-3-5-sonnet-20241022")
	v.SetDefault(KeyAzureModel, "gpt-4o")
	v.SetDefault(KeyGeminiModel, "gemini-2.0-flash")
	v.SetDefault(KeyOllamaModel, "llama3.1")
	v.SetDefault(KeyOllamaHost, "http://localhost:11434")

	v.SetDefault(KeyChromePath, "")
	v.SetDefault(KeyWSSURL, "")
	v.SetDefault(KeyCDPURL, "")

	v.SetDefault(KeyPageLoadTimeout, "30")
	v.SetDefault(KeyNavigationTimeout, "30000")
	v.SetDefault(KeyViewportWidth, "1280")
	v.SetDefault(KeyViewportHeight, "720")

	v.SetDefault(KeyOutputFormat, "")
	v.SetDefault(KeyExcludedActions, "")

	v.SetDefault(KeyOutputDir, "logs")
	v.SetDefault(KeyLogLevel, "info")
}

// NewViper returns a viper instance with the documented defaults set and
// every recognized key bound to its (unprefixed) environment variable.
// AllowEmptyEnv keeps a variable exported as the empty string distinct from
// an unset one, which the nullable allow-list key depends on.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AllowEmptyEnv(true)
	SetDefaults(v)
	for _, key := range allKeys {
		// BindEnv only errors when called with no arguments.
		_ = v.BindEnv(key, key)
	}
	return v
}

// LoadDotEnv merges KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set, mirroring the usual
// dotenv precedence. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Resolve parses the bound environment into an immutable Configuration.
// Resolution happens once per process; malformed or unrecognized values fail
// with a *schemas.ConfigError naming the offending key and, for enumerated
// keys, the accepted values. A malformed value is never replaced by a
// default.
func Resolve(v *viper.Viper) (*schemas.Configuration, error) {
	cfg := &schemas.Configuration{}

	provider, err := parseEnum(v, KeyLLMProvider, schemas.Providers(), "unsupported LLM provider")
	if err != nil {
		return nil, err
	}
	cfg.Provider = schemas.Provider(provider)

	if err := resolveProvider(v, cfg); err != nil {
		return nil, err
	}

	prompt, err := parseEnum(v, KeySystemPrompt, schemas.SystemPromptModes(), "unknown system prompt mode")
	if err != nil {
		return nil, err
	}
	cfg.SystemPrompt = schemas.SystemPromptMode(prompt)

	if cfg.UseVision, err = parseBool(v, KeyUseVision); err != nil {
		return nil, err
	}
	if cfg.MaxSteps, err = parsePositiveInt(v, KeyMaxSteps); err != nil {
		return nil, err
	}

	if cfg.ChromePath, err = parsePath(v, KeyChromePath); err != nil {
		return nil, err
	}
	cfg.WSSURL = rawString(v, KeyWSSURL)
	cfg.CDPURL = rawString(v, KeyCDPURL)

	if cfg.PageLoadTimeout, err = parsePositiveFloat(v, KeyPageLoadTimeout); err != nil {
		return nil, err
	}
	if cfg.NavigationTimeoutMS, err = parsePositiveInt(v, KeyNavigationTimeout); err != nil {
		return nil, err
	}
	if cfg.ViewportWidth, err = parseNonNegativeInt(v, KeyViewportWidth); err != nil {
		return nil, err
	}
	if cfg.ViewportHeight, err = parseNonNegativeInt(v, KeyViewportHeight); err != nil {
		return nil, err
	}

	if cfg.AllowedDomains, err = parseNullableList(v, KeyAllowedDomains); err != nil {
		return nil, err
	}

	format, err := parseOutputFormat(v, KeyOutputFormat)
	if err != nil {
		return nil, err
	}
	cfg.OutputFormat = format

	if cfg.ExcludedActions, err = parseStringList(v, KeyExcludedActions); err != nil {
		return nil, err
	}

	if cfg.OutputDir, err = parsePath(v, KeyOutputDir); err != nil {
		return nil, err
	}
	if cfg.OutputDir == "" {
		return nil, schemas.NewConfigError(KeyOutputDir, "", "must not be empty")
	}

	if cfg.LogLevel, err = parseLogLevel(v, KeyLogLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveProvider fills Model, APIKey and Endpoint for the selected provider.
// A missing required credential fails resolution so the session never starts
// with an unusable agent.
func resolveProvider(v *viper.Viper, cfg *schemas.Configuration) error {
	switch cfg.Provider {
	case schemas.ProviderOpenAI:
		cfg.Model = rawString(v, KeyOpenAIModel)
		cfg.APIKey = rawString(v, KeyOpenAIAPIKey)
		if cfg.APIKey == "" {
			return schemas.NewConfigError(KeyOpenAIAPIKey, "", "required when LLM_PROVIDER=openai")
		}
	case schemas.ProviderAnthropic:
		cfg.Model = rawString(v, KeyAnthropicModel)
		cfg.APIKey = rawString(v, KeyAnthropicAPIKey)
		if cfg.APIKey == "" {
			return schemas.NewConfigError(KeyAnthropicAPIKey, "", "required when LLM_PROVIDER=anthropic")
		}
	case schemas.ProviderAzure:
		cfg.Model = rawString(v, KeyAzureModel)
		cfg.APIKey = rawString(v, KeyAzureAPIKey)
		cfg.Endpoint = rawString(v, KeyAzureEndpoint)
		if cfg.APIKey == "" {
			return schemas.NewConfigError(KeyAzureAPIKey, "", "required when LLM_PROVIDER=azure")
		}
		if cfg.Endpoint == "" {
			return schemas.NewConfigError(KeyAzureEndpoint, "", "required when LLM_PROVIDER=azure")
		}
	case schemas.ProviderGemini:
		cfg.Model = rawString(v, KeyGeminiModel)
		cfg.APIKey = rawString(v, KeyGeminiAPIKey)
		if cfg.APIKey == "" {
			return schemas.NewConfigError(KeyGeminiAPIKey, "", "required when LLM_PROVIDER=gemini")
		}
	case schemas.ProviderDeepSeek, schemas.ProviderDeepSeekR1:
		cfg.Model = rawString(v, KeyDeepSeekModel)
		if cfg.Model == "" {
			if cfg.Provider == schemas.ProviderDeepSeekR1 {
				cfg.Model = "deepseek-reasoner"
			} else {
				cfg.Model = "deepseek-chat"
			}
		}
		cfg.APIKey = rawString(v, KeyDeepSeekAPIKey)
		if cfg.APIKey == "" {
			return schemas.NewConfigError(KeyDeepSeekAPIKey, "", fmt.Sprintf("required when LLM_PROVIDER=%s", cfg.Provider))
		}
	case schemas.ProviderOllama:
		cfg.Model = rawString(v, KeyOllamaModel)
		cfg.Endpoint = rawString(v, KeyOllamaHost)
		if cfg.Endpoint == "" {
			return schemas.NewConfigError(KeyOllamaHost, "", "required when LLM_PROVIDER=ollama")
		}
	}
	return nil
}

// parsePath trims and expands a path-valued key (including a leading ~).
func parsePath(v *viper.Viper, key string) (string, error) {
	s := rawString(v, key)
	if s == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(s)
	if err != nil {
		return "", schemas.NewConfigError(key, s, fmt.Sprintf("cannot expand path: %v", err))
	}
	return expanded, nil
}
