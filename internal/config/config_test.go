// internal/config/config_test.go
package config

import (
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// testViper returns a bound viper with just enough set to make the default
// provider (openai) resolvable.
func testViper(overrides map[string]string) *viper.Viper {
	v := NewViper()
	v.Set(KeyOpenAIAPIKey, "sk-test")
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

// -- Defaults --

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(testViper(nil))
	require.NoError(t, err)

	assert.Equal(t, schemas.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, schemas.PromptDefault, cfg.SystemPrompt)
	assert.True(t, cfg.UseVision)
	assert.Equal(t, 100, cfg.MaxSteps)
	assert.Equal(t, 30.0, cfg.PageLoadTimeout)
	assert.Equal(t, 30000, cfg.NavigationTimeoutMS)
	assert.Equal(t, 1280, cfg.ViewportWidth)
	assert.Equal(t, 720, cfg.ViewportHeight)
	assert.Nil(t, cfg.AllowedDomains, "unset allow-list must stay nil (unrestricted)")
	assert.Equal(t, schemas.FormatText, cfg.OutputFormat)
	assert.Empty(t, cfg.ExcludedActions)
	assert.NotNil(t, cfg.ExcludedActions, "exclusion list defaults to empty, not nil")
	assert.Equal(t, "logs", cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, schemas.ConnectManaged, cfg.ConnectionMode())
}

// -- Boolean parsing --

// Any casing of true/false resolves to the same boolean; anything else is a
// ConfigError, never a silent default.
func TestBooleanCaseInsensitive(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want bool
	}{
		{"true", true}, {"TRUE", true}, {"True", true}, {"tRuE", true},
		{"false", false}, {"FALSE", false}, {"False", false}, {"fAlSe", false},
	} {
		tt := tc
		t.Run(tt.raw, func(t *testing.T) {
			cfg, err := Resolve(testViper(map[string]string{KeyUseVision: tt.raw}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.UseVision)
		})
	}

	for _, raw := range []string{"yes", "1", "0", "on", "truth", " "} {
		bad := raw
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := Resolve(testViper(map[string]string{KeyUseVision: bad}))
			var cerr *schemas.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, KeyUseVision, cerr.Key)
		})
	}
}

// -- Numeric parsing --

func TestMalformedNumericsFailNaming(t *testing.T) {
	cases := map[string]string{
		KeyMaxSteps:          "fifty",
		KeyNavigationTimeout: "30s",
		KeyViewportWidth:     "12.5",
		KeyPageLoadTimeout:   "soon",
	}
	for key, raw := range cases {
		k, r := key, raw
		t.Run(k, func(t *testing.T) {
			_, err := Resolve(testViper(map[string]string{k: r}))
			var cerr *schemas.ConfigError
			require.ErrorAs(t, err, &cerr, "malformed numeric must produce ConfigError")
			assert.Equal(t, k, cerr.Key)
			assert.Contains(t, err.Error(), k)
		})
	}
}

func TestTimeoutsMustBeStrictlyPositive(t *testing.T) {
	for _, tc := range []struct{ key, raw string }{
		{KeyMaxSteps, "0"},
		{KeyMaxSteps, "-3"},
		{KeyPageLoadTimeout, "0"},
		{KeyPageLoadTimeout, "-1.5"},
		{KeyNavigationTimeout, "0"},
	} {
		tt := tc
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			_, err := Resolve(testViper(map[string]string{tt.key: tt.raw}))
			var cerr *schemas.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}

	// Fractional page load timeouts are the reason the key is float-typed.
	cfg, err := Resolve(testViper(map[string]string{KeyPageLoadTimeout: "2.5"}))
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.PageLoadTimeout)

	// Pixel dimensions only need to be non-negative integers.
	_, err = Resolve(testViper(map[string]string{KeyViewportWidth: "-1"}))
	assert.Error(t, err)
	cfg, err = Resolve(testViper(map[string]string{KeyViewportWidth: "0"}))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.ViewportWidth)
}

// -- Enumerated keys --

func TestUnknownEnumValuesListAccepted(t *testing.T) {
	t.Run("provider", func(t *testing.T) {
		_, err := Resolve(testViper(map[string]string{KeyLLMProvider: "grok"}))
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeyLLMProvider, cerr.Key)
		assert.Contains(t, err.Error(), "anthropic")
		assert.Contains(t, err.Error(), "ollama")
	})

	t.Run("system prompt", func(t *testing.T) {
		_, err := Resolve(testViper(map[string]string{KeySystemPrompt: "yolo"}))
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeySystemPrompt, cerr.Key)
		assert.Contains(t, err.Error(), "safety-first")
		assert.Contains(t, err.Error(), "data-collection")
	})

	t.Run("output format", func(t *testing.T) {
		_, err := Resolve(testViper(map[string]string{KeyOutputFormat: "csv"}))
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeyOutputFormat, cerr.Key)
		assert.Contains(t, err.Error(), "posts")
	})

	t.Run("log level", func(t *testing.T) {
		_, err := Resolve(testViper(map[string]string{KeyLogLevel: "chatty"}))
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeyLogLevel, cerr.Key)
	})

	t.Run("provider value is case-insensitive", func(t *testing.T) {
		cfg, err := Resolve(testViper(map[string]string{
			KeyLLMProvider:     "ANTHROPIC",
			KeyAnthropicAPIKey: "sk-ant",
		}))
		require.NoError(t, err)
		assert.Equal(t, schemas.ProviderAnthropic, cfg.Provider)
		assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Model)
	})
}

// -- List keys --

func TestListParsing(t *testing.T) {
	t.Run("JSON array", func(t *testing.T) {
		cfg, err := Resolve(testViper(map[string]string{KeyExcludedActions: `["download","screenshot"]`}))
		require.NoError(t, err)
		assert.Equal(t, []string{"download", "screenshot"}, cfg.ExcludedActions)
	})

	t.Run("empty string means empty list", func(t *testing.T) {
		cfg, err := Resolve(testViper(map[string]string{KeyExcludedActions: ""}))
		require.NoError(t, err)
		assert.Empty(t, cfg.ExcludedActions)
	})

	t.Run("garbage is a ConfigError", func(t *testing.T) {
		_, err := Resolve(testViper(map[string]string{KeyExcludedActions: "download,screenshot"}))
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeyExcludedActions, cerr.Key)
	})

	t.Run("allow-list null means unrestricted", func(t *testing.T) {
		cfg, err := Resolve(testViper(map[string]string{KeyAllowedDomains: "null"}))
		require.NoError(t, err)
		assert.Nil(t, cfg.AllowedDomains)
	})

	t.Run("allow-list empty array allows nothing", func(t *testing.T) {
		cfg, err := Resolve(testViper(map[string]string{KeyAllowedDomains: "[]"}))
		require.NoError(t, err)
		require.NotNil(t, cfg.AllowedDomains)
		assert.False(t, cfg.DomainAllowed("example.com"))
	})

	t.Run("allow-list array restricts", func(t *testing.T) {
		cfg, err := Resolve(testViper(map[string]string{KeyAllowedDomains: `["example.com"]`}))
		require.NoError(t, err)
		assert.True(t, cfg.DomainAllowed("news.example.com"))
		assert.False(t, cfg.DomainAllowed("other.org"))
	})
}

// -- Provider credential requirements --

func TestProviderCredentialRequirements(t *testing.T) {
	t.Run("openai requires api key", func(t *testing.T) {
		v := NewViper() // no key set at all
		_, err := Resolve(v)
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeyOpenAIAPIKey, cerr.Key)
	})

	t.Run("azure requires key and endpoint", func(t *testing.T) {
		v := NewViper()
		v.Set(KeyLLMProvider, "azure")
		v.Set(KeyAzureAPIKey, "azkey")
		_, err := Resolve(v)
		var cerr *schemas.ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KeyAzureEndpoint, cerr.Key)
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		v := NewViper()
		v.Set(KeyLLMProvider, "ollama")
		cfg, err := Resolve(v)
		require.NoError(t, err)
		assert.Equal(t, "llama3.1", cfg.Model)
		assert.Equal(t, "http://localhost:11434", cfg.Endpoint)
	})

	t.Run("deepseek_r1 defaults to the reasoner model", func(t *testing.T) {
		v := NewViper()
		v.Set(KeyLLMProvider, "deepseek_r1")
		v.Set(KeyDeepSeekAPIKey, "dsk")
		cfg, err := Resolve(v)
		require.NoError(t, err)
		assert.Equal(t, "deepseek-reasoner", cfg.Model)
	})
}

// -- Connection precedence (resolved end to end) --

func TestConnectionParametersFlowThrough(t *testing.T) {
	cfg, err := Resolve(testViper(map[string]string{
		KeyChromePath: "/usr/bin/chromium",
		KeyWSSURL:     "ws://127.0.0.1:9222/devtools/browser/abc",
		KeyCDPURL:     "http://127.0.0.1:9222",
	}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ConnectRemoteCDP, cfg.ConnectionMode())

	cfg, err = Resolve(testViper(map[string]string{
		KeyChromePath: "/usr/bin/chromium",
	}))
	require.NoError(t, err)
	assert.Equal(t, schemas.ConnectLocalPath, cfg.ConnectionMode())
}

// TestConfigErrorIsNotWrapped double-checks errors.As reaches the typed error
// through whatever the resolver returns.
func TestConfigErrorTypeSurface(t *testing.T) {
	_, err := Resolve(testViper(map[string]string{KeyMaxSteps: "NaN"}))
	require.Error(t, err)
	var cerr *schemas.ConfigError
	assert.True(t, errors.As(err, &cerr))
}
