// api/schemas/config.go
package schemas

import (
	"strings"
	"time"
)

// -- Configuration Enumerations --

// Provider identifies which LLM backend drives the automation agent.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderAzure      Provider = "azure"
	ProviderGemini     Provider = "gemini"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderDeepSeekR1 Provider = "deepseek_r1"
	ProviderOllama     Provider = "ollama"
)

// Providers returns every supported provider identifier, in declaration order.
// Used to build the accepted-values list in configuration errors.
func Providers() []string {
	return []string{
		string(ProviderOpenAI), string(ProviderAnthropic), string(ProviderAzure),
		string(ProviderGemini), string(ProviderDeepSeek), string(ProviderDeepSeekR1),
		string(ProviderOllama),
	}
}

// SystemPromptMode names a behavioral policy that shapes how the agent is
// instructed. Opaque to the orchestrator beyond its identifier.
type SystemPromptMode string

const (
	PromptDefault        SystemPromptMode = "default"
	PromptSafetyFirst    SystemPromptMode = "safety-first"
	PromptDataCollection SystemPromptMode = "data-collection"
)

// SystemPromptModes returns the accepted system-prompt identifiers.
func SystemPromptModes() []string {
	return []string{string(PromptDefault), string(PromptSafetyFirst), string(PromptDataCollection)}
}

// OutputFormat selects the structured record shape used to coerce free-form
// agent output. The empty value means plain text with no structured records.
type OutputFormat string

const (
	FormatText          OutputFormat = ""
	FormatPosts         OutputFormat = "posts"
	FormatSearchResults OutputFormat = "search-results"
	FormatSavedContent  OutputFormat = "saved-content"
)

// OutputFormats returns the named (non-empty) output format identifiers.
func OutputFormats() []string {
	return []string{string(FormatPosts), string(FormatSearchResults), string(FormatSavedContent)}
}

// ConnectionMode identifies how the browser session is established.
type ConnectionMode string

const (
	ConnectRemoteCDP ConnectionMode = "remote-cdp" // attach to a DevTools HTTP endpoint
	ConnectRemoteWSS ConnectionMode = "remote-wss" // attach to a DevTools WebSocket URL
	ConnectLocalPath ConnectionMode = "local-path" // launch the executable at ChromePath
	ConnectManaged   ConnectionMode = "managed"    // launch a managed headless instance
)

// -- Configuration --

// Configuration is the immutable resolved runtime configuration. It is built
// exactly once at startup by the config resolver and passed by pointer to
// every component; no component mutates it or reads the environment after
// startup.
type Configuration struct {
	// LLM provider selection. Model, APIKey and Endpoint hold the values for
	// the selected provider only.
	Provider Provider
	Model    string
	APIKey   string
	Endpoint string // Azure endpoint or Ollama host, empty otherwise

	SystemPrompt SystemPromptMode
	UseVision    bool
	MaxSteps     int

	// Browser connection parameters. At most one mode is active; see
	// ConnectionMode for the precedence rule.
	ChromePath string
	WSSURL     string
	CDPURL     string

	PageLoadTimeout     float64 // seconds, strictly positive
	NavigationTimeoutMS int     // milliseconds, strictly positive
	ViewportWidth       int
	ViewportHeight      int

	// AllowedDomains restricts navigation and downloads. nil means
	// unrestricted; an empty non-nil slice allows nothing.
	AllowedDomains []string

	OutputFormat    OutputFormat
	ExcludedActions []string

	OutputDir string
	LogLevel  string
}

// ConnectionMode reports the active browser connection mode. When several
// connection parameters are supplied the precedence is deterministic:
// CDP endpoint over WebSocket URL over local executable path over the managed
// default instance.
func (c *Configuration) ConnectionMode() ConnectionMode {
	switch {
	case c.CDPURL != "":
		return ConnectRemoteCDP
	case c.WSSURL != "":
		return ConnectRemoteWSS
	case c.ChromePath != "":
		return ConnectLocalPath
	default:
		return ConnectManaged
	}
}

// PageLoadDuration converts the second-valued page load timeout to a Duration.
func (c *Configuration) PageLoadDuration() time.Duration {
	return time.Duration(c.PageLoadTimeout * float64(time.Second))
}

// NavigationDuration converts the millisecond navigation timeout to a Duration.
func (c *Configuration) NavigationDuration() time.Duration {
	return time.Duration(c.NavigationTimeoutMS) * time.Millisecond
}

// DomainAllowed reports whether host falls under the allow-list. A nil list
// allows every host; entries match the host itself and any subdomain.
func (c *Configuration) DomainAllowed(host string) bool {
	if c.AllowedDomains == nil {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range c.AllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
