package llm

import "strings"

// Provider names understood by NewProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig carries the credentials for every supported backend.
type ProviderConfig struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
}

// ProviderForModel picks the backend that serves a model name.
func ProviderForModel(model string) string {
	if strings.HasPrefix(strings.ToLower(model), "claude") {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// NewProvider builds the provider that serves model. It returns
// ErrProviderNotAvailable when the backend has no API key configured.
func NewProvider(model string, cfg ProviderConfig) (Provider, error) {
	switch ProviderForModel(model) {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, ErrProviderNotAvailable
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey), nil
	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, ErrProviderNotAvailable
		}
		if cfg.OpenAIBaseURL != "" {
			return NewOpenAIProviderWithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), nil
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey), nil
	}
}
