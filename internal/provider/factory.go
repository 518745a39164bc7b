package provider

import (
	"sort"
	"strings"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/config"
)

// vendor describes one supported provider: its default model, the base URL
// of its OpenAI-compatible endpoint (empty for the vendor's own SDK
// default), and the constructor wiring.
type vendor struct {
	defaultModel string
	baseURL      string
	construct    func(v vendor, apiKey, model string) (Provider, error)
}

var vendors = map[string]vendor{
	"openai": {
		defaultModel: "gpt-3.5-turbo",
		construct: func(v vendor, apiKey, model string) (Provider, error) {
			return newOpenAICompat("openai", v.baseURL, apiKey, model)
		},
	},
	"deepseek": {
		defaultModel: "deepseek-chat",
		baseURL:      "https://api.deepseek.com/v1",
		construct: func(v vendor, apiKey, model string) (Provider, error) {
			return newOpenAICompat("deepseek", v.baseURL, apiKey, model)
		},
	},
	"groq": {
		defaultModel: "llama-3.1-8b-instant",
		baseURL:      "https://api.groq.com/openai/v1",
		construct: func(v vendor, apiKey, model string) (Provider, error) {
			return newOpenAICompat("groq", v.baseURL, apiKey, model)
		},
	},
	"anthropic": {
		defaultModel: "claude-3-5-sonnet-20241022",
		construct: func(v vendor, apiKey, model string) (Provider, error) {
			return newAnthropic(apiKey, model)
		},
	},
}

// Names lists the supported provider names, sorted.
func Names() []string {
	names := make([]string, 0, len(vendors))
	for name := range vendors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the single active provider from configuration. It is
// called once at start-up; an unrecognized name or a missing credential is
// a configuration error and the caller runs without a provider.
func Resolve(cfg config.Config) (Provider, error) {
	v, ok := vendors[cfg.Provider]
	if !ok {
		return nil, apperr.New(apperr.KindConfiguration,
			"unsupported provider %q, choose one of: %s", cfg.Provider, strings.Join(Names(), ", "))
	}
	if cfg.APIKey == "" {
		return nil, apperr.New(apperr.KindConfiguration, "missing API key for provider %q", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = v.defaultModel
	}
	return v.construct(v, cfg.APIKey, model)
}
