package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/cottagebot/internal/config"
)

type builder func(ctx context.Context, cfg *Config) (model.BaseChatModel, error)

var builders = map[Backend]builder{
	BackendOllama: newOllama,
	BackendOpenAI: newOpenAI,
	BackendAzure:  newAzure,
	BackendArk:    newArk,
	BackendGemini: newGemini,
}

// ConfigFromEnv resolves provider settings from the environment, after
// config.Load has folded any YAML file into it.
//
//	MODEL_PROVIDER  ollama | openai | azure | ark | gemini (default ollama)
//	Ollama          OLLAMA_HOST, OLLAMA_MODEL (llama3)
//	OpenAI          OPENAI_API_KEY, OPENAI_MODEL (gpt-4o-mini), OPENAI_BASE_URL
//	Azure           AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT,
//	                AZURE_OPENAI_DEPLOYMENT, AZURE_OPENAI_API_VERSION
//	Ark             ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
//	Gemini          GOOGLE_API_KEY, GEMINI_MODEL (gemini-1.5-flash)
//	Shared          MODEL_MAX_TOKENS (1024), MODEL_TEMPERATURE (0.2)
func ConfigFromEnv() *Config {
	return &Config{
		Backend: Backend(config.String("MODEL_PROVIDER", string(BackendOllama))),
		Ollama: ProviderOllama{
			Host:  config.String("OLLAMA_HOST", "http://localhost:11434"),
			Model: config.String("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  config.String("OPENAI_API_KEY", ""),
			Model:   config.String("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: config.String("OPENAI_BASE_URL", ""),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     config.String("AZURE_OPENAI_API_KEY", ""),
			Endpoint:   config.String("AZURE_OPENAI_ENDPOINT", ""),
			Deployment: config.String("AZURE_OPENAI_DEPLOYMENT", ""),
			APIVersion: config.String("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		},
		Ark: ProviderArk{
			APIKey:  config.String("ARK_API_KEY", ""),
			Model:   config.String("ARK_MODEL", ""),
			BaseURL: config.String("ARK_BASE_URL", ""),
		},
		Gemini: ProviderGemini{
			APIKey: config.String("GOOGLE_API_KEY", ""),
			Model:  config.String("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Tuning: Tuning{
			MaxTokens:   config.Int("MODEL_MAX_TOKENS", 1024),
			Temperature: float32(config.Float("MODEL_TEMPERATURE", 0.2)),
		},
	}
}

// New validates cfg and builds the chat model for its backend, so a
// misconfigured provider fails at startup rather than on the first guest
// question.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := builders[cfg.Backend](ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: %s: %w", cfg.Backend, err)
	}
	return m, nil
}
