package embedder

import (
	"fmt"

	"github.com/54b3r/cottagebot/internal/config"
	"github.com/54b3r/cottagebot/internal/rag"
)

const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// Output sizes of the default models. Other models may differ; set
	// EMBEDDING_DIMENSIONS to match.
	defaultOllamaDimensions = 768
	defaultOpenAIDimensions = 1536
)

// Settings is the resolved embedding configuration. Unset embedding keys
// inherit from the chat provider's env vars, so a single-provider setup
// needs no EMBEDDING_* variables at all.
type Settings struct {
	Backend    string
	Model      string
	Endpoint   string
	APIKey     string
	APIVersion string
	// Dimensions is an explicit vector size; 0 means the backend default.
	Dimensions int
	RPS        float64
	Burst      int
}

// SettingsFromEnv resolves Settings:
//
//	backend     EMBEDDING_PROVIDER, else MODEL_PROVIDER, else ollama
//	model       EMBEDDING_MODEL, else the backend default
//	endpoint    EMBEDDING_ENDPOINT, else OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
//	api key     EMBEDDING_API_KEY, else OPENAI_API_KEY / AZURE_OPENAI_API_KEY
//	throttle    EMBEDDING_RPS, EMBEDDING_BURST
func SettingsFromEnv() Settings {
	s := Settings{
		Backend:    config.String("EMBEDDING_PROVIDER", config.String("MODEL_PROVIDER", "ollama")),
		Dimensions: config.Int("EMBEDDING_DIMENSIONS", 0),
		RPS:        config.Float("EMBEDDING_RPS", 0),
		Burst:      config.Int("EMBEDDING_BURST", 1),
	}

	switch s.Backend {
	case "ollama":
		s.Model = config.String("EMBEDDING_MODEL", defaultOllamaModel)
		s.Endpoint = config.String("EMBEDDING_ENDPOINT", config.String("OLLAMA_HOST", "http://localhost:11434"))
	case "openai":
		s.Model = config.String("EMBEDDING_MODEL", defaultOpenAIModel)
		s.Endpoint = config.String("EMBEDDING_ENDPOINT", "")
		s.APIKey = config.String("EMBEDDING_API_KEY", config.String("OPENAI_API_KEY", ""))
	case "azure":
		s.Model = config.String("EMBEDDING_MODEL", defaultOpenAIModel)
		s.Endpoint = config.String("EMBEDDING_ENDPOINT", config.String("AZURE_OPENAI_ENDPOINT", ""))
		s.APIKey = config.String("EMBEDDING_API_KEY", config.String("AZURE_OPENAI_API_KEY", ""))
		s.APIVersion = config.String("AZURE_OPENAI_API_VERSION", "2024-10-21")
	}
	return s
}

// VectorSize is the dimension the vector store must be created with.
func (s Settings) VectorSize() int {
	if s.Dimensions > 0 {
		return s.Dimensions
	}
	if s.Backend == "ollama" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// New builds the embedder described by s, wrapped in a rate limiter when
// RPS is set.
func New(s Settings) (rag.Embedder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var e rag.Embedder
	switch s.Backend {
	case "ollama":
		e = NewOllamaEmbedder(&OllamaConfig{Host: s.Endpoint, Model: s.Model})
	case "openai", "azure":
		e = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL: s.Endpoint,
			APIKey:  s.APIKey,
			Model:   s.Model,
			// text-embedding-3 models truncate to this size when set.
			Dimensions: s.Dimensions,
			Azure:      s.Backend == "azure",
			APIVersion: s.APIVersion,
		})
	}
	return WithRateLimit(e, s.RPS, s.Burst), nil
}

// NewFromEnv is New(SettingsFromEnv()).
func NewFromEnv() (rag.Embedder, error) {
	return New(SettingsFromEnv())
}

// Validate reports a configuration that cannot produce vectors.
func (s Settings) Validate() error {
	switch s.Backend {
	case "ollama":
		if s.Endpoint == "" {
			return fmt.Errorf("embedder: ollama requires OLLAMA_HOST or EMBEDDING_ENDPOINT")
		}
	case "openai":
		if s.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if s.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if s.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: backend %q has no embedding support (valid: ollama, openai, azure); set EMBEDDING_PROVIDER", s.Backend)
	}
	if s.Dimensions < 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must be positive, got %d", s.Dimensions)
	}
	return nil
}
