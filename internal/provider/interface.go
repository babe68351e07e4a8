// Package provider selects and constructs the chat model that phrases
// cottagebot's answers. Supported backends: Ollama, OpenAI, Azure OpenAI,
// Volcano Engine Ark and Google Gemini, all through eino-ext.
package provider

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Backend names a chat model provider.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
	BackendAzure  Backend = "azure"
	BackendArk    Backend = "ark"
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	Host  string
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	APIKey string
	Model  string
	// BaseURL points at an OpenAI-compatible endpoint; empty uses api.openai.com.
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
}

// ProviderArk holds Volcano Engine Ark settings.
type ProviderArk struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// Tuning holds generation parameters shared by every backend. Answers are
// short and grounded in retrieved text, so the defaults favour a low
// temperature.
type Tuning struct {
	MaxTokens   int
	Temperature float32
}

// Config holds all provider-level configuration. Only the block matching
// Backend is consulted.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ark         ProviderArk
	Gemini      ProviderGemini
	Tuning      Tuning
}

// requirement pairs a resolved value with the env var that supplies it.
type requirement struct {
	env   string
	value string
}

// requirements lists, per backend, the settings that must be non-empty.
// The first entry naming the model is what ModelName reports.
func (c *Config) requirements() ([]requirement, bool) {
	switch c.Backend {
	case BackendOllama:
		return []requirement{{"OLLAMA_MODEL", c.Ollama.Model}}, true
	case BackendOpenAI:
		return []requirement{{"OPENAI_MODEL", c.OpenAI.Model}, {"OPENAI_API_KEY", c.OpenAI.APIKey}}, true
	case BackendAzure:
		return []requirement{
			{"AZURE_OPENAI_DEPLOYMENT", c.AzureOpenAI.Deployment},
			{"AZURE_OPENAI_API_KEY", c.AzureOpenAI.APIKey},
			{"AZURE_OPENAI_ENDPOINT", c.AzureOpenAI.Endpoint},
		}, true
	case BackendArk:
		return []requirement{{"ARK_MODEL", c.Ark.Model}, {"ARK_API_KEY", c.Ark.APIKey}}, true
	case BackendGemini:
		return []requirement{{"GEMINI_MODEL", c.Gemini.Model}, {"GOOGLE_API_KEY", c.Gemini.APIKey}}, true
	}
	return nil, false
}

// Validate reports every missing setting for the selected backend at once,
// naming the environment variables that supply them.
func (c *Config) Validate() error {
	reqs, ok := c.requirements()
	if !ok {
		return fmt.Errorf("provider: unknown backend %q (valid: %s)", c.Backend, strings.Join(Backends(), ", "))
	}
	var missing []string
	for _, r := range reqs {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("provider: %s requires %s", c.Backend, strings.Join(missing, ", "))
	}
	return nil
}

// ModelName returns the model or deployment name of the selected backend.
func (c *Config) ModelName() string {
	reqs, ok := c.requirements()
	if !ok {
		return ""
	}
	return reqs[0].value
}

// Backends lists the supported backend names, sorted.
func Backends() []string {
	out := make([]string, 0, len(builders))
	for b := range builders {
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out
}

var reasoningModelRe = regexp.MustCompile(`^o\d`)

// isAzureReasoningModel reports whether an Azure deployment is an o-series
// or codex model; those reject temperature and max_tokens.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	return reasoningModelRe.MatchString(d) || strings.HasPrefix(d, "codex")
}
