// Package config folds an optional YAML file into the process environment.
// Every other package reads its settings from env vars, so the file only
// fills gaps: defaults, then the file, then the environment, which always
// wins.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. COTTAGEBOT_CONFIG environment variable
//  3. ~/.cottagebot/config.yaml
//  4. ./cottagebot.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML file. Each leaf carries the env var it feeds
// through its `env` tag.
type Config struct {
	Model       ModelConfig       `yaml:"model"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Qdrant      QdrantConfig      `yaml:"qdrant"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Answer      AnswerConfig      `yaml:"answer"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	QueryLog    QueryLogConfig    `yaml:"query_log"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// ModelConfig selects the chat model that writes answers.
type ModelConfig struct {
	Provider    string  `yaml:"provider" env:"MODEL_PROVIDER"`
	MaxTokens   int     `yaml:"max_tokens" env:"MODEL_MAX_TOKENS"`
	Temperature float32 `yaml:"temperature" env:"MODEL_TEMPERATURE"`

	Ollama struct {
		Host  string `yaml:"host" env:"OLLAMA_HOST"`
		Model string `yaml:"model" env:"OLLAMA_MODEL"`
	} `yaml:"ollama"`

	OpenAI struct {
		APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY"`
		Model   string `yaml:"model" env:"OPENAI_MODEL"`
		BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	} `yaml:"openai"`

	Azure struct {
		APIKey     string `yaml:"api_key" env:"AZURE_OPENAI_API_KEY"`
		Endpoint   string `yaml:"endpoint" env:"AZURE_OPENAI_ENDPOINT"`
		Deployment string `yaml:"deployment" env:"AZURE_OPENAI_DEPLOYMENT"`
		APIVersion string `yaml:"api_version" env:"AZURE_OPENAI_API_VERSION"`
	} `yaml:"azure"`

	// Ark is Volcano Engine Ark; Model is an endpoint id or model name.
	Ark struct {
		APIKey  string `yaml:"api_key" env:"ARK_API_KEY"`
		Model   string `yaml:"model" env:"ARK_MODEL"`
		BaseURL string `yaml:"base_url" env:"ARK_BASE_URL"`
	} `yaml:"ark"`

	Gemini struct {
		APIKey string `yaml:"api_key" env:"GOOGLE_API_KEY"`
		Model  string `yaml:"model" env:"GEMINI_MODEL"`
	} `yaml:"gemini"`
}

// EmbeddingConfig overrides the embedder, which otherwise inherits the
// chat provider's backend and credentials.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider" env:"EMBEDDING_PROVIDER"`
	Model      string  `yaml:"model" env:"EMBEDDING_MODEL"`
	Dimensions int     `yaml:"dimensions" env:"EMBEDDING_DIMENSIONS"`
	APIKey     string  `yaml:"api_key" env:"EMBEDDING_API_KEY"`
	Endpoint   string  `yaml:"endpoint" env:"EMBEDDING_ENDPOINT"`
	RPS        float64 `yaml:"rps" env:"EMBEDDING_RPS"`
	Burst      int     `yaml:"burst" env:"EMBEDDING_BURST"`
}

// VectorStoreConfig picks "qdrant" (default) or "memory". A memory store
// with ChromemPath set persists between runs.
type VectorStoreConfig struct {
	Backend     string `yaml:"backend" env:"VECTOR_STORE"`
	ChromemPath string `yaml:"chromem_path" env:"CHROMEM_PATH"`
}

type QdrantConfig struct {
	Host       string `yaml:"host" env:"QDRANT_HOST"`
	Port       int    `yaml:"port" env:"QDRANT_PORT"`
	Collection string `yaml:"collection" env:"QDRANT_COLLECTION"`
	APIKey     string `yaml:"api_key" env:"QDRANT_API_KEY"`
	TLS        bool   `yaml:"tls" env:"QDRANT_TLS"`
}

// CorpusConfig locates the cottage documents. Docs entries may be ** globs.
type CorpusConfig struct {
	Docs         []string `yaml:"docs" env:"COTTAGE_DOCS"`
	StandardInfo string   `yaml:"standard_info" env:"STANDARD_INFO_DOC"`
	BatchSize    int      `yaml:"batch_size" env:"INDEX_BATCH_SIZE"`
}

type AnswerConfig struct {
	TopK             int `yaml:"top_k" env:"ANSWER_TOP_K"`
	MaxTopK          int `yaml:"max_top_k" env:"ANSWER_MAX_TOP_K"`
	MaxContextTokens int `yaml:"max_context_tokens" env:"ANSWER_MAX_CONTEXT_TOKENS"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`
	// QueryTimeout is a Go duration, e.g. "90s".
	QueryTimeout string `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
	// RateLimit and RateBurst shape the per-guest bucket on POST /query.
	RateLimit   float64  `yaml:"rate_limit" env:"SERVER_RATE_LIMIT"`
	RateBurst   int      `yaml:"rate_burst" env:"SERVER_RATE_BURST"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ALLOWED_ORIGINS"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// QueryLogConfig locates the SQLite log of answered questions. Empty or
// "disabled" turns the log off; "default" uses ~/.cottagebot/queries.db.
type QueryLogConfig struct {
	DBPath string `yaml:"db_path" env:"COTTAGEBOT_QUERY_LOG"`
}

type TracingConfig struct {
	PublicKey string `yaml:"public_key" env:"LANGFUSE_PUBLIC_KEY"`
	SecretKey string `yaml:"secret_key" env:"LANGFUSE_SECRET_KEY"`
	Host      string `yaml:"host" env:"LANGFUSE_HOST"`
}

// Binding is one env var fed by the YAML file, with the value the file
// supplied ("" when the file left it unset).
type Binding struct {
	Env   string
	Value string
}

// Bindings flattens c into its env bindings in declaration order.
func (c *Config) Bindings() []Binding {
	var out []Binding
	walk(reflect.ValueOf(c).Elem(), &out)
	return out
}

func walk(v reflect.Value, out *[]Binding) {
	t := v.Type()
	for i := range t.NumField() {
		f, fv := t.Field(i), v.Field(i)
		if fv.Kind() == reflect.Struct {
			walk(fv, out)
			continue
		}
		if env := f.Tag.Get("env"); env != "" {
			*out = append(*out, Binding{Env: env, Value: envString(fv)})
		}
	}
}

// envString renders a leaf value as its env var form. Zero values render
// as "" so they never shadow a built-in default.
func envString(v reflect.Value) string {
	if v.IsZero() {
		return ""
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return "true"
	case reflect.Slice:
		parts := make([]string, 0, v.Len())
		for i := range v.Len() {
			if s := strings.TrimSpace(v.Index(i).String()); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	panic(fmt.Sprintf("config: unsupported field kind %s", v.Kind()))
}

// Parse decodes a YAML document strictly: unknown keys are errors, so a
// misspelt setting fails loudly instead of being ignored. An empty
// document is a valid, empty Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the YAML config file, if any, and exports every value it sets
// whose env var is still empty. It returns the path that was loaded, or ""
// when no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return "", fmt.Errorf("config: parse %s: %w", path, err)
	}

	var applied, shadowed []string
	for _, b := range cfg.Bindings() {
		if b.Value == "" {
			continue
		}
		if os.Getenv(b.Env) != "" {
			shadowed = append(shadowed, b.Env)
			continue
		}
		if err := os.Setenv(b.Env, b.Value); err != nil {
			return "", fmt.Errorf("config: set %s: %w", b.Env, err)
		}
		applied = append(applied, b.Env)
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", len(applied)),
	)
	if len(shadowed) > 0 {
		log.Debug("config: env overrides file", slog.Any("keys", shadowed))
	}
	return path, nil
}

func resolveConfigPath(explicit string) string {
	exists := func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	}

	if explicit != "" {
		if exists(explicit) {
			return explicit
		}
		return ""
	}
	if p := os.Getenv("COTTAGEBOT_CONFIG"); p != "" && exists(p) {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		if p := filepath.Join(home, ".cottagebot", "config.yaml"); exists(p) {
			return p
		}
	}
	if exists("cottagebot.yaml") {
		return "cottagebot.yaml"
	}
	return ""
}
