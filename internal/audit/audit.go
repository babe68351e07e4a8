// Package audit writes one structured entry per CLI invocation describing
// which chat, embedding and vector store settings were in force. Secret
// values never reach the log; only whether they were set.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// group is one concern's worth of environment keys, logged as an slog group.
type group struct {
	name string
	keys []string
}

var groups = []group{
	{"chat", []string{
		"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL",
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
		"ARK_API_KEY", "ARK_MODEL", "GOOGLE_API_KEY", "GEMINI_MODEL",
	}},
	{"embedding", []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_ENDPOINT",
		"EMBEDDING_DIMENSIONS", "EMBEDDING_API_KEY", "EMBEDDING_RPS",
	}},
	{"store", []string{
		"VECTOR_STORE", "CHROMEM_PATH",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "QDRANT_API_KEY",
	}},
	{"corpus", []string{"COTTAGE_DOCS", "STANDARD_INFO_DOC", "INDEX_BATCH_SIZE"}},
	{"runtime", []string{
		"COTTAGEBOT_QUERY_LOG", "LOG_LEVEL", "LOG_FORMAT",
		"LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY",
	}},
}

// IsSecret reports whether an environment key holds a credential.
func IsSecret(key string) bool {
	for _, suffix := range []string{"_API_KEY", "_SECRET_KEY", "_PUBLIC_KEY", "_TOKEN", "_PASSWORD"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// Redact returns the loggable form of an environment value: "set"/"unset"
// for secrets, URLs with any embedded password masked, otherwise the value
// itself ("unset" when empty).
func Redact(key, value string) string {
	if IsSecret(key) {
		if value == "" {
			return "unset"
		}
		return "set"
	}
	if value == "" {
		return "unset"
	}
	if u, err := url.Parse(value); err == nil && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
	}
	return value
}

// LogCommandStart records the command, its config file and the sanitised
// environment, grouped by concern.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(groups)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", displayPath(configPath)),
	)
	for _, g := range groups {
		vals := make([]any, 0, len(g.keys))
		for _, k := range g.keys {
			vals = append(vals, slog.String(k, Redact(k, os.Getenv(k))))
		}
		attrs = append(attrs, slog.Group(g.name, vals...))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// displayPath abbreviates the home directory to "~"; empty becomes "none".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
