package embedder

import (
	"log/slog"
	"strings"
)

// chatModelFragments appear in chat model names and never in dedicated
// embedding models.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range chatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Preflight validates s and logs what the index will be built with. A
// chat model configured as the embedding model is only warned about: it
// works, but retrieval quality suffers.
func Preflight(log *slog.Logger, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if looksLikeChatModel(s.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model",
			slog.String("model", s.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	log.Debug("embedder: settings",
		slog.String("backend", s.Backend),
		slog.String("model", s.Model),
		slog.Int("dimensions", s.VectorSize()),
		slog.Float64("rps", s.RPS),
	)
	return nil
}
