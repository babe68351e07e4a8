package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/cottagebot/internal/answer"
	"github.com/54b3r/cottagebot/internal/config"
	"github.com/54b3r/cottagebot/internal/corpus"
	"github.com/54b3r/cottagebot/internal/docsource"
	"github.com/54b3r/cottagebot/internal/embedder"
	"github.com/54b3r/cottagebot/internal/provider"
	"github.com/54b3r/cottagebot/internal/rag"
	"github.com/54b3r/cottagebot/internal/records"
	"github.com/54b3r/cottagebot/internal/server"
	"github.com/54b3r/cottagebot/internal/store"
)

// Vector store backends selectable with VECTOR_STORE.
const (
	storeQdrant = "qdrant"
	storeMemory = "memory"
)

const defaultCollection = "cottages"

// corpusFlags are shared by extract and index.
type corpusFlags struct {
	standardInfo string
}

func (f *corpusFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.standardInfo, "standard-info", "", "Standard information document (default: $STANDARD_INFO_DOC)")
}

// options resolves the documents to read: positional args first, then
// COTTAGE_DOCS.
func (f *corpusFlags) options(args []string) corpus.Options {
	sources := args
	if len(sources) == 0 {
		sources = config.List("COTTAGE_DOCS")
	}
	info := f.standardInfo
	if info == "" {
		info = os.Getenv("STANDARD_INFO_DOC")
	}
	return corpus.Options{Sources: sources, StandardInfo: info}
}

// newEmbedder validates the embedding configuration and returns the
// embedder with the vector size the index must use.
func newEmbedder(log *slog.Logger) (rag.Embedder, int, error) {
	settings := embedder.SettingsFromEnv()
	if err := embedder.Preflight(log, settings); err != nil {
		return nil, 0, err
	}
	emb, err := embedder.New(settings)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	dims := settings.VectorSize()
	log.Info("embedder initialised", slog.String("backend", settings.Backend), slog.Int("dimensions", dims))
	return emb, dims, nil
}

// openVectorStore opens the store selected by VECTOR_STORE. The returned
// Pinger is nil for in-process stores.
func openVectorStore(ctx context.Context, log *slog.Logger, dims int) (rag.VectorStore, server.Pinger, error) {
	collection := config.String("QDRANT_COLLECTION", defaultCollection)

	switch backend := config.String("VECTOR_STORE", storeQdrant); backend {
	case storeQdrant:
		host := config.String("QDRANT_HOST", "localhost")
		port := config.Int("QDRANT_PORT", 6334)
		st, err := rag.NewQdrantStore(ctx, rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: uint64(dims), //nolint:gosec // dimensions are bounded
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     config.Bool("QDRANT_TLS", false),
			// search_cottages narrows by slug
			IndexedFields: []string{records.KeySlug},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("qdrant store ready",
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)
		return st, server.PingFunc{Label: "qdrant", Fn: st.Ping}, nil

	case storeMemory:
		path := os.Getenv("CHROMEM_PATH")
		st, err := rag.NewChromemStore(rag.ChromemConfig{Path: path, Collection: collection})
		if err != nil {
			return nil, nil, err
		}
		if path == "" {
			log.Warn("in-memory vector store is not persisted; set CHROMEM_PATH to share an index between commands")
		}
		log.Info("chromem store ready", slog.String("path", path), slog.Int("records", st.Count()))
		return st, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported VECTOR_STORE %q (valid: %s, %s)", backend, storeQdrant, storeMemory)
	}
}

// openQueryLog opens the SQLite query log named by COTTAGEBOT_QUERY_LOG.
// Empty or "disabled" turns logging off; "default" uses
// ~/.cottagebot/queries.db. Open failures disable the log with a warning.
func openQueryLog(log *slog.Logger) (store.QueryLog, func()) {
	noop := func() {}

	path := os.Getenv("COTTAGEBOT_QUERY_LOG")
	switch path {
	case "", "disabled":
		log.Debug("query log: disabled")
		return nil, noop
	case "default":
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("query log: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
		path = p
	}

	ql, err := store.Open(path)
	if err != nil {
		log.Warn("query log: failed to open store, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Info("query log: store opened", slog.String("path", path))
	return ql, func() { _ = ql.Close() }
}

// loadStandardInfo formats STANDARD_INFO_DOC as the fallback block used when
// retrieved records carry none.
func loadStandardInfo(log *slog.Logger) string {
	path := os.Getenv("STANDARD_INFO_DOC")
	if path == "" {
		return ""
	}
	doc, err := docsource.Load(path)
	if err != nil {
		log.Warn("standard information unavailable", slog.String("path", path), slog.Any("error", err))
		return ""
	}
	return string(records.BuildStandardInfo(doc))
}

// engineDeps is everything a query surface needs.
type engineDeps struct {
	engine  *answer.Engine
	pingers []server.Pinger
	close   func()
}

// buildEngine wires embedder, vector store, retriever, chat model and query
// log into an answer engine. The caller must call close.
func buildEngine(ctx context.Context, log *slog.Logger) (*engineDeps, error) {
	emb, dims, err := newEmbedder(log)
	if err != nil {
		return nil, err
	}

	vs, storePinger, err := openVectorStore(ctx, log, dims)
	if err != nil {
		return nil, err
	}

	retriever, err := rag.NewRetriever(emb, vs, dims, config.Int("ANSWER_TOP_K", 0))
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		_ = vs.Close()
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	queryLog, closeLog := openQueryLog(log)

	engine, err := answer.New(&answer.Config{
		ChatModel:        chatModel,
		Retriever:        retriever,
		StandardInfo:     loadStandardInfo(log),
		DefaultTopK:      config.Int("ANSWER_TOP_K", 0),
		MaxTopK:          config.Int("ANSWER_MAX_TOP_K", 0),
		MaxContextTokens: config.Int("ANSWER_MAX_CONTEXT_TOKENS", 0),
		QueryLog:         queryLog,
	})
	if err != nil {
		closeLog()
		_ = vs.Close()
		return nil, err
	}

	var pingers []server.Pinger
	if storePinger != nil {
		pingers = append(pingers, storePinger)
	}
	if providerCfg.Backend == provider.BackendOllama {
		pingers = append(pingers, server.NewOllamaPinger("chat", providerCfg.Ollama.Host))
	}
	if es := embedder.SettingsFromEnv(); es.Backend == "ollama" {
		pingers = append(pingers, server.NewOllamaPinger("embedder", es.Endpoint))
	}

	return &engineDeps{
		engine:  engine,
		pingers: pingers,
		close: func() {
			closeLog()
			_ = vs.Close()
		},
	}, nil
}
