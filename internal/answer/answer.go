// Package answer turns a guest question into a grounded reply: it retrieves
// the most relevant cottage records, formats them into a prompt and asks the
// chat model for a completion. The HTTP server, the ask command and the MCP
// tools all go through Engine.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/cottagebot/internal/budget"
	"github.com/54b3r/cottagebot/internal/logging"
	"github.com/54b3r/cottagebot/internal/rag"
	"github.com/54b3r/cottagebot/internal/records"
	"github.com/54b3r/cottagebot/internal/store"
)

const (
	// DefaultTopK is the number of records retrieved per question.
	DefaultTopK = rag.DefaultTopK
	// DefaultMaxTopK caps caller-supplied top_k.
	DefaultMaxTopK = 20
)

var (
	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("answer: question is required")
	// ErrInvalidTopK is returned for a negative top_k.
	ErrInvalidTopK = errors.New("answer: top_k must not be negative")
	// ErrFilterUnsupported is returned when a filtered search is asked of a
	// retriever that cannot filter.
	ErrFilterUnsupported = errors.New("answer: retriever does not support filtering")
)

// IsInvalidInput reports whether err was caused by the caller's input
// rather than a failing dependency.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrInvalidTopK)
}

// Config holds the dependencies required to construct an Engine.
type Config struct {
	// ChatModel generates the answer text.
	ChatModel model.BaseChatModel

	// Retriever fetches the cottage records relevant to a question.
	Retriever rag.Retriever

	// StandardInfo is used when retrieved records carry no standard_info.
	StandardInfo string

	// DefaultTopK defaults to DefaultTopK.
	DefaultTopK int

	// MaxTopK defaults to DefaultMaxTopK.
	MaxTopK int

	// MaxContextTokens bounds the estimated prompt size. Lower-ranked
	// records are dropped to fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// QueryLog optionally records every exchange. Failures are logged, not
	// returned.
	QueryLog store.QueryLog
}

// Retrieved is one record that informed an answer.
type Retrieved struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
	Title string  `json:"title"`
}

// Answer is the reply to one question.
type Answer struct {
	Response  string      `json:"response"`
	Retrieved []Retrieved `json:"retrieved"`
}

// Engine answers guest questions. It is safe for concurrent use.
type Engine struct {
	chat             model.BaseChatModel
	retriever        rag.Retriever
	template         prompt.ChatTemplate
	standardInfo     string
	defaultTopK      int
	maxTopK          int
	maxContextTokens int
	queryLog         store.QueryLog
	now              func() time.Time
}

// New constructs an Engine from the provided Config.
func New(cfg *Config) (*Engine, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("answer: ChatModel must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("answer: Retriever must not be nil")
	}

	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxTopK := cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = DefaultMaxTopK
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Engine{
		chat:             cfg.ChatModel,
		retriever:        cfg.Retriever,
		template:         newTemplate(),
		standardInfo:     cfg.StandardInfo,
		defaultTopK:      topK,
		maxTopK:          maxTopK,
		maxContextTokens: maxCtx,
		queryLog:         cfg.QueryLog,
		now:              time.Now,
	}, nil
}

// resolveTopK validates topK; 0 selects the default and values above the
// maximum are clamped.
func (e *Engine) resolveTopK(topK int) (int, error) {
	switch {
	case topK < 0:
		return 0, ErrInvalidTopK
	case topK == 0:
		return e.defaultTopK, nil
	case topK > e.maxTopK:
		return e.maxTopK, nil
	}
	return topK, nil
}

// Search retrieves the records most relevant to question without calling
// the chat model.
func (e *Engine) Search(ctx context.Context, question string, topK int) ([]rag.Match, error) {
	return e.SearchWhere(ctx, question, topK, nil)
}

// SearchWhere is Search restricted to records whose metadata matches f.
// An empty f searches everything.
func (e *Engine) SearchWhere(ctx context.Context, question string, topK int, f rag.Filter) ([]rag.Match, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	k, err := e.resolveTopK(topK)
	if err != nil {
		return nil, err
	}

	ret := e.retriever
	if len(f) > 0 {
		fr, ok := ret.(rag.FilterableRetriever)
		if !ok {
			return nil, ErrFilterUnsupported
		}
		ret = fr.WithFilter(f)
	}

	matches, err := ret.Retrieve(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("answer: retrieve: %w", err)
	}
	return matches, nil
}

// Ask answers question using the topK most relevant records.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	start := e.now()
	ans, k, err := e.ask(ctx, question, topK)
	e.record(ctx, question, k, ans, err, start)
	return ans, err
}

func (e *Engine) ask(ctx context.Context, question string, topK int) (*Answer, int, error) {
	log := logging.FromContext(ctx)

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, 0, ErrEmptyQuestion
	}
	k, err := e.resolveTopK(topK)
	if err != nil {
		return nil, 0, err
	}

	matches, err := e.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, k, fmt.Errorf("answer: retrieve: %w", err)
	}
	log.Debug("records retrieved", slog.Int("count", len(matches)), slog.Int("top_k", k))

	msgs, used, err := e.buildMessages(ctx, question, matches)
	if err != nil {
		return nil, k, err
	}

	reply, err := e.chat.Generate(ctx, msgs)
	if err != nil {
		return nil, k, &rag.ServiceError{Service: "chat", Op: "generate", Err: err}
	}
	if reply == nil {
		return nil, k, &rag.ServiceError{Service: "chat", Op: "generate", Err: errors.New("empty reply")}
	}

	ans := &Answer{
		Response:  strings.TrimSpace(reply.Content),
		Retrieved: make([]Retrieved, len(used)),
	}
	for i, m := range used {
		ans.Retrieved[i] = Retrieved{ID: m.ID, Score: m.Score, Title: m.Title()}
	}
	return ans, k, nil
}

// buildMessages formats the prompt, dropping lower-ranked records until the
// estimate fits the context budget. It also returns the matches whose text
// made it into the prompt.
func (e *Engine) buildMessages(ctx context.Context, question string, matches []rag.Match) ([]*schema.Message, []rag.Match, error) {
	vars := map[string]any{
		"context":       "",
		"standard_info": standardInfoFrom(matches, records.KeyStandardInfo, e.standardInfo),
		"question":      question,
	}
	bare, err := e.template.Format(ctx, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("answer: format prompt: %w", err)
	}

	blocks, sources := contextBlocks(matches)
	kept := budget.TrimBlocks(budget.EstimateMessages(bare), blocks, e.maxContextTokens)
	if dropped := len(blocks) - len(kept); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped records to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", e.maxContextTokens),
		)
	}

	cottageContext := strings.Join(kept, "\n")
	if cottageContext == "" {
		cottageContext = "(no matching cottages found)"
	}
	vars["context"] = cottageContext

	msgs, err := e.template.Format(ctx, vars)
	if err != nil {
		return nil, nil, fmt.Errorf("answer: format prompt: %w", err)
	}
	return msgs, sources[:len(kept)], nil
}

// record appends the exchange to the query log. Failures never reach the
// caller.
func (e *Engine) record(ctx context.Context, question string, topK int, ans *Answer, askErr error, start time.Time) {
	if e.queryLog == nil || errors.Is(askErr, ErrEmptyQuestion) {
		return
	}
	entry := store.Entry{
		Question:  strings.TrimSpace(question),
		TopK:      topK,
		Latency:   e.now().Sub(start),
		Source:    SourceFromContext(ctx),
		CreatedAt: start,
	}
	if ans != nil {
		entry.Answer = ans.Response
		for _, r := range ans.Retrieved {
			entry.RecordIDs = append(entry.RecordIDs, r.ID)
		}
	}
	if askErr != nil {
		entry.Err = askErr.Error()
	}
	if err := e.queryLog.Append(context.WithoutCancel(ctx), entry); err != nil {
		logging.FromContext(ctx).Warn("query log: append failed", slog.Any("error", err))
	}
}

type sourceKey struct{}

// WithSource tags ctx with the surface that received the question
// ("http", "cli", "mcp"); it is stored in the query log.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the tag set by WithSource, or "".
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}
