package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/cottagebot/internal/rag"
	"github.com/54b3r/cottagebot/internal/store"
)

// fakeChat records the last prompt and replies with a fixed message.
type fakeChat struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt []*schema.Message
}

func (f *fakeChat) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompt = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChat) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

// fakeRetriever returns its matches truncated to topK.
type fakeRetriever struct {
	matches []rag.Match
	err     error
	gotTopK int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]rag.Match, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.matches) {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func cottageMatches() []rag.Match {
	return []rag.Match{
		{ID: "cottage-rose", Score: 0.91, Metadata: map[string]string{
			"title":         "Rose Cottage",
			"text":          "Cottage: Rose Cottage\nParking: One space on the drive",
			"standard_info": "Standard information that applies to every cottage:\n- Check in from 4pm",
		}},
		{ID: "cottage-mill-house", Score: 0.72, Metadata: map[string]string{
			"title": "Mill House",
			"text":  "Cottage: Mill House\nParking: Two spaces",
		}},
	}
}

func newTestEngine(t *testing.T, chat *fakeChat, ret *fakeRetriever, log store.QueryLog) *Engine {
	t.Helper()
	e, err := New(&Config{ChatModel: chat, Retriever: ret, QueryLog: log, StandardInfo: "fallback info"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{Retriever: &fakeRetriever{}}); err == nil {
		t.Error("missing ChatModel should fail")
	}
	if _, err := New(&Config{ChatModel: &fakeChat{}}); err == nil {
		t.Error("missing Retriever should fail")
	}
}

func TestAsk_BuildsPromptAndAnswer(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{reply: "  Rose Cottage has one parking space.  "}
	ret := &fakeRetriever{matches: cottageMatches()}
	e := newTestEngine(t, chat, ret, nil)

	ans, err := e.Ask(context.Background(), " Is there parking at Rose Cottage? ", 0)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if ans.Response != "Rose Cottage has one parking space." {
		t.Errorf("Response = %q", ans.Response)
	}
	if ret.gotTopK != DefaultTopK {
		t.Errorf("topK = %d, want %d", ret.gotTopK, DefaultTopK)
	}
	if len(ans.Retrieved) != 2 || ans.Retrieved[0].ID != "cottage-rose" || ans.Retrieved[0].Title != "Rose Cottage" {
		t.Errorf("Retrieved = %+v", ans.Retrieved)
	}

	if len(chat.prompt) != 2 {
		t.Fatalf("prompt has %d messages, want 2", len(chat.prompt))
	}
	sys, user := chat.prompt[0], chat.prompt[1]
	if sys.Role != schema.System || user.Role != schema.User {
		t.Errorf("roles = %s, %s", sys.Role, user.Role)
	}
	for _, want := range []string{"- Cottage: Rose Cottage", "- Cottage: Mill House", "Check in from 4pm"} {
		if !strings.Contains(sys.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(sys.Content, "fallback info") {
		t.Error("record standard_info should take precedence over the fallback")
	}
	if user.Content != "Question: Is there parking at Rose Cottage?\nAnswer:" {
		t.Errorf("user prompt = %q", user.Content)
	}
}

func TestAsk_FallbackStandardInfo(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{reply: "ok"}
	e := newTestEngine(t, chat, &fakeRetriever{}, nil)

	if _, err := e.Ask(context.Background(), "Anything?", 3); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	sys := chat.prompt[0].Content
	if !strings.Contains(sys, "fallback info") || !strings.Contains(sys, "no matching cottages") {
		t.Errorf("system prompt = %q", sys)
	}
}

func TestAsk_TopK(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      int
		want    int
		wantErr error
	}{
		{0, DefaultTopK, nil},
		{3, 3, nil},
		{500, DefaultMaxTopK, nil},
		{-1, 0, ErrInvalidTopK},
	}
	for _, tc := range tests {
		ret := &fakeRetriever{}
		e := newTestEngine(t, &fakeChat{reply: "ok"}, ret, nil)
		_, err := e.Ask(context.Background(), "q", tc.in)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Ask(topK=%d) err = %v, want %v", tc.in, err, tc.wantErr)
			continue
		}
		if tc.wantErr == nil && ret.gotTopK != tc.want {
			t.Errorf("Ask(topK=%d) retrieved %d, want %d", tc.in, ret.gotTopK, tc.want)
		}
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, &fakeChat{}, &fakeRetriever{}, nil)
	_, err := e.Ask(context.Background(), "   ", 0)
	if !errors.Is(err, ErrEmptyQuestion) || !IsInvalidInput(err) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestAsk_DependencyFailures(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &fakeChat{}, &fakeRetriever{err: &rag.ServiceError{Service: "qdrant", Op: "search", Err: errors.New("down")}}, nil)
	_, err := e.Ask(context.Background(), "q", 0)
	var se *rag.ServiceError
	if !errors.As(err, &se) || se.Service != "qdrant" || IsInvalidInput(err) {
		t.Errorf("retrieval err = %v", err)
	}

	e = newTestEngine(t, &fakeChat{err: errors.New("rate limited")}, &fakeRetriever{matches: cottageMatches()}, nil)
	_, err = e.Ask(context.Background(), "q", 0)
	if !errors.As(err, &se) || se.Service != "chat" {
		t.Errorf("chat err = %v", err)
	}
}

func TestAsk_TrimsContextToBudget(t *testing.T) {
	t.Parallel()
	big := strings.Repeat("x", 4000)
	matches := []rag.Match{
		{ID: "a", Metadata: map[string]string{"title": "A", "text": "Cottage: A " + big}},
		{ID: "b", Metadata: map[string]string{"title": "B", "text": "Cottage: B " + big}},
	}
	chat := &fakeChat{reply: "ok"}
	e, err := New(&Config{
		ChatModel:        chat,
		Retriever:        &fakeRetriever{matches: matches},
		MaxContextTokens: 1400,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ans, err := e.Ask(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	sys := chat.prompt[0].Content
	if !strings.Contains(sys, "Cottage: A") || strings.Contains(sys, "Cottage: B") {
		t.Error("lowest-ranked record should be dropped from the prompt")
	}
	if len(ans.Retrieved) != 1 || ans.Retrieved[0].ID != "a" {
		t.Errorf("Retrieved = %+v, want only the record left in the prompt", ans.Retrieved)
	}
}

func TestAsk_SkipsMatchesWithoutText(t *testing.T) {
	t.Parallel()
	matches := append(cottageMatches(), rag.Match{ID: "cottage-blank", Score: 0.5, Metadata: map[string]string{}})
	e := newTestEngine(t, &fakeChat{reply: "ok"}, &fakeRetriever{matches: matches}, nil)

	ans, err := e.Ask(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if len(ans.Retrieved) != 2 {
		t.Errorf("Retrieved = %+v, want the two records with text", ans.Retrieved)
	}
}

func TestAsk_QueryLog(t *testing.T) {
	t.Parallel()
	log, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })

	e := newTestEngine(t, &fakeChat{reply: "Yes."}, &fakeRetriever{matches: cottageMatches()}, log)
	ctx := WithSource(context.Background(), "cli")
	if _, err := e.Ask(ctx, "Dogs allowed?", 2); err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	// Blank questions are not logged.
	_, _ = e.Ask(ctx, "", 0)

	entries, err := log.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.Question != "Dogs allowed?" || got.Answer != "Yes." || got.Source != "cli" || got.TopK != 2 {
		t.Errorf("entry = %+v", got)
	}
	if len(got.RecordIDs) != 2 || got.RecordIDs[0] != "cottage-rose" {
		t.Errorf("RecordIDs = %v", got.RecordIDs)
	}
}

type failingLog struct{}

func (failingLog) Append(context.Context, store.Entry) error { return errors.New("disk full") }

func (failingLog) Recent(context.Context, int) ([]store.Entry, error) { return nil, nil }

func (failingLog) Close() error { return nil }

func TestAsk_QueryLogFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, &fakeChat{reply: "fine"}, &fakeRetriever{}, failingLog{})
	if _, err := e.Ask(context.Background(), "q", 0); err != nil {
		t.Errorf("Ask() error = %v, want nil", err)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{}
	e := newTestEngine(t, chat, &fakeRetriever{matches: cottageMatches()}, nil)

	matches, err := e.Search(context.Background(), "parking", 1)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "cottage-rose" {
		t.Errorf("matches = %+v", matches)
	}
	if chat.prompt != nil {
		t.Error("Search must not call the chat model")
	}
	if _, err := e.Search(context.Background(), "", 1); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("empty search err = %v", err)
	}
}

// filteringRetriever records the filter it was narrowed with.
type filteringRetriever struct {
	fakeRetriever
	filter rag.Filter
}

func (f *filteringRetriever) WithFilter(flt rag.Filter) rag.Retriever {
	f.filter = flt
	return &f.fakeRetriever
}

func TestSearchWhere(t *testing.T) {
	t.Parallel()
	ret := &filteringRetriever{fakeRetriever: fakeRetriever{matches: cottageMatches()}}
	e, err := New(&Config{ChatModel: &fakeChat{}, Retriever: ret})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := e.SearchWhere(context.Background(), "parking", 2, rag.Filter{"slug": "rose-cottage"}); err != nil {
		t.Fatalf("SearchWhere() error: %v", err)
	}
	if ret.filter["slug"] != "rose-cottage" {
		t.Errorf("filter = %v", ret.filter)
	}
	if ret.gotTopK != 2 {
		t.Errorf("topK = %d, want 2", ret.gotTopK)
	}
}

func TestSearchWhere_Unsupported(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, &fakeChat{}, &fakeRetriever{matches: cottageMatches()}, nil)

	_, err := e.SearchWhere(context.Background(), "parking", 1, rag.Filter{"slug": "rose-cottage"})
	if !errors.Is(err, ErrFilterUnsupported) {
		t.Errorf("err = %v, want ErrFilterUnsupported", err)
	}
	if _, err := e.SearchWhere(context.Background(), "parking", 1, nil); err != nil {
		t.Errorf("unfiltered search error: %v", err)
	}
}

func TestSourceFromContext(t *testing.T) {
	t.Parallel()
	if got := SourceFromContext(context.Background()); got != "" {
		t.Errorf("default source = %q", got)
	}
	if got := SourceFromContext(WithSource(context.Background(), "mcp")); got != "mcp" {
		t.Errorf("source = %q", got)
	}
}
