package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	in := Entry{
		Question:  "Does Rose Cottage have parking?",
		Answer:    "Yes, one space on the drive.",
		RecordIDs: []string{"cottage-rose", "cottage-mill-house"},
		TopK:      5,
		Latency:   1500 * time.Millisecond,
		Source:    "http",
	}
	if err := s.Append(ctx, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 entry, got %d", len(got))
	}
	e := got[0]
	if e.ID == 0 {
		t.Error("ID should be assigned")
	}
	if e.Question != in.Question || e.Answer != in.Answer || e.TopK != 5 || e.Source != "http" {
		t.Errorf("entry = %+v", e)
	}
	if len(e.RecordIDs) != 2 || e.RecordIDs[1] != "cottage-mill-house" {
		t.Errorf("RecordIDs = %v", e.RecordIDs)
	}
	if e.Latency != 1500*time.Millisecond {
		t.Errorf("Latency = %v", e.Latency)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt should default to now")
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		if err := s.Append(ctx, Entry{Question: fmt.Sprintf("q%d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("want 4 entries, got %d", len(got))
	}
}

func Test_Store_NewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, q := range []string{"first", "second", "third"} {
		e := Entry{Question: q, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if got[0].Question != "third" || got[2].Question != "first" {
		t.Errorf("order = %s, %s, %s", got[0].Question, got[1].Question, got[2].Question)
	}
	if !got[2].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[2].CreatedAt, base)
	}
}

func Test_Store_ErrorEntry(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, Entry{Question: "q", Err: "qdrant: search failed"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, _ := s.Recent(ctx, 1)
	if got[0].Err != "qdrant: search failed" || got[0].RecordIDs != nil {
		t.Errorf("entry = %+v", got[0])
	}
}

func Test_Store_EmptyReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if got != nil {
		t.Errorf("want nil, got %v", got)
	}
}

func Test_Store_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "queries.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Append(ctx, Entry{Question: "kept"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, _ := s2.Recent(ctx, 1)
	if len(got) != 1 || got[0].Question != "kept" {
		t.Errorf("after reopen = %+v", got)
	}
}
