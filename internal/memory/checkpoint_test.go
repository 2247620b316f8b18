package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/provider"
	"github.com/nidhogg/analysis-room/internal/store"
)

type fakeStorage struct {
	memories  []*store.Memory
	contexts  []*store.MemoryContext
	items     []*store.AcquiredItem
	memSeq    int64
	ctxSeq    int64
	memErr    error
	recentErr error
}

func (f *fakeStorage) RecentMemories(ctx context.Context, limit int) ([]*store.Memory, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if len(f.memories) > limit {
		return f.memories[:limit], nil
	}
	return f.memories, nil
}

func (f *fakeStorage) CreateMemory(ctx context.Context, text string, vec []float64, category string) (*store.Memory, error) {
	if f.memErr != nil {
		return nil, f.memErr
	}
	f.memSeq++
	m := &store.Memory{ID: f.memSeq, Text: text, Category: category}
	f.memories = append(f.memories, m)
	return m, nil
}

func (f *fakeStorage) CreateMemoryContext(ctx context.Context, summary string, topics []string) (*store.MemoryContext, error) {
	f.ctxSeq++
	c := &store.MemoryContext{ID: f.ctxSeq, Summary: summary, Topics: topics}
	f.contexts = append(f.contexts, c)
	return c, nil
}

func (f *fakeStorage) AddAcquiredItem(ctx context.Context, item, source, context_ string) (*store.AcquiredItem, error) {
	it := &store.AcquiredItem{Item: item, Source: source, Context: context_}
	f.items = append(f.items, it)
	return it, nil
}

type fakeSummarizer struct {
	reply   string
	prompts []string
}

func (f *fakeSummarizer) ID() string   { return "fake" }
func (f *fakeSummarizer) Name() string { return "fake" }
func (f *fakeSummarizer) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if len(req.Messages) > 0 {
		f.prompts = append(f.prompts, req.Messages[0].Content)
	}
	return &provider.ChatResponse{Content: f.reply}, nil
}
func (f *fakeSummarizer) HealthCheck(ctx context.Context) error { return nil }

func newCheckpointService(reply string) (*Service, *fakeStorage, *fakeSummarizer) {
	st := &fakeStorage{}
	gen := &fakeSummarizer{reply: reply}
	r := provider.NewRouter(zap.NewNop())
	r.Register(gen)
	return New(st, r, "test-model", zap.NewNop()), st, gen
}

func chatHistory(n int) []store.ChatMessage {
	msgs := make([]store.ChatMessage, n)
	for i := range msgs {
		role := "user"
		if i%2 == 1 {
			role = "operational"
		}
		msgs[i] = store.ChatMessage{
			ID:      fmt.Sprintf("msg-%d", i),
			Role:    role,
			Content: fmt.Sprintf("תוכן הודעה מספר %d", i),
		}
	}
	return msgs
}

func TestCheckpointBelowWatermarkIsNoop(t *testing.T) {
	svc, st, gen := newCheckpointService(`{"summary":"סיכום","topics":["גלידה"]}`)

	svc.Checkpoint(context.Background(), 1, chatHistory(15), "")

	if len(gen.prompts) != 0 {
		t.Errorf("generation called %d times below watermark", len(gen.prompts))
	}
	if len(st.contexts) != 0 {
		t.Errorf("context snapshot stored below watermark: %d", len(st.contexts))
	}
}

func TestCheckpointTriggersAtWatermark(t *testing.T) {
	svc, st, gen := newCheckpointService(`{"summary":"דיון על מרקם גלידה","topics":["אגר-אגר","מרקם"]}`)
	msgs := chatHistory(16)

	svc.Checkpoint(context.Background(), 1, msgs, "[ledger]")

	if len(st.contexts) != 1 {
		t.Fatalf("got %d context snapshots, want 1", len(st.contexts))
	}
	if st.contexts[0].Summary != "דיון על מרקם גלידה" {
		t.Errorf("summary = %q", st.contexts[0].Summary)
	}
	if len(st.contexts[0].Topics) != 2 {
		t.Errorf("topics = %v", st.contexts[0].Topics)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generation called %d times, want 1", len(gen.prompts))
	}
	for _, m := range msgs {
		if !strings.Contains(gen.prompts[0], m.Content) {
			t.Errorf("transcript missing %q", m.Content)
		}
	}
	if !strings.Contains(gen.prompts[0], "[ledger]") {
		t.Error("ledger block not injected into the summary prompt")
	}
}

func TestCheckpointAdvancesWatermark(t *testing.T) {
	svc, st, gen := newCheckpointService(`{"summary":"סיכום","topics":["נושא"]}`)

	svc.Checkpoint(context.Background(), 7, chatHistory(16), "")
	if len(st.contexts) != 1 {
		t.Fatalf("first checkpoint: got %d snapshots, want 1", len(st.contexts))
	}

	// Same history again: nothing new past the watermark.
	svc.Checkpoint(context.Background(), 7, chatHistory(16), "")
	if len(st.contexts) != 1 {
		t.Errorf("repeat call produced %d snapshots, want 1", len(st.contexts))
	}

	// 15 fresh messages is still under the trigger.
	svc.Checkpoint(context.Background(), 7, chatHistory(31), "")
	if len(st.contexts) != 1 {
		t.Errorf("under-threshold suffix summarized: %d snapshots", len(st.contexts))
	}

	// 16 fresh messages: only the suffix goes into the transcript.
	msgs := chatHistory(32)
	svc.Checkpoint(context.Background(), 7, msgs, "")
	if len(st.contexts) != 2 {
		t.Fatalf("second checkpoint: got %d snapshots, want 2", len(st.contexts))
	}
	last := gen.prompts[len(gen.prompts)-1]
	if strings.Contains(last, msgs[15].Content) {
		t.Errorf("already-summarized message leaked into transcript")
	}
	if !strings.Contains(last, msgs[16].Content) || !strings.Contains(last, msgs[31].Content) {
		t.Errorf("unsummarized suffix missing from transcript")
	}
}

func TestCheckpointKeepsWatermarkOnInvalidJSON(t *testing.T) {
	svc, st, gen := newCheckpointService("לא JSON בכלל")

	svc.Checkpoint(context.Background(), 3, chatHistory(16), "")
	if len(st.contexts) != 0 {
		t.Fatalf("invalid JSON stored a snapshot: %d", len(st.contexts))
	}

	// The failed batch stays unsummarized and is retried next call.
	gen.reply = `{"summary":"סיכום חוזר","topics":["נושא"]}`
	svc.Checkpoint(context.Background(), 3, chatHistory(16), "")
	if len(st.contexts) != 1 {
		t.Errorf("retry after failure: got %d snapshots, want 1", len(st.contexts))
	}
}

func TestCheckpointStripsCodeFences(t *testing.T) {
	svc, st, _ := newCheckpointService("```json\n{\"summary\":\"עטוף בגדרות\",\"topics\":[\"פענוח\"]}\n```")

	svc.Checkpoint(context.Background(), 5, chatHistory(16), "")
	if len(st.contexts) != 1 {
		t.Fatalf("fenced JSON not parsed: %d snapshots", len(st.contexts))
	}
	if st.contexts[0].Summary != "עטוף בגדרות" {
		t.Errorf("summary = %q", st.contexts[0].Summary)
	}
}
