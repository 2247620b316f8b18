// Package memory is the episodic memory service: TF-IDF retrieval over
// recent memories, rolling-summary checkpoints, and the acquisition ledger
// extracted from operational turns.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/provider"
	"github.com/nidhogg/analysis-room/internal/store"
	"github.com/nidhogg/analysis-room/internal/vector"
)

const (
	// retrievalWindow bounds the working corpus for each retrieval; the
	// vocabulary is rebuilt from exactly these rows.
	retrievalWindow = 50
	retrievalTopK   = 3
	retrievalScore  = 0.7

	// summaryWatermark is the unsummarized-message count that triggers a
	// rolling-summary checkpoint.
	summaryWatermark = 16
)

// Storage is the slice of the store the memory service touches.
// *store.Store satisfies it.
type Storage interface {
	RecentMemories(ctx context.Context, limit int) ([]*store.Memory, error)
	CreateMemory(ctx context.Context, text string, vec []float64, category string) (*store.Memory, error)
	CreateMemoryContext(ctx context.Context, summary string, topics []string) (*store.MemoryContext, error)
	AddAcquiredItem(ctx context.Context, item, source, context string) (*store.AcquiredItem, error)
}

// Service wires episodic memory to the store and a generation backend.
type Service struct {
	store  Storage
	router *provider.Router
	model  string
	logger *zap.Logger

	// watermarks tracks how many messages of each conversation have been
	// summarized. Process-local: a restart only delays the next summary.
	mu         sync.Mutex
	watermarks map[int64]int
}

// New creates a memory Service.
func New(st Storage, router *provider.Router, model string, logger *zap.Logger) *Service {
	return &Service{
		store:      st,
		router:     router,
		model:      model,
		logger:     logger,
		watermarks: make(map[int64]int),
	}
}

// Retrieve returns up to three memories relevant to the message. The
// vocabulary is rebuilt from the recent window so all vectors compared
// here come from the same build; stored vectors are ignored.
func (s *Service) Retrieve(ctx context.Context, message string) []*store.Memory {
	recent, err := s.store.RecentMemories(ctx, retrievalWindow)
	if err != nil {
		s.logger.Warn("memory retrieval failed", zap.Error(err))
		return nil
	}
	if len(recent) == 0 {
		return nil
	}

	texts := make([]string, len(recent))
	for i, m := range recent {
		texts[i] = m.Text
	}
	vocab := vector.Build(texts)

	candidates := make([][]float64, len(recent))
	for i, m := range recent {
		candidates[i] = vocab.Vector(m.Text)
	}

	hits := vector.TopK(vocab.Vector(message), candidates, retrievalTopK, retrievalScore)
	result := make([]*store.Memory, 0, len(hits))
	for _, h := range hits {
		result = append(result, recent[h.Index])
	}
	return result
}

// Remember stores the message as an episodic memory categorized by the
// primary expert. Failures are logged and swallowed.
func (s *Service) Remember(ctx context.Context, message, category string) {
	recent, err := s.store.RecentMemories(ctx, retrievalWindow)
	if err != nil {
		s.logger.Warn("memory store failed", zap.Error(err))
		return
	}
	texts := make([]string, 0, len(recent)+1)
	for _, m := range recent {
		texts = append(texts, m.Text)
	}
	texts = append(texts, message)
	vec := vector.Build(texts).Vector(message)

	if _, err := s.store.CreateMemory(ctx, message, vec, category); err != nil {
		s.logger.Warn("memory store failed", zap.Error(err))
	}
}

// Ingest vectorizes and stores pre-chunked text (file uploads) under one
// vocabulary built from the recent window plus the new chunks.
func (s *Service) Ingest(ctx context.Context, chunks []string, category string) ([]*store.Memory, error) {
	recent, err := s.store.RecentMemories(ctx, retrievalWindow)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(recent)+len(chunks))
	for _, m := range recent {
		texts = append(texts, m.Text)
	}
	texts = append(texts, chunks...)
	vocab := vector.Build(texts)

	var stored []*store.Memory
	for _, chunk := range chunks {
		mem, err := s.store.CreateMemory(ctx, chunk, vocab.Vector(chunk), category)
		if err != nil {
			return stored, err
		}
		stored = append(stored, mem)
	}
	return stored, nil
}

type summaryPayload struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// Checkpoint summarizes the unsummarized suffix of the conversation once
// it crosses the watermark. The summary is stored as an episodic context
// snapshot only; the living prompt summary is never overwritten here.
func (s *Service) Checkpoint(ctx context.Context, conversationID int64, messages []store.ChatMessage, ledgerBlock string) {
	s.mu.Lock()
	last := s.watermarks[conversationID]
	s.mu.Unlock()

	unsummarized := len(messages) - last
	if unsummarized < summaryWatermark || len(messages) < summaryWatermark {
		return
	}

	var transcript strings.Builder
	for _, m := range messages[last:] {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	prompt := fmt.Sprintf(`%s
סכם את קטע השיחה הבא ב-2-3 משפטים וזהה 3-5 נושאים מרכזיים. שמור על כל קבועים טכניים (מספרים, יחידות מדידה, שמות חומרים) במדויק. החזר JSON בפורמט: {"summary": "...", "topics": ["...", "..."]}.

שיחה:
%s`, ledgerBlock, transcript.String())

	resp, err := s.router.Route(ctx, "memory", &provider.ChatRequest{
		Model:        s.model,
		Messages:     []provider.Message{{Role: "user", Content: prompt}},
		JSONResponse: true,
	})
	if err != nil {
		s.logger.Warn("summary checkpoint failed", zap.Error(err))
		return
	}

	cleaned := strings.TrimSpace(
		strings.ReplaceAll(strings.ReplaceAll(resp.Content, "```json", ""), "```", ""))
	var payload summaryPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		s.logger.Warn("summary checkpoint produced invalid JSON", zap.Error(err))
		return
	}

	if _, err := s.store.CreateMemoryContext(ctx, payload.Summary, payload.Topics); err != nil {
		s.logger.Warn("summary checkpoint store failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.watermarks[conversationID] = len(messages)
	s.mu.Unlock()
	s.logger.Info("summary checkpoint stored",
		zap.Int64("conversation", conversationID),
		zap.Int("messages", len(messages)))
}
