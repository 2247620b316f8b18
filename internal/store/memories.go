package store

import (
	"context"
	"fmt"
	"time"
)

// Memory is one episodic memory row. The vector is corpus-relative and
// only comparable against vectors from the same vocabulary build.
type Memory struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Vector    []float64 `json:"vector"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemoryContext is one rolling-summary snapshot.
type MemoryContext struct {
	ID        int64     `json:"id"`
	Summary   string    `json:"summary"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateMemory inserts an episodic memory.
func (s *Store) CreateMemory(ctx context.Context, text string, vec []float64, category string) (*Memory, error) {
	if category == "" {
		category = "general"
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO memories (text, vector, category)
		 VALUES ($1, $2, $3)
		 RETURNING id, text, vector, category, created_at`,
		text, vec, category)

	var m Memory
	if err := row.Scan(&m.ID, &m.Text, &m.Vector, &m.Category, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return &m, nil
}

// ListMemories returns all memories, newest first.
func (s *Store) ListMemories(ctx context.Context) ([]*Memory, error) {
	return s.queryMemories(ctx,
		`SELECT id, text, vector, category, created_at FROM memories ORDER BY created_at DESC`)
}

// RecentMemories returns the newest limit memories.
func (s *Store) RecentMemories(ctx context.Context, limit int) ([]*Memory, error) {
	return s.queryMemories(ctx,
		`SELECT id, text, vector, category, created_at FROM memories ORDER BY created_at DESC LIMIT $1`, limit)
}

func (s *Store) queryMemories(ctx context.Context, sql string, args ...any) ([]*Memory, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []*Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Text, &m.Vector, &m.Category, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, &m)
	}
	return memories, rows.Err()
}

// CreateMemoryContext inserts a rolling-summary snapshot.
func (s *Store) CreateMemoryContext(ctx context.Context, summary string, topics []string) (*MemoryContext, error) {
	if topics == nil {
		topics = []string{}
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO memory_contexts (summary, topics)
		 VALUES ($1, $2)
		 RETURNING id, summary, topics, created_at`,
		summary, topics)

	var mc MemoryContext
	if err := row.Scan(&mc.ID, &mc.Summary, &mc.Topics, &mc.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert memory context: %w", err)
	}
	return &mc, nil
}

// RecentMemoryContexts returns the newest limit summaries.
func (s *Store) RecentMemoryContexts(ctx context.Context, limit int) ([]*MemoryContext, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, summary, topics, created_at FROM memory_contexts
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query memory contexts: %w", err)
	}
	defer rows.Close()

	var contexts []*MemoryContext
	for rows.Next() {
		var mc MemoryContext
		if err := rows.Scan(&mc.ID, &mc.Summary, &mc.Topics, &mc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory context: %w", err)
		}
		contexts = append(contexts, &mc)
	}
	return contexts, rows.Err()
}
