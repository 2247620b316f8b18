package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGetFreshSession(t *testing.T) {
	m := NewManager("", zap.NewNop())
	st, err := m.Get(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ID != "client-1" || st.RequestCount != 0 || len(st.History) != 0 {
		t.Errorf("fresh session not empty: %+v", st)
	}
}

func TestTouchAppendsHistory(t *testing.T) {
	m := NewManager("", zap.NewNop())
	ctx := context.Background()

	if err := m.Touch(ctx, "client-1", "שאלה", "תשובה"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	st, _ := m.Get(ctx, "client-1")
	if st.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", st.RequestCount)
	}
	if len(st.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(st.History))
	}
	if st.History[0].Role != "user" || st.History[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", st.History[0].Role, st.History[1].Role)
	}
}

func TestTouchTrimsHistory(t *testing.T) {
	m := NewManager("", zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := m.Touch(ctx, "client-1", fmt.Sprintf("שאלה %d", i), "תשובה"); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
	}
	st, _ := m.Get(ctx, "client-1")
	if len(st.History) != maxHistory {
		t.Errorf("history length = %d, want %d", len(st.History), maxHistory)
	}
	if st.History[0].Content != "שאלה 5" {
		t.Errorf("oldest kept entry = %q, want the 6th question", st.History[0].Content)
	}
}

func TestExpiredSessionResets(t *testing.T) {
	m := NewManager("", zap.NewNop())
	ctx := context.Background()

	m.Touch(ctx, "client-1", "שאלה", "תשובה")
	m.mu.Lock()
	m.local["client-1"].LastSeen = time.Now().Add(-sessionTTL - time.Minute)
	m.mu.Unlock()

	st, _ := m.Get(ctx, "client-1")
	if st.RequestCount != 0 || len(st.History) != 0 {
		t.Errorf("expired session not reset: %+v", st)
	}
}

func TestEvictionKeepsRecent(t *testing.T) {
	m := NewManager("", zap.NewNop())
	ctx := context.Background()

	for i := 0; i < maxSessions; i++ {
		m.Touch(ctx, fmt.Sprintf("client-%d", i), "שאלה", "תשובה")
	}
	m.mu.Lock()
	m.local["client-0"].LastSeen = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.Touch(ctx, "client-new", "שאלה", "תשובה")

	m.mu.Lock()
	_, evictedStays := m.local["client-0"]
	_, newStays := m.local["client-new"]
	m.mu.Unlock()
	if evictedStays {
		t.Error("expired session survived eviction")
	}
	if !newStays {
		t.Error("new session missing after eviction")
	}
}

func TestCountSkipsExpired(t *testing.T) {
	m := NewManager("", zap.NewNop())
	ctx := context.Background()

	m.Touch(ctx, "live", "שאלה", "תשובה")
	m.Touch(ctx, "stale", "שאלה", "תשובה")
	m.mu.Lock()
	m.local["stale"].LastSeen = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	if got := m.Count(ctx); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
}
