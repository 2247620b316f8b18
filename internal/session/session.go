// Package session tracks per-client conversation state: a bounded rolling
// history and a request counter, expiring after inactivity. Backed by
// Redis when available, with an in-memory fallback for single-node runs.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionTTL  = 30 * time.Minute
	maxSessions = 500
	maxHistory  = 20

	keyPrefix = "room:session:"
)

// HistoryEntry is one remembered exchange.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the stored session record.
type State struct {
	ID           string         `json:"id"`
	History      []HistoryEntry `json:"history"`
	RequestCount int            `json:"requestCount"`
	LastSeen     time.Time      `json:"lastSeen"`
}

// Manager stores session state in Redis, or in process memory when no
// Redis address is configured.
type Manager struct {
	rdb    *redis.Client
	logger *zap.Logger

	mu    sync.Mutex
	local map[string]*State
}

// NewManager connects to Redis when redisURL is non-empty. A failed
// connection falls back to the in-memory store with a warning rather than
// refusing to start.
func NewManager(redisURL string, logger *zap.Logger) *Manager {
	m := &Manager{logger: logger, local: make(map[string]*State)}
	if redisURL == "" {
		logger.Info("session store: in-memory")
		return m
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("session store: bad redis url, using in-memory", zap.Error(err))
		return m
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("session store: redis unreachable, using in-memory", zap.Error(err))
		return m
	}
	m.rdb = rdb
	logger.Info("session store: redis")
	return m
}

// Get loads the session, creating a fresh one when absent or expired.
func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	if m.rdb != nil {
		raw, err := m.rdb.Get(ctx, keyPrefix+id).Bytes()
		if err == redis.Nil {
			return &State{ID: id, LastSeen: time.Now()}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("session get: %w", err)
		}
		var st State
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("session decode: %w", err)
		}
		return &st, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.local[id]
	if !ok || time.Since(st.LastSeen) > sessionTTL {
		return &State{ID: id, LastSeen: time.Now()}, nil
	}
	copied := *st
	copied.History = append([]HistoryEntry{}, st.History...)
	return &copied, nil
}

// Touch records one request and appends the exchange to the rolling
// history, trimming to the last entries.
func (m *Manager) Touch(ctx context.Context, id, userMessage, reply string) error {
	st, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	st.RequestCount++
	st.LastSeen = time.Now()
	st.History = append(st.History,
		HistoryEntry{Role: "user", Content: userMessage, Timestamp: st.LastSeen},
		HistoryEntry{Role: "assistant", Content: reply, Timestamp: st.LastSeen})
	if len(st.History) > maxHistory {
		st.History = st.History[len(st.History)-maxHistory:]
	}

	return m.put(ctx, st)
}

func (m *Manager) put(ctx context.Context, st *State) error {
	if m.rdb != nil {
		raw, err := json.Marshal(st)
		if err != nil {
			return err
		}
		if err := m.rdb.Set(ctx, keyPrefix+st.ID, raw, sessionTTL).Err(); err != nil {
			return fmt.Errorf("session set: %w", err)
		}
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.local[st.ID]; !exists && len(m.local) >= maxSessions {
		m.evictLocked()
	}
	m.local[st.ID] = st
	return nil
}

// evictLocked drops expired sessions, then the stalest one if still full.
func (m *Manager) evictLocked() {
	var (
		oldestID   string
		oldestSeen time.Time
	)
	for id, st := range m.local {
		if time.Since(st.LastSeen) > sessionTTL {
			delete(m.local, id)
			continue
		}
		if oldestID == "" || st.LastSeen.Before(oldestSeen) {
			oldestID, oldestSeen = id, st.LastSeen
		}
	}
	if len(m.local) >= maxSessions && oldestID != "" {
		delete(m.local, oldestID)
		m.logger.Debug("session evicted", zap.String("id", oldestID))
	}
}

// Count returns the number of live sessions. Redis-backed managers count
// keys by prefix scan.
func (m *Manager) Count(ctx context.Context) int {
	if m.rdb != nil {
		var (
			cursor uint64
			total  int
		)
		for {
			keys, next, err := m.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
			if err != nil {
				return total
			}
			total += len(keys)
			if next == 0 {
				return total
			}
			cursor = next
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, st := range m.local {
		if time.Since(st.LastSeen) <= sessionTTL {
			n++
		}
	}
	return n
}

// Close releases the Redis connection.
func (m *Manager) Close() error {
	if m.rdb != nil {
		return m.rdb.Close()
	}
	return nil
}
