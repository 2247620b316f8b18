package scout

import (
	"sync"
	"time"

	"github.com/nidhogg/analysis-room/internal/vector"
)

const (
	maxEntries          = 5
	cacheTTL            = 10 * time.Minute
	similarityThreshold = 0.85
)

// LogEntry is one cached scout run. Topic text is stored instead of a
// vector: vectors are corpus-relative, so similarity is computed under a
// fresh vocabulary build at lookup time.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	Report    *Report   `json:"report"`
	Source    string    `json:"source"` // live|cached
}

// Cache is a bounded in-memory log of recent scout reports, reused for
// near-duplicate topics inside the TTL window.
type Cache struct {
	mu      sync.Mutex
	entries []LogEntry
	now     func() time.Time
}

// NewCache creates an empty scout cache.
func NewCache() *Cache {
	return &Cache{now: time.Now}
}

// Add records a live scout run, evicting the oldest entry past capacity.
func (c *Cache) Add(topic string, report *Report) LogEntry {
	summary := ""
	for i, t := range report.MarketTrends {
		if i >= 3 {
			break
		}
		if summary != "" {
			summary += " | "
		}
		summary += t
	}
	summary = truncate(summary, 200)

	entry := LogEntry{
		Timestamp: c.now(),
		Topic:     topic,
		Summary:   summary,
		Report:    report,
		Source:    "live",
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	if len(c.entries) > maxEntries {
		c.entries = c.entries[len(c.entries)-maxEntries:]
	}
	return entry
}

// Find returns the best unexpired entry whose topic is close enough to
// input, or nil. Both sides are vectorized under one vocabulary built from
// the input and every cached topic.
func (c *Cache) Find(input string) *LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil
	}

	texts := make([]string, 0, len(c.entries)+1)
	texts = append(texts, input)
	for _, e := range c.entries {
		texts = append(texts, e.Topic)
	}
	vocab := vector.Build(texts)
	inputVec := vocab.Vector(input)

	now := c.now()
	var best *LogEntry
	bestScore := 0.0
	for i := range c.entries {
		entry := &c.entries[i]
		if now.Sub(entry.Timestamp) > cacheTTL {
			continue
		}
		score := vector.Cosine(inputVec, vocab.Vector(entry.Topic))
		if score > similarityThreshold && score > bestScore {
			bestScore = score
			best = entry
		}
	}
	if best == nil {
		return nil
	}
	hit := *best
	hit.Source = "cached"
	return &hit
}

// Entries returns a snapshot of the log, newest last.
func (c *Cache) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}
