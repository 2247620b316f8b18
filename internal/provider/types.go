package provider

import (
	"context"
	"strings"
	"time"
)

// Provider defines the interface for LLM generation backends.
type Provider interface {
	ID() string
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthCheck(ctx context.Context) error
}

// ChatRequest represents a generation request.
type ChatRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`

	// ImageMime and ImageData attach one inline image to the last user
	// message on backends with vision input; others ignore it.
	ImageMime string `json:"image_mime,omitempty"`
	ImageData string `json:"image_data,omitempty"`

	// JSONResponse asks the backend for a JSON-only reply where supported.
	JSONResponse bool `json:"json_response,omitempty"`
	// GroundedSearch enables live web grounding where supported.
	GroundedSearch bool `json:"grounded_search,omitempty"`
	// ThinkingBudget caps internal reasoning tokens; 0 disables thinking.
	ThinkingBudget int `json:"thinking_budget,omitempty"`
}

// Message represents one chat turn.
type Message struct {
	Role    string `json:"role"` // user|assistant|system
	Content string `json:"content"`
}

// ChatResponse represents a generation result.
type ChatResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Model describes an available model.
type Model struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens"`
}

// Config holds configuration for a provider instance.
type Config struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}

// rateLimitMarkers are the substrings that identify throttling errors across
// backends. Matching is on the error text because each backend surfaces
// quota exhaustion differently.
var rateLimitMarkers = []string{"429", "quota", "rate", "resource_exhausted"}

// IsRateLimited reports whether err looks like provider throttling.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
