package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeProvider struct {
	id    string
	reply string
	err   error
	calls int
}

func (f *fakeProvider) ID() string   { return f.id }
func (f *fakeProvider) Name() string { return "fake " + f.id }
func (f *fakeProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Content: f.reply}, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) error { return f.err }

func TestRouteUsesBinding(t *testing.T) {
	r := NewRouter(zap.NewNop())
	main := &fakeProvider{id: "main", reply: "ראשי"}
	bound := &fakeProvider{id: "bound", reply: "כבול"}
	r.Register(main)
	r.Register(bound)
	r.Bind("crisis", "bound")

	resp, err := r.Route(context.Background(), "crisis", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "כבול" {
		t.Errorf("got %q, want bound provider reply", resp.Content)
	}
	if main.calls != 0 {
		t.Errorf("default provider called %d times", main.calls)
	}
}

func TestRouteFallsBackToDefault(t *testing.T) {
	r := NewRouter(zap.NewNop())
	main := &fakeProvider{id: "main", reply: "ראשי"}
	r.Register(main)

	resp, err := r.Route(context.Background(), "unbound", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ראשי" {
		t.Errorf("got %q", resp.Content)
	}
}

func TestRouteWalksFallbackChain(t *testing.T) {
	r := NewRouter(zap.NewNop())
	broken := &fakeProvider{id: "broken", err: errors.New("boom")}
	alsoBroken := &fakeProvider{id: "also-broken", err: errors.New("boom too")}
	backup := &fakeProvider{id: "backup", reply: "גיבוי"}
	r.Register(broken)
	r.Register(alsoBroken)
	r.Register(backup)
	r.SetDefault("broken")
	r.SetFallbacks("ontological", []string{"also-broken", "backup"})

	resp, err := r.Route(context.Background(), "ontological", &ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "גיבוי" {
		t.Errorf("got %q, want backup reply", resp.Content)
	}
	if alsoBroken.calls != 1 {
		t.Errorf("middle fallback called %d times, want 1", alsoBroken.calls)
	}
}

func TestRouteAllFailed(t *testing.T) {
	r := NewRouter(zap.NewNop())
	broken := &fakeProvider{id: "broken", err: errors.New("boom")}
	r.Register(broken)
	r.SetFallbacks("scout", []string{"missing"})

	if _, err := r.Route(context.Background(), "scout", &ChatRequest{}); err == nil {
		t.Error("expected error when every provider fails")
	}
}

func TestRouteNoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Route(context.Background(), "anyone", &ChatRequest{}); err == nil {
		t.Error("expected error with no registered providers")
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("gemini api status 429"), true},
		{errors.New("RESOURCE_EXHAUSTED: quota exceeded"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsRateLimited(tc.err); got != tc.want {
			t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
