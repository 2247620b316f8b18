package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/provider"
	"github.com/nidhogg/analysis-room/internal/scout"
)

// newTestHandler wires only the dependencies the validation paths touch.
func newTestHandler() http.Handler {
	h := NewHandler(nil, nil, nil, nil, scout.NewCache(),
		provider.NewRouter(zap.NewNop()), "test-model", zap.NewNop())
	return h.Router()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "GET", "/api/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "POST", "/api/chat", `{"message":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Message is required") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestChatRejectsBadJSON(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "POST", "/api/chat", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatTTSValidation(t *testing.T) {
	router := newTestHandler()

	rec := doRequest(t, router, "POST", "/api/chat/tts", `{"text":"","role":"crisis"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, "POST", "/api/chat/tts", `{"text":"שלום","role":"conductor"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown role: status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown role") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestListVoices(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "GET", "/api/voices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var voices []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &voices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(voices) != 8 {
		t.Errorf("got %d voices, want 8", len(voices))
	}
}

func TestPersonas(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "GET", "/api/agent/personas", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var personas []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &personas); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(personas) != 4 {
		t.Fatalf("got %d personas, want 4", len(personas))
	}
	if personas[0]["id"] != "ontological" {
		t.Errorf("first persona = %v", personas[0]["id"])
	}
}

func TestScoutLogsEmpty(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "GET", "/api/scout-logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestCreateMemoryRequiresText(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "POST", "/api/memories", `{"text":"","category":"general"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSaveRuleRequiresMinLength(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "POST", "/api/save-rule", `{"text":"קצר"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "minimum 5 characters") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestParseImageDataURL(t *testing.T) {
	mime, data := parseImageDataURL("data:image/png;base64,iVBORw0KGgo=")
	if mime != "image/png" || data != "iVBORw0KGgo=" {
		t.Errorf("got (%q, %q)", mime, data)
	}

	for _, bad := range []string{
		"",
		"iVBORw0KGgo=",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,",
	} {
		if mime, data := parseImageDataURL(bad); mime != "" || data != "" {
			t.Errorf("parseImageDataURL(%q) = (%q, %q), want empty", bad, mime, data)
		}
	}
}

func TestPathIDValidation(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "DELETE", "/api/conversations/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid id") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestUploadRequiresFile(t *testing.T) {
	rec := doRequest(t, newTestHandler(), "POST", "/api/upload", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
