// Package api exposes the HTTP surface: the SSE chat endpoint, speech
// synthesis, conversation management, memory inspection and file ingest.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/expert"
	"github.com/nidhogg/analysis-room/internal/memory"
	"github.com/nidhogg/analysis-room/internal/orchestrator"
	"github.com/nidhogg/analysis-room/internal/prompt"
	"github.com/nidhogg/analysis-room/internal/provider"
	"github.com/nidhogg/analysis-room/internal/scout"
	"github.com/nidhogg/analysis-room/internal/store"
	"github.com/nidhogg/analysis-room/internal/stream"
	"github.com/nidhogg/analysis-room/internal/tts"
	"github.com/nidhogg/analysis-room/internal/vector"
)

const maxUploadBytes = 10 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine     *orchestrator.Engine
	store      *store.Store
	memory     *memory.Service
	speech     *tts.Service
	scoutCache *scout.Cache
	providers  *provider.Router
	model      string
	logger     *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	engine *orchestrator.Engine,
	st *store.Store,
	mem *memory.Service,
	speech *tts.Service,
	scoutCache *scout.Cache,
	providers *provider.Router,
	model string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		engine:     engine,
		store:      st,
		memory:     mem,
		speech:     speech,
		scoutCache: scoutCache,
		providers:  providers,
		model:      model,
		logger:     logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.ping)

		r.Post("/chat", h.chat)
		r.Post("/chat/tts", h.chatTTS)
		r.Get("/voices", h.listVoices)

		r.Get("/conversations", h.listConversations)
		r.Get("/conversations/{id}", h.getConversation)
		r.Delete("/conversations/{id}", h.deleteConversation)
		r.Get("/conversations/{id}/export", h.exportConversation)
		r.Patch("/conversations/{id}/voice-settings", h.updateVoiceSettings)
		r.Get("/export-all", h.exportAll)

		r.Get("/memories", h.listMemories)
		r.Post("/memories", h.createMemory)
		r.Post("/upload", h.upload)

		r.Get("/agent/profile", h.agentProfile)
		r.Get("/agent/personas", h.personas)
		r.Get("/scout-logs", h.scoutLogs)

		r.Get("/acquired-items", h.listAcquiredItems)
		r.Delete("/acquired-items/{id}", h.deleteAcquiredItem)

		r.Get("/user-profile", h.getUserProfile)
		r.Post("/user-profile", h.updateUserProfile)
		r.Post("/save-rule", h.saveRule)
	})

	return r
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversationId"`
	ImageBase64    string `json:"imageBase64,omitempty"`
}

var imageDataURLRe = regexp.MustCompile(`^data:(image/\w+);base64,(.+)$`)

// parseImageDataURL splits a data URL into mime type and base64 payload.
// Anything that is not an image data URL is dropped.
func parseImageDataURL(s string) (mime, data string) {
	m := imageDataURLRe.FindStringSubmatch(s)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Message is required"})
		return
	}
	mime, data := parseImageDataURL(req.ImageBase64)

	emitter := stream.NewSSE(w, h.logger)
	_ = h.engine.RunRound(r.Context(), orchestrator.RoundRequest{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		ImageMime:      mime,
		ImageData:      data,
	}, emitter)
}

type ttsRequest struct {
	Text           string `json:"text"`
	Role           string `json:"role"`
	ConversationID int64  `json:"conversationId"`
}

func (h *Handler) chatTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if req.Text == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Text and role are required"})
		return
	}
	id := expert.ID(req.Role)
	if !expert.Valid(id) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Unknown role"})
		return
	}

	storedVoice := ""
	if req.ConversationID != 0 {
		if conv, err := h.store.GetConversation(r.Context(), req.ConversationID); err == nil {
			storedVoice = conv.VoiceSettings[req.Role]
		}
	}

	audio, contentType, err := h.speech.Speak(r.Context(), id, req.Text, storedVoice)
	if err != nil {
		if err == tts.ErrNoSpeakableText {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No speakable text after removing stop tokens"})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "שירות הקול אינו זמין כרגע. נסו שוב."})
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(audio)
}

func (h *Handler) listVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tts.Catalog())
}

type conversationSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.ListConversations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to list conversations"})
		return
	}
	out := make([]conversationSummary, len(convs))
	for i, c := range convs {
		out[i] = conversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	conv, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to get conversation"})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteConversation(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to delete conversation"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) exportConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	conv, err := h.store.GetConversation(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Conversation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to export conversation"})
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("The Analysis Room-%d.json", id)))
	writeJSON(w, http.StatusOK, map[string]any{
		"title":        conv.Title,
		"createdAt":    conv.CreatedAt,
		"updatedAt":    conv.UpdatedAt,
		"messages":     conv.Messages,
		"systemPrompt": prompt.BaseSystemPrompt,
	})
}

func (h *Handler) exportAll(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.ListConversations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to export"})
		return
	}
	contexts, err := h.store.RecentMemoryContexts(r.Context(), 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to export"})
		return
	}
	profile, err := h.store.GetUserProfile(r.Context())
	if err != nil && err != store.ErrNotFound {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to export"})
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("The Analysis Room-backup-%d.json", time.Now().UnixMilli())))
	writeJSON(w, http.StatusOK, map[string]any{
		"exportDate":     time.Now().UTC().Format(time.RFC3339),
		"platform":       "חדר המומחים - The Analysis Room",
		"conversations":  convs,
		"memoryContexts": contexts,
		"userProfile":    profile,
		"systemPrompt":   prompt.BaseSystemPrompt,
	})
}

func (h *Handler) updateVoiceSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid settings"})
		return
	}
	for role := range settings {
		if !expert.Valid(expert.ID(role)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid settings"})
			return
		}
	}
	if err := h.store.UpdateVoiceSettings(r.Context(), id, settings); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to update voice settings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) listMemories(w http.ResponseWriter, r *http.Request) {
	mems, err := h.store.RecentMemories(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to get memories"})
		return
	}
	writeJSON(w, http.StatusOK, mems)
}

type memoryRequest struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (h *Handler) createMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "text is required"})
		return
	}
	stored, err := h.memory.Ingest(r.Context(), []string{req.Text}, req.Category)
	if err != nil || len(stored) == 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to create memory"})
		return
	}
	writeJSON(w, http.StatusOK, stored[0])
}

var nonTextRe = regexp.MustCompile(`[^\x20-\x7E\x{0590}-\x{05FF}\x{0600}-\x{06FF}\s]`)

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No file uploaded"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No file uploaded"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".txt", ".pdf", ".md", ".csv":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Only TXT, PDF, MD, CSV files are allowed"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to process file"})
		return
	}

	text := string(raw)
	if ext == ".pdf" {
		text = nonTextRe.ReplaceAllString(text, " ")
	}
	if strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "File is empty or unreadable"})
		return
	}

	chunks := memory.ChunkText(text, 0)
	stored, err := h.memory.Ingest(r.Context(), chunks, "file_upload")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to process file"})
		return
	}

	type chunkPreview struct {
		ID          int64  `json:"id"`
		TextPreview string `json:"textPreview"`
	}
	previews := make([]chunkPreview, len(stored))
	for i, mem := range stored {
		preview := mem.Text
		if runes := []rune(preview); len(runes) > 100 {
			preview = string(runes[:100])
		}
		previews[i] = chunkPreview{ID: mem.ID, TextPreview: preview}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"filename":    header.Filename,
		"totalChunks": len(previews),
		"chunks":      previews,
	})
}

func (h *Handler) agentProfile(w http.ResponseWriter, r *http.Request) {
	mems, err := h.store.RecentMemories(r.Context(), 100)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to get agent profile"})
		return
	}
	texts := make([]string, len(mems))
	categories := make([]string, len(mems))
	for i, m := range mems {
		texts[i] = m.Text
		categories[i] = m.Category
	}
	writeJSON(w, http.StatusOK, vector.BuildProfile(texts, categories))
}

func (h *Handler) personas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, expert.All())
}

type scoutLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	Trends    []string  `json:"trends"`
}

func (h *Handler) scoutLogs(w http.ResponseWriter, r *http.Request) {
	entries := h.scoutCache.Entries()
	out := make([]scoutLogEntry, len(entries))
	for i, e := range entries {
		out[i] = scoutLogEntry{
			Timestamp: e.Timestamp,
			Topic:     e.Topic,
			Summary:   e.Summary,
			Source:    e.Source,
			Trends:    e.Report.MarketTrends,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listAcquiredItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListAcquiredItems(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to get acquired items"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) deleteAcquiredItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAcquiredItem(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to delete acquired item"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) getUserProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.GetUserProfile(r.Context())
	if err != nil {
		if err == store.ErrNotFound {
			writeJSON(w, http.StatusOK, map[string]any{"coreProfile": map[string]any{}, "livingPromptSummary": ""})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to get user profile"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type userProfileRequest struct {
	CoreProfile         *store.CoreProfile `json:"coreProfile"`
	LivingPromptSummary *string            `json:"livingPromptSummary"`
}

func (h *Handler) updateUserProfile(w http.ResponseWriter, r *http.Request) {
	var req userProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	profile, err := h.store.UpsertUserProfile(r.Context(), req.CoreProfile, req.LivingPromptSummary)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to update user profile"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type saveRuleRequest struct {
	Text string `json:"text"`
}

// saveRule distills free text into a one-sentence standing rule and
// appends it to the profile's core rules.
func (h *Handler) saveRule(w http.ResponseWriter, r *http.Request) {
	var req saveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Text)) < 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Text is required (minimum 5 characters)"})
		return
	}

	rule := h.distillRule(r, req.Text)

	profile, err := h.store.GetUserProfile(r.Context())
	if err != nil && err != store.ErrNotFound {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to save rule"})
		return
	}
	var core store.CoreProfile
	if profile != nil {
		core = profile.CoreProfile
	}
	core.CoreRules = append(core.CoreRules, rule)

	if _, err := h.store.UpsertUserProfile(r.Context(), &core, nil); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to save rule"})
		return
	}

	h.logger.Info("rule saved", zap.String("rule", rule), zap.Int("total", len(core.CoreRules)))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"rule":       rule,
		"totalRules": len(core.CoreRules),
	})
}

func (h *Handler) distillRule(r *http.Request, text string) string {
	fallback := text
	if runes := []rune(fallback); len(runes) > 150 {
		fallback = string(runes[:150])
	}

	input := text
	if runes := []rune(input); len(runes) > 2000 {
		input = string(runes[:2000])
	}
	resp, err := h.providers.Route(r.Context(), "memory", &provider.ChatRequest{
		Model: h.model,
		Messages: []provider.Message{{
			Role:    "user",
			Content: fmt.Sprintf("סכם את הטקסט הבא לכלל אחד תמציתי (משפט אחד בעברית) שמתאר את ההעדפה או התובנה של המשתמש. החזר JSON בפורמט: {\"rule\": \"...\"}.\n\nטקסט:\n%s", input),
		}},
		JSONResponse: true,
	})
	if err != nil {
		h.logger.Warn("rule distillation failed, storing raw text", zap.Error(err))
		return fallback
	}

	cleaned := strings.TrimSpace(
		strings.ReplaceAll(strings.ReplaceAll(resp.Content, "```json", ""), "```", ""))
	var parsed struct {
		Rule string `json:"rule"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil || parsed.Rule == "" {
		return fallback
	}
	return parsed.Rule
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
