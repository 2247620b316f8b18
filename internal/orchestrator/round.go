// Package orchestrator runs the sequential expert round: routing, context
// assembly, per-expert generation with output guards, and post-round
// persistence.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/expert"
	"github.com/nidhogg/analysis-room/internal/memory"
	"github.com/nidhogg/analysis-room/internal/prompt"
	"github.com/nidhogg/analysis-room/internal/provider"
	"github.com/nidhogg/analysis-room/internal/router"
	"github.com/nidhogg/analysis-room/internal/scout"
	"github.com/nidhogg/analysis-room/internal/store"
	"github.com/nidhogg/analysis-room/internal/stream"
	"github.com/nidhogg/analysis-room/internal/vector"
)

const (
	normalTokenBudget  = 4096
	summaryTokenBudget = 800
	monologueBudget    = 150
	expertTemperature  = 0.8
	driftThreshold     = 0.4
	defaultPacing      = 500 * time.Millisecond
)

// Hebrew error copy, picked by throttling detection on the provider error.
const (
	errCopyRateLimited = "המערכת עמוסה כרגע. נסו שוב בעוד כמה שניות."
	errCopyGeneric     = "אירעה שגיאה בעיבוד התשובה. נסו שוב."
)

type voiceProfile struct {
	VoiceID string
	Pitch   float64
}

var voiceMap = map[expert.ID]voiceProfile{
	expert.Ontological: {VoiceID: "Charon", Pitch: -2.0},
	expert.Renaissance: {VoiceID: "Puck", Pitch: 1.0},
	expert.Crisis:      {VoiceID: "Orus", Pitch: -4.0},
	expert.Operational: {VoiceID: "Fenrir", Pitch: -1.0},
}

// Engine coordinates one round end to end. Construct once and share; all
// state lives in the store and the scout cache.
type Engine struct {
	store      *store.Store
	memory     *memory.Service
	scout      *scout.Scout
	scoutCache *scout.Cache
	providers  *provider.Router
	model      string
	pacing     time.Duration
	logger     *zap.Logger
}

// New creates a round engine.
func New(st *store.Store, mem *memory.Service, sc *scout.Scout, cache *scout.Cache,
	providers *provider.Router, model string, logger *zap.Logger) *Engine {
	return &Engine{
		store:      st,
		memory:     mem,
		scout:      sc,
		scoutCache: cache,
		providers:  providers,
		model:      model,
		pacing:     defaultPacing,
		logger:     logger,
	}
}

// SetPacing overrides the inter-expert delay.
func (e *Engine) SetPacing(d time.Duration) { e.pacing = d }

// RoundRequest is one inbound user message, optionally with one attached
// image already split from its data URL.
type RoundRequest struct {
	Message        string
	ConversationID int64 // 0 creates a new conversation
	ImageMime      string
	ImageData      string
}

// RunRound executes the full pipeline, emitting events as stages
// complete. The returned error mirrors the error event for callers that
// do not stream.
func (e *Engine) RunRound(ctx context.Context, req RoundRequest, emit stream.Emitter) error {
	message := router.Scrub(req.Message)
	if message == "" {
		message = req.Message
	}

	sel := router.Select(message)
	primary := sel.Experts[0]
	primaryInfo, _ := expert.Get(primary)

	// Exactly one direct call bypasses the chain and flushes history;
	// multiple direct calls keep it.
	var directCall expert.ID
	if len(sel.DirectCalls) == 1 {
		directCall = sel.DirectCalls[0]
	}

	e.logger.Info("round routed",
		zap.Bool("safety", sel.SafetyOverride),
		zap.Any("experts", sel.Experts),
		zap.Bool("summaryMode", sel.SummaryMode),
		zap.String("primary", string(primary)))

	if sel.SafetyOverride {
		emit.Emit(stream.EventSafety, stream.SafetyData{
			Triggered: true,
			Message:   "זוהה תוכן רגיש. מפעיל פרוטוקול בטיחות.",
		})
	}

	emit.Emit(stream.EventStatus, stream.StatusData{
		Stage:          "routing",
		Label:          primaryInfo.NameHe + " מוביל...",
		SummaryMode:    sel.SummaryMode,
		SafetyOverride: sel.SafetyOverride,
	})

	convID, existing, err := e.loadConversation(ctx, req.ConversationID, message, directCall != "")
	if err != nil {
		e.fail(emit, err)
		return err
	}

	emit.Emit(stream.EventMetaAgent, metaAgentData(primaryInfo))

	stopTokens := make(map[string]string, len(sel.Experts))
	selected := make([]string, len(sel.Experts))
	crisisActive := false
	for i, id := range sel.Experts {
		selected[i] = string(id)
		stopTokens[string(id)] = expert.StopTokens[id]
		if id == expert.Crisis {
			crisisActive = true
		}
	}
	emit.Emit(stream.EventExperts, stream.ExpertsData{
		Selected:       selected,
		SummaryMode:    sel.SummaryMode,
		SafetyOverride: sel.SafetyOverride,
		CrisisActive:   crisisActive,
		StopTokens:     stopTokens,
	})

	scoutInjection := e.runScout(ctx, message, sel.SafetyOverride, emit)

	profile, err := e.store.GetUserProfile(ctx)
	if err != nil && err != store.ErrNotFound {
		e.logger.Warn("profile load failed", zap.Error(err))
	}
	relevantMemories := e.memory.Retrieve(ctx, message)

	livingSummary := ""
	if profile != nil {
		livingSummary = profile.LivingPromptSummary
	}

	emit.Emit(stream.EventStatus, stream.StatusData{Stage: "monologue", Label: "מסנכרן שרשרת מומחים..."})
	monologue := e.runMonologue(ctx, message)

	// Context drift guard: a message far from the living summary gets a
	// profile-only context so stale summaries cannot steer the round.
	refresh := e.contextDrifted(message, livingSummary)
	if refresh {
		emit.Emit(stream.EventStatus, stream.StatusData{Stage: "refresh", Label: "מרענן הקשר..."})
	}

	contextBlock := prompt.ContextInjection(profile, livingSummary, relevantMemories)
	if directCall != "" || refresh {
		mems := relevantMemories
		if directCall != "" {
			mems = nil
		}
		contextBlock = prompt.ContextInjection(profile, "", mems)
	}

	items, err := e.store.ListAcquiredItems(ctx)
	if err != nil {
		e.logger.Warn("ledger load failed", zap.Error(err))
	}
	ledgerAnchor := prompt.LedgerAnchor(items)

	goNoGo := ""
	if crisisActive && contains(sel.Experts, expert.Operational) {
		goNoGo = prompt.GoNoGoNotice
	}
	summaryNotice := ""
	if sel.SummaryMode {
		summaryNotice = prompt.SummaryModeNotice
	}
	safetyNotice := ""
	if sel.SafetyOverride {
		safetyNotice = prompt.SafetyOverrideNotice
	}
	visionNotice := ""
	if req.ImageData != "" {
		visionNotice = prompt.VisionNotice
	}

	tokenBudget := normalTokenBudget
	if sel.SummaryMode {
		tokenBudget = summaryTokenBudget
	}

	var turns []stream.Turn
	var previous []string
	var lastGenErr error

	for i, id := range sel.Experts {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("round cancelled", zap.Error(err))
			return err
		}
		info, _ := expert.Get(id)
		emit.Emit(stream.EventStatus, stream.StatusData{Stage: "generating", Label: info.NameHe + " חושב..."})

		instruction := prompt.ExpertInstruction(id, message,
			contextBlock, scoutInjection, summaryNotice, safetyNotice, visionNotice,
			prompt.MonologueInjection(monologue), ledgerAnchor,
			prompt.PreviousTurns(previous), goNoGo)

		resp, err := e.providers.Route(ctx, string(id), &provider.ChatRequest{
			Model:       e.model,
			System:      instruction,
			Messages:    []provider.Message{{Role: "user", Content: message}},
			MaxTokens:   tokenBudget,
			Temperature: expertTemperature,
			ImageMime:   req.ImageMime,
			ImageData:   req.ImageData,
		})
		if err != nil {
			e.logger.Warn("expert generation failed, skipping", zap.String("expert", string(id)), zap.Error(err))
			lastGenErr = err
			continue
		}

		text := CleanText(resp.Content)
		if len([]rune(text)) < 5 {
			e.logger.Warn("expert returned empty response, skipping", zap.String("expert", string(id)))
			continue
		}
		if IsRepetitive(text, previous) {
			e.logger.Warn("expert repeated prior content, skipping", zap.String("expert", string(id)))
			continue
		}
		if redacted, vetoed := ApplyVeto(text, id); vetoed {
			e.logger.Warn("safety veto redaction applied", zap.String("expert", string(id)))
			text = redacted
		}
		text = EnforceStopToken(text, id)

		voice := voiceMap[id]
		turn := stream.Turn{
			Character: string(id),
			Text:      text,
			StopToken: expert.StopTokens[id],
			VoiceID:   voice.VoiceID,
			Pitch:     voice.Pitch,
		}
		turns = append(turns, turn)
		previous = append(previous, fmt.Sprintf("[%s]: %s", info.NameHe, text))

		emit.Emit(stream.EventTurn, stream.TurnData{
			Turn:           turn,
			Index:          i,
			Total:          len(sel.Experts),
			ConversationID: convID,
		})

		if i < len(sel.Experts)-1 && e.pacing > 0 {
			select {
			case <-time.After(e.pacing):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if len(turns) == 0 {
		err := lastGenErr
		if err == nil {
			err = fmt.Errorf("no expert produced a usable turn")
		}
		e.fail(emit, err)
		return err
	}

	messages := e.persistRound(ctx, convID, existing, message, sel.SafetyOverride, turns)

	for _, turn := range turns {
		if turn.Character == string(expert.Operational) {
			e.memory.RecordLedger(ctx, turn.Text, message)
			break
		}
	}

	e.memory.Checkpoint(ctx, convID, messages, prompt.ProjectLedger)
	e.memory.Remember(ctx, message, string(primary))

	emit.Emit(stream.EventStatus, stream.StatusData{Stage: "complete", Label: "הושלם"})
	emit.Emit(stream.EventResult, stream.ResultData{
		Turns:          turns,
		DialogueOrder:  selected,
		ConversationID: convID,
		SummaryMode:    sel.SummaryMode,
		SafetyOverride: sel.SafetyOverride,
		MetaAgent:      metaAgentData(primaryInfo),
	})
	emit.Emit(stream.EventDone, struct{}{})
	return nil
}

// loadConversation resolves the conversation, creating one titled with the
// message prefix when absent. flushHistory drops prior messages from the
// round context without deleting them from storage.
func (e *Engine) loadConversation(ctx context.Context, id int64, message string, flushHistory bool) (int64, []store.ChatMessage, error) {
	if id != 0 {
		conv, err := e.store.GetConversation(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return id, nil, nil
			}
			return 0, nil, fmt.Errorf("load conversation: %w", err)
		}
		if flushHistory {
			return id, nil, nil
		}
		return id, conv.Messages, nil
	}

	title := message
	if runes := []rune(title); len(runes) > 30 {
		title = string(runes[:30])
	}
	conv, err := e.store.CreateConversation(ctx, title, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv.ID, nil, nil
}

func (e *Engine) runScout(ctx context.Context, message string, safety bool, emit stream.Emitter) string {
	if safety || e.scout == nil || !scout.ShouldTrigger(message) {
		return ""
	}

	if cached := e.scoutCache.Find(message); cached != nil {
		emit.Emit(stream.EventStatus, stream.StatusData{Stage: "scouting", Label: "טוען ממודיעין מקומי..."})
		emit.Emit(stream.EventScout, stream.ScoutData{
			Active:       true,
			Cached:       true,
			MarketTrends: cached.Report.MarketTrends,
			SCQA:         cached.Report.SCQAFormulation,
			Directive:    cached.Report.ExpertDirective,
			CachedTopic:  cached.Topic,
			CachedAt:     cached.Timestamp.Format(time.RFC3339),
		})
		return scout.BuildInjection(cached.Report)
	}

	emit.Emit(stream.EventStatus, stream.StatusData{Stage: "scouting", Label: "הגשש ההקשרי סורק מגמות שוק..."})
	report := e.scout.Run(ctx, message)
	if report == nil {
		return ""
	}
	e.scoutCache.Add(message, report)
	emit.Emit(stream.EventScout, stream.ScoutData{
		Active:       true,
		Cached:       false,
		MarketTrends: report.MarketTrends,
		SCQA:         report.SCQAFormulation,
		Directive:    report.ExpertDirective,
	})
	return scout.BuildInjection(report)
}

func (e *Engine) runMonologue(ctx context.Context, message string) string {
	system := prompt.ProjectLedger +
		"\nנתח את הקלט הבא ב-3 משפטים קצרים מנקודת מבט של עקרונות ראשונים. זהה: 1) ההנחה הסמויה, 2) המתח המרכזי, 3) נקודת המינוף. החזר טקסט בלבד, ללא JSON."

	resp, err := e.providers.Route(ctx, "monologue", &provider.ChatRequest{
		Model:     e.model,
		System:    system,
		Messages:  []provider.Message{{Role: "user", Content: message}},
		MaxTokens: monologueBudget,
	})
	if err != nil {
		e.logger.Warn("monologue failed, continuing without pre-analysis", zap.Error(err))
		return ""
	}
	return resp.Content
}

// contextDrifted compares the message against the living summary under a
// vocabulary built from both texts.
func (e *Engine) contextDrifted(message, livingSummary string) bool {
	if len([]rune(livingSummary)) < 20 {
		return false
	}
	vocab := vector.Build([]string{message, livingSummary})
	similarity := vector.Cosine(vocab.Vector(message), vocab.Vector(livingSummary))
	e.logger.Debug("context drift check", zap.Float64("similarity", similarity))
	return similarity < driftThreshold
}

// persistRound appends the user message and surviving turns, returning the
// updated history. Storage failures are logged; the round result already
// reached the client.
func (e *Engine) persistRound(ctx context.Context, convID int64, existing []store.ChatMessage,
	message string, safety bool, turns []stream.Turn) []store.ChatMessage {
	now := time.Now()

	messages := append([]store.ChatMessage{}, existing...)
	messages = append(messages, store.ChatMessage{
		ID:               "user-" + uuid.NewString(),
		Role:             "user",
		Content:          message,
		Timestamp:        now,
		IsSafetyOverride: safety,
	})
	for _, turn := range turns {
		messages = append(messages, store.ChatMessage{
			ID:        turn.Character + "-" + uuid.NewString(),
			Role:      turn.Character,
			Content:   turn.Text,
			Timestamp: now,
		})
	}

	if err := e.store.UpdateConversationMessages(ctx, convID, messages); err != nil {
		e.logger.Warn("round persistence failed", zap.Error(err))
	}
	return messages
}

func (e *Engine) fail(emit stream.Emitter, err error) {
	copyText := errCopyGeneric
	if provider.IsRateLimited(err) {
		copyText = errCopyRateLimited
	}
	e.logger.Error("round failed", zap.Error(err))
	emit.Emit(stream.EventError, stream.ErrorData{Message: copyText})
}

func metaAgentData(info expert.Info) stream.MetaAgentData {
	return stream.MetaAgentData{
		ID:        string(info.ID),
		Name:      info.Name,
		NameHe:    info.NameHe,
		Framework: info.Framework,
		Color:     info.Color,
		StopToken: info.StopToken,
	}
}

func contains(ids []expert.ID, id expert.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
