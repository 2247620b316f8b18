// Package stream defines the typed round events and the emitters that
// deliver them: an SSE writer for HTTP clients and a collector for
// gateways and tests.
package stream

// Event names, in the order a successful round emits them: status,
// optional safety, meta_agent, experts, optional scout, one turn per
// surviving expert, result, done. A failed round ends with error instead.
const (
	EventStatus    = "status"
	EventSafety    = "safety"
	EventMetaAgent = "meta_agent"
	EventExperts   = "experts"
	EventScout     = "scout"
	EventTurn      = "turn"
	EventResult    = "result"
	EventDone      = "done"
	EventError     = "error"
)

// Emitter delivers round events to a client. Implementations must be safe
// to call from a single goroutine in event order.
type Emitter interface {
	Emit(event string, data any)
}

// StatusData is the payload of a status event.
type StatusData struct {
	Stage          string `json:"stage"`
	Label          string `json:"label"`
	ConversationID int64  `json:"conversationId,omitempty"`
	SummaryMode    bool   `json:"summaryMode,omitempty"`
	SafetyOverride bool   `json:"safetyOverride,omitempty"`
}

// SafetyData announces that the safety protocol fired.
type SafetyData struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// MetaAgentData describes the leading expert of the round.
type MetaAgentData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NameHe    string `json:"nameHe"`
	Framework string `json:"framework"`
	Color     string `json:"color"`
	StopToken string `json:"stopToken"`
}

// ExpertsData announces the full selection before generation starts.
type ExpertsData struct {
	Selected       []string          `json:"selected"`
	SummaryMode    bool              `json:"summaryMode"`
	SafetyOverride bool              `json:"safetyOverride"`
	CrisisActive   bool              `json:"crisisActive"`
	StopTokens     map[string]string `json:"stopTokens"`
}

// ScoutData carries the ground-truth report, cached or live.
type ScoutData struct {
	Active       bool     `json:"active"`
	Cached       bool     `json:"cached"`
	MarketTrends []string `json:"market_trends"`
	SCQA         any      `json:"scqa"`
	Directive    string   `json:"directive"`
	CachedTopic  string   `json:"cachedTopic,omitempty"`
	CachedAt     string   `json:"cachedAt,omitempty"`
}

// Turn is one finalized expert response.
type Turn struct {
	Character string  `json:"character"`
	Text      string  `json:"text"`
	StopToken string  `json:"stopToken"`
	VoiceID   string  `json:"voice_id,omitempty"`
	Pitch     float64 `json:"pitch,omitempty"`
}

// TurnData is the payload of a turn event.
type TurnData struct {
	Turn           Turn  `json:"turn"`
	Index          int   `json:"index"`
	Total          int   `json:"total"`
	ConversationID int64 `json:"conversationId"`
}

// ResultData closes a successful round with all surviving turns.
type ResultData struct {
	Turns          []Turn        `json:"turns"`
	DialogueOrder  []string      `json:"dialogueOrder"`
	ConversationID int64         `json:"conversationId"`
	SummaryMode    bool          `json:"summaryMode"`
	SafetyOverride bool          `json:"safetyOverride"`
	MetaAgent      MetaAgentData `json:"metaAgent"`
}

// ErrorData carries the user-facing failure copy.
type ErrorData struct {
	Message string `json:"message"`
}
