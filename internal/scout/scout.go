// Package scout augments business-shaped or underspecified messages with a
// compact ground-truth report synthesized from live search results.
package scout

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/analysis-room/internal/provider"
)

var businessKeywords = []string{
	"מיזם", "סטארטאפ", "שוק", "מוצר", "business", "saas", "plan",
	"תוכנית עסקית", "אסטרטגיה", "מודל כלכלי", "השקעה", "שיווק",
	"startup", "market", "product", "venture", "investment",
}

// ShouldTrigger reports whether the message warrants a scout run: fewer
// than 15 words (too little context to route on) or any business keyword.
func ShouldTrigger(input string) bool {
	if len(strings.Fields(strings.TrimSpace(input))) < 15 {
		return true
	}
	lower := strings.ToLower(input)
	for _, kw := range businessKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SCQA is the structured problem formulation inside a report.
type SCQA struct {
	Situation        string `json:"Situation"`
	Complication     string `json:"Complication"`
	Question         string `json:"Question"`
	AnswerHypothesis string `json:"Answer_Hypothesis"`
}

// Report is the ground-truth block injected into every expert context for
// the round.
type Report struct {
	MarketTrends    []string `json:"market_trends"`
	SCQAFormulation SCQA     `json:"scqa_formulation"`
	ExpertDirective string   `json:"expert_directive"`
}

// Scout runs the search-then-synthesize pipeline through a generation
// backend. All failures are recoverable: a nil report means the round
// proceeds without augmentation.
type Scout struct {
	router *provider.Router
	model  string
	logger *zap.Logger
}

// New creates a Scout bound to a model on the provider router.
func New(router *provider.Router, model string, logger *zap.Logger) *Scout {
	return &Scout{router: router, model: model, logger: logger}
}

// Run produces a report for userInput, or nil when the evidence or the
// synthesis is unusable.
func (s *Scout) Run(ctx context.Context, userInput string) *Report {
	findings := s.gather(ctx, userInput)
	if len(findings) < 20 {
		s.logger.Warn("scout: insufficient search findings, skipping")
		return nil
	}

	report := s.synthesize(ctx, userInput, findings)
	if report == nil {
		return nil
	}
	if len(report.MarketTrends) == 0 || report.ExpertDirective == "" {
		s.logger.Warn("scout: report missing required fields")
		return nil
	}
	s.logger.Info("scout report generated",
		zap.Int("trends", len(report.MarketTrends)),
		zap.String("directive", truncate(report.ExpertDirective, 60)))
	return report
}

// gather asks for trend evidence with live search grounding, falling back
// to model knowledge when grounding fails.
func (s *Scout) gather(ctx context.Context, userInput string) string {
	groundedPrompt := fmt.Sprintf(`What are the top 3 industry trends for 2026 related to: %q? Provide concise, factual trends with brief explanations. Focus on market data, technology shifts, and consumer behavior changes.`, userInput)

	resp, err := s.router.Route(ctx, "scout", &provider.ChatRequest{
		Model:          s.model,
		Messages:       []provider.Message{{Role: "user", Content: groundedPrompt}},
		MaxTokens:      500,
		Temperature:    0.3,
		GroundedSearch: true,
	})
	if err == nil && resp.Content != "" {
		return resp.Content
	}
	s.logger.Warn("scout: search grounding failed, using model knowledge", zap.Error(err))

	fallbackPrompt := fmt.Sprintf(`Based on your knowledge, what are the top 3 industry trends for 2026 related to: %q? Be specific and factual. Focus on real market data, technology shifts, and consumer behavior.`, userInput)
	resp, err = s.router.Route(ctx, "scout", &provider.ChatRequest{
		Model:       s.model,
		Messages:    []provider.Message{{Role: "user", Content: fallbackPrompt}},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		s.logger.Warn("scout: knowledge fallback failed", zap.Error(err))
		return ""
	}
	return resp.Content
}

func (s *Scout) synthesize(ctx context.Context, userInput, findings string) *Report {
	prompt := fmt.Sprintf(`You are the Context Scout (הגשש ההקשרי). Your job is to synthesize web search findings into a structured Ground Truth report.

User's input: %q

Search findings:
%s

Return ONLY a valid JSON object with this exact structure (no markdown, no code fences):
{
  "market_trends": ["Trend 1 description", "Trend 2 description", "Trend 3 description"],
  "scqa_formulation": {
    "Situation": "Current state of the market/industry in Hebrew",
    "Complication": "The core challenge or disruption in Hebrew",
    "Question": "The key strategic question in Hebrew",
    "Answer_Hypothesis": "Initial strategic direction in Hebrew"
  },
  "expert_directive": "Specific focus instruction for the expert cabinet in Hebrew"
}

Rules:
- market_trends: exactly 3 trends, each MAX 15 words in Hebrew
- scqa_formulation: all fields in Hebrew, each MAX 20 words
- expert_directive: one short sentence in Hebrew, MAX 15 words
- Keep total output compact - under 500 characters
- Output MUST be pure JSON, no explanation, no markdown`, userInput, findings)

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := s.router.Route(ctx, "scout", &provider.ChatRequest{
			Model:        s.model,
			Messages:     []provider.Message{{Role: "user", Content: prompt}},
			MaxTokens:    4000,
			Temperature:  0.2,
			JSONResponse: true,
		})
		if err != nil {
			s.logger.Warn("scout: synthesis attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		report, err := ParseReport(resp.Content)
		if err != nil {
			s.logger.Warn("scout: synthesis produced invalid JSON", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if len(report.MarketTrends) > 0 {
			return report
		}
		s.logger.Warn("scout: incomplete report, retrying", zap.Int("attempt", attempt+1))
	}
	return nil
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// ParseReport decodes a synthesis reply, tolerating code fences and
// applying a repair pass (control chars, trailing commas) before giving up.
func ParseReport(raw string) (*Report, error) {
	cleaned := strings.TrimSpace(
		strings.ReplaceAll(strings.ReplaceAll(raw, "```json", ""), "```", ""))

	var report Report
	if err := json.Unmarshal([]byte(cleaned), &report); err == nil {
		return &report, nil
	}

	repaired := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			if r == '\n' || r == '\r' || r == '\t' {
				return r
			}
			return -1
		}
		return r
	}, cleaned)
	repaired = strings.TrimSpace(trailingCommaRe.ReplaceAllString(repaired, "$1"))

	if err := json.Unmarshal([]byte(repaired), &report); err != nil {
		return nil, fmt.Errorf("parse scout report: %w", err)
	}
	return &report, nil
}

// BuildInjection renders a report as the ground-truth prompt block.
func BuildInjection(report *Report) string {
	var trends strings.Builder
	for i, t := range report.MarketTrends {
		fmt.Fprintf(&trends, "%d. %s\n", i+1, t)
	}
	return fmt.Sprintf(`
[דו"ח הגשש ההקשרי - עובדות בלתי ניתנות לשינוי]
[סטטוס: GROUND TRUTH - אסור לסתור, לשנות, או להתעלם מנתונים אלו]

מגמות שוק 2026:
%s
ניתוח SCQA:
מצב: %s
סיבוך: %s
שאלה: %s
השערת כיוון: %s

הנחיית מיקוד לקבינט: %s

[איסור חיפוש נוסף]
כל המומחים חייבים לעבוד אך ורק בגבולות הדו"ח הזה. אסור להמציא מגמות, נתונים, או עובדות שאינם מופיעים כאן. הדו"ח הוא מקור האמת היחיד לסבב זה.
`,
		trends.String(),
		report.SCQAFormulation.Situation,
		report.SCQAFormulation.Complication,
		report.SCQAFormulation.Question,
		report.SCQAFormulation.AnswerHypothesis,
		report.ExpertDirective)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
