package memory

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ledgerPatterns capture imperative acquisition phrases and quantity-unit
// spans from an operational turn. Over-inclusive by design: the ledger is
// a best-effort fact list, not a parser.
var ledgerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)רכוש\s+(.+?)(?:\.|,|$)`),
	regexp.MustCompile(`(?m)השק\s+(.+?)(?:\.|,|$)`),
	regexp.MustCompile(`(?m)התקן\s+(.+?)(?:\.|,|$)`),
	regexp.MustCompile(`(?m)כתוב\s+(.+?)(?:\.|,|$)`),
	regexp.MustCompile(`(\d+\s*(?:גרם|ג'|מ"ל|ליטר|ק"ג|יחידות|קילו)\s+[^.,]+)`),
}

// ExtractLedgerItems returns the deduplicated acquisition items found in
// an operational expert's turn.
func ExtractLedgerItems(text string) []string {
	seen := make(map[string]bool)
	var items []string
	for _, pattern := range ledgerPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if len(match) < 2 {
				continue
			}
			item := strings.TrimSpace(match[1])
			n := len([]rune(item))
			if n <= 3 || n >= 200 {
				continue
			}
			if !seen[item] {
				seen[item] = true
				items = append(items, item)
			}
		}
	}
	return items
}

// RecordLedger extracts and persists acquisition items from an operational
// turn. Failures never block the round.
func (s *Service) RecordLedger(ctx context.Context, operationalText, userMessage string) int {
	items := ExtractLedgerItems(operationalText)
	stored := 0
	for _, item := range items {
		if _, err := s.store.AddAcquiredItem(ctx, item, "operational", userMessage); err != nil {
			s.logger.Warn("ledger item store failed", zap.Error(err))
			continue
		}
		stored++
	}
	if stored > 0 {
		s.logger.Info("ledger items recorded", zap.Int("count", stored))
	}
	return stored
}
