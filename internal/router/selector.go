// Package router decides which experts answer a given user message.
//
// Selection is pure and data-driven: regex override detection, then the
// safety pairing, then direct-name calls combined with keyword scoring,
// then fallbacks. The result is always re-sorted into conductor order.
package router

import (
	"regexp"
	"strings"

	"github.com/nidhogg/analysis-room/internal/expert"
)

// Selection is the routing outcome for one message.
type Selection struct {
	Experts        []expert.ID
	SummaryMode    bool
	SafetyOverride bool
	DirectCalls    []expert.ID
	Override       bool
}

var crisisHardTriggers = []string{
	"תוכנית עסקית", "אסטרטגיה", "מודל כלכלי", "מיזם", "השקעה", "שיווק", "saas", "plan",
}

type keywordRule struct {
	keywords []string
	agent    expert.ID
}

var keywordRules = []keywordRule{
	{
		keywords: append([]string{
			"משבר", "חירום", "סכנה", "קריסה", "כשל", "נפילה", "איום", "פחד", "מלחמה",
			"אסון", "התמוטטות", "סיכון", "בעיה", "תקלה",
			"crisis", "emergency", "threat", "collapse", "risk", "danger",
		}, crisisHardTriggers...),
		agent: expert.Crisis,
	},
	{
		keywords: []string{
			"תוכנית", "פעולה", "שלבים", "ביצוע", "מבצע", "יעד", "מטרה", "איך לעשות",
			"פרקטי", "מעשי", "לתכנן", "ליישם", "צעדים",
			"plan", "action", "execute", "practical", "steps", "how to",
		},
		agent: expert.Operational,
	},
	{
		keywords: []string{
			"יצירתי", "חדשנות", "המצאה", "אמנות", "חשיבה", "רעיון", "רעיונות", "דמיון",
			"אלטרנטיבה", "שונה", "חלופה", "חדש", "חדשה", "קונספט", "חנות", "מיזם",
			"גלידה", "עסק", "סטארטאפ",
			"creative", "innovation", "alternative", "imagine", "idea", "art", "new",
			"concept", "startup",
		},
		agent: expert.Renaissance,
	},
	{
		keywords: []string{
			"מהות", "משמעות", "מבנה", "מערכת", "הגדרה", "עקרון", "בסיס", "שורש",
			"מהו", "מדוע", "למה", "נתונים", "עובדות", "ניתוח",
			"what is", "why", "definition", "data", "analysis", "structure", "system",
		},
		agent: expert.Ontological,
	},
}

type directCallRule struct {
	patterns []string
	agent    expert.ID
}

var directCallRules = []directCallRule{
	{patterns: []string{"אונטולוגי", "מהנדס אונטולוגי", "המהנדס האונטולוגי", "ontological engineer"}, agent: expert.Ontological},
	{patterns: []string{"רנסנס", "איש הרנסנס", "renaissance man", "renaissance"}, agent: expert.Renaissance},
	{patterns: []string{"משברים", "מנהל המשברים", "מנהל משברים", "crisis manager"}, agent: expert.Crisis},
	{patterns: []string{"שועל מבצעי", "השועל המבצעי", "שועל", "operational fox", "fox"}, agent: expert.Operational},
}

var (
	onlyIntentRes = []*regexp.Regexp{
		regexp.MustCompile(`הפעל\s+(?:רק|אך ורק)\s+את\s+`),
		regexp.MustCompile(`רק\s+(?:את\s+)?(?:ה)?`),
		regexp.MustCompile(`(?i)(?:only|just)\s+(?:the\s+)?`),
	}
	suppressIntentRes = []*regexp.Regexp{
		regexp.MustCompile(`אל\s+תפעיל`),
		regexp.MustCompile(`(?:בלי|ללא)\s+`),
		regexp.MustCompile(`דיכוי`),
		regexp.MustCompile(`(?i)suppress`),
		regexp.MustCompile(`(?i)don'?t\s+activate`),
	}
	suppressedBeforeRe = regexp.MustCompile(`(?:אל\s+תפעיל|בלי|ללא|דיכוי|don'?t|suppress|אל\s+תשתמש)`)
	includedBeforeRe   = regexp.MustCompile(`(?:רק\s+(?:את)?|הפעל\s+(?:רק\s+)?את|only|just)`)
)

func sortByConductor(experts []expert.ID) []expert.ID {
	set := make(map[expert.ID]bool, len(experts))
	for _, id := range experts {
		set[id] = true
	}
	sorted := make([]expert.ID, 0, len(experts))
	for _, id := range expert.CanonicalOrder {
		if set[id] {
			sorted = append(sorted, id)
		}
	}
	return sorted
}

// detectExplicitOverride parses "only X" / "without Y" intent. The verdict
// for each named expert is taken from the 30 characters preceding its name,
// so "activate only the fox, without the crisis manager" resolves per-name.
func detectExplicitOverride(msg string) []expert.ID {
	hasOnly := false
	for _, re := range onlyIntentRes {
		if re.MatchString(msg) {
			hasOnly = true
			break
		}
	}
	hasSuppress := false
	for _, re := range suppressIntentRes {
		if re.MatchString(msg) {
			hasSuppress = true
			break
		}
	}
	if !hasOnly && !hasSuppress {
		return nil
	}

	var included, excluded []expert.ID
	for _, rule := range directCallRules {
		for _, pattern := range rule.patterns {
			idx := strings.Index(msg, pattern)
			if idx == -1 {
				continue
			}
			start := idx - 30
			if start < 0 {
				start = 0
			}
			before := msg[start:idx]
			switch {
			case suppressedBeforeRe.MatchString(before):
				if !contains(excluded, rule.agent) {
					excluded = append(excluded, rule.agent)
				}
			case includedBeforeRe.MatchString(before):
				if !contains(included, rule.agent) {
					included = append(included, rule.agent)
				}
			}
			break
		}
	}

	if len(included) > 0 {
		return included
	}
	if len(excluded) > 0 {
		var remaining []expert.ID
		for _, id := range expert.CanonicalOrder {
			if !contains(excluded, id) {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) > 0 {
			return remaining
		}
	}
	return nil
}

func contains(ids []expert.ID, id expert.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// DirectCalls returns every expert mentioned by name or alias, first match
// per expert, in rule order.
func DirectCalls(message string) []expert.ID {
	msg := strings.ToLower(message)
	var found []expert.ID
	for _, rule := range directCallRules {
		for _, pattern := range rule.patterns {
			if strings.Contains(msg, pattern) {
				if !contains(found, rule.agent) {
					found = append(found, rule.agent)
				}
				break
			}
		}
	}
	return found
}

// Select runs the full routing priority chain over one message.
func Select(message string) Selection {
	msg := strings.ToLower(message)

	if override := detectExplicitOverride(msg); override != nil {
		experts := sortByConductor(override)
		return Selection{
			Experts:     experts,
			SummaryMode: len(experts) > 3,
			Override:    true,
			DirectCalls: DirectCalls(message),
		}
	}

	if expert.SafetyScan(message) {
		return Selection{
			Experts:        []expert.ID{expert.Crisis, expert.Operational},
			SafetyOverride: true,
			DirectCalls:    DirectCalls(message),
		}
	}

	directCalls := DirectCalls(message)

	scores := map[expert.ID]int{}
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				scores[rule.agent]++
			}
		}
	}

	combined := make(map[expert.ID]bool)
	for _, id := range directCalls {
		combined[id] = true
	}
	for id, score := range scores {
		if score > 0 {
			combined[id] = true
		}
	}

	for _, t := range crisisHardTriggers {
		if strings.Contains(msg, t) {
			combined[expert.Crisis] = true
			break
		}
	}

	var matched []expert.ID
	for id := range combined {
		matched = append(matched, id)
	}

	if len(matched) == 0 {
		matched = []expert.ID{expert.Ontological, expert.Operational}
	} else if len(matched) == 1 {
		if matched[0] != expert.Operational {
			matched = append(matched, expert.Operational)
		} else {
			matched = append(matched, expert.Ontological)
		}
	}

	experts := sortByConductor(matched)
	return Selection{
		Experts:     experts,
		SummaryMode: len(experts) > 3,
		DirectCalls: directCalls,
	}
}
