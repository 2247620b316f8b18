package orchestrator

import (
	"regexp"
	"strings"

	"github.com/nidhogg/analysis-room/internal/expert"
)

var (
	boldRe      = regexp.MustCompile(`\*{1,3}`)
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	codeFenceRe = regexp.MustCompile("```[\\s\\S]*?```")
	inlineRe    = regexp.MustCompile("`([^`]*)`")
	hruleRe     = regexp.MustCompile(`---+`)
	ellipsisRe  = regexp.MustCompile(`\.{3,}`)
	multiNLRe   = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes raw model output for display and speech: markdown
// markup stripped, headings tagged with 【H】, trailing sentence fragments
// under 15 characters dropped.
func CleanText(raw string) string {
	t := raw
	t = boldRe.ReplaceAllString(t, "")
	t = headingRe.ReplaceAllString(t, "【H】$1")
	t = codeFenceRe.ReplaceAllString(t, "")
	t = inlineRe.ReplaceAllString(t, "$1")
	t = hruleRe.ReplaceAllString(t, "")
	t = ellipsisRe.ReplaceAllString(t, "")
	t = multiNLRe.ReplaceAllString(t, "\n\n")
	t = strings.TrimSpace(t)

	// Cut boundary is byte index + ender length so multi-byte enders
	// (the Hebrew gershayim) never split mid-rune.
	cut := -1
	for _, end := range []string{".", "!", "?", "״"} {
		if idx := strings.LastIndex(t, end); idx != -1 && idx+len(end) > cut {
			cut = idx + len(end)
		}
	}
	if cut > 0 && cut < len(t) {
		trailing := strings.TrimSpace(t[cut:])
		if n := len([]rune(trailing)); n > 0 && n < 15 {
			t = strings.TrimSpace(t[:cut])
		}
	}
	return t
}

// IsRepetitive reports whether text overlaps more than 60% with any prior
// turn, counting words longer than three runes.
func IsRepetitive(text string, previous []string) bool {
	currWords := longWords(text)
	if len(currWords) == 0 {
		return false
	}
	for _, prev := range previous {
		prevWords := longWords(prev)
		if len(prevWords) == 0 {
			continue
		}
		prevSet := make(map[string]bool, len(prevWords))
		for _, w := range prevWords {
			prevSet[w] = true
		}
		overlap := 0
		for _, w := range currWords {
			if prevSet[w] {
				overlap++
			}
		}
		if float64(overlap)/float64(len(currWords)) > 0.6 {
			return true
		}
	}
	return false
}

func longWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// vetoMarker replaces content the crisis manager has vetoed.
const vetoMarker = "[נחסם: וטו בטיחות מנהל המשברים]"

var (
	hallucinationRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)חלבונים מיקרוביאליים`),
		regexp.MustCompile(`(?i)microbial\s*proteins?`),
	}
	vetoRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)חלבונ(?:ים)?\s*מיקרוביאל(?:י|יים|ית)`),
		regexp.MustCompile(`(?i)microbial\s*proteins?`),
	}
)

// ApplyVeto redacts vetoed spans for every expert except the crisis
// manager, who retains authority to discuss them. Returns the possibly
// rewritten text and whether a redaction happened.
func ApplyVeto(text string, id expert.ID) (string, bool) {
	if id == expert.Crisis {
		return text, false
	}
	matched := false
	for _, re := range hallucinationRes {
		if re.MatchString(text) {
			matched = true
			break
		}
	}
	if !matched {
		return text, false
	}
	for _, re := range vetoRes {
		text = re.ReplaceAllString(text, vetoMarker)
	}
	return text, true
}

// EnforceStopToken truncates everything after the expert's stop token, or
// appends the token when the model omitted it.
func EnforceStopToken(text string, id expert.ID) string {
	token := expert.StopTokens[id]
	if token == "" {
		return text
	}
	if idx := strings.Index(text, token); idx != -1 {
		return text[:idx+len(token)]
	}
	return text + "\n" + token
}
