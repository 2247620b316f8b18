package router

import (
	"regexp"
	"strings"
)

// scrubRes removes protocol/meta vocabulary from user input before routing
// and context assembly, so the experts never see system self-talk.
var scrubRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)פרוטוקול[ים]?\s*`),
	regexp.MustCompile(`(?i)גרס[הא]\s*\d*`),
	regexp.MustCompile(`(?i)מצב מערכת`),
	regexp.MustCompile(`(?i)שגיאת מערכת`),
	regexp.MustCompile(`(?i)חוסר עקביות`),
	regexp.MustCompile(`(?i)system\s*(status|error|protocol|version)`),
	regexp.MustCompile(`(?i)self[- ]?correction`),
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// Scrub strips meta-language from a message. The scrubbed form is what the
// round routes, prompts and persists; callers fall back to the raw text
// only when scrubbing leaves nothing.
func Scrub(message string) string {
	out := message
	for _, re := range scrubRes {
		out = re.ReplaceAllString(out, "")
	}
	out = multiSpaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
