// Package tts synthesizes Hebrew speech for finalized expert turns.
// Gemini native audio is the primary engine with ElevenLabs as fallback.
package tts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nidhogg/analysis-room/internal/expert"
)

var stopTokenRe = regexp.MustCompile(`\[(?:ONTOLOGY|RENAISSANCE|CRISIS|ARISTOTLE|COACH|FOX)_END\]`)

// StripStopTokens removes chain control tokens before synthesis.
func StripStopTokens(text string) string {
	return strings.TrimSpace(stopTokenRe.ReplaceAllString(text, ""))
}

var (
	sentenceSpaceRe = regexp.MustCompile(`([.!?])(\S)`)
	commaSpaceRe    = regexp.MustCompile(`,(\S)`)
	dashRe          = regexp.MustCompile(`–`)
	multiSpaceRe    = regexp.MustCompile(`\s{2,}`)
)

// PrepareText normalizes punctuation spacing so the engine paces the
// Hebrew naturally.
func PrepareText(text string) string {
	t := sentenceSpaceRe.ReplaceAllString(text, "$1 $2")
	t = commaSpaceRe.ReplaceAllString(t, ", $1")
	t = dashRe.ReplaceAllString(t, " – ")
	t = multiSpaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

var rateMap = map[expert.ID]float64{
	expert.Ontological: 0.9,
	expert.Renaissance: 1.1,
	expert.Crisis:      0.85,
	expert.Operational: 1.15,
}

var pitchMap = map[expert.ID]float64{
	expert.Ontological: -2.0,
	expert.Renaissance: 1.0,
	expert.Crisis:      -4.0,
	expert.Operational: -1.0,
}

var rolePrompts = map[expert.ID]string{
	expert.Ontological: "דבר בקול גברי מבוגר, סמכותי ורגוע, לוגי וקר, בעברית טבעית. הגיית עברית ברורה ומדויקת.",
	expert.Renaissance: "דבר בקול גברי אנרגטי, מעורר השראה וויזואלי, בעברית טבעית. הגיית עברית ברורה ומדויקת.",
	expert.Crisis:      "דבר בקול גברי מבוגר, סקפטי וישיר, כמו מנהל משבר שלא מפחד לומר את האמת, בעברית טבעית. הגיית עברית ברורה ומדויקת.",
	expert.Operational: "דבר בקול גברי חד, תכליתי וצבאי, בעברית טבעית. הגיית עברית ברורה ומדויקת.",
}

// SpeechPrompt builds the full synthesis prompt: role direction plus the
// prosody-wrapped text.
func SpeechPrompt(id expert.ID, prepared string) string {
	rate, ok := rateMap[id]
	if !ok {
		rate = 0.9
	}
	pitch := pitchMap[id]
	pitchStr := fmt.Sprintf("%g", pitch)
	if pitch > 0 {
		pitchStr = "+" + pitchStr
	}
	direction, ok := rolePrompts[id]
	if !ok {
		direction = "אמור בעברית:"
	}
	return fmt.Sprintf("%s\n<prosody rate=\"%g\" pitch=\"%sst\">%s</prosody>", direction, rate, pitchStr, prepared)
}

var allowedVoices = map[string]bool{
	"achernar": true, "achird": true, "algenib": true, "algieba": true,
	"alnilam": true, "aoede": true, "autonoe": true, "callirrhoe": true,
	"charon": true, "despina": true, "enceladus": true, "erinome": true,
	"fenrir": true, "gacrux": true, "iapetus": true, "kore": true,
	"laomedeia": true, "leda": true, "orus": true, "puck": true,
	"pulcherrima": true, "rasalgethi": true, "sadachbia": true,
	"sadaltager": true, "schedar": true, "sulafat": true, "umbriel": true,
	"vindemiatrix": true, "zephyr": true, "zubenelgenubi": true,
}

var fallbackVoices = map[expert.ID]string{
	expert.Ontological: "Charon",
	expert.Renaissance: "Puck",
	expert.Crisis:      "Orus",
	expert.Operational: "Fenrir",
}

// ResolveVoice picks the stored per-conversation voice when it is a known
// prebuilt name, else the expert's default, else Kore.
func ResolveVoice(id expert.ID, stored string) string {
	if stored != "" && allowedVoices[strings.ToLower(stored)] {
		return stored
	}
	if v, ok := fallbackVoices[id]; ok {
		return v
	}
	return "Kore"
}

// Voice is one selectable prebuilt voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog lists the voices exposed to the client picker.
func Catalog() []Voice {
	return []Voice{
		{ID: "Aoede", Name: "Aoede - נשי, רגוע ונעים"},
		{ID: "Charon", Name: "Charon - גברי, חם וסמכותי"},
		{ID: "Fenrir", Name: "Fenrir - גברי, עמוק"},
		{ID: "Kore", Name: "Kore - ניטרלי, רב-תכליתי"},
		{ID: "Puck", Name: "Puck - גברי, אנרגטי וחד"},
		{ID: "Leda", Name: "Leda - נשי, חם"},
		{ID: "Orus", Name: "Orus - גברי, רציני"},
		{ID: "Zephyr", Name: "Zephyr - נשי, קליל"},
	}
}
