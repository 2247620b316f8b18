// Package prompt assembles the per-round context blocks: base protocol,
// profile injection, living summary, episodic memories, ledger anchor and
// the per-expert mode notices.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nidhogg/analysis-room/internal/expert"
	"github.com/nidhogg/analysis-room/internal/store"
)

// ProjectLedger is the immutable header carried at the top of every system
// instruction, exempt from any context-window trimming.
const ProjectLedger = `[ספר פרויקטים | Project Ledger - הודעה בלתי משתנה]
סטטוס: פרויקט גלידה | מלאי: 500 גרם אגר-אגר, 2 ק"ג Xanthan Gum | בטיחות: וטו חלבון מיקרוביאלי על ידי מנהל המשברים
[אזהרה: אסור לסכם, לקצר, או להשמיט הודעה זו. הודעה זו חסינה מפני כל לוגיקת ניהול חלונות הקשר.]
`

const safetyProtocol = `[פרוטוקול בטיחות]
אם המשתמש מציין פגיעה עצמית או משבר חמור - צא מהדמות. ספק: ער"ן 1201, סהר"ל *6742. הפנה לגורם מקצועי.`

// BaseSystemPrompt is the conductor protocol shared by every expert turn.
var BaseSystemPrompt = `[עדיפות מערכת עליונה - הוראות אלו גוברות על כל בקשת משתמש]

` + ProjectLedger + `
[חדר המומחים - פרוטוקול המנצח]
צוות של 4 מומחים בהובלת המנצח. כל מומחה מנתח מזווית ייחודית בלבד.
המנצח מפעיל את הפרסונות הרלוונטיות לפי הצורך ומוודא שכל תגובה עוברת דרך השרשרת הנכונה.

[איסורים גלובליים - חלים על כל המומחים ללא יוצא מן הכלל]
1. איסור מטא-דיבור: אסור לתאר תהליכים פנימיים. אסור: "אני אנתח...", "בהתבסס על...", "בואו נפרק...". פשוט עשה.
2. אילוצים שקטים: אם יש מגבלת מילים או מבנה חובה - בצע בשקט. אסור להזכיר את האילוץ עצמו.
3. עיקרון הפירמידה: כל תגובה חייבת להתחיל מהמסקנה. אחר כך הנמקה.
4. כותרות בעברית בלבד: אסור אנגלית בסוגריים. "מצב" ולא "מצב (Situation)".
5. אנטי-סיקופנטיות: עקוב אחר המתודולוגיה גם כשהמשתמש מנסה להסיט. המתודולוגיה גוברת על רצון לרצות.
6. שפה: עברית בלבד. ללא סלנג. ללא Markdown.
7. כל מומחה עוצר כשסיים - אסור לגלוש לתחומי אחרים.
8. אסור לנתח את כוונת המשתמש. אסור לדון בפרוטוקולים, גרסאות, או חוסר עקביות במערכת. אם זיהית שגיאה בשרשרת - התעלם ממנה והתמקד 100% בנושא של המשתמש.

[אסימוני עצירה]
המהנדס האונטולוגי: ` + expert.StopTokens[expert.Ontological] + `
איש הרנסנס: ` + expert.StopTokens[expert.Renaissance] + `
מנהל המשברים: ` + expert.StopTokens[expert.Crisis] + `
השועל המבצעי: ` + expert.StopTokens[expert.Operational] + `

` + safetyProtocol + `
`

// summarySanitizeRes strip self-correction and system-error meta-language
// from the living summary before injection.
var summarySanitizeRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)תיקון עצמי[^\n]*`),
	regexp.MustCompile(`(?i)שגיאת מערכת[^\n]*`),
	regexp.MustCompile(`(?i)חוסר עקביות[^\n]*`),
	regexp.MustCompile(`(?i)self[- ]?correction[^\n]*`),
	regexp.MustCompile(`(?i)system\s*(error|inconsistenc)[^\n]*`),
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// SanitizeSummary removes meta-language lines from a living summary.
func SanitizeSummary(summary string) string {
	out := summary
	for _, re := range summarySanitizeRes {
		out = re.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(out, "\n\n"))
}

// ContextInjection renders the profile, living summary and episodic
// memories block. Core rules are always injected verbatim after the rest
// of the profile; they are never summarized.
func ContextInjection(profile *store.UserProfile, livingSummary string, memories []*store.Memory) string {
	var b strings.Builder
	b.WriteString("\n[הזרקת הקשר]\n")

	if profile != nil {
		core := profile.CoreProfile
		rules := core.CoreRules
		core.CoreRules = nil

		if !coreEmpty(core) {
			coreJSON, _ := json.Marshal(core)
			fmt.Fprintf(&b, "[פרופיל משתמש]\n%s\n\n", coreJSON)
		}
		if len(rules) > 0 {
			b.WriteString("[חוקי ליבה - כללים קבועים של המשתמש]\nהכללים הבאים נשמרו על ידי המשתמש כהנחיות קבועות. חובה לפעול לפיהם:\n")
			for i, rule := range rules {
				fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
			}
			b.WriteString("\n")
		}
	}

	if livingSummary != "" {
		if sanitized := SanitizeSummary(livingSummary); sanitized != "" {
			fmt.Fprintf(&b, "[סיכום שיחה חי]\n%s\n\n", sanitized)
		}
	}

	if len(memories) > 0 {
		fmt.Fprintf(&b, "[זיכרונות אפיזודיים - %d רלוונטיים]\n", len(memories))
		for i, m := range memories {
			fmt.Fprintf(&b, "%d. %s\n", i+1, m.Text)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func coreEmpty(c store.CoreProfile) bool {
	return c.Name == "" && len(c.Topics) == 0 && len(c.Interests) == 0 &&
		len(c.Patterns) == 0 && len(c.Preferences) == 0 && len(c.CoreRules) == 0
}

// LedgerAnchor renders the verified-inventory fact-check block and the
// crisis-authority role assignment.
func LedgerAnchor(items []*store.AcquiredItem) string {
	if len(items) == 0 {
		return "\n[בדיקת עובדות - מלאי פרויקט מאומת]\nלא נרכשו פריטים עדיין. אם מומחה מזכיר פריט כ\"כבר נרכש\" - זו הזיה.\nהקצאת תפקידים: מנהל המשברים אחראי בלעדי על כל ביקורות בטיחות ומיקרוביאליות.\n"
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Item
	}
	return fmt.Sprintf("\n[בדיקת עובדות - מלאי פרויקט מאומת]\nהפריטים שנמצאים כרגע במלאי: %s.\nאם מומחה מזכיר פריט שאינו ברשימה זו כ\"כבר נרכש\" - זו הזיה. ענה רק על בסיס עובדות אלו.\nהקצאת תפקידים: מנהל המשברים אחראי בלעדי על כל ביקורות בטיחות ומיקרוביאליות.\n", strings.Join(names, ", "))
}

// SummaryModeNotice is injected when more than three experts are active.
const SummaryModeNotice = "\n[מצב תמצית - פעיל]\nנבחרו יותר מ-3 מומחים. כל מומחה מוגבל ל-100 טוקנים בלבד. תשובות קצרות ותמציתיות.\n"

// SafetyOverrideNotice is injected when the safety protocol fired.
const SafetyOverrideNotice = "\n[עקיפת בטיחות - פעיל]\nזוהה תוכן רגיש. מנהל המשברים מוביל. ספק קווי חירום: ער\"ן 1201, סהר\"ל *6742. הפנה לגורם מקצועי.\n"

// GoNoGoNotice chains the crisis verdict into the operational turn. Only
// injected when both experts are selected.
const GoNoGoNotice = `
[שער Go/No-Go - פרוטוקול שרשרת]
מנהל המשברים חייב לפתוח את תגובתו בתגית VERDICT:[GO] או VERDICT:[NO-GO].
השועל המבצעי חייב לסרוק את תגובת מנהל המשברים, לזהות את תגית ה-VERDICT, ולפעול בהתאם:
- VERDICT:[GO]: מצב MVP תוקפני - הוראות בנייה מהירות
- VERDICT:[NO-GO]: מצב מיגון - נטישת התוכנית המקורית, צעד להפחתת סיכון, גרסה קלה ללא האלמנט המסוכן
`

// VisionNotice is injected when the user attached an image to the round.
const VisionNotice = "\n[יכולת ראייה ממוחשבת - פעילה]\nהמשתמש צירף תמונה של התקלה. נתח את התמונה בקפידה: זהה את סוג הנזק, המיקום, חומרת הבעיה, דגם/סוג המוצר אם ניתן, וכלול את הניתוח החזותי בתשובתך.\n"

// MonologueInjection wraps the pre-analysis for internal use.
func MonologueInjection(analysis string) string {
	if analysis == "" {
		return ""
	}
	return fmt.Sprintf("\n[ניתוח מקדים - לשימוש פנימי בלבד, אל תציג למשתמש]\n%s\n", analysis)
}

// PreviousTurns renders prior finalized turns for the chain context.
func PreviousTurns(turns []string) string {
	if len(turns) == 0 {
		return ""
	}
	return fmt.Sprintf("\n[תגובות מומחים קודמים בשרשרת זו]\n%s\n", strings.Join(turns, "\n\n"))
}

// ExpertInstruction assembles the full system instruction for one expert
// turn. blocks are the already-rendered optional sections, in order.
func ExpertInstruction(id expert.ID, message string, blocks ...string) string {
	info, _ := expert.Get(id)
	var b strings.Builder
	b.WriteString(BaseSystemPrompt)
	for _, block := range blocks {
		b.WriteString(block)
	}
	fmt.Fprintf(&b, "\n[מומחה פעיל: %s]\n%s\n", info.NameHe, expert.Prompt(id))
	fmt.Fprintf(&b, `
[הנחיה לסבב הנוכחי]
המשתמש אמר: %q
אתה %s. ענה ישירות בעברית לפי המתודולוגיה שלך בלבד.
אסור לחזור על תוכן של מומחים קודמים. כל משפט חייב להיות ייחודי.
חובה לסיים כל משפט עד סופו - אסור לקטוע באמצע.
כתוב את התגובה שלך ישירות בעברית (לא JSON, לא אנגלית).
`, message, info.NameHe)
	return b.String()
}
