package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/nidhogg/analysis-room/internal/expert"
)

func TestCleanTextStripsMarkdown(t *testing.T) {
	got := CleanText("**מסקנה**: המהלך נכון. ראו `קוד` ועוד---")
	if strings.Contains(got, "**") || strings.Contains(got, "`") || strings.Contains(got, "---") {
		t.Errorf("markdown survived cleaning: %q", got)
	}
}

func TestCleanTextTagsHeadings(t *testing.T) {
	got := CleanText("# כותרת ראשית\nתוכן של ממש כאן.")
	if !strings.Contains(got, "【H】כותרת ראשית") {
		t.Errorf("heading not tagged: %q", got)
	}
}

func TestCleanTextDropsTrailingFragment(t *testing.T) {
	got := CleanText("המשפט הראשון הושלם כראוי. ועכשיו קט")
	if !strings.HasSuffix(got, ".") {
		t.Errorf("trailing fragment kept: %q", got)
	}
}

func TestCleanTextHebrewQuoteEnder(t *testing.T) {
	got := CleanText("המסקנה מסומנת ב״ציטוט״ אב")
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8 after trim: %q", got)
	}
	if !strings.HasSuffix(got, "״") {
		t.Errorf("fragment after gershayim kept: %q", got)
	}
}

func TestCleanTextKeepsLongTail(t *testing.T) {
	tail := "וזה המשך ארוך מאוד שלא נחתך כי הוא מעל הסף"
	got := CleanText("משפט ראשון. " + tail)
	if !strings.Contains(got, tail) {
		t.Errorf("long unterminated tail was dropped: %q", got)
	}
}

func TestIsRepetitive(t *testing.T) {
	prev := []string{"הפתרון המרכזי דורש בדיקת שוק מקיפה והשוואת מחירים יסודית"}

	if !IsRepetitive("הפתרון המרכזי דורש בדיקת שוק מקיפה והשוואת מחירים", prev) {
		t.Error("near-duplicate not flagged")
	}
	if IsRepetitive("נושא אחר לגמרי עם תוכן עצמאי ושונה בתכלית", prev) {
		t.Error("novel text flagged as repetitive")
	}
	if IsRepetitive("כל מילה כאן קצרה", nil) {
		t.Error("no prior turns should never be repetitive")
	}
}

func TestApplyVetoRedactsForNonCrisis(t *testing.T) {
	text := "כדאי להשתמש בחלבונים מיקרוביאליים במתכון"
	got, vetoed := ApplyVeto(text, expert.Renaissance)
	if !vetoed {
		t.Fatal("veto pattern not detected")
	}
	if strings.Contains(got, "מיקרוביאליים") {
		t.Errorf("vetoed span survived: %q", got)
	}
	if !strings.Contains(got, vetoMarker) {
		t.Errorf("marker missing: %q", got)
	}
}

func TestApplyVetoExemptsCrisisManager(t *testing.T) {
	text := "אני אוסר על שימוש בחלבונים מיקרוביאליים"
	got, vetoed := ApplyVeto(text, expert.Crisis)
	if vetoed || got != text {
		t.Errorf("crisis manager text was altered: %q", got)
	}
}

func TestEnforceStopTokenTruncates(t *testing.T) {
	token := expert.StopTokens[expert.Ontological]
	got := EnforceStopToken("ניתוח הושלם. "+token+" טקסט זליגה", expert.Ontological)
	if !strings.HasSuffix(got, token) {
		t.Errorf("text after token not truncated: %q", got)
	}
}

func TestEnforceStopTokenAppends(t *testing.T) {
	token := expert.StopTokens[expert.Operational]
	got := EnforceStopToken("תוכנית פעולה בשלושה צעדים.", expert.Operational)
	if !strings.HasSuffix(got, token) {
		t.Errorf("missing token not appended: %q", got)
	}
}
