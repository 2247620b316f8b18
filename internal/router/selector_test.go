package router

import (
	"strings"
	"testing"

	"github.com/nidhogg/analysis-room/internal/expert"
)

func expertsEqual(got, want []expert.ID) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSelectFallbackPair(t *testing.T) {
	sel := Select("שלום")
	want := []expert.ID{expert.Ontological, expert.Operational}
	if !expertsEqual(sel.Experts, want) {
		t.Errorf("got %v, want %v", sel.Experts, want)
	}
	if sel.SummaryMode {
		t.Error("fallback pair should not trigger summary mode")
	}
}

func TestSelectSafetyOverride(t *testing.T) {
	sel := Select("אני רוצה לפגוע בעצמי")
	if !sel.SafetyOverride {
		t.Fatal("expected safety override")
	}
	want := []expert.ID{expert.Crisis, expert.Operational}
	if !expertsEqual(sel.Experts, want) {
		t.Errorf("got %v, want %v", sel.Experts, want)
	}
}

func TestSelectCrisisHardTrigger(t *testing.T) {
	sel := Select("יש לי תוכנית עסקית חדשה")
	found := false
	for _, id := range sel.Experts {
		if id == expert.Crisis {
			found = true
		}
	}
	if !found {
		t.Errorf("business plan should pull in the crisis manager, got %v", sel.Experts)
	}
}

func TestSelectDirectCall(t *testing.T) {
	sel := Select("שועל, מה השלב הבא?")
	if len(sel.DirectCalls) != 1 || sel.DirectCalls[0] != expert.Operational {
		t.Errorf("got direct calls %v, want [operational]", sel.DirectCalls)
	}
}

func TestSelectMinimumCardinality(t *testing.T) {
	// A message matching only the operational expert gets the ontological
	// engineer added as counterpart.
	sel := Select("צעדים")
	if len(sel.Experts) < 2 {
		t.Fatalf("got %d experts, want at least 2", len(sel.Experts))
	}
}

func TestSelectCanonicalOrder(t *testing.T) {
	sel := Select("משבר עם תוכנית יצירתית וניתוח נתונים")
	order := map[expert.ID]int{}
	for i, id := range expert.CanonicalOrder {
		order[id] = i
	}
	for i := 1; i < len(sel.Experts); i++ {
		if order[sel.Experts[i-1]] > order[sel.Experts[i]] {
			t.Errorf("experts not in conductor order: %v", sel.Experts)
		}
	}
	if len(sel.Experts) == 4 && !sel.SummaryMode {
		t.Error("four experts should trigger summary mode")
	}
}

func TestSelectExplicitOnlyOverride(t *testing.T) {
	sel := Select("הפעל רק את השועל המבצעי")
	if !sel.Override {
		t.Fatal("expected explicit override")
	}
	if !expertsEqual(sel.Experts, []expert.ID{expert.Operational}) {
		t.Errorf("got %v, want [operational]", sel.Experts)
	}
}

func TestSelectExplicitSuppressOverride(t *testing.T) {
	sel := Select("ענה בלי מנהל המשברים")
	if !sel.Override {
		t.Fatal("expected explicit override")
	}
	for _, id := range sel.Experts {
		if id == expert.Crisis {
			t.Errorf("crisis manager should be excluded, got %v", sel.Experts)
		}
	}
}

func TestScrubRemovesMetaLanguage(t *testing.T) {
	got := Scrub("יש שגיאת מערכת בפרוטוקול גרסה 2 אבל השאלה שלי על גלידה")
	if got == "" {
		t.Fatal("scrub should not empty a message with real content")
	}
	for _, banned := range []string{"שגיאת מערכת", "פרוטוקול"} {
		if strings.Contains(got, banned) {
			t.Errorf("scrubbed message still contains %q: %q", banned, got)
		}
	}
}
