package scout

import (
	"strings"
	"testing"
	"time"
)

func TestShouldTrigger(t *testing.T) {
	if !ShouldTrigger("שאלה קצרה") {
		t.Error("short message should trigger")
	}
	if !ShouldTrigger("אחת שתיים שלוש ארבע חמש שש שבע שמונה תשע עשר אחד עשרה שתים עשרה שלוש עשרה יש לי סטארטאפ") {
		t.Error("business keyword should trigger regardless of length")
	}
	long := "מילה אחת ועוד מילה ועוד מילה ועוד מילה ועוד מילה ועוד מילה ועוד מילה ללא שום נושא מסחרי בכלל כאן"
	if ShouldTrigger(long) {
		t.Error("long non-business message should not trigger")
	}
}

func TestParseReportPlainJSON(t *testing.T) {
	raw := `{"market_trends":["א","ב","ג"],"scqa_formulation":{"Situation":"מצב","Complication":"סיבוך","Question":"שאלה","Answer_Hypothesis":"השערה"},"expert_directive":"מיקוד"}`
	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.MarketTrends) != 3 {
		t.Errorf("got %d trends, want 3", len(report.MarketTrends))
	}
	if report.SCQAFormulation.AnswerHypothesis != "השערה" {
		t.Errorf("hypothesis = %q", report.SCQAFormulation.AnswerHypothesis)
	}
}

func TestParseReportStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"market_trends\":[\"מגמה\"],\"expert_directive\":\"מיקוד\"}\n```"
	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ExpertDirective != "מיקוד" {
		t.Errorf("directive = %q", report.ExpertDirective)
	}
}

func TestParseReportRepairsTrailingCommas(t *testing.T) {
	raw := `{"market_trends":["מגמה",],"expert_directive":"מיקוד",}`
	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("repair pass failed: %v", err)
	}
	if len(report.MarketTrends) != 1 {
		t.Errorf("got %d trends, want 1", len(report.MarketTrends))
	}
}

func TestParseReportRejectsGarbage(t *testing.T) {
	if _, err := ParseReport("not json at all"); err == nil {
		t.Error("expected error for non-JSON input")
	}
}

func sampleReport() *Report {
	return &Report{
		MarketTrends:    []string{"מגמה ראשונה", "מגמה שנייה", "מגמה שלישית"},
		ExpertDirective: "להתמקד בשוק הגלידה",
	}
}

func TestCacheHitOnSimilarTopic(t *testing.T) {
	c := NewCache()
	c.Add("פתיחת חנות גלידה טבעונית בתל אביב", sampleReport())

	hit := c.Find("פתיחת חנות גלידה טבעונית בתל אביב")
	if hit == nil {
		t.Fatal("identical topic should hit the cache")
	}
	if hit.Source != "cached" {
		t.Errorf("source = %q, want cached", hit.Source)
	}
}

func TestCacheMissOnDifferentTopic(t *testing.T) {
	c := NewCache()
	c.Add("פתיחת חנות גלידה טבעונית בתל אביב", sampleReport())

	if hit := c.Find("תחזוקת רכב חשמלי בחורף"); hit != nil {
		t.Errorf("unrelated topic hit the cache: %q", hit.Topic)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache()
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Add("פתיחת חנות גלידה טבעונית", sampleReport())

	c.now = func() time.Time { return base.Add(11 * time.Minute) }
	if hit := c.Find("פתיחת חנות גלידה טבעונית"); hit != nil {
		t.Error("expired entry returned")
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache()
	topics := []string{"נושא אחד", "נושא שתיים", "נושא שלוש", "נושא ארבע", "נושא חמש", "נושא שש"}
	for _, topic := range topics {
		c.Add(topic, sampleReport())
	}
	entries := c.Entries()
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	if entries[0].Topic != "נושא שתיים" {
		t.Errorf("oldest entry not evicted, first is %q", entries[0].Topic)
	}
}

func TestBuildInjectionContainsReport(t *testing.T) {
	report := sampleReport()
	block := BuildInjection(report)
	for _, trend := range report.MarketTrends {
		if !strings.Contains(block, trend) {
			t.Errorf("injection missing trend %q", trend)
		}
	}
	if !strings.Contains(block, report.ExpertDirective) {
		t.Error("injection missing directive")
	}
}
