package vector

import (
	"math"
	"testing"
)

func TestTokenizeDropsStopwordsAndPunctuation(t *testing.T) {
	tokens := Tokenize("זה פרויקט הגלידה של העסק!")
	for _, tok := range tokens {
		if tok == "של" || tok == "זה" {
			t.Errorf("stopword %q survived tokenization", tok)
		}
	}
	found := false
	for _, tok := range tokens {
		if tok == "הגלידה" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected content token, got %v", tokens)
	}
}

func TestVectorSelfSimilarity(t *testing.T) {
	corpus := []string{
		"מתכון גלידה עם אגר אגר",
		"תוכנית שיווק לחנות",
		"ניתוח סיכונים של המיזם",
	}
	vocab := Build(corpus)
	v := vocab.Vector(corpus[0])
	if sim := Cosine(v, v); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("self similarity = %f, want 1.0", sim)
	}
}

func TestVectorDisjointTextsOrthogonal(t *testing.T) {
	vocab := Build([]string{"גלידה וניל שוקולד", "רכב חשמלי מהיר"})
	a := vocab.Vector("גלידה וניל שוקולד")
	b := vocab.Vector("רכב חשמלי מהיר")
	if sim := Cosine(a, b); sim > 1e-9 {
		t.Errorf("disjoint texts similarity = %f, want 0", sim)
	}
}

func TestCosineZeroVector(t *testing.T) {
	if got := Cosine(make([]float64, VocabSize), make([]float64, VocabSize)); got != 0 {
		t.Errorf("got %f, want 0", got)
	}
}

func TestTopKThreshold(t *testing.T) {
	corpus := []string{
		"גלידת וניל ביתית",
		"גלידת שוקולד ביתית",
		"דוח מס שנתי",
	}
	vocab := Build(corpus)
	candidates := make([][]float64, len(corpus))
	for i, text := range corpus {
		candidates[i] = vocab.Vector(text)
	}

	hits := TopK(vocab.Vector("גלידת וניל ביתית"), candidates, 2, 0.7)
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].Index != 0 {
		t.Errorf("best hit index = %d, want 0", hits[0].Index)
	}
	for _, h := range hits {
		if h.Score < 0.7 {
			t.Errorf("hit below threshold returned alongside qualifying hits: %f", h.Score)
		}
	}
}

func TestTopKFallbackWhenNothingQualifies(t *testing.T) {
	corpus := []string{"דוח מס שנתי", "טיול בצפון"}
	vocab := Build(corpus)
	candidates := [][]float64{vocab.Vector(corpus[0]), vocab.Vector(corpus[1])}

	hits := TopK(vocab.Vector("גלידה"), candidates, 3, 0.7)
	if len(hits) != 2 {
		t.Errorf("fallback should return best candidates, got %d", len(hits))
	}
}

func TestBuildProfileSplitsTopicsAndInterests(t *testing.T) {
	texts := []string{
		"גלידה אגר שיווק מחיר חנות מלאי מתכון טעם מרקם קירור",
		"גלידה אגר שיווק מחיר חנות מלאי מתכון טעם מרקם קירור עלות רווח תקציב לקוח ספק",
	}
	p := BuildProfile(texts, []string{"general", "operational"})
	if p.TotalMemories != 2 {
		t.Errorf("TotalMemories = %d, want 2", p.TotalMemories)
	}
	if len(p.Topics) != 8 {
		t.Errorf("got %d topics, want 8", len(p.Topics))
	}
	if len(p.Interests) != 7 {
		t.Errorf("got %d interests, want 7", len(p.Interests))
	}
	if p.Categories["general"] != 1 || p.Categories["operational"] != 1 {
		t.Errorf("unexpected categories: %v", p.Categories)
	}
}
