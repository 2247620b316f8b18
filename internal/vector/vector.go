// Package vector implements corpus-relative TF-IDF embeddings.
//
// Vectors are only comparable when produced by the same Vocabulary build.
// Callers rebuild the vocabulary from their working corpus before each
// retrieval instead of persisting a global index.
package vector

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// VocabSize caps the number of terms tracked by one vocabulary build.
const VocabSize = 200

var stopwords = func() map[string]bool {
	words := []string{
		"של", "את", "על", "עם", "אל", "מן", "לא", "כי", "או", "גם", "אם", "הוא", "היא", "הם", "הן",
		"אני", "אתה", "אנחנו", "זה", "זו", "זאת", "אלה", "כל", "יש", "אין", "לו", "לה",
		"שלי", "שלך", "שלו", "שלה", "שלנו", "שלהם", "היה", "היתה", "היו", "יהיה", "תהיה", "עוד",
		"רק", "כמו", "בין", "מה", "איך", "למה", "מי", "אבל", "אז", "כך", "אחרי", "לפני", "תוך",
		"the", "a", "an", "is", "are", "was", "were", "be", "been", "to", "of", "in", "for", "on",
		"with", "at", "by", "from", "and", "or", "but", "not", "this", "that", "it", "he", "she", "they",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()

var nonWordRe = regexp.MustCompile(`[^\x{0590}-\x{05FF}a-zA-Z0-9\s]`)

// Tokenize lowercases, keeps Hebrew/Latin/digit runs, and drops stopwords
// and single-character tokens.
func Tokenize(text string) []string {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		if len([]rune(w)) > 1 && !stopwords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Vocabulary is one immutable TF-IDF build. Safe for concurrent use.
type Vocabulary struct {
	index map[string]int
	idf   map[string]float64
}

// Build ranks terms by document frequency across texts, keeps the top
// VocabSize, and weights each as ln((N+1)/(df+1))+1.
func Build(texts []string) *Vocabulary {
	docFreq := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, t := range Tokenize(text) {
			if !seen[t] {
				docFreq[t]++
				seen[t] = true
			}
		}
	}

	type entry struct {
		word string
		df   int
	}
	entries := make([]entry, 0, len(docFreq))
	for w, df := range docFreq {
		entries = append(entries, entry{w, df})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].df > entries[j].df })
	if len(entries) > VocabSize {
		entries = entries[:VocabSize]
	}

	v := &Vocabulary{
		index: make(map[string]int, len(entries)),
		idf:   make(map[string]float64, len(entries)),
	}
	n := float64(len(texts))
	for i, e := range entries {
		v.index[e.word] = i
		v.idf[e.word] = math.Log((n+1)/float64(e.df+1)) + 1
	}
	return v
}

// Vector embeds text against this vocabulary build, L2-normalized.
func (v *Vocabulary) Vector(text string) []float64 {
	tokens := Tokenize(text)
	vec := make([]float64, VocabSize)
	if len(tokens) == 0 {
		return vec
	}

	tf := make(map[string]int)
	for _, t := range tokens {
		tf[t]++
	}
	for word, count := range tf {
		idx, ok := v.index[word]
		if !ok {
			continue
		}
		idf := v.idf[word]
		if idf == 0 {
			idf = 1
		}
		vec[idx] = float64(count) / float64(len(tokens)) * idf
	}

	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Cosine returns the cosine similarity of two vectors, 0 when either has
// zero norm. Lengths may differ; the shorter prefix is compared.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Scored pairs an item index with its similarity score.
type Scored struct {
	Index int
	Score float64
}

// TopK ranks candidates against query. Candidates at or above threshold win;
// when none reach it the best topK are returned anyway so retrieval never
// comes back empty for a non-empty corpus.
func TopK(query []float64, candidates [][]float64, topK int, threshold float64) []Scored {
	if len(candidates) == 0 {
		return nil
	}
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Index: i, Score: Cosine(query, c)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	var above []Scored
	for _, s := range scored {
		if s.Score >= threshold {
			above = append(above, s)
		}
	}
	if len(above) > 0 {
		if len(above) > topK {
			above = above[:topK]
		}
		return above
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Profile aggregates token frequencies across memory texts into a coarse
// interest profile.
type Profile struct {
	Topics        []string       `json:"topics"`
	Interests     []string       `json:"interests"`
	TotalMemories int            `json:"totalMemories"`
	Categories    map[string]int `json:"categories"`
}

// BuildProfile derives topics and interests from the most frequent tokens
// over all memory texts.
func BuildProfile(texts []string, categories []string) Profile {
	catCount := make(map[string]int)
	for _, c := range categories {
		catCount[c]++
	}

	freq := make(map[string]int)
	for _, text := range texts {
		for _, t := range Tokenize(text) {
			freq[t]++
		}
	}
	type entry struct {
		word  string
		count int
	}
	entries := make([]entry, 0, len(freq))
	for w, c := range freq {
		entries = append(entries, entry{w, c})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].count > entries[j].count })
	if len(entries) > 15 {
		entries = entries[:15]
	}
	words := make([]string, len(entries))
	for i, e := range entries {
		words[i] = e.word
	}

	p := Profile{TotalMemories: len(texts), Categories: catCount}
	if len(words) > 8 {
		p.Topics = words[:8]
		p.Interests = words[8:]
	} else {
		p.Topics = words
	}
	return p
}
