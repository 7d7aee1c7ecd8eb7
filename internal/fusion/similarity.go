package fusion

import (
	"math"
	"strings"
)

// CosineSimilarity computes the cosine of the angle between two embedding
// vectors.
//
// Mismatched lengths are truncated to the shorter operand rather than
// rejected; document face subspaces are legitimately shorter than full face
// vectors. Callers that care about silent truncation should compare lengths
// before calling (see verification service).
//
// Returns a value in [-1, 1]. A zero-magnitude operand yields 0.0 rather
// than dividing by zero. Call sites clamp to [0, 1]: negative similarity
// carries no more identity signal than zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		n := min(len(a), len(b))
		a, b = a[:n], b[:n]
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TextSimilarity scores two strings in [0, 1] by combining word-level and
// character-3-gram Jaccard overlap (0.6 n-gram + 0.4 word).
//
// The n-gram component dominates deliberately: OCR noise corrupts individual
// characters but preserves n-gram structure better than whole words. When a
// string is too short to produce 3-grams, the word-level score stands alone.
// Either input empty after trimming yields 0.0.
func TextSimilarity(text1, text2 string) float64 {
	t1 := strings.ToLower(strings.TrimSpace(text1))
	t2 := strings.ToLower(strings.TrimSpace(text2))
	if t1 == "" || t2 == "" {
		return 0.0
	}

	word := jaccard(wordSet(t1), wordSet(t2))

	n1 := ngramSet(t1, 3)
	n2 := ngramSet(t2, 3)
	if len(n1) == 0 || len(n2) == 0 {
		return word
	}
	return 0.6*jaccard(n1, n2) + 0.4*word
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// ngramSet builds character n-grams of the whitespace-stripped string.
func ngramSet(s string, n int) map[string]struct{} {
	stripped := strings.Join(strings.Fields(s), "")
	set := make(map[string]struct{})
	for i := 0; i+n <= len(stripped); i++ {
		set[stripped[i:i+n]] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Clamp01 bounds a score to [0, 1].
func Clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
