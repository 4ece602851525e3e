package engine

import "strings"

// SimilarityFunc reports whether two normalized remarks describe the same
// transaction. Inputs are expected in models.NormalizeText form.
type SimilarityFunc func(a, b string) bool

// BigramOverlap returns a similarity function based on character-bigram
// overlap (Dice coefficient). Bigrams rather than word tokens keep the test
// meaningful for CJK text, where remarks carry no word boundaries. A
// substring relation short-circuits to a match regardless of threshold.
func BigramOverlap(threshold float64) SimilarityFunc {
	return func(a, b string) bool {
		if a == b {
			return true
		}
		if a == "" || b == "" {
			return false
		}
		if strings.Contains(a, b) || strings.Contains(b, a) {
			return true
		}
		return diceCoefficient(a, b) >= threshold
	}
}

// diceCoefficient computes 2*|A∩B| / (|A|+|B|) over character bigrams
func diceCoefficient(a, b string) float64 {
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ba))
	for _, g := range ba {
		counts[g]++
	}
	shared := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ba)+len(bb))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}

// containsAnyMarker reports whether the raw remark carries one of the
// configured marker tokens (refund, closure, reversal).
func containsAnyMarker(remark string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(remark, marker) {
			return true
		}
	}
	return false
}
