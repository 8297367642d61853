package corpus

import (
	"sort"
	"strings"
)

// NgramCount pairs an n-gram surface form with its corpus frequency.
type NgramCount struct {
	Ngram string
	Count int
}

// CountNgrams tallies every n-gram of order minOrder..maxOrder and keeps
// those occurring at least minCount times, in first-seen corpus order.
func CountNgrams(lines []string, minOrder, maxOrder, minCount int) []NgramCount {
	counts := make(map[string]int)
	var order []string
	for _, line := range lines {
		tokens := strings.Fields(line)
		n := len(tokens)
		for i := 0; i < n; i++ {
			hi := i + maxOrder + 1
			if hi > n+1 {
				hi = n + 1
			}
			for j := i + minOrder; j < hi; j++ {
				ngram := strings.Join(tokens[i:j], " ")
				if counts[ngram] == 0 {
					order = append(order, ngram)
				}
				counts[ngram]++
			}
		}
	}

	out := make([]NgramCount, 0, len(order))
	for _, ngram := range order {
		if c := counts[ngram]; c >= minCount {
			out = append(out, NgramCount{Ngram: ngram, Count: c})
		}
	}
	return out
}

// SortByCount orders counts by decreasing frequency, breaking ties by
// reversed surface form so the result matches a numeric reverse sort of
// the count-tab-ngram lines.
func SortByCount(counts []NgramCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Ngram > counts[j].Ngram
	})
}

// Top returns at most k entries from the front of counts.
func Top(counts []NgramCount, k int) []NgramCount {
	if k < len(counts) {
		return counts[:k]
	}
	return counts
}

// Phrases strips the frequencies, returning just the n-gram surface
// forms.
func Phrases(counts []NgramCount) []string {
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Ngram
	}
	return out
}
