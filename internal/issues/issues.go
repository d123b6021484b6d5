// Package issues ranks the most frequent terms in free-text damage notes.
package issues

import (
	"sort"
	"strings"
)

// DefaultK is the number of terms reported when the caller does not choose.
const DefaultK = 5

// TermCount is a term and the number of times it occurred.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Top splits every text on whitespace and returns the k most frequent terms.
// Counting is case-sensitive. Equal counts keep the order in which the terms
// were first seen. A k <= 0 returns every term.
func Top(texts []string, k int) []TermCount {
	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		for _, term := range strings.Fields(text) {
			if _, seen := counts[term]; !seen {
				order = append(order, term)
			}
			counts[term]++
		}
	}

	out := make([]TermCount, 0, len(order))
	for _, term := range order {
		out = append(out, TermCount{Term: term, Count: counts[term]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
