// Package search ranks items against a free-text query using token-level fuzzy matching
// with Arabic/Roman numeral equivalence.
package search

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// MinScore is the threshold below which candidates are dropped.
	MinScore = 0.3

	prefixScore    = 0.8
	containsScore  = 0.5
	editWeight     = 0.7
	minEditSim     = 0.6
	minEditLen     = 3
	exactScore     = 1.0
	emptyQueryHits = 1.0
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)

var numerals = map[string]string{
	"1": "i", "2": "ii", "3": "iii", "4": "iv", "5": "v", "6": "vi",
	"7": "vii", "8": "viii", "9": "ix", "10": "x", "11": "xi", "12": "xii",
}

var romanToArabic = func() map[string]string {
	m := make(map[string]string, len(numerals))
	for arabic, roman := range numerals {
		m[roman] = arabic
	}
	return m
}()

// Result is one ranked candidate.
type Result[T any] struct {
	Item         T
	Score        float64
	IsExactMatch bool
	// Index is the candidate's position in the input slice.
	Index int
}

// Search scores every item's key text against query and returns the matches sorted by
// score descending, ties ordered by input position.
func Search[T any](items []T, query string, key func(T) string) []Result[T] {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		out := make([]Result[T], len(items))
		for i, item := range items {
			out[i] = Result[T]{Item: item, Score: emptyQueryHits, IsExactMatch: true, Index: i}
		}
		return out
	}

	phrase := strings.Join(queryTokens, " ")
	out := make([]Result[T], 0, len(items))
	for i, item := range items {
		text := key(item)
		if strings.Contains(strings.ToLower(text), phrase) {
			out = append(out, Result[T]{Item: item, Score: exactScore, IsExactMatch: true, Index: i})
			continue
		}

		score := Score(queryTokens, Tokenize(text))
		if score >= MinScore {
			out = append(out, Result[T]{Item: item, Score: score, Index: i})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return out[a].Index < out[b].Index
	})
	return out
}

// Tokenize lowercases s, turns non-alphanumerics into spaces and splits on whitespace.
func Tokenize(s string) []string {
	cleaned := nonAlphanumeric.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Fields(cleaned)
}

// Score combines per-token best matches, penalising both weak and missing tokens.
func Score(queryTokens, targetTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	var total float64
	matched := 0
	for _, q := range queryTokens {
		best := 0.0
		for _, t := range targetTokens {
			if s := TokenScore(q, t); s > best {
				best = s
			}
			if best == exactScore {
				break
			}
		}
		if best > 0 {
			total += best
			matched++
		}
	}

	n := float64(len(queryTokens))
	return (total / n) * (float64(matched) / n)
}

// TokenScore returns the similarity of a single query token against a target token.
func TokenScore(query, target string) float64 {
	queryForms := expand(query)
	targetForms := expand(target)
	for _, q := range queryForms {
		for _, t := range targetForms {
			if q == t {
				return exactScore
			}
		}
	}

	// First numeral form with a partial hit wins, not the best one.
	for _, q := range queryForms {
		for _, t := range targetForms {
			if s := partialMatch(t, q); s > 0 {
				return s
			}
		}
	}

	if len(query) >= minEditLen && len(target) >= minEditLen {
		maxLen := len(query)
		if len(target) > maxLen {
			maxLen = len(target)
		}
		sim := 1 - float64(Levenshtein(query, target))/float64(maxLen)
		if sim >= minEditSim {
			return sim * editWeight
		}
	}
	return 0
}

func partialMatch(word, query string) float64 {
	switch {
	case strings.HasPrefix(word, query):
		return prefixScore
	case strings.Contains(word, query):
		return containsScore
	}
	return 0
}

func expand(token string) []string {
	if roman, ok := numerals[token]; ok {
		return []string{token, roman}
	}
	if arabic, ok := romanToArabic[token]; ok {
		return []string{token, arabic}
	}
	return []string{token}
}

// Levenshtein computes the edit distance between a and b over bytes.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
