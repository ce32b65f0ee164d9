package rank

import (
	"regexp"
	"sort"
	"strings"

	"github.com/historian-labs/historian/internal/store"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

const minTokenLength = 3

// tokenize lowercases and splits on non-alphanumeric runs, dropping tokens
// shorter than minTokenLength, per spec.md §4.5.
func tokenize(s string) []string {
	lowered := strings.ToLower(s)
	raw := tokenSplitPattern.Split(lowered, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) >= minTokenLength {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Keyword scores pages by presence-only weighted field matching: +3.0 per
// query token present in the title, +2.0 in any passage, +1.0 in content.
// Each token contributes at most once per field.
func Keyword(pages []*store.PageRecord, query string, k int) []KeywordResult {
	if k <= 0 {
		k = 10
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []KeywordResult{}
	}

	results := make([]KeywordResult, 0, len(pages))
	for _, page := range pages {
		score, matched := scorePage(page, tokens)
		if score == 0 {
			continue
		}
		results = append(results, KeywordResult{Page: page, Score: score, MatchedTerms: matched})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Page.Timestamp > results[j].Page.Timestamp
	})

	if k < len(results) {
		results = results[:k]
	}
	return results
}

func scorePage(page *store.PageRecord, tokens []string) (float64, []string) {
	title := strings.ToLower(page.Title)
	content := strings.ToLower(page.Content)
	passageText := joinPassageText(page)

	var score float64
	var matched []string
	for _, t := range tokens {
		contributed := false
		if strings.Contains(title, t) {
			score += 3.0
			contributed = true
		}
		if strings.Contains(passageText, t) {
			score += 2.0
			contributed = true
		}
		if strings.Contains(content, t) {
			score += 1.0
			contributed = true
		}
		if contributed {
			matched = append(matched, t)
		}
	}
	return score, matched
}

func joinPassageText(page *store.PageRecord) string {
	var b strings.Builder
	for _, p := range page.Passages {
		b.WriteString(strings.ToLower(p.Text))
		b.WriteByte(' ')
	}
	return b.String()
}
