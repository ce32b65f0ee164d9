package rank

import (
	"testing"

	"github.com/historian-labs/historian/internal/store"
	"github.com/stretchr/testify/assert"
)

func pageWithText(id, title, content string, passageTexts ...string) *store.PageRecord {
	page := &store.PageRecord{ID: id, URL: "https://example.com/" + id, Title: title, Content: content, Timestamp: 1}
	for i, text := range passageTexts {
		page.Passages = append(page.Passages, store.Passage{ID: id + string(rune('a'+i)), Text: text, Position: i})
	}
	return page
}

// AC01: tokenize lowercases, splits on non-alphanumeric, and drops short tokens.
func TestTokenize_LowercasesSplitsDropsShort(t *testing.T) {
	tokens := tokenize("Go's HTTP/2 API-design, v2!")
	assert.Equal(t, []string{"http", "api", "design"}, tokens)
}

// AC02: a token present in the title scores +3.0.
func TestKeyword_TitleMatchScoresThree(t *testing.T) {
	page := pageWithText("p1", "golang concurrency patterns", "", "unrelated")
	results := Keyword([]*store.PageRecord{page}, "golang", 10)
	assert := assert.New(t)
	assert.Len(results, 1)
	assert.Equal(3.0, results[0].Score)
}

// AC03: a token present in a passage scores +2.0, and in content scores +1.0,
// each field contributing at most once regardless of repeated occurrence.
func TestKeyword_FieldWeightsAreAdditiveAndPresenceOnly(t *testing.T) {
	page := pageWithText("p1", "unrelated title", "golang golang golang body", "golang golang passage")
	results := Keyword([]*store.PageRecord{page}, "golang", 10)
	assert.Len(t, results, 1)
	assert.Equal(t, 3.0, results[0].Score) // +2.0 passage, +1.0 content, title absent
}

// AC04: pages scoring 0 are dropped.
func TestKeyword_DropsZeroScorePages(t *testing.T) {
	page := pageWithText("p1", "nothing relevant", "nothing relevant either")
	results := Keyword([]*store.PageRecord{page}, "golang", 10)
	assert.Empty(t, results)
}

// AC05: matched_terms records only tokens that contributed.
func TestKeyword_MatchedTermsOnlyIncludesContributingTokens(t *testing.T) {
	page := pageWithText("p1", "golang tutorial", "")
	results := Keyword([]*store.PageRecord{page}, "golang rust", 10)
	require := assert.New(t)
	require.Len(results, 1)
	require.Equal([]string{"golang"}, results[0].MatchedTerms)
}

// AC06: results sort by score descending and truncate to k.
func TestKeyword_SortsByScoreDescendingAndTruncates(t *testing.T) {
	high := pageWithText("high", "golang golang", "")
	low := pageWithText("low", "", "golang mentioned here")
	results := Keyword([]*store.PageRecord{low, high}, "golang", 1)
	assert.Len(t, results, 1)
	assert.Equal(t, "high", results[0].Page.ID)
}
