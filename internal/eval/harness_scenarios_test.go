package eval

import (
	"context"
	"testing"

	"github.com/historian-labs/historian/internal/embed"
	"github.com/historian-labs/historian/internal/search"
	"github.com/historian-labs/historian/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docSiteCorpus stands in for a crawl of react.dev/python.org/kubernetes.io
// style pages: distinct, deliberately non-overlapping vocabulary per topic
// so ranking quality is actually exercised, not a single-page fixture that
// would pass trivially. The default StaticEmbedder projects query and
// document text through different hash salts (see embed.TaskType), so it
// has no real cross-vocabulary semantic signal offline — these scenarios
// therefore exercise the keyword ranker and the hybrid pipeline around it,
// which is what's actually verifiable without a live embedding backend.
func docSiteCorpus() []TestPage {
	return []TestPage{
		{
			URL:   "https://react.dev/reference/react/hooks",
			Title: "React Hooks Reference",
			Content: longText("useState and useEffect are react hooks used inside function " +
				"components to hold local state and run side effects after rendering."),
		},
		{
			URL:     "https://react.dev/learn",
			Title:   "Learn React",
			Content: longText("React components use state to remember data between renders."),
		},
		{
			URL:     "https://www.python.org/doc/",
			Title:   "Python Documentation",
			Content: longText("Python docs cover the official language reference, standard library, and getting-started tutorials."),
		},
		{
			URL:   "https://kubernetes.io/docs/concepts/overview/",
			Title: "Kubernetes Overview",
			Content: longText("Kubernetes is a system for managing lots of docker containers across " +
				"a cluster, handling scheduling, scaling, and recovery of workloads."),
		},
		{
			URL:     "https://example.com/recipes/bread",
			Title:   "Sourdough Bread",
			Content: longText("A sourdough starter needs regular feeding with flour and water prior to baking bread."),
		},
	}
}

// newScenarioService builds a search.Service backed by its own SQLite store
// so scenario tests can inspect persisted state (visit counts, stats)
// directly rather than only through Search results.
func newScenarioService(t *testing.T) (*search.Service, store.Store) {
	t.Helper()
	st, err := store.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	svc := search.New(search.Config{Store: st, Embedder: embed.NewStaticEmbedder(0)})
	return svc, st
}

func indexCorpus(t *testing.T, ctx context.Context, svc *search.Service, corpus []TestPage) {
	t.Helper()
	for _, page := range corpus {
		_, err := svc.Index(ctx, search.IndexInput{URL: page.URL, Title: page.Title, Content: page.Content})
		require.NoError(t, err)
	}
}

// Scenarios 1-3: topical queries each rank their matching doc-site page
// first, per spec.md §8's end-to-end scenarios for react.dev, python.org,
// and kubernetes.io style queries. The kubernetes query names neither
// "kubernetes" nor the page's title, only vocabulary the page shares with
// it ("docker", "containers", "managing") — the condition spec.md §8
// scenario 3 actually asks for, even though it can't be attributed to
// genuine embedding-based generalization with the static embedder.
func TestRun_DocSiteTopicQueries_RankTargetFirst(t *testing.T) {
	svc, _ := newScenarioService(t)
	ctx := context.Background()
	indexCorpus(t, ctx, svc, docSiteCorpus())

	cases := []struct {
		name      string
		query     string
		wantFirst string
	}{
		{"react hooks", "how do i use state and effects in react components", "https://react.dev/reference/react/hooks"},
		{"python docs", "python docs", "https://www.python.org/doc/"},
		{"kubernetes without saying kubernetes", "that thing for managing lots of docker containers", "https://kubernetes.io/docs/concepts/overview/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := svc.Search(ctx, tc.query, search.DefaultOptions())
			require.NoError(t, err)
			require.NotEmpty(t, results, "query %q returned no results", tc.query)
			assert.Equal(t, tc.wantFirst, results[0].Page.URL)
		})
	}
}

// Run against the same corpus through the eval harness itself, so the
// MRR/precision/recall aggregation path (not just svc.Search) is exercised
// end-to-end against a multi-topic corpus rather than the 1-2 page smoke
// fixtures used elsewhere in this package.
func TestRun_DocSiteTopicQueries_ProduceTopRankMRR(t *testing.T) {
	svc, _ := newScenarioService(t)
	queries := []Query{
		{
			Text:         "how do i use state and effects in react components",
			ExpectedURLs: []string{"https://react.dev/reference/react/hooks", "https://react.dev/learn"},
			Relevance: map[string]int{
				"https://react.dev/reference/react/hooks": 3,
				"https://react.dev/learn":                 2,
			},
		},
		{
			Text:         "python docs",
			ExpectedURLs: []string{"https://www.python.org/doc/"},
			Relevance:    map[string]int{"https://www.python.org/doc/": 3},
		},
	}

	report, err := Run(context.Background(), svc, docSiteCorpus(), queries, 10)
	require.NoError(t, err)
	require.Len(t, report.PerQuery, 2)

	for _, qr := range report.PerQuery {
		assert.Equal(t, 1.0, qr.Metrics.MRR, "query %q should rank an expected url first", qr.Query.Text)
		assert.Greater(t, qr.Metrics.NDCGAtK, 0.0)
	}
}

// Scenario 4: indexing the same URL twice leaves total_pages unchanged and
// increments visit_count, per spec.md §8's idempotence property.
func TestRun_ReindexSameURLIsIdempotentAndBumpsVisitCount(t *testing.T) {
	svc, st := newScenarioService(t)
	ctx := context.Background()

	page := docSiteCorpus()[2] // python docs
	_, err := svc.Index(ctx, search.IndexInput{URL: page.URL, Title: page.Title, Content: page.Content})
	require.NoError(t, err)
	_, err = svc.Index(ctx, search.IndexInput{URL: page.URL, Title: page.Title, Content: page.Content})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPages)

	rec, err := st.GetByURL(ctx, page.URL)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.VisitCount)
}

// Scenario 5: deleting a page that was in the previous top-10 removes it
// from a re-run of the same query without disturbing the relative order
// of the remaining results.
func TestRun_DeleteRemovesPage_PreservesRemainingOrder(t *testing.T) {
	svc, _ := newScenarioService(t)
	ctx := context.Background()
	indexCorpus(t, ctx, svc, docSiteCorpus())

	query := "how do i use state and effects in react components"
	before, err := svc.Search(ctx, query, search.DefaultOptions())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(before), 1)

	doomed := before[0]
	require.NoError(t, svc.Delete(ctx, doomed.Page.ID))

	after, err := svc.Search(ctx, query, search.DefaultOptions())
	require.NoError(t, err)

	for _, r := range after {
		assert.NotEqual(t, doomed.Page.ID, r.Page.ID, "deleted page must not reappear")
	}

	var survivingBefore []string
	for _, r := range before {
		if r.Page.ID != doomed.Page.ID {
			survivingBefore = append(survivingBefore, r.Page.ID)
		}
	}
	var afterIDs []string
	for _, r := range after {
		afterIDs = append(afterIDs, r.Page.ID)
	}
	assert.Equal(t, survivingBefore, afterIDs, "relative order of surviving results must be unchanged")
}

// Scenario 6: alpha=1.0 and alpha=0.0 hybrid searches reproduce semantic-only
// and keyword-only orderings respectively, exercised end-to-end through the
// query service rather than just the fusion package in isolation.
func TestRun_AlphaExtremes_MatchSingleRankerOrdering(t *testing.T) {
	svc, _ := newScenarioService(t)
	ctx := context.Background()
	indexCorpus(t, ctx, svc, docSiteCorpus())

	query := "managing containers at scale"

	semanticOpts := search.DefaultOptions()
	semanticOpts.Mode = search.ModeSemantic
	semanticOnly, err := svc.Search(ctx, query, semanticOpts)
	require.NoError(t, err)

	keywordOpts := search.DefaultOptions()
	keywordOpts.Mode = search.ModeKeyword
	keywordOnly, err := svc.Search(ctx, query, keywordOpts)
	require.NoError(t, err)

	alphaOneOpts := search.DefaultOptions()
	alphaOneOpts.Alpha = 1.0
	alphaOne, err := svc.Search(ctx, query, alphaOneOpts)
	require.NoError(t, err)

	alphaZeroOpts := search.DefaultOptions()
	alphaZeroOpts.Alpha = 0.0
	alphaZero, err := svc.Search(ctx, query, alphaZeroOpts)
	require.NoError(t, err)

	assert.Equal(t, idsOf(semanticOnly), idsOf(alphaOne), "alpha=1.0 must match semantic-only ordering")
	assert.Equal(t, idsOf(keywordOnly), idsOf(alphaZero), "alpha=0.0 must match keyword-only ordering")
	require.NotEmpty(t, keywordOnly, "keyword ranker should find the kubernetes page via shared vocabulary")
}

func idsOf(results []search.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Page.ID
	}
	return ids
}
