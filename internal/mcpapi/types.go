package mcpapi

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query         string  `json:"query" jsonschema:"the natural-language query to search your browsing history for"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Mode          string  `json:"mode,omitempty" jsonschema:"search mode: semantic, keyword, or hybrid (default hybrid)"`
	MinSimilarity float64 `json:"min_similarity,omitempty" jsonschema:"override the semantic similarity threshold (0-1)"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of matching pages, most relevant first"`
}

// SearchResultOutput is one page returned by the search tool.
type SearchResultOutput struct {
	URL          string   `json:"url" jsonschema:"the page URL"`
	Title        string   `json:"title" jsonschema:"the page title"`
	Snippet      string   `json:"snippet,omitempty" jsonschema:"the best-matching passage from the page"`
	Relevance    float64  `json:"relevance" jsonschema:"combined relevance score"`
	Confidence   string   `json:"confidence" jsonschema:"high, medium, or low confidence in this match"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms this page matched on"`
	VisitedAtMS  int64    `json:"visited_at_ms" jsonschema:"timestamp of the last visit in epoch milliseconds"`
}

// IndexInput defines the input schema for the index tool.
type IndexInput struct {
	URL          string `json:"url" jsonschema:"the page URL to index"`
	Title        string `json:"title,omitempty" jsonschema:"the page title"`
	Content      string `json:"content" jsonschema:"the extracted page text to index"`
	VisitedAtMS  int64  `json:"visited_at_ms,omitempty" jsonschema:"timestamp of the visit in epoch milliseconds, defaults to now"`
	DwellTimeSec int    `json:"dwell_time_sec,omitempty" jsonschema:"seconds spent on the page, if known"`
}

// IndexOutput defines the output schema for the index tool.
type IndexOutput struct {
	ID              string `json:"id" jsonschema:"the content-addressable page id"`
	IndexedPassages int    `json:"indexed_passages" jsonschema:"number of passages extracted and embedded"`
}

// DeleteInput defines the input schema for the delete tool.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"the page id returned by index, to remove from the index"`
}

// DeleteOutput defines the output schema for the delete tool (no fields, success implied by no error).
type DeleteOutput struct{}

// ClearInput defines the input schema for the clear tool (no parameters).
type ClearInput struct{}

// ClearOutput defines the output schema for the clear tool (no fields).
type ClearOutput struct{}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	TotalPages     int   `json:"total_pages" jsonschema:"number of pages currently indexed"`
	StoreSizeBytes int64 `json:"store_size_bytes" jsonschema:"approximate on-disk size of the index"`
	OldestVisitMS  int64 `json:"oldest_visit_ms" jsonschema:"timestamp of the oldest indexed visit in epoch milliseconds"`
	NewestVisitMS  int64 `json:"newest_visit_ms" jsonschema:"timestamp of the newest indexed visit in epoch milliseconds"`
}
