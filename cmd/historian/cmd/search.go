package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/historian-labs/historian/pkg/historian"
	"github.com/spf13/cobra"
)

type searchResultOutput struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Snippet      string   `json:"snippet"`
	Relevance    float64  `json:"relevance"`
	Confidence   string   `json:"confidence"`
	Mode         string   `json:"mode"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

func newSearchCmd() *cobra.Command {
	var mode string
	var limit int
	var minSimilarity float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := historian.Open(cfg)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer h.Close()

			opts := historian.DefaultOptions()
			if limit > 0 {
				opts.K = limit
			}
			if mode != "" {
				opts.Mode = historian.Mode(mode)
			}
			if minSimilarity > 0 {
				opts.MinSimilarity = minSimilarity
			}

			results, err := h.Search(cmd.Context(), query, opts)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				return formatJSON(cmd, results)
			}
			return formatText(cmd, query, results)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "semantic, keyword, or hybrid (default: hybrid)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results (default: 10)")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0, "minimum semantic similarity (0-1)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func toOutput(results []historian.Result) []searchResultOutput {
	out := make([]searchResultOutput, len(results))
	for i, r := range results {
		out[i] = searchResultOutput{
			URL:          r.Page.URL,
			Title:        r.Page.Title,
			Snippet:      r.TopSnippet,
			Relevance:    r.Relevance,
			Confidence:   string(r.Confidence),
			Mode:         r.Mode,
			MatchedTerms: r.MatchedTerms,
		}
	}
	return out
}

func formatJSON(cmd *cobra.Command, results []historian.Result) error {
	data, err := json.MarshalIndent(toOutput(results), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func formatText(cmd *cobra.Command, query string, results []historian.Result) error {
	w := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(w, "no results for %q\n", query)
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s\n", i+1, r.Page.Title)
		fmt.Fprintf(w, "   %s\n", r.Page.URL)
		fmt.Fprintf(w, "   relevance=%.3f confidence=%s mode=%s\n", r.Relevance, r.Confidence, r.Mode)
		if snippet := getSnippet(r.TopSnippet); snippet != "" {
			fmt.Fprintf(w, "   %s\n", snippet)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// getSnippet trims a passage snippet down to a single readable line.
func getSnippet(snippet string) string {
	snippet = strings.TrimSpace(strings.ReplaceAll(snippet, "\n", " "))
	const maxLen = 200
	if len(snippet) > maxLen {
		return snippet[:maxLen] + "..."
	}
	return snippet
}
