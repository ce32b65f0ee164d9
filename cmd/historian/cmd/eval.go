package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/historian-labs/historian/internal/config"
	"github.com/historian-labs/historian/internal/eval"
	"github.com/historian-labs/historian/internal/search"
	"github.com/historian-labs/historian/pkg/historian"
	"github.com/spf13/cobra"
)

// evalFixture is the on-disk shape of a --corpus file: a small set of pages
// to index plus graded queries to run against them.
type evalFixture struct {
	Corpus []struct {
		URL     string `yaml:"url"`
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
	} `yaml:"corpus"`
	Queries []struct {
		Text         string         `yaml:"text"`
		ExpectedURLs []string       `yaml:"expected_urls"`
		Relevance    map[string]int `yaml:"relevance"`
		Description  string         `yaml:"description"`
		Mode         string         `yaml:"mode"`
	} `yaml:"queries"`
}

func newEvalCmd() *cobra.Command {
	var corpusPath string
	var k int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure retrieval quality against a graded query fixture",
		Long: `eval indexes a small fixed corpus into a throwaway index, runs a set of
graded queries against it, and reports precision/recall/MRR/NDCG@k. It
never touches your real index; use it to judge a ranking change before
trusting it on your own history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if corpusPath == "" {
				return fmt.Errorf("--corpus is required")
			}
			fixture, err := loadEvalFixture(corpusPath)
			if err != nil {
				return err
			}

			dataDir, err := os.MkdirTemp("", "historian-eval-*")
			if err != nil {
				return fmt.Errorf("create scratch index: %w", err)
			}
			defer os.RemoveAll(dataDir)

			cfg := config.NewConfig()
			cfg.Paths.IndexDir = dataDir

			h, err := historian.Open(cfg)
			if err != nil {
				return fmt.Errorf("open scratch index: %w", err)
			}
			defer h.Close()

			corpus := make([]eval.TestPage, len(fixture.Corpus))
			for i, p := range fixture.Corpus {
				corpus[i] = eval.TestPage{URL: p.URL, Title: p.Title, Content: p.Content}
			}
			queries := make([]eval.Query, len(fixture.Queries))
			for i, q := range fixture.Queries {
				queries[i] = eval.Query{
					Text:         q.Text,
					ExpectedURLs: q.ExpectedURLs,
					Relevance:    q.Relevance,
					Description:  q.Description,
					Mode:         search.Mode(q.Mode),
				}
			}

			report, err := eval.Run(cmd.Context(), h.Service(), corpus, queries, k)
			if err != nil {
				return fmt.Errorf("run eval: %w", err)
			}

			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			return formatEvalReport(cmd, report)
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "path to a YAML fixture of corpus pages and graded queries")
	cmd.Flags().IntVar(&k, "k", 5, "cutoff for precision/recall/NDCG@k")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func loadEvalFixture(path string) (evalFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return evalFixture{}, fmt.Errorf("read corpus fixture: %w", err)
	}
	var fixture evalFixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return evalFixture{}, fmt.Errorf("parse corpus fixture: %w", err)
	}
	return fixture, nil
}

func formatEvalReport(cmd *cobra.Command, report eval.Report) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "queries: %d\n", len(report.PerQuery))
	fmt.Fprintf(w, "mean precision@k: %.3f\n", report.MeanPrecisionAtK)
	fmt.Fprintf(w, "mean recall@k:    %.3f\n", report.MeanRecallAtK)
	fmt.Fprintf(w, "mean MRR:         %.3f\n", report.MeanMRR)
	fmt.Fprintf(w, "mean NDCG@k:      %.3f\n", report.MeanNDCGAtK)
	fmt.Fprintln(w, "confidence mix:")
	for band, count := range report.ConfidenceCounts {
		fmt.Fprintf(w, "  %-8s %d\n", band, count)
	}
	for _, qr := range report.PerQuery {
		fmt.Fprintf(w, "\n%q (%s)\n", qr.Query.Text, qr.Confidence)
		fmt.Fprintf(w, "  precision=%.3f recall=%.3f mrr=%.3f ndcg=%.3f\n",
			qr.Metrics.PrecisionAtK, qr.Metrics.RecallAtK, qr.Metrics.MRR, qr.Metrics.NDCGAtK)
	}
	return nil
}
