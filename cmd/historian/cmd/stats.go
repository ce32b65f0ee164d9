package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/historian-labs/historian/pkg/historian"
	"github.com/spf13/cobra"
)

type statsOutput struct {
	TotalPages     int     `json:"total_pages"`
	StoreSizeMB    float64 `json:"store_size_mb"`
	OldestVisit    string  `json:"oldest_visit,omitempty"`
	NewestVisit    string  `json:"newest_visit,omitempty"`
	EmbeddingModel string  `json:"embedding_model"`
	EmbeddingDims  int     `json:"embedding_dimensions"`
}

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report index size and coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := historian.Open(cfg)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer h.Close()

			stats, err := h.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			model, dims := h.EmbedderInfo()
			out := statsOutput{
				TotalPages:     stats.TotalPages,
				StoreSizeMB:    float64(stats.SizeBytes) / (1024 * 1024),
				EmbeddingModel: model,
				EmbeddingDims:  dims,
			}
			if stats.OldestTS > 0 {
				out.OldestVisit = time.UnixMilli(stats.OldestTS).Format(time.RFC3339)
			}
			if stats.NewestTS > 0 {
				out.NewestVisit = time.UnixMilli(stats.NewestTS).Format(time.RFC3339)
			}

			if asJSON {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "pages:      %d\n", out.TotalPages)
			fmt.Fprintf(w, "store size: %.2f MB\n", out.StoreSizeMB)
			if out.OldestVisit != "" {
				fmt.Fprintf(w, "oldest:     %s\n", out.OldestVisit)
				fmt.Fprintf(w, "newest:     %s\n", out.NewestVisit)
			}
			fmt.Fprintf(w, "embedder:   %s (%d dims)\n", out.EmbeddingModel, out.EmbeddingDims)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}
