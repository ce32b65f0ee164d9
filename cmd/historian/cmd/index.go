package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/historian-labs/historian/internal/output"
	"github.com/historian-labs/historian/pkg/historian"
	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var title string
	var visitedAtMS int64
	var dwellSec int
	var contentFile string

	cmd := &cobra.Command{
		Use:   "index <url>",
		Short: "Index a page's content",
		Long: `index chunks and embeds a page's content and stores it under url.
Content is read from --file, or from stdin if --file is omitted.
Re-indexing the same url refreshes its content and counts as another visit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]

			var content []byte
			var err error
			if contentFile != "" {
				content, err = os.ReadFile(contentFile)
			} else {
				content, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := historian.Open(cfg)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer h.Close()

			out, err := h.Index(cmd.Context(), historian.IndexInput{
				URL:          url,
				Title:        title,
				Content:      string(content),
				VisitedAtMS:  visitedAtMS,
				DwellTimeSec: dwellSec,
			})
			if err != nil {
				return fmt.Errorf("index %s: %w", url, err)
			}

			output.New(cmd.OutOrStdout()).Successf("indexed %s: %d passages (id %s)", url, out.IndexedPassages, out.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "page title")
	cmd.Flags().StringVar(&contentFile, "file", "", "read content from this file instead of stdin")
	cmd.Flags().Int64Var(&visitedAtMS, "visited-at", 0, "visit timestamp in epoch ms (default: now)")
	cmd.Flags().IntVar(&dwellSec, "dwell-seconds", 0, "seconds spent on the page")
	return cmd
}
