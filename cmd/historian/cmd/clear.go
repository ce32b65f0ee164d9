package cmd

import (
	"fmt"

	"github.com/historian-labs/historian/internal/output"
	"github.com/historian-labs/historian/pkg/historian"
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every indexed page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the index without --yes")
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

			if err := h.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			output.New(cmd.OutOrStdout()).Success("index cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm irreversible deletion of the entire index")
	return cmd
}
