package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/historian-labs/historian/pkg/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the historian version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return nil
			}
			if asJSON {
				data, err := json.MarshalIndent(version.GetInfo(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print version info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	return cmd
}
