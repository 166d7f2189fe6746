package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func headCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "print the current chain head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := openController()
			if err != nil {
				return err
			}
			h := ctrl.GetHeadInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "height: %d\nid: %s\nprevious: %s\ntimestamp: %d\n",
				h.Height, h.ID, h.Previous, h.Timestamp)
			return nil
		},
	}
}
