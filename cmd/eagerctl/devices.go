package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices of the selected runtime family",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := newContext()
			if err != nil {
				return err
			}
			defer ctx.Finalize()
			fmt.Fprintf(cmd.OutOrStdout(), "runtime family: %s\n", ctx.Kind())
			fmt.Fprintf(cmd.OutOrStdout(), "host CPU: %s\n", ctx.HostCPUName())
			for _, device := range ctx.ListDevices() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", device)
			}
			return nil
		},
	}
}
