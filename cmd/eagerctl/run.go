package main

import (
	"fmt"
	"strconv"

	"github.com/janpfeifer/must"
	"github.com/spf13/cobra"

	"github.com/eagerml/eager/runtimes"
)

// newRunCmd smoke-tests the selected runtime: it runs Add over two scalar
// operands through the executor pipeline and prints the result.
func newRunCmd() *cobra.Command {
	var opName string
	cmd := &cobra.Command{
		Use:   "run [a] [b]",
		Short: "Execute a binary op over two float32 scalars",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b := float32(1), float32(2)
			if len(args) > 0 {
				a = parseScalar(args[0])
			}
			if len(args) > 1 {
				b = parseScalar(args[1])
			}

			ctx, err := newContext()
			if err != nil {
				return err
			}
			defer ctx.Finalize()

			tid := runtimes.NewThreadID()
			lhs := ctx.CreateLocalHandle(ctx.CreateFloat32Scalar(a))
			rhs := ctx.CreateLocalHandle(ctx.CreateFloat32Scalar(b))
			defer lhs.Release()
			defer rhs.Release()

			op := ctx.CreateOperation(tid)
			if err := op.Reset(opName, ""); err != nil {
				return err
			}
			if err := op.AddInputs(lhs, rhs); err != nil {
				return err
			}
			outputs, err := op.Execute(1)
			if err != nil {
				return err
			}
			defer outputs[0].Release()
			if err := ctx.AsyncWait(tid); err != nil {
				return err
			}

			buffer := must.M1(outputs[0].Buffer())
			fmt.Fprintf(cmd.OutOrStdout(), "%s(%v, %v) = %v on %s\n",
				opName, a, b, runtimes.ScalarValue[float32](buffer), outputs[0].Device())

			if activeCfg.Runtime.StoreGraphs {
				meta := ctx.ExportRunMetadata()
				for _, stats := range meta.NodeStats {
					fmt.Fprintf(cmd.OutOrStdout(), "  node %s on %s: %dus\n",
						stats.OpName, stats.Device, stats.AllEndMicros-stats.AllStartMicros)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opName, "op", "Add", "Binary op to execute (Add|Sub|Mul)")
	return cmd
}

func parseScalar(s string) float32 {
	return float32(must.M1(strconv.ParseFloat(s, 32)))
}
