package main

import (
	goflag "flag"
	"strconv"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/eagerml/eager/internal/config"
	"github.com/eagerml/eager/runtimes"
	_ "github.com/eagerml/eager/runtimes/classic"
	_ "github.com/eagerml/eager/runtimes/stream"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "eagerctl",
		Short: "Eager tensor runtime command line",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogging(loaded.Logging.Verbosity)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging wires the klog verbosity from the loaded configuration.
func setupLogging(verbosity int) {
	var fs goflag.FlagSet
	klog.InitFlags(&fs)
	_ = fs.Set("v", strconv.Itoa(verbosity))
	_ = fs.Set("logtostderr", "true")
}

// newContext builds a context from the active configuration and applies the
// context-wide toggles.
func newContext() (runtimes.Context, error) {
	ctx, err := runtimes.NewWithConfig(activeCfg.RuntimeSpec())
	if err != nil {
		return nil, err
	}
	ctx.SetAllowSoftPlacement(activeCfg.Runtime.SoftPlacement)
	ctx.SetLogDevicePlacement(activeCfg.Logging.DevicePlacement)
	ctx.SetShouldStoreGraphs(activeCfg.Runtime.StoreGraphs)
	return ctx, nil
}
