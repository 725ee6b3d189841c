// Package config loads the eagerctl configuration from flags, environment
// variables (EAGERML_*) and an optional config file, in that order of
// precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type RuntimeConfig struct {
	// Family selects the runtime family ("classic" or "stream"); empty
	// picks the first registered one.
	Family string `mapstructure:"family"`

	// Config is the family-specific configuration, e.g. "cpus=4".
	Config string `mapstructure:"config"`

	SoftPlacement bool `mapstructure:"soft_placement"`
	StoreGraphs   bool `mapstructure:"store_graphs"`
}

type LoggingConfig struct {
	DevicePlacement bool `mapstructure:"device_placement"`
	Verbosity       int  `mapstructure:"verbosity"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Runtime: RuntimeConfig{
			Family:        "",
			Config:        "",
			SoftPlacement: false,
			StoreGraphs:   false,
		},
		Logging: LoggingConfig{
			DevicePlacement: false,
			Verbosity:       0,
		},
	}
}

// RuntimeSpec formats the runtime selection as the
// "<family>:<family_configuration>" string the runtimes package consumes.
func (c Config) RuntimeSpec() string {
	if c.Runtime.Family == "" {
		return c.Runtime.Config
	}
	return c.Runtime.Family + ":" + c.Runtime.Config
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("runtime-family", defaults.Runtime.Family, "Runtime family (classic|stream)")
	fs.String("runtime-config", defaults.Runtime.Config, "Family-specific configuration, e.g. cpus=4")
	fs.Bool("runtime-soft-placement", defaults.Runtime.SoftPlacement, "Fall back to the host CPU for unknown devices")
	fs.Bool("runtime-store-graphs", defaults.Runtime.StoreGraphs, "Collect per-node run metadata")
	fs.Bool("logging-device-placement", defaults.Logging.DevicePlacement, "Log the device every op is placed on")
	fs.Int("logging-verbosity", defaults.Logging.Verbosity, "klog verbosity level")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("EAGERML")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("eagerctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("runtime.family", c.Runtime.Family)
	v.SetDefault("runtime.config", c.Runtime.Config)
	v.SetDefault("runtime.soft_placement", c.Runtime.SoftPlacement)
	v.SetDefault("runtime.store_graphs", c.Runtime.StoreGraphs)
	v.SetDefault("logging.device_placement", c.Logging.DevicePlacement)
	v.SetDefault("logging.verbosity", c.Logging.Verbosity)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("runtime.family", "runtime-family")
	v.RegisterAlias("runtime.config", "runtime-config")
	v.RegisterAlias("runtime.soft_placement", "runtime-soft-placement")
	v.RegisterAlias("runtime.store_graphs", "runtime-store-graphs")
	v.RegisterAlias("logging.device_placement", "logging-device-placement")
	v.RegisterAlias("logging.verbosity", "logging-verbosity")
}
