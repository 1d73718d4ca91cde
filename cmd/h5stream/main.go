// Command h5stream writes, inspects and verifies streamed HDF5 containers.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/robert-malhotra/go-h5stream/hdf5"
)

const envPrefix = "H5STREAM"

// Exit codes.
const (
	exitError    = 1
	exitMismatch = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, hdf5.ErrDimensionMismatch) {
			os.Exit(exitMismatch)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "h5stream",
		Short: "Write, inspect and verify streamed HDF5 containers",
		Long: `h5stream writes chunked HDF5 datasets from a streamed source and reads
them back.

Every flag can also be set in a YAML manifest passed with --config, or in
the environment as H5STREAM_<FLAG>, with dashes replaced by underscores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading manifest: %w", err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "YAML manifest with flag values")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlags(root.PersistentFlags())

	root.AddCommand(newGenerateCmd(v), newInspectCmd(v), newVerifyCmd())
	return root
}

// newLogger builds a console logger writing to stderr.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	c := zap.NewProductionConfig()
	c.Level = lvl
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.DisableStacktrace = true
	return c.Build()
}

func formatDims(dims []uint64) string {
	if len(dims) == 0 {
		return "scalar"
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "x")
}
