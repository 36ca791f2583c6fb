// Package cli wires the a11yscan commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/logging"
)

// appFactory builds an application; tests swap in one backed by fakes.
type appFactory func(cfg *app.Config, logger logging.Logger) (*app.Application, error)

// options are shared by every command.
type options struct {
	configFile string
	logLevel   string
	memory     bool

	newApp appFactory
	out    io.Writer
}

// NewRootCommand returns the a11yscan command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{newApp: app.NewApplication, out: os.Stdout})
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "a11yscan",
		Short:         "Automated accessibility scans of public websites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.out)

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")
	root.PersistentFlags().BoolVar(&opts.memory, "memory", false, "keep scans in memory instead of SQLite")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newScanCommand(opts))
	root.AddCommand(newDemoCommand(opts))
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// loadConfig applies the file, the environment and then the flags.
func (o *options) loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.memory {
		cfg.UseMemoryStore = true
	}
	return cfg, nil
}

// newLogger returns the zap-backed logger and a func that flushes it.
func newLogger(level, component string) (logging.Logger, func()) {
	zl, err := logging.NewZapLogger(level, component)
	if err != nil {
		return logging.NewStdoutLogger(component), func() {}
	}
	return zl, func() { _ = zl.Sync() }
}
