package cli

import (
	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/demoserver"
)

func newDemoCommand(opts *options) *cobra.Command {
	cfg := demoserver.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve a small site with deliberate accessibility problems",
		Long: "Serve a demo shop whose pages can be switched between broken and repaired\n" +
			"versions at /demo/control. Scanning it needs --allow-private since it runs on localhost.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := opts.logLevel
			if level == "" {
				level = "info"
			}
			logger, flush := newLogger(level, "demoserver")
			defer flush()
			cfg.Logger = logger
			return demoserver.NewDemoServer(cfg).Start(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	cmd.Flags().IntVar(&cfg.InitialVersion, "version", cfg.InitialVersion, "initial version of every page")
	return cmd
}
