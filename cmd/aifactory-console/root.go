package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	console "github.com/bitware/aifactory-console"
	"github.com/bitware/aifactory-console/internal/telemetry"
)

type rootOptions struct {
	configFile string
	debug      bool
	listenAddr string
	readOnly   bool
}

// newRootCmd builds the command tree. Running the root command serves
// the console.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "aifactory-console",
		Short: "AI Factory Console: operations dashboard for the AI Factory backend",
		Long: `aifactory-console serves the AI Factory operations dashboard.

Configuration comes from an optional config file, a .env file and
AIFACTORY_* environment variables (AIFACTORY_BACKEND_URL is required).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "v", false, "enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&opts.listenAddr, "listen", "", "listen address (overrides listen_addr)")
		c.Flags().BoolVar(&opts.readOnly, "read-only", false, "reject every action that writes to the backend")
	}

	rootCmd.AddCommand(serveCmd, newVersionCmd())
	return rootCmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := console.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.listenAddr != "" {
		cfg.ListenAddr = opts.listenAddr
	}
	if opts.readOnly {
		cfg.ReadOnly = true
	}

	logger, closer := telemetry.InitLogger(cfg.Debug || opts.debug, cfg.LogFile)
	defer closer.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := console.NewServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	logger.Info("starting console", "version", console.Version, "backend", cfg.BackendURL,
		"read_only", cfg.ReadOnly)
	return srv.Run(ctx)
}
