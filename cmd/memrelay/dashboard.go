package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:     "dashboard",
		GroupID: "daemon",
		Short:   "Serve a live web view of sync progress",
		Long: `Start a local web server that streams sync progress and daemon log
lines to connected browsers over WebSockets.

The server reads the same state file the daemon writes and follows the
daemon log, so it works whether or not the daemon is currently up.

Examples:
  memrelay dashboard                 # listen on 127.0.0.1:7343
  memrelay dashboard --addr :9000    # listen on all interfaces`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctl, err := newController(cfg)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = cfg.DashboardAddr
			}
			logger := log.New(os.Stderr, "[dashboard] ", log.LstdFlags)

			server := dashboard.NewServer(&dashboard.Config{
				Addr:   addr,
				Logger: logger,
			})
			if err := server.Start(); err != nil {
				return err
			}

			feeder, err := dashboard.NewFeeder(server, &dashboard.FeederConfig{
				StateFile: cfg.StateFile,
				LogFile:   cfg.LogFile,
				Running:   ctl.Check,
				Logger:    logger,
			})
			if err != nil {
				server.Stop()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go feeder.Run(ctx)

			fmt.Printf("Dashboard running at http://%s\n", server.Addr())
			fmt.Println("Press Ctrl+C to stop")

			<-ctx.Done()

			fmt.Println("\nShutting down dashboard...")
			return server.Stop()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default MEMRELAY_DASHBOARD_ADDR or 127.0.0.1:7343)")
	return cmd
}
