package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/clock"
	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/creds"
	"github.com/memrelay/memrelay/internal/daemon"
	"github.com/memrelay/memrelay/internal/lifecycle"
	"github.com/memrelay/memrelay/internal/logging"
	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/retry"
	"github.com/memrelay/memrelay/internal/state"
	syncpkg "github.com/memrelay/memrelay/internal/sync"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "run",
		GroupID: "daemon",
		Short:   "Run the sync daemon in the foreground",
		Long: `Run the sync loop in the foreground, logging to the daemon log file.

This is what "memrelay start" launches in the background; run it
directly to debug sync behavior. Stop with Ctrl+C, which saves state
before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			apiKey, err := creds.Load(cfg.CredentialsFile, cfg.Profile)
			if err != nil {
				return err
			}

			// Refuse to run beside another live daemon. The PID file
			// may already name this very process when start wrote it
			// before handing off, so our own PID does not count.
			if pid, err := lifecycle.ReadPID(cfg.PIDFile); err == nil && pid != os.Getpid() {
				verifier := &lifecycle.ProcVerifier{Marker: daemonMarker}
				if verifier.Alive(pid) && verifier.IsDaemon(pid) {
					return fmt.Errorf("daemon already running (pid %d)", pid)
				}
			}
			if err := lifecycle.WritePID(cfg.PIDFile, os.Getpid()); err != nil {
				return err
			}
			defer lifecycle.RemovePID(cfg.PIDFile)

			logger, closer := logging.NewFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups, clock.Real())
			defer closer.Close()

			logger.Printf("memrelay %s, container %q, pid %d", version, cfg.ContainerTag, os.Getpid())

			st := state.Load(cfg.StateFile, logger)
			client := remote.NewHTTPClient(cfg.APIBaseURL, apiKey)
			exec := retry.New(&retry.Config{
				MaxAttempts: cfg.RetryAttempts,
				BaseDelay:   cfg.RetryBaseDelay,
				CallTimeout: cfg.CallTimeout,
				Logger:      logger,
			})

			batcher, err := syncpkg.New(client, exec, st, &syncpkg.Config{
				ConversationsDir: cfg.ConversationsDir,
				ContainerTag:     cfg.ContainerTag,
				BatchSize:        cfg.BatchSize,
				MinNewRecords:    cfg.MinNewRecords,
				MaxRecordChars:   cfg.MaxRecordChars,
				Logger:           logger,
			})
			if err != nil {
				return err
			}

			d, err := daemon.New(batcher, st, &daemon.Config{
				PollInterval: cfg.PollInterval,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return d.Run(ctx)
		},
	}
}
