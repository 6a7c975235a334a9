package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/creds"
	"github.com/memrelay/memrelay/internal/remote"
	"github.com/memrelay/memrelay/internal/state"
	"github.com/memrelay/memrelay/internal/tail"
	"github.com/memrelay/memrelay/internal/ui"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		GroupID: "daemon",
		Short:   "Start the sync daemon in the background",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctl, err := newController(cfg)
			if err != nil {
				return err
			}
			return ctl.Start()
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		GroupID: "daemon",
		Short:   "Stop the sync daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctl, err := newController(cfg)
			if err != nil {
				return err
			}
			return ctl.Stop()
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "restart",
		GroupID: "daemon",
		Short:   "Restart the sync daemon",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctl, err := newController(cfg)
			if err != nil {
				return err
			}
			return ctl.Restart()
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: "daemon",
		Short:   "Show daemon state and sync progress",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctl, err := newController(cfg)
			if err != nil {
				return err
			}

			p := ui.New(os.Stdout)

			if pid, running := ctl.Running(); running {
				fmt.Printf("%s memrelay daemon running (pid %d)\n", ui.RenderPass("●"), pid)
			} else {
				fmt.Printf("%s memrelay daemon stopped\n", ui.RenderFail("●"))
			}

			// Account line, best effort: status must stay useful offline
			// and before setup has run.
			if apiKey, err := creds.Load(cfg.CredentialsFile, cfg.Profile); err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
				if profile, err := remote.NewHTTPClient(cfg.APIBaseURL, apiKey).Profile(ctx); err == nil {
					fmt.Println(p.KeyValue("Account", profile.Email))
				}
				cancel()
			}

			st, err := state.Read(cfg.StateFile)
			if err != nil {
				fmt.Println(ui.RenderFaint("No sync recorded yet"))
				return nil
			}

			fmt.Println(p.KeyValue("Total synced", fmt.Sprintf("%d records", st.TotalSynced)))
			fmt.Println(p.KeyValue("Last sync", ui.FormatSyncTime(st.LastSyncTime)))

			if len(st.Sources) == 0 {
				return nil
			}
			fmt.Println(p.KeyValue("Sources", fmt.Sprintf("%d", len(st.Sources))))

			ids := make([]string, 0, len(st.Sources))
			for id := range st.Sources {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				src := st.Sources[id]
				fmt.Printf("    %s line %d, %d batches\n", p.Label.Render(id), src.LastLine, src.BatchCount)
			}
			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:     "logs",
		GroupID: "daemon",
		Short:   "Print the daemon log",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			last, err := tail.LastLines(cfg.LogFile, lines)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Println(ui.RenderWarn("No log file yet, start the daemon first"))
					return nil
				}
				return err
			}
			for _, line := range last {
				fmt.Println(line)
			}

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tail.Follow(ctx, cfg.LogFile, os.Stdout)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new log lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		GroupID: "daemon",
		Short:   "Probe daemon liveness without side effects",
		Long: `Exit 0 if the daemon is running, 1 otherwise.

Unlike status, check never modifies the PID file, so it is safe to run
from cron or a supervisor at any frequency.`,
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
			if ctl.Check() {
				fmt.Println("running")
				return nil
			}
			fmt.Println("not running")
			return &exitError{code: 1}
		},
	}
}
