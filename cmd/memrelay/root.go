package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/memrelay/memrelay/internal/config"
	"github.com/memrelay/memrelay/internal/lifecycle"
)

// daemonMarker is the substring that identifies a daemon process in
// /proc/<pid>/cmdline, guarding against PID reuse by unrelated
// programs.
const daemonMarker = "memrelay run"

// exitError carries a specific process exit code out of a RunE without
// printing anything further.
type exitError struct{ code int }

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memrelay",
		Short: "Sync conversation logs and memory notes to a knowledge index",
		Long: `memrelay watches local conversation logs, batches new records, and
uploads them to a remote knowledge-indexing service so past context can
be searched from anywhere.

The daemon runs in the background (memrelay start) or in the foreground
for debugging (memrelay run). Progress is tracked per source file in a
small state file, so uploads resume where they left off and survive
restarts.

Configuration comes from MEMRELAY_* environment variables; run
"memrelay setup" once to store the API key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "daemon", Title: "Daemon Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
	)

	rootCmd.AddCommand(
		newRunCmd(),
		newStartCmd(),
		newStopCmd(),
		newRestartCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newCheckCmd(),
		newDashboardCmd(),
		newSearchCmd(),
		newPushMemoryCmd(),
		newSetupCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// newController builds the lifecycle controller shared by the daemon
// management commands. Controller logs go straight to stdout so start
// and stop read like normal command output.
func newController(cfg *config.Config) (*lifecycle.Controller, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return lifecycle.New(&lifecycle.Config{
		PIDFile:    cfg.PIDFile,
		LogFile:    cfg.LogFile,
		DaemonArgs: []string{exe, "run"},
		Verifier:   &lifecycle.ProcVerifier{Marker: daemonMarker},
		Logger:     log.New(os.Stdout, "", 0),
	})
}
