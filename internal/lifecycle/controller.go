package lifecycle

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/memrelay/memrelay/internal/clock"
)

const (
	// startSettleDelay is how long start waits before confirming the
	// spawned daemon survived its own startup.
	startSettleDelay = time.Second

	// stopPollInterval and stopPollAttempts bound the graceful-exit
	// window before stop escalates to SIGKILL.
	stopPollInterval = time.Second
	stopPollAttempts = 5
)

// Config holds controller wiring.
type Config struct {
	// PIDFile is the liveness marker location.
	PIDFile string

	// LogFile is pointed to in start-failure diagnostics.
	LogFile string

	// DaemonArgs is the argv used to spawn the daemon, binary first.
	DaemonArgs []string

	// Verifier validates marker PIDs.
	Verifier Verifier

	// Kill sends a signal to a process; tests override it.
	Kill func(pid int, sig unix.Signal) error

	// Clock supplies the settle and poll waits.
	Clock clock.Clock

	// Logger for controller output.
	Logger *log.Logger
}

// Controller implements the start/stop/restart/status/check operations
// over the liveness marker.
type Controller struct {
	cfg *Config
}

// New creates a controller.
func New(cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.PIDFile == "" {
		return nil, fmt.Errorf("PID file path cannot be empty")
	}
	if len(cfg.DaemonArgs) == 0 {
		return nil, fmt.Errorf("daemon argv cannot be empty")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	if cfg.Kill == nil {
		cfg.Kill = unix.Kill
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", 0)
	}
	return &Controller{cfg: cfg}, nil
}

// validPID is the read-only validity determination: a marker is valid
// only when its process is alive and matches the daemon identity.
func (c *Controller) validPID() (int, bool) {
	pid, err := ReadPID(c.cfg.PIDFile)
	if err != nil {
		return 0, false
	}
	if !c.cfg.Verifier.Alive(pid) {
		return 0, false
	}
	if !c.cfg.Verifier.IsDaemon(pid) {
		return 0, false
	}
	return pid, true
}

// Running determines marker validity and clears an invalid marker, as
// every start/stop/status decision requires.
func (c *Controller) Running() (int, bool) {
	pid, ok := c.validPID()
	if !ok {
		if _, err := os.Stat(c.cfg.PIDFile); err == nil {
			c.cfg.Logger.Println("Removing stale PID file")
			_ = RemovePID(c.cfg.PIDFile)
		}
		return 0, false
	}
	return pid, true
}

// Check is the silent liveness probe for unattended watchdogs. It never
// mutates the marker.
func (c *Controller) Check() bool {
	_, ok := c.validPID()
	return ok
}

// Start launches the daemon unless a valid marker shows it is already
// running. The child is detached into its own session; its PID becomes
// the new marker, re-validated after a short settle wait.
func (c *Controller) Start() error {
	if pid, ok := c.Running(); ok {
		c.cfg.Logger.Printf("Daemon already running (pid %d)", pid)
		return nil
	}

	cmd := exec.Command(c.cfg.DaemonArgs[0], c.cfg.DaemonArgs[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch daemon: %w", err)
	}
	pid := cmd.Process.Pid

	if err := WritePID(c.cfg.PIDFile, pid); err != nil {
		return err
	}

	// The daemon must outlive this controller process.
	if err := cmd.Process.Release(); err != nil {
		c.cfg.Logger.Printf("Warning: failed to release daemon process: %v", err)
	}

	<-c.cfg.Clock.After(startSettleDelay)

	if _, ok := c.validPID(); !ok {
		_ = RemovePID(c.cfg.PIDFile)
		return fmt.Errorf("daemon exited during startup, see %s", c.cfg.LogFile)
	}

	c.cfg.Logger.Printf("Daemon started (pid %d)", pid)
	return nil
}

// Stop asks the daemon to exit, escalating to SIGKILL when the graceful
// window runs out. The marker is always cleared afterward.
func (c *Controller) Stop() error {
	pid, ok := c.Running()
	if !ok {
		c.cfg.Logger.Println("Daemon is not running")
		return nil
	}

	c.cfg.Logger.Printf("Stopping daemon (pid %d)", pid)
	if err := c.cfg.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return RemovePID(c.cfg.PIDFile)
		}
		return fmt.Errorf("failed to signal daemon: %w", err)
	}

	for i := 0; i < stopPollAttempts; i++ {
		<-c.cfg.Clock.After(stopPollInterval)
		if !c.cfg.Verifier.Alive(pid) {
			c.cfg.Logger.Println("Daemon stopped")
			return RemovePID(c.cfg.PIDFile)
		}
	}

	c.cfg.Logger.Println("Warning: daemon did not exit gracefully, sending SIGKILL")
	if err := c.cfg.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		c.cfg.Logger.Printf("Warning: failed to kill daemon: %v", err)
	}
	return RemovePID(c.cfg.PIDFile)
}

// Restart stops any running daemon, then starts a fresh one.
func (c *Controller) Restart() error {
	if err := c.Stop(); err != nil {
		return err
	}
	return c.Start()
}
