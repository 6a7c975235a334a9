package lifecycle

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/memrelay/memrelay/internal/clock"
)

// fakeVerifier lets tests script process liveness and identity without
// real processes. Nil funcs report false.
type fakeVerifier struct {
	alive    func(pid int) bool
	isDaemon func(pid int) bool
}

func (f *fakeVerifier) Alive(pid int) bool {
	if f.alive == nil {
		return false
	}
	return f.alive(pid)
}

func (f *fakeVerifier) IsDaemon(pid int) bool {
	if f.isDaemon == nil {
		return false
	}
	return f.isDaemon(pid)
}

func alwaysValid() *fakeVerifier {
	return &fakeVerifier{
		alive:    func(int) bool { return true },
		isDaemon: func(int) bool { return true },
	}
}

func fakeDaemonScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-daemon")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("failed to write fake daemon script: %v", err)
	}
	return path
}

func noKill(pid int, sig unix.Signal) error { return nil }

func testController(t *testing.T, cfg *Config) *Controller {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Kill == nil {
		cfg.Kill = noKill
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewFake(time.Now())
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{PIDFile: "p", Verifier: alwaysValid()}); err == nil {
		t.Error("expected error for empty daemon argv")
	}
	if _, err := New(&Config{PIDFile: "p", DaemonArgs: []string{"d"}}); err == nil {
		t.Error("expected error for nil verifier")
	}
}

func TestCheckIdentityMismatchLeavesMarker(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePID(pidFile, os.Getpid()); err != nil {
		t.Fatalf("failed to seed PID file: %v", err)
	}

	// The process is alive but is not the daemon: the marker is stale.
	v := &fakeVerifier{
		alive:    func(int) bool { return true },
		isDaemon: func(int) bool { return false },
	}
	c := testController(t, &Config{
		PIDFile:    pidFile,
		DaemonArgs: []string{"/nonexistent/daemon"},
		Verifier:   v,
	})

	if c.Check() {
		t.Error("expected check to report not running for an identity mismatch")
	}
	if _, err := os.Stat(pidFile); err != nil {
		t.Errorf("expected check to leave the marker in place: %v", err)
	}
}

func TestRunningRemovesStaleMarker(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePID(pidFile, 999999); err != nil {
		t.Fatalf("failed to seed PID file: %v", err)
	}

	c := testController(t, &Config{
		PIDFile:    pidFile,
		DaemonArgs: []string{"/nonexistent/daemon"},
		Verifier:   &fakeVerifier{},
	})

	if _, ok := c.Running(); ok {
		t.Error("expected not running for a dead PID")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Errorf("expected stale marker to be removed, stat returned %v", err)
	}
}

func TestStartAlreadyRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePID(pidFile, 4242); err != nil {
		t.Fatalf("failed to seed PID file: %v", err)
	}

	// The argv points at a nonexistent binary, so a successful Start
	// proves no spawn was attempted.
	c := testController(t, &Config{
		PIDFile:    pidFile,
		DaemonArgs: []string{"/nonexistent/daemon"},
		Verifier:   alwaysValid(),
	})

	if err := c.Start(); err != nil {
		t.Fatalf("expected start to succeed when already running: %v", err)
	}
	pid, err := ReadPID(pidFile)
	if err != nil {
		t.Fatalf("failed to read PID file: %v", err)
	}
	if pid != 4242 {
		t.Errorf("expected marker to be untouched, got pid %d", pid)
	}
}

func TestStartReplacesStaleMarker(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePID(pidFile, 999999); err != nil {
		t.Fatalf("failed to seed PID file: %v", err)
	}

	// The stale PID is dead; whatever Start spawns is the daemon.
	v := &fakeVerifier{
		alive:    func(pid int) bool { return pid != 999999 },
		isDaemon: func(pid int) bool { return pid != 999999 },
	}
	fake := clock.NewFake(time.Now())
	c := testController(t, &Config{
		PIDFile:    pidFile,
		LogFile:    "/tmp/daemon.log",
		DaemonArgs: []string{fakeDaemonScript(t)},
		Verifier:   v,
		Clock:      fake,
	})

	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	pid, err := ReadPID(pidFile)
	if err != nil {
		t.Fatalf("failed to read PID file: %v", err)
	}
	if pid == 999999 {
		t.Error("expected marker to hold the new daemon PID")
	}

	waits := fake.Waits()
	if len(waits) != 1 || waits[0] != time.Second {
		t.Errorf("expected a single 1s settle wait, got %v", waits)
	}
}

func TestStartFailsWhenDaemonDiesDuringStartup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")

	c := testController(t, &Config{
		PIDFile:    pidFile,
		LogFile:    "/tmp/daemon.log",
		DaemonArgs: []string{fakeDaemonScript(t)},
		Verifier:   &fakeVerifier{},
	})

	err := c.Start()
	if err == nil {
		t.Fatal("expected start to fail when the daemon dies immediately")
	}
	if !strings.Contains(err.Error(), "daemon exited during startup") {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "/tmp/daemon.log") {
		t.Errorf("expected error to point at the log file, got %v", err)
	}
	if _, statErr := os.Stat(pidFile); !os.IsNotExist(statErr) {
		t.Errorf("expected marker removed after failed start, stat returned %v", statErr)
	}
}

func TestStopGraceful(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePID(pidFile, 4242); err != nil {
		t.Fatalf("failed to seed PID file: %v", err)
	}

	alive := true
	var signals []unix.Signal
	fake := clock.NewFake(time.Now())
	c := testController(t, &Config{
		PIDFile:    pidFile,
		DaemonArgs: []string{"/nonexistent/daemon"},
		Verifier: &fakeVerifier{
			alive:    func(int) bool { return alive },
			isDaemon: func(int) bool { return true },
		},
		Kill: func(pid int, sig unix.Signal) error {
			signals = append(signals, sig)
			alive = false
			return nil
		},
		Clock: fake,
	})

	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if len(signals) != 1 || signals[0] != unix.SIGTERM {
		t.Errorf("expected a single SIGTERM, got %v", signals)
	}
	if waits := fake.Waits(); len(waits) != 1 || waits[0] != time.Second {
		t.Errorf("expected a single 1s poll wait, got %v", waits)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Errorf("expected marker removed after stop, stat returned %v", err)
	}
}

func TestStopEscalatesToSigkill(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")
	if err := WritePID(pidFile, 4242); err != nil {
		t.Fatalf("failed to seed PID file: %v", err)
	}

	var signals []unix.Signal
	var logBuf bytes.Buffer
	fake := clock.NewFake(time.Now())
	c := testController(t, &Config{
		PIDFile:    pidFile,
		DaemonArgs: []string{"/nonexistent/daemon"},
		Verifier:   alwaysValid(),
		Kill: func(pid int, sig unix.Signal) error {
			signals = append(signals, sig)
			return nil
		},
		Clock:  fake,
		Logger: log.New(&logBuf, "", 0),
	})

	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	want := []unix.Signal{unix.SIGTERM, unix.SIGKILL}
	if len(signals) != len(want) {
		t.Fatalf("expected signals %v, got %v", want, signals)
	}
	for i, sig := range want {
		if signals[i] != sig {
			t.Errorf("signal %d: expected %v, got %v", i, sig, signals[i])
		}
	}

	waits := fake.Waits()
	if len(waits) != stopPollAttempts {
		t.Errorf("expected %d poll waits, got %d", stopPollAttempts, len(waits))
	}
	if !strings.Contains(logBuf.String(), "did not exit gracefully") {
		t.Errorf("expected escalation warning in log, got %q", logBuf.String())
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Errorf("expected marker removed after stop, stat returned %v", err)
	}
}

func TestStopNotRunning(t *testing.T) {
	var signals []unix.Signal
	c := testController(t, &Config{
		PIDFile:    filepath.Join(t.TempDir(), "daemon.pid"),
		DaemonArgs: []string{"/nonexistent/daemon"},
		Verifier:   &fakeVerifier{},
		Kill: func(pid int, sig unix.Signal) error {
			signals = append(signals, sig)
			return nil
		},
	})

	if err := c.Stop(); err != nil {
		t.Fatalf("expected stop of a stopped daemon to succeed: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals, got %v", signals)
	}
}

func TestRestart(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "daemon.pid")

	c := testController(t, &Config{
		PIDFile:    pidFile,
		DaemonArgs: []string{fakeDaemonScript(t)},
		Verifier:   alwaysValid(),
	})

	if err := c.Restart(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if _, err := ReadPID(pidFile); err != nil {
		t.Errorf("expected a fresh marker after restart: %v", err)
	}
}
