package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Verifier decides whether a PID belongs to the daemon this controller
// manages. PIDs are recycled by the kernel, so liveness alone is not
// enough: a marker is valid only when the process is alive AND its
// command identity matches. The procfs implementation inspects the real
// process table; tests substitute a fake so no processes are spawned.
type Verifier interface {
	// Alive reports whether any process currently has this PID.
	Alive(pid int) bool

	// IsDaemon reports whether the process looks like our daemon.
	IsDaemon(pid int) bool
}

// ProcVerifier checks liveness with signal 0 and identity through
// /proc/<pid>/cmdline.
type ProcVerifier struct {
	// Marker is the substring expected in the daemon's command line,
	// e.g. "memrelay run".
	Marker string
}

// Alive implements Verifier. Signal 0 probes existence without
// disturbing the process; EPERM still means the PID is taken.
func (v *ProcVerifier) Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// IsDaemon implements Verifier.
func (v *ProcVerifier) IsDaemon(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return false
	}
	cmdline := strings.ReplaceAll(string(data), "\x00", " ")
	return strings.Contains(cmdline, v.Marker)
}
