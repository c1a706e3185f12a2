package daemon

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/log"
)

// reapedStatus holds exit statuses collected by ReapChildren for pids
// not yet claimed by waitForPid. The SIGCHLD-handling goroutine is the
// only one that stores entries; waitForPid (called only from the loop
// goroutine) only loads and deletes them, so a sync.Map avoids a mutex
// on the signal path.
var reapedStatus sync.Map // pid(int) -> syscall.WaitStatus

// ReapChildren drains all exited children without blocking. It is the
// daemon's SIGCHLD handler body (spec §4.8) and must never touch daemon
// tables directly; the signal-handling goroutine that calls it does
// nothing else.
func ReapChildren() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
		reapedStatus.Store(pid, ws)
	}
}

// spawnShell forks and execs "/bin/sh -c cmd", with stdin wired to
// stdinFd (or /dev/null if stdinFd < 0) and stdout/stderr inherited.
// Close-on-exec is already set on every fd the daemon owns (spec §5
// "File descriptor policy"), so the fork+exec's implicit fd closing in
// the child takes the place of an explicit pre-exec hook that walks and
// closes the outputs/callback tables by hand.
func spawnShell(cmd string, stdinFd int) (pid int, err error) {
	devnull := -1
	if stdinFd < 0 {
		devnull, err = unix.Open("/dev/null", unix.O_RDONLY, 0)
		if err != nil {
			return 0, neterr.IoErr(err, "open /dev/null")
		}
		defer unix.Close(devnull)
		stdinFd = devnull
	}
	attr := &syscall.ProcAttr{
		Files: []uintptr{uintptr(stdinFd), uintptr(unix.Stdout), uintptr(unix.Stderr)},
		Env:   environ(),
	}
	pid, err = syscall.ForkExec("/bin/sh", []string{"sh", "-c", cmd}, attr)
	if err != nil {
		return 0, neterr.IoErr(err, "fork/exec sh -c")
	}
	return pid, nil
}

// waitForPid blocks until pid has exited, tolerating the case where the
// SIGCHLD handler already reaped it first.
func waitForPid(pid int) {
	if _, ok := reapedStatus.LoadAndDelete(pid); ok {
		return
	}
	var ws syscall.WaitStatus
	_, err := syscall.Wait4(pid, &ws, 0, nil)
	if err == syscall.ECHILD {
		// The SIGCHLD handler won the race and already reaped it.
		reapedStatus.Delete(pid)
		return
	}
	if err != nil {
		log.Debugf("daemon: wait4(%d): %v", pid, err)
	}
}
