package daemon

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/metrics"
)

type outputKind int

const (
	outputFile outputKind = iota
	outputExec
	outputUnix
)

// Output is the tagged "appendable, close-on-error byte sink" variant
// described in spec §9 ("Polymorphic output sink"): the three accepted
// forms (file/FIFO, piped-to-shell, Unix socket) share one fd and one
// Write contract; only Close behaves differently per kind.
type Output struct {
	Name string
	kind outputKind
	fd   int
	pid  int // outputExec only
}

// newFileOutput opens path for writing (spec §6: "open file (FIFO or
// regular), remove O_NONBLOCK after opening"). O_NONBLOCK is used only
// to avoid hanging on a FIFO with no reader yet; it is cleared
// immediately after a successful open so later writes block normally.
func newFileOutput(name, path string) (*Output, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, neterr.IoErr(err, "open output "+path)
	}
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err == nil {
		_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags&^unix.O_NONBLOCK)
	}
	return &Output{Name: name, kind: outputFile, fd: fd}, nil
}

// newExecOutput pipes a forked "sh -c cmd"'s stdin to the returned
// Output's fd (spec §6: "pipe + fork + exec of sh -c CMD, stdin of
// child = read end of pipe").
func newExecOutput(name, cmd string) (*Output, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_CLOEXEC); err != nil {
		return nil, neterr.IoErr(err, "pipe for exec output")
	}
	readFd, writeFd := fds[0], fds[1]
	pid, err := spawnShell(cmd, readFd)
	_ = unix.Close(readFd)
	if err != nil {
		_ = unix.Close(writeFd)
		return nil, err
	}
	return &Output{Name: name, kind: outputExec, fd: writeFd, pid: pid}, nil
}

// newUnixOutput connects to a listening Unix stream socket (spec §6:
// "unix:PATH or unix:@ABSTRACT").
func newUnixOutput(name, target string) (*Output, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, neterr.IoErr(err, "socket for unix output")
	}
	var addr unix.SockaddrUnix
	if strings.HasPrefix(target, "@") {
		addr.Name = "@" + target[1:]
	} else {
		addr.Name = target
	}
	if err := unix.Connect(fd, &addr); err != nil {
		_ = unix.Close(fd)
		return nil, neterr.IoErr(err, "connect output "+target)
	}
	return &Output{Name: name, kind: outputUnix, fd: fd}, nil
}

// newOutput dispatches spec string to the proper constructor (spec §6
// "Output spec forms accepted by output add").
func newOutput(name, spec string) (*Output, error) {
	switch {
	case strings.HasPrefix(spec, "exec:"):
		return newExecOutput(name, spec[len("exec:"):])
	case strings.HasPrefix(spec, "unix:"):
		return newUnixOutput(name, spec[len("unix:"):])
	default:
		return newFileOutput(name, spec)
	}
}

// Fd returns the underlying fd, for poller registration (outputs are
// polled for ERR/HUP only; they are never read).
func (o *Output) Fd() int { return o.fd }

// Write writes buf in full, retrying on EINTR.
func (o *Output) Write(buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(o.fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return neterr.IoErr(err, "write output "+o.Name)
		}
		buf = buf[n:]
	}
	metrics.Add(metrics.FramesWritten, 1)
	return nil
}

// Close closes the fd. For an exec output this is the write end of the
// pipe feeding the child's stdin, so the child sees EOF; the child
// itself is reaped later by the SIGCHLD handler (spec §3 "Subprocess").
func (o *Output) Close() error {
	if err := unix.Close(o.fd); err != nil {
		return neterr.IoErr(err, "close output "+o.Name)
	}
	return nil
}
