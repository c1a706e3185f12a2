// Package sockctl implements the daemon's control-socket listener (spec
// §4.6): a Unix SOCK_STREAM server accepting line-buffered command
// clients, with support for both filesystem-namespace and Linux
// abstract-namespace bind targets.
package sockctl

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/neterr"
)

// Server is a listening control socket.
type Server struct {
	fd   int
	path string // empty for abstract sockets; used to unlink on Close
}

// Listen parses bindSpec ("@name" for abstract, otherwise a filesystem
// path) and returns a bound, listening Server with backlog 5.
func Listen(bindSpec string) (*Server, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, neterr.IoErr(err, "socket")
	}

	addr, fsPath := bindAddr(bindSpec)
	if fsPath != "" {
		_ = unix.Unlink(fsPath)
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, neterr.IoErr(err, "bind "+bindSpec)
	}
	if err := unix.Listen(fd, 5); err != nil {
		_ = unix.Close(fd)
		return nil, neterr.IoErr(err, "listen "+bindSpec)
	}
	return &Server{fd: fd, path: fsPath}, nil
}

// bindAddr builds the SockaddrUnix for spec, per §4.6: a leading '@'
// selects the abstract namespace (first path byte NUL, no filesystem
// presence); otherwise it's a filesystem path.
func bindAddr(spec string) (addr *unix.SockaddrUnix, fsPath string) {
	if strings.HasPrefix(spec, "@") {
		return &unix.SockaddrUnix{Name: "@" + spec[1:]}, ""
	}
	return &unix.SockaddrUnix{Name: spec}, spec
}

// Fd returns the listening file descriptor, for poller registration.
func (s *Server) Fd() int { return s.fd }

// Accept accepts one pending connection with close-on-exec set.
func (s *Server) Accept() (int, error) {
	nfd, _, err := unix.Accept4(s.fd, unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, neterr.IoErr(err, "accept")
	}
	return nfd, nil
}

// Close closes the listening socket and unlinks its filesystem path, if
// any.
func (s *Server) Close() error {
	err := unix.Close(s.fd)
	if s.path != "" {
		if uerr := os.Remove(s.path); uerr != nil && !os.IsNotExist(uerr) {
			return errors.Wrap(uerr, "sockctl: unlink on close")
		}
	}
	if err != nil {
		return neterr.IoErr(err, "close control socket")
	}
	return nil
}
