// Command netevent-create is the receiver half of the protocol: it
// consumes one netevent-2 stream (over a connection it either dials or
// accepts) and materializes uinput devices from it, per spec §6
// "create subcommand options".
package main

import (
	"flag"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/receiver"
	"github.com/netevent/netevent/internal/sockctl"
	"github.com/netevent/netevent/log"
)

func main() {
	duplicates := flag.String("duplicates", receiver.DuplicatesReject, "behavior on a repeated AddDevice id: reject|resume|replace")
	listen := flag.String("listen", "", "accept connections on SOCKSPEC and consume each in turn")
	connect := flag.String("connect", "", "dial SOCKSPEC once and consume that single stream")
	onClose := flag.String("on-close", "end", "after a connection's stream ends: end|accept")
	daemonize := flag.Bool("daemonize", false, "detach into the background before serving")
	flag.Parse()

	switch *duplicates {
	case receiver.DuplicatesReject, receiver.DuplicatesResume, receiver.DuplicatesReplace:
	default:
		log.Fatalf("netevent-create: -duplicates must be reject|resume|replace, got %q", *duplicates)
	}
	if *onClose != "end" && *onClose != "accept" {
		log.Fatalf("netevent-create: -on-close must be end|accept, got %q", *onClose)
	}
	if (*listen == "") == (*connect == "") {
		log.Fatalf("netevent-create: exactly one of -listen or -connect is required")
	}

	if *daemonize {
		daemonizeOrExit()
	}

	if *connect != "" {
		if err := runConnect(*connect, *duplicates); err != nil {
			log.Errorf("netevent-create: %v", err)
			os.Exit(2)
		}
		return
	}

	if err := runListen(*listen, *duplicates, *onClose); err != nil {
		log.Errorf("netevent-create: %v", err)
		os.Exit(2)
	}
}

// runConnect dials target once, consumes that single stream to
// completion, then returns: there is no accept loop to resume into
// since the receiver itself initiated the only connection (spec §6:
// "--connect" is the reversed-topology counterpart of "--listen").
func runConnect(target, duplicates string) error {
	fd, err := dial(target)
	if err != nil {
		return err
	}
	conn := os.NewFile(uintptr(fd), "netevent-connect")
	defer conn.Close()

	sess := receiver.NewSession(duplicates)
	defer sess.Close()
	return sess.Run(conn)
}

// runListen accepts connections on bindSpec, consuming each stream with
// one Session shared by every connection, so materialized devices
// persist across reconnects. In -on-close accept mode, once a stream
// ends (cleanly or with an error) it accepts the next connection and
// keeps serving; in end mode it exits after the first.
func runListen(bindSpec, duplicates, onClose string) error {
	srv, err := sockctl.Listen(bindSpec)
	if err != nil {
		return err
	}
	defer srv.Close()

	sess := receiver.NewSession(duplicates)
	defer sess.Close()
	for {
		fd, err := srv.Accept()
		if err != nil {
			return err
		}
		conn := os.NewFile(uintptr(fd), "netevent-create-conn")
		runErr := sess.Run(conn)
		conn.Close()
		if runErr != nil {
			log.Errorf("netevent-create: stream error: %v", runErr)
		}
		if onClose == "end" {
			return runErr
		}
	}
}

func dial(target string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	addr := &unix.SockaddrUnix{Name: target}
	if len(target) > 0 && target[0] == '@' {
		addr.Name = "@" + target[1:]
	}
	if err := unix.Connect(fd, addr); err != nil {
		_ = unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

// daemonizeOrExit re-executes the current binary (minus -daemonize) in
// a new session with stdio redirected to /dev/null, then exits the
// parent. It does not double-fork; a single setsid detach is enough
// for a process that never opens a controlling terminal.
func daemonizeOrExit() {
	self, err := os.Executable()
	if err != nil {
		log.Fatalf("netevent-create: -daemonize: %v", err)
	}
	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "-daemonize" && a != "--daemonize" {
			args = append(args, a)
		}
	}

	devnull, err := unix.Open("/dev/null", unix.O_RDWR, 0)
	if err != nil {
		log.Fatalf("netevent-create: -daemonize: open /dev/null: %v", err)
	}
	defer unix.Close(devnull)

	attr := &syscall.ProcAttr{
		Files: []uintptr{uintptr(devnull), uintptr(devnull), uintptr(devnull)},
		Env:   os.Environ(),
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}
	argv := append([]string{self}, args...)
	if _, err := syscall.ForkExec(self, argv, attr); err != nil {
		log.Fatalf("netevent-create: -daemonize: fork/exec: %v", err)
	}
	os.Exit(0)
}
