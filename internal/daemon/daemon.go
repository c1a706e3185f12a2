package daemon

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/atomic"

	"github.com/netevent/netevent/internal/poller"
	"github.com/netevent/netevent/internal/sockctl"
	"github.com/netevent/netevent/log"
	"github.com/netevent/netevent/metrics"
)

// maxInputs bounds concurrent inputs at 2^16 (spec §3 Invariants).
const maxInputs = 1 << 16

// Daemon owns every mutable table the event loop touches (spec §4.8,
// §9 "Global mutable state": "pass a single Daemon context by explicit
// reference to every handler" rather than process-wide singletons).
type Daemon struct {
	poller *poller.Poller
	server *sockctl.Server

	inputs   []*Input
	freeIDs  []uint16
	nameToID map[string]uint16

	outputs     map[string]*Output
	current     *Output
	currentName string

	hotkeys hotkeyTable
	actions actionTable

	cmdQueue []CommandQueueEntry
	clients  map[int]*sockctl.Client

	grabbing bool

	quit *atomic.Bool
}

// New creates a Daemon listening on bindSpec (spec §4.6 bind-target
// syntax).
func New(bindSpec string) (*Daemon, error) {
	p, err := poller.New()
	if err != nil {
		return nil, err
	}
	srv, err := sockctl.Listen(bindSpec)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d := &Daemon{
		poller:   p,
		server:   srv,
		nameToID: make(map[string]uint16),
		outputs:  make(map[string]*Output),
		hotkeys:  make(hotkeyTable),
		actions:  make(actionTable),
		clients:  make(map[int]*sockctl.Client),
		quit:     atomic.NewBool(false),
	}
	d.currentName = ""
	d.updateEnv()
	d.poller.Add(srv.Fd(), poller.Callbacks{OnRead: d.onServerReadable})
	return d, nil
}

// installSignals arranges for SIGINT/SIGTERM/SIGQUIT to set the quit
// flag, SIGCHLD to reap zombies, and SIGPIPE to be ignored (spec §4.8
// "Signal handling"). The goroutine it starts is the only other
// goroutine in the process (spec §5); it never touches daemon tables.
func (d *Daemon) installSignals() {
	signal.Ignore(syscall.SIGPIPE)

	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGCHLD)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGCHLD:
				ReapChildren()
			default:
				d.quit.Store(true)
			}
			_ = d.poller.Trigger()
		}
	}()
}

// Run installs signal handlers and runs the event loop until the quit
// flag is set (spec §4.8 state machine).
func (d *Daemon) Run() error {
	d.installSignals()
	for !d.quit.Load() {
		d.drainCommandQueue()
		if err := d.poller.Flush(); err != nil {
			return err
		}
		if d.quit.Load() {
			break
		}
		if err := d.poller.RunOnce(-1, d.quit.Load); err != nil {
			return err
		}
		metrics.Add(metrics.PollWakeups, 1)
	}
	d.shutdown()
	return nil
}

// shutdown releases every resource in the destructor order spec §5
// specifies: remove queue (flushed) → callbacks map (closed with the
// poller) → clients map → outputs map, then the inputs and the control
// socket.
func (d *Daemon) shutdown() {
	_ = d.poller.Flush()
	_ = d.poller.Close()
	for fd, c := range d.clients {
		_ = c.Close()
		delete(d.clients, fd)
	}
	for _, o := range d.outputs {
		_ = o.Close()
	}
	for _, in := range d.inputs {
		if in != nil {
			_ = in.Source.Close()
		}
	}
	_ = d.server.Close()
}

// enqueue appends a command to the command queue (spec §3
// CommandQueueEntry). originFd is -1 for internally generated commands.
func (d *Daemon) enqueue(originFd int32, text string) {
	d.cmdQueue = append(d.cmdQueue, CommandQueueEntry{OriginFd: originFd, Text: text})
}

func (d *Daemon) onServerReadable() error {
	fd, err := d.server.Accept()
	if err != nil {
		log.Errorf("daemon: accept: %v", err)
		return nil
	}
	client := sockctl.NewClient(fd)
	d.clients[fd] = client
	d.poller.Add(fd, poller.Callbacks{
		OnRead: func() error { return d.onClientReadable(fd) },
		OnHup:  func() { d.dropClient(fd) },
	})
	return nil
}

func (d *Daemon) onClientReadable(fd int) error {
	client, ok := d.clients[fd]
	if !ok {
		return nil
	}
	lines, eof, err := client.ReadLines()
	if err != nil || eof {
		d.dropClient(fd)
		return nil
	}
	for _, line := range lines {
		d.enqueue(int32(fd), line)
	}
	return nil
}

func (d *Daemon) dropClient(fd int) {
	if client, ok := d.clients[fd]; ok {
		_ = client.Close()
		delete(d.clients, fd)
	}
	d.poller.Remove(fd)
}

// replyTo writes a line to a client, or to stderr for internal (-1)
// origins (spec §4.8 "parsing errors are sent back to origin_client_fd
// (or stderr if -1)").
func (d *Daemon) replyTo(originFd int32, line string) {
	if originFd < 0 {
		_, _ = os.Stderr.WriteString(line)
		return
	}
	if client, ok := d.clients[int(originFd)]; ok {
		_ = client.WriteString(line)
	}
}
