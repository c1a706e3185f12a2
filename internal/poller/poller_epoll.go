//go:build linux
// +build linux

package poller

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/log"
)

const rflags = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLPRI

const defaultEventCount = 64

// Poller is the daemon's single epoll instance. All methods except
// Trigger are meant to be called from the single loop goroutine; Trigger
// is the one entry point safe to call from the signal-handling goroutine
// (spec §5: "Signal handlers communicate only via a process-wide atomic
// flag ... and wake the loop").
type Poller struct {
	epfd      int
	wakeFD    int
	events    []unix.EpollEvent
	callbacks map[int]*Callbacks

	addQueue    []addRequest
	removeQueue map[int]struct{}
}

// New creates the epoll instance and its wakeup eventfd, and registers
// the eventfd for reading so Trigger can interrupt a blocked Wait.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("epoll_create1", err), "poller.New")
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, errors.Wrap(os.NewSyscallError("eventfd", err), "poller.New")
	}
	p := &Poller{
		epfd:        epfd,
		wakeFD:      wakeFD,
		events:      make([]unix.EpollEvent, defaultEventCount),
		callbacks:   make(map[int]*Callbacks),
		removeQueue: make(map[int]struct{}),
	}
	if err := epollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, rflags); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFD)
		return nil, err
	}
	return p, nil
}

// Add queues fd for registration on the next Flush, associating cb with
// it. Per spec §4.1, the registration does not take effect until the
// next loop iteration.
func (p *Poller) Add(fd int, cb Callbacks) {
	p.addQueue = append(p.addQueue, addRequest{fd: fd, cb: cb})
}

// Remove idempotently queues fd for removal. Calling Remove again for an
// fd already queued is a no-op; OnRemove runs exactly once, from Flush
// (or from Close, if the poller is closed first).
func (p *Poller) Remove(fd int) {
	p.removeQueue[fd] = struct{}{}
}

// Flush merges the AddQueue into the live epoll set, then processes the
// RemoveQueue: for every queued fd, invoke its OnRemove (if the fd was
// ever actually registered), remove it from epoll, and erase its
// callbacks entry. This implements spec §4.1 steps 2 and 3.
func (p *Poller) Flush() error {
	for _, req := range p.addQueue {
		if err := epollCtl(p.epfd, unix.EPOLL_CTL_ADD, req.fd, rflags); err != nil {
			return errors.Wrapf(err, "poller: add fd %d", req.fd)
		}
		cb := req.cb
		p.callbacks[req.fd] = &cb
	}
	p.addQueue = p.addQueue[:0]

	for fd := range p.removeQueue {
		cb, ok := p.callbacks[fd]
		if ok && cb.OnRemove != nil {
			cb.OnRemove()
		}
		// Best effort: the fd may already be closed by the caller, in
		// which case epoll_ctl del fails harmlessly with ENOENT/EBADF.
		_ = epollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, 0)
		delete(p.callbacks, fd)
		delete(p.removeQueue, fd)
	}
	return nil
}

// RunOnce blocks in epoll_wait (indefinitely, if timeoutMsec < 0), then
// dispatches ready fds in ERR → HUP → READ order (spec §4.1 steps 5-6),
// short-circuiting further dispatch once quit reports true. EINTR is
// logged and retried; any other epoll_wait error is fatal to the loop.
func (p *Poller) RunOnce(timeoutMsec int, quit func() bool) error {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMsec)
	if err != nil {
		if err == unix.EINTR {
			log.Debugf("poller: epoll_wait interrupted, retrying")
			return nil
		}
		return errors.Wrap(os.NewSyscallError("epoll_wait", err), "poller.RunOnce")
	}
	for i := 0; i < n; i++ {
		if quit() {
			return nil
		}
		ev := p.events[i]
		fd := int(ev.Fd)
		if fd == p.wakeFD {
			p.drainWake()
			continue
		}
		cb, ok := p.callbacks[fd]
		if !ok || cb == nil {
			continue
		}
		onErr, onHup, onRead := cb.OnError, cb.OnHup, cb.OnRead
		if ev.Events&(unix.EPOLLERR) != 0 && onErr != nil {
			if err := onErr(); err != nil {
				log.Debugf("poller: fd %d OnError: %v", fd, err)
			}
		}
		if quit() {
			return nil
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 && onHup != nil {
			onHup()
		}
		if quit() {
			return nil
		}
		if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 && onRead != nil {
			if err := onRead(); err != nil {
				log.Debugf("poller: fd %d OnRead: %v", fd, err)
			}
		}
	}
	return nil
}

func (p *Poller) drainWake() {
	buf := make([]byte, 8)
	for {
		_, err := unix.Read(p.wakeFD, buf)
		if err != nil {
			return
		}
	}
}

// Trigger wakes a blocked RunOnce from another goroutine (only the
// signal-handling goroutine does this — see spec §5).
func (p *Poller) Trigger() error {
	buf := make([]byte, 8)
	buf[7] = 1
	for {
		_, err := unix.Write(p.wakeFD, buf)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return nil
		}
		if err != nil {
			return os.NewSyscallError("write", err)
		}
		return nil
	}
}

// Close runs OnRemove for every fd still registered, then releases the
// epoll fd and the wakeup eventfd.
func (p *Poller) Close() error {
	for fd, cb := range p.callbacks {
		if cb.OnRemove != nil {
			cb.OnRemove()
		}
		delete(p.callbacks, fd)
		delete(p.removeQueue, fd)
	}
	_ = unix.Close(p.wakeFD)
	return os.NewSyscallError("close", unix.Close(p.epfd))
}

func epollCtl(epfd, op, fd int, events uint32) error {
	if op == unix.EPOLL_CTL_DEL {
		return unix.EpollCtl(epfd, op, fd, nil)
	}
	ev := &unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(epfd, op, fd, ev)
}
