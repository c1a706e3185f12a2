//go:build linux
// +build linux

package evdev

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/bitfield"
	"github.com/netevent/netevent/internal/evcodes"
	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/internal/wire"
)

const maxNameSize = 256

// rawEventSize is sizeof(struct input_event) on a 64-bit Linux build:
// struct timeval{tv_sec,tv_usec long}; __u16 type,code; __s32 value.
const rawEventSize = 24

// InputSource is one open, capability-snapshotted evdev node (spec §4.2).
type InputSource struct {
	path string
	fd   int

	snapshot wire.DeviceSnapshot
	phys     string
	version  int32

	advertisedName string
	originalName   string

	grabbed bool
	eof     bool
}

// Open opens the evdev node read-only with close-on-exec, queries its
// name, id and capability bitfields once, and returns the InputSource.
// The captured capabilities are immutable thereafter (spec §5: "the
// bit fields and capability arrays of an InputSource are captured once
// at open time").
func Open(path string) (src *InputSource, err error) {
	fd, ferr := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if ferr != nil {
		return nil, neterr.IoErr(ferr, fmt.Sprintf("open %s", path))
	}
	defer func() {
		if err != nil {
			_ = unix.Close(fd)
		}
	}()

	src = &InputSource{path: path, fd: fd}
	if err = src.readDeviceInfo(); err != nil {
		return nil, err
	}
	if err = src.readCapabilities(); err != nil {
		return nil, err
	}
	src.advertisedName = src.snapshot.Name
	src.originalName = src.snapshot.Name
	return src, nil
}

func (s *InputSource) readDeviceInfo() error {
	var id rawInputID
	if err := ioctl(s.fd, eviocgid, unsafe.Pointer(&id)); err != nil {
		return neterr.DeviceErr(err, "EVIOCGID")
	}
	s.snapshot.ID = wire.DeviceID{Bustype: id.Bustype, Vendor: id.Vendor, Product: id.Product, Version: id.Version}

	name := make([]byte, maxNameSize)
	if err := ioctl(s.fd, eviocgname(len(name)), unsafe.Pointer(&name[0])); err != nil {
		return neterr.DeviceErr(err, "EVIOCGNAME")
	}
	s.snapshot.Name = cString(name)

	phys := make([]byte, maxNameSize)
	// Topology info is not always available; tolerate its absence.
	if err := ioctl(s.fd, eviocgphys(len(phys)), unsafe.Pointer(&phys[0])); err == nil {
		s.phys = cString(phys)
	}

	var version int32
	if err := ioctl(s.fd, eviocgversion, unsafe.Pointer(&version)); err != nil {
		return neterr.DeviceErr(err, "EVIOCGVERSION")
	}
	s.version = version
	return nil
}

func (s *InputSource) readCapabilities() error {
	evNbytes := (evcodes.EV_MAX + 7) / 8
	evBuf := make([]byte, evNbytes)
	if err := ioctl(s.fd, eviocgbit(0, evNbytes), unsafe.Pointer(&evBuf[0])); err != nil {
		return neterr.DeviceErr(err, "EVIOCGBIT(0)")
	}
	evBits := bitfield.FromBytes(evBuf)
	s.snapshot.EventTypes = evBits
	s.snapshot.TypeBits = map[int]*bitfield.BitField{}
	s.snapshot.AbsInfos = map[int]wire.AbsInfo{}

	var readErr error
	evBits.Each(func(t int) {
		if readErr != nil {
			return
		}
		max, ok := evcodes.TypeMax(t)
		if !ok {
			return
		}
		nbytes := (max + 7) / 8
		buf := make([]byte, nbytes)
		if err := ioctl(s.fd, eviocgbit(t, nbytes), unsafe.Pointer(&buf[0])); err != nil {
			readErr = neterr.DeviceErr(err, fmt.Sprintf("EVIOCGBIT(%d)", t))
			return
		}
		bits := bitfield.FromBytes(buf)
		s.snapshot.TypeBits[t] = bits

		if t == evcodes.EV_ABS {
			bits.Each(func(code int) {
				if readErr != nil {
					return
				}
				var raw rawAbsInfo
				if err := ioctl(s.fd, eviocgabs(code), unsafe.Pointer(&raw)); err != nil {
					readErr = neterr.DeviceErr(err, fmt.Sprintf("EVIOCGABS(%d)", code))
					return
				}
				s.snapshot.AbsInfos[code] = wire.AbsInfo(raw)
			})
		}
	})
	return readErr
}

// Grab requests (or releases) exclusive access to the device. Idempotent
// calls are tolerated: if the requested state matches the current state
// and the ioctl fails with EBUSY (enabling) or EINVAL (disabling), the
// call succeeds as a no-op (spec §4.2).
func (s *InputSource) Grab(on bool) error {
	if on == s.grabbed {
		var v int32
		if on {
			v = 1
		}
		err := ioctl(s.fd, eviocgrab, unsafe.Pointer(&v))
		if err == nil {
			return nil
		}
		if on && err == unix.EBUSY {
			return nil
		}
		if !on && err == unix.EINVAL {
			return nil
		}
		return neterr.DeviceErr(err, "EVIOCGRAB")
	}
	var v int32
	if on {
		v = 1
	}
	if err := ioctl(s.fd, eviocgrab, unsafe.Pointer(&v)); err != nil {
		return neterr.DeviceErr(err, "EVIOCGRAB")
	}
	s.grabbed = on
	return nil
}

// Grabbed reports whether this source currently holds the exclusive grab.
func (s *InputSource) Grabbed() bool { return s.grabbed }

// Fd returns the underlying file descriptor, for poller registration.
func (s *InputSource) Fd() int { return s.fd }

// Path returns the devnode path this source was opened from.
func (s *InputSource) Path() string { return s.path }

// ReadEvent performs a blocking read of one raw event. ok is false on
// unexpected EOF (and sets the EOF flag); err is non-nil on any other
// read error.
func (s *InputSource) ReadEvent() (ev wire.InputEvent, ok bool, err error) {
	buf := make([]byte, rawEventSize)
	n, rerr := unix.Read(s.fd, buf)
	if rerr != nil {
		return wire.InputEvent{}, false, neterr.IoErr(rerr, "read input event")
	}
	if n == 0 {
		s.eof = true
		return wire.InputEvent{}, false, nil
	}
	if n != rawEventSize {
		return wire.InputEvent{}, false, neterr.New(neterr.Io, "short read on input event")
	}
	ev = wire.InputEvent{
		TvSec: binary.LittleEndian.Uint64(buf[0:8]),
		// tv_usec is a platform `long` (8 bytes on 64-bit Linux) but
		// always fits in 32 bits; narrow it for the wire format.
		TvUsec: uint32(binary.LittleEndian.Uint64(buf[8:16])),
		Type:   binary.LittleEndian.Uint16(buf[16:18]),
		Code:   binary.LittleEndian.Uint16(buf[18:20]),
		Value:  int32(binary.LittleEndian.Uint32(buf[20:24])),
	}
	return ev, true, nil
}

// EOF reports whether the last ReadEvent observed end of stream.
func (s *InputSource) EOF() bool { return s.eof }

// WriteAddDevice writes an AddDevice packet describing this source to w
// (spec §4.2: "the canonical sender-side capability serialization").
func (s *InputSource) WriteAddDevice(w io.Writer, id uint16) error {
	snap := s.snapshot
	snap.Name = s.advertisedName
	if err := wire.WriteAddDeviceFrame(w, id, wire.UinputUserDevSize, wire.DevNameSize); err != nil {
		return err
	}
	return wire.EncodeAddDevicePayload(w, snap, wire.DevNameSize)
}

// SetName overrides the name advertised in future AddDevice frames,
// clamped to 79 bytes plus the terminating NUL. It does not affect any
// running output (spec §4.2).
func (s *InputSource) SetName(name string) {
	if len(name) > wire.DevNameSize-1 {
		name = name[:wire.DevNameSize-1]
	}
	s.advertisedName = name
}

// ResetName restores the name captured at Open time.
func (s *InputSource) ResetName() {
	s.advertisedName = s.originalName
}

// Name returns the currently advertised name.
func (s *InputSource) Name() string { return s.advertisedName }

// String renders a human-readable description for the `info` command.
func (s *InputSource) String() string {
	return fmt.Sprintf("%s (fd %d) name=%q phys=%q bus=0x%04x vendor=0x%04x product=0x%04x version=0x%04x",
		s.path, s.fd, s.advertisedName, s.phys,
		s.snapshot.ID.Bustype, s.snapshot.ID.Vendor, s.snapshot.ID.Product, s.snapshot.ID.Version)
}

// Close closes the underlying fd.
func (s *InputSource) Close() error {
	return os.NewSyscallError("close", unix.Close(s.fd))
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
