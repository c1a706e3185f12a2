//go:build linux
// +build linux

package uinput

import (
	"encoding/binary"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/evcodes"
	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/internal/wire"
)

// candidate uinput device nodes, tried in order (spec §4.3 step 1).
var uinputNodes = []string{"/dev/uinput", "/dev/input/uinput", "/dev/misc/uinput"}

// rawEventSize is sizeof(struct input_event) on a 64-bit Linux build.
const rawEventSize = 24

// OutputDevice is a uinput device materialized from a received
// AddDevice payload (spec §4.3).
type OutputDevice struct {
	fd      int
	id      uint16
	created bool
}

// FromAddDevice reads the variable-length payload following frame and
// materializes a uinput device from it. frame must already have been
// read (and validated as CmdAddDevice) by the caller.
func FromAddDevice(r io.Reader, frame wire.Frame) (*OutputDevice, error) {
	if err := validateFrame(frame); err != nil {
		return nil, err
	}
	snap, err := wire.DecodeAddDevicePayload(r, int(frame.DevNameSize))
	if err != nil {
		return nil, err
	}

	fd, node, err := openUinputNode()
	if err != nil {
		return nil, err
	}
	dev := &OutputDevice{fd: fd, id: frame.ID}

	modern, err := dev.setupModern(snap)
	if err != nil {
		_ = unix.Close(fd)
		return nil, neterr.DeviceErr(err, "uinput setup via "+node)
	}
	if !modern {
		if err := dev.setupLegacy(snap); err != nil {
			_ = unix.Close(fd)
			return nil, neterr.DeviceErr(err, "uinput legacy setup via "+node)
		}
	}

	if err := dev.enableCapabilities(snap); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	if modern {
		if err := dev.setAbsInfoModern(snap); err != nil {
			_ = unix.Close(fd)
			return nil, err
		}
	}

	if err := ioctlNoArg(fd, uiDevCreate); err != nil {
		_ = unix.Close(fd)
		return nil, neterr.DeviceErr(err, "UI_DEV_CREATE")
	}
	dev.created = true
	return dev, nil
}

// SkipAddDevice consumes the AddDevice payload following frame without
// materializing a device, keeping the stream aligned (used for
// --duplicates resume on an id already seen).
func SkipAddDevice(r io.Reader, frame wire.Frame) error {
	if err := validateFrame(frame); err != nil {
		return err
	}
	return wire.SkipAddDevicePayload(r, int(frame.DevNameSize))
}

func validateFrame(frame wire.Frame) error {
	if frame.Command != wire.CmdAddDevice {
		return neterr.New(neterr.Protocol, "not an AddDevice frame")
	}
	if frame.DevNameSize != wire.DevNameSize {
		return neterr.New(neterr.Protocol, "dev_name_size mismatch")
	}
	if frame.DevInfoSize != wire.UinputUserDevSize {
		return neterr.New(neterr.Protocol, "dev_info_size mismatch")
	}
	return nil
}

func openUinputNode() (fd int, node string, err error) {
	var lastErr error
	for _, node := range uinputNodes {
		fd, ferr := unix.Open(node, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if ferr == nil {
			return fd, node, nil
		}
		lastErr = ferr
	}
	return -1, "", neterr.IoErr(lastErr, "open uinput node")
}

// setupModern attempts the UI_DEV_SETUP path. If the kernel rejects the
// ioctl as unknown/invalid, ok is false and the caller falls back to the
// legacy uinput_user_dev path.
func (d *OutputDevice) setupModern(snap wire.DeviceSnapshot) (ok bool, err error) {
	setup := rawUinputSetup{
		ID: rawInputID(snap.ID),
	}
	copy(setup.Name[:], snap.Name)
	if err := ioctl(d.fd, uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		if err == unix.EINVAL || err == unix.ENOTTY {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *OutputDevice) setupLegacy(snap wire.DeviceSnapshot) error {
	var dev rawUinputUserDev
	copy(dev.Name[:], snap.Name)
	dev.ID = rawInputID(snap.ID)
	if absBits := snap.TypeBits[evcodes.EV_ABS]; absBits != nil {
		absBits.Each(func(code int) {
			if code >= len(dev.AbsMax) {
				return
			}
			info := snap.AbsInfos[code]
			dev.AbsMax[code] = info.Maximum
			dev.AbsMin[code] = info.Minimum
			dev.AbsFuzz[code] = info.Fuzz
			dev.AbsFlat[code] = info.Flat
		})
	}
	buf := (*[unsafe.Sizeof(rawUinputUserDev{})]byte)(unsafe.Pointer(&dev))[:]
	_, err := unix.Write(d.fd, buf)
	return err
}

func (d *OutputDevice) enableCapabilities(snap wire.DeviceSnapshot) error {
	var err error
	snap.EventTypes.Each(func(t int) {
		if err != nil {
			return
		}
		if e := ioctlInt(d.fd, uiSetEvBit, int32(t)); e != nil {
			err = neterr.DeviceErr(e, "UI_SET_EVBIT")
			return
		}
		bits := snap.TypeBits[t]
		req, ok := bitIoctlFor(t)
		if !ok || bits == nil {
			return
		}
		bits.Each(func(code int) {
			if err != nil {
				return
			}
			if e := ioctlInt(d.fd, req, int32(code)); e != nil {
				err = neterr.DeviceErr(e, "UI_SET_*BIT")
			}
		})
	})
	return err
}

func bitIoctlFor(t int) (uintptr, bool) {
	switch t {
	case evcodes.EV_KEY:
		return uiSetKeyBit, true
	case evcodes.EV_REL:
		return uiSetRelBit, true
	case evcodes.EV_ABS:
		return uiSetAbsBit, true
	case evcodes.EV_MSC:
		return uiSetMscBit, true
	case evcodes.EV_LED:
		return uiSetLedBit, true
	case evcodes.EV_SND:
		return uiSetSndBit, true
	case evcodes.EV_FF:
		return uiSetFFBit, true
	case evcodes.EV_SW:
		return uiSetSwBit, true
	default:
		return 0, false
	}
}

func (d *OutputDevice) setAbsInfoModern(snap wire.DeviceSnapshot) error {
	bits := snap.TypeBits[evcodes.EV_ABS]
	if bits == nil {
		return nil
	}
	var err error
	bits.Each(func(code int) {
		if err != nil {
			return
		}
		info := snap.AbsInfos[code]
		setup := rawUinputAbsSetup{Code: uint16(code), AbsInfo: rawAbsInfo(info)}
		if e := ioctl(d.fd, uiAbsSetup, unsafe.Pointer(&setup)); e != nil {
			err = neterr.DeviceErr(e, "UI_ABS_SETUP")
		}
	})
	return err
}

// Write writes one event to the uinput device. EV_FF events are silently
// dropped (force feedback is unsupported, spec §4.3).
func (d *OutputDevice) Write(ev wire.InputEvent) error {
	if ev.Type == evcodes.EV_FF {
		return nil
	}
	buf := make([]byte, rawEventSize)
	binary.LittleEndian.PutUint64(buf[0:8], ev.TvSec)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(ev.TvUsec))
	binary.LittleEndian.PutUint16(buf[16:18], ev.Type)
	binary.LittleEndian.PutUint16(buf[18:20], ev.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(ev.Value))
	_, err := unix.Write(d.fd, buf)
	if err != nil {
		return neterr.IoErr(err, "write uinput event")
	}
	return nil
}

// ID returns the sender-side input id this device was created for.
func (d *OutputDevice) ID() uint16 { return d.id }

// Close destroys the uinput device, then closes the fd.
func (d *OutputDevice) Close() error {
	if d.created {
		_ = ioctlNoArg(d.fd, uiDevDestroy)
	}
	return os.NewSyscallError("close", unix.Close(d.fd))
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlInt(fd int, req uintptr, v int32) error {
	return ioctl(fd, req, unsafe.Pointer(&v))
}

func ioctlNoArg(fd int, req uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
