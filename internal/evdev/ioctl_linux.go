//go:build linux
// +build linux

package evdev

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// evdev ioctl request numbers, constructed the way
// Daedaluz-goserial/ioctl_linux.go and spi/spi.go build theirs: via
// goioctl's IOR/IOW/IO helpers rather than hand-computed magic
// constants. Treated as an opaque capability per spec.md §1 ("the exact
// Linux ioctl numbers for evdev/uinput") — only their construction
// style is borrowed from the pack, not re-derived from kernel headers
// by hand.
var (
	eviocgversion = ioctl.IOR('E', 0x01, unsafe.Sizeof(int32(0)))
	eviocgid      = ioctl.IOR('E', 0x02, unsafe.Sizeof(rawInputID{}))
	eviocgrep     = ioctl.IOR('E', 0x03, unsafe.Sizeof([2]uint32{}))
	eviocsrep     = ioctl.IOW('E', 0x03, unsafe.Sizeof([2]uint32{}))
	eviocgrab     = ioctl.IOW('E', 0x90, unsafe.Sizeof(int32(0)))
)

func eviocgname(size int) uintptr  { return ioctl.IOR('E', 0x06, uintptr(size)) }
func eviocgphys(size int) uintptr  { return ioctl.IOR('E', 0x07, uintptr(size)) }
func eviocgbit(ev, size int) uintptr {
	return ioctl.IOR('E', uintptr(0x20+ev), uintptr(size))
}
func eviocgabs(abs int) uintptr {
	return ioctl.IOR('E', uintptr(0x40+abs), unsafe.Sizeof(rawAbsInfo{}))
}

// rawInputID mirrors struct input_id.
type rawInputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// rawAbsInfo mirrors struct input_absinfo.
type rawAbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}
