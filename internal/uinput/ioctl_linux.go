//go:build linux
// +build linux

package uinput

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// uinput ioctl request numbers, built with goioctl's IOR/IOW/IO helpers
// the way Daedaluz-goserial constructs its ioctl numbers (see
// internal/evdev/ioctl_linux.go for the same pattern applied to evdev).
var (
	uiDevCreate  = ioctl.IO('U', 1)
	uiDevDestroy = ioctl.IO('U', 2)
	uiDevSetup   = ioctl.IOW('U', 3, unsafe.Sizeof(rawUinputSetup{}))
	uiAbsSetup   = ioctl.IOW('U', 4, unsafe.Sizeof(rawUinputAbsSetup{}))

	uiSetEvBit   = ioctl.IOW('U', 100, unsafe.Sizeof(int32(0)))
	uiSetKeyBit  = ioctl.IOW('U', 101, unsafe.Sizeof(int32(0)))
	uiSetRelBit  = ioctl.IOW('U', 102, unsafe.Sizeof(int32(0)))
	uiSetAbsBit  = ioctl.IOW('U', 103, unsafe.Sizeof(int32(0)))
	uiSetMscBit  = ioctl.IOW('U', 104, unsafe.Sizeof(int32(0)))
	uiSetLedBit  = ioctl.IOW('U', 105, unsafe.Sizeof(int32(0)))
	uiSetSndBit  = ioctl.IOW('U', 106, unsafe.Sizeof(int32(0)))
	uiSetFFBit   = ioctl.IOW('U', 107, unsafe.Sizeof(int32(0)))
	uiSetSwBit   = ioctl.IOW('U', 109, unsafe.Sizeof(int32(0)))
)

// rawInputID mirrors struct input_id.
type rawInputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// rawUinputSetup mirrors struct uinput_setup (the modern UI_DEV_SETUP path).
type rawUinputSetup struct {
	ID          rawInputID
	Name        [80]byte
	FFEffectsMax uint32
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

// rawUinputAbsSetup mirrors struct uinput_abs_setup.
type rawUinputAbsSetup struct {
	Code    uint16
	_       [2]byte
	AbsInfo rawAbsInfo
}

// rawUinputUserDev mirrors the legacy struct uinput_user_dev, used when
// UI_DEV_SETUP is rejected as invalid (older kernels).
type rawUinputUserDev struct {
	Name         [80]byte
	ID           rawInputID
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}
