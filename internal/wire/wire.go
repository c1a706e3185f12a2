// Package wire implements the netevent-2 binary protocol: a Hello
// handshake followed by a stream of fixed-frame, big-endian packets
// (AddDevice, RemoveDevice, DeviceEvent, KeepAlive). See spec §4.4.
package wire

import "github.com/netevent/netevent/internal/bitfield"

// CommandID is the two-byte discriminator that opens every frame.
type CommandID uint16

// The five packet discriminators.
const (
	CmdKeepAlive    CommandID = 0
	CmdAddDevice    CommandID = 1
	CmdRemoveDevice CommandID = 2
	CmdDeviceEvent  CommandID = 3
	CmdHello        CommandID = 4
)

func (c CommandID) String() string {
	switch c {
	case CmdKeepAlive:
		return "KeepAlive"
	case CmdAddDevice:
		return "AddDevice"
	case CmdRemoveDevice:
		return "RemoveDevice"
	case CmdDeviceEvent:
		return "DeviceEvent"
	case CmdHello:
		return "Hello"
	default:
		return "Unknown"
	}
}

// HelloMagic is the fixed 8-byte magic sent in every Hello frame.
const HelloMagic = "NE2Hello"

// ProtocolVersion is the only version this codec speaks.
const ProtocolVersion uint16 = 2

// FrameSize is the size in bytes of the fixed outer frame shared by
// every packet type (the largest variant, DeviceEvent, determines it).
// The frame is always read in full before any variable-length payload
// (AddDevice only) is consumed.
const FrameSize = 28

// DevNameSize is the fixed, NUL-padded length of a device name on the wire.
const DevNameSize = 80

// UinputUserDevSize is the size, in bytes, of the legacy
// `struct uinput_user_dev` this build materializes against:
// name[80] + input_id{4×u16} + ff_effects_max(u32) +
// absmax/absmin/absfuzz/absflat[64]int32 each.
// The receiver rejects an AddDevice frame whose dev_info_size disagrees.
const UinputUserDevSize = DevNameSize + 4*2 + 4 + 4*64*4

// InputEvent is the normalized, fixed-size event record carried by a
// DeviceEvent packet.
type InputEvent struct {
	TvSec  uint64
	TvUsec uint32
	Type   uint16
	Code   uint16
	Value  int32
}

func reverse16(v uint16) uint16 {
	return v<<8 | v>>8
}

func reverse32(v uint32) uint32 {
	return v<<24 | (v<<8)&0x00ff0000 | (v>>8)&0x0000ff00 | v>>24
}

func reverse64(v uint64) uint64 {
	return uint64(reverse32(uint32(v>>32))) | uint64(reverse32(uint32(v)))<<32
}

// ToNet returns a byte-order-swapped copy of e, converting a host-order
// InputEvent to the representation used when bytes are memcpy'd directly
// rather than serialized field-by-field. ToNet and ToHost are the same
// operation (byte-swap is self-inverse); both are kept as named methods
// to document intent at call sites and because spec §8 calls the round
// trip out as a separate property: to_net(to_host(x)) == x.
func (e InputEvent) ToNet() InputEvent {
	return InputEvent{
		TvSec:  reverse64(e.TvSec),
		TvUsec: reverse32(e.TvUsec),
		Type:   reverse16(e.Type),
		Code:   reverse16(e.Code),
		Value:  int32(reverse32(uint32(e.Value))),
	}
}

// ToHost is the inverse of ToNet.
func (e InputEvent) ToHost() InputEvent {
	return e.ToNet()
}

// DeviceID mirrors struct input_id: bustype/vendor/product/version.
type DeviceID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// DeviceSnapshot is the sender-side capture of an evdev device's
// capabilities, and the wire-level payload carried by an AddDevice
// frame (spec §3 DeviceSnapshot, §4.4 AddDevice payload items 1-6).
type DeviceSnapshot struct {
	Name string
	ID   DeviceID

	// EventTypes is the top-level bitfield of length EV_MAX: which
	// event types this device emits.
	EventTypes *bitfield.BitField

	// TypeBits holds, for each event type index present in EventTypes
	// AND known to carry a per-type sub-bitfield (evcodes.TypeMax),
	// the bitfield of supported codes for that type.
	TypeBits map[int]*bitfield.BitField

	// AbsInfos holds, for each code set in TypeBits[EV_ABS], the axis
	// calibration record. Empty/nil if EV_ABS is not enabled.
	AbsInfos map[int]AbsInfo
}
