package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/netevent/netevent/internal/neterr"
)

// Frame is a decoded fixed outer frame (spec §4.4): the discriminator
// plus whichever command-specific fields that discriminator defines.
// Fields irrelevant to Command are zero.
type Frame struct {
	Command CommandID

	// Hello
	HelloVersion uint16
	HelloMagic   [8]byte

	// RemoveDevice, DeviceEvent, AddDevice
	ID uint16

	// DeviceEvent
	Event InputEvent

	// AddDevice
	DevInfoSize uint16
	DevNameSize uint16
}

// WriteHello writes the Hello handshake frame. Spec §4.4: a Hello must
// be sent as the first frame after connection by any side that opens a
// netevent-2 stream.
func WriteHello(w io.Writer) error {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CmdHello))
	binary.BigEndian.PutUint16(buf[2:4], ProtocolVersion)
	copy(buf[4:12], HelloMagic)
	return writeFull(w, buf)
}

// WriteKeepAlive writes a frame-only KeepAlive packet.
func WriteKeepAlive(w io.Writer) error {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CmdKeepAlive))
	return writeFull(w, buf)
}

// WriteRemoveDevice writes a RemoveDevice frame for the given input id.
func WriteRemoveDevice(w io.Writer, id uint16) error {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CmdRemoveDevice))
	binary.BigEndian.PutUint16(buf[2:4], id)
	return writeFull(w, buf)
}

// WriteDeviceEvent writes a DeviceEvent frame carrying one InputEvent
// for the given input id, big-endian, with the trailing padding word
// zeroed.
func WriteDeviceEvent(w io.Writer, id uint16, ev InputEvent) error {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CmdDeviceEvent))
	binary.BigEndian.PutUint16(buf[2:4], id)
	binary.BigEndian.PutUint64(buf[4:12], ev.TvSec)
	binary.BigEndian.PutUint32(buf[12:16], ev.TvUsec)
	binary.BigEndian.PutUint16(buf[16:18], ev.Type)
	binary.BigEndian.PutUint16(buf[18:20], ev.Code)
	binary.BigEndian.PutUint32(buf[20:24], uint32(ev.Value))
	// buf[24:28] padding, left zero.
	return writeFull(w, buf)
}

// WriteAddDeviceFrame writes only the fixed AddDevice frame (id,
// dev_info_size, dev_name_size); the caller is responsible for writing
// the variable-length payload described in spec §4.4 immediately after
// via EncodeAddDevicePayload.
func WriteAddDeviceFrame(w io.Writer, id, devInfoSize, devNameSize uint16) error {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CmdAddDevice))
	binary.BigEndian.PutUint16(buf[2:4], id)
	binary.BigEndian.PutUint16(buf[4:6], devInfoSize)
	binary.BigEndian.PutUint16(buf[6:8], devNameSize)
	return writeFull(w, buf)
}

// ReadFrame reads and parses one fixed outer frame. It always consumes
// exactly FrameSize bytes before returning, regardless of command, so
// the stream stays aligned even for commands that use fewer fields.
func ReadFrame(r io.Reader) (Frame, error) {
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, neterr.IoErr(err, "read frame")
	}
	f := Frame{Command: CommandID(binary.BigEndian.Uint16(buf[0:2]))}
	switch f.Command {
	case CmdHello:
		f.HelloVersion = binary.BigEndian.Uint16(buf[2:4])
		copy(f.HelloMagic[:], buf[4:12])
	case CmdKeepAlive:
	case CmdRemoveDevice:
		f.ID = binary.BigEndian.Uint16(buf[2:4])
	case CmdDeviceEvent:
		f.ID = binary.BigEndian.Uint16(buf[2:4])
		f.Event = InputEvent{
			TvSec:  binary.BigEndian.Uint64(buf[4:12]),
			TvUsec: binary.BigEndian.Uint32(buf[12:16]),
			Type:   binary.BigEndian.Uint16(buf[16:18]),
			Code:   binary.BigEndian.Uint16(buf[18:20]),
			Value:  int32(binary.BigEndian.Uint32(buf[20:24])),
		}
	case CmdAddDevice:
		f.ID = binary.BigEndian.Uint16(buf[2:4])
		f.DevInfoSize = binary.BigEndian.Uint16(buf[4:6])
		f.DevNameSize = binary.BigEndian.Uint16(buf[6:8])
	default:
		return f, neterr.New(neterr.Protocol, errors.Errorf("unknown command discriminator %d", f.Command).Error())
	}
	return f, nil
}

// ReadHello reads and validates the mandatory first frame of a stream.
func ReadHello(r io.Reader) error {
	f, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if f.Command != CmdHello {
		return neterr.New(neterr.Protocol, "expected Hello as first frame")
	}
	if string(f.HelloMagic[:]) != HelloMagic {
		return neterr.New(neterr.Protocol, "bad hello magic")
	}
	if f.HelloVersion != ProtocolVersion {
		return neterr.New(neterr.Protocol, errors.Errorf(
			"protocol version mismatch: got %d, expected %d", f.HelloVersion, ProtocolVersion).Error())
	}
	return nil
}

func writeFull(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	if err != nil {
		return neterr.IoErr(err, "write frame")
	}
	return nil
}
