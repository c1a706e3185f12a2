// Package receiver consumes one netevent-2 stream end to end: it
// validates the initial Hello, then materializes a uinput device per
// AddDevice frame, forwards DeviceEvent frames to the matching device,
// and destroys a device on RemoveDevice. See spec §6 "create subcommand
// options" and §8 scenario 5 ("Duplicate device handling").
package receiver

import (
	"errors"
	"io"

	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/internal/uinput"
	"github.com/netevent/netevent/internal/wire"
	"github.com/netevent/netevent/log"
)

// Duplicates policy tokens accepted by --duplicates.
const (
	DuplicatesReject  = "reject"
	DuplicatesResume  = "resume"
	DuplicatesReplace = "replace"
)

// Session owns the uinput devices materialized from a single stream.
type Session struct {
	duplicates string
	devices    map[uint16]*uinput.OutputDevice
}

// NewSession creates a Session that applies the given --duplicates
// policy to repeated AddDevice ids.
func NewSession(duplicates string) *Session {
	return &Session{
		duplicates: duplicates,
		devices:    make(map[uint16]*uinput.OutputDevice),
	}
}

// Run consumes r until EOF or a protocol error. A clean EOF is reported
// as a nil error (spec §7: only genuine protocol violations are
// fatal); Close is not called here, it is the caller's job once Run
// returns, since in --on-close accept mode devices persist across
// reconnects of a single sender.
func (s *Session) Run(r io.Reader) error {
	if err := wire.ReadHello(r); err != nil {
		return err
	}
	for {
		frame, err := wire.ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := s.dispatch(r, frame); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(r io.Reader, frame wire.Frame) error {
	switch frame.Command {
	case wire.CmdHello:
		// A Hello after the first is re-validated but otherwise silent
		// (spec §6, accept-mode re-sync behavior).
		if string(frame.HelloMagic[:]) != wire.HelloMagic || frame.HelloVersion != wire.ProtocolVersion {
			return neterr.New(neterr.Protocol, "re-sent hello failed validation")
		}
		return nil
	case wire.CmdKeepAlive:
		return nil
	case wire.CmdAddDevice:
		return s.handleAddDevice(r, frame)
	case wire.CmdRemoveDevice:
		s.handleRemoveDevice(frame.ID)
		return nil
	case wire.CmdDeviceEvent:
		return s.handleDeviceEvent(frame)
	default:
		return neterr.New(neterr.Protocol, "unexpected command in stream")
	}
}

func (s *Session) handleAddDevice(r io.Reader, frame wire.Frame) error {
	old, exists := s.devices[frame.ID]
	if !exists {
		dev, err := uinput.FromAddDevice(r, frame)
		if err != nil {
			return err
		}
		s.devices[frame.ID] = dev
		return nil
	}
	switch s.duplicates {
	case DuplicatesReject:
		return neterr.New(neterr.Protocol, "duplicate AddDevice for id already materialized")
	case DuplicatesReplace:
		delete(s.devices, frame.ID)
		if err := old.Close(); err != nil {
			log.Warnf("receiver: close replaced device %d: %v", frame.ID, err)
		}
		dev, err := uinput.FromAddDevice(r, frame)
		if err != nil {
			return err
		}
		s.devices[frame.ID] = dev
		return nil
	default: // resume
		return uinput.SkipAddDevice(r, frame)
	}
}

func (s *Session) handleRemoveDevice(id uint16) {
	dev, ok := s.devices[id]
	if !ok {
		return
	}
	if err := dev.Close(); err != nil {
		log.Warnf("receiver: close device %d: %v", id, err)
	}
	delete(s.devices, id)
}

func (s *Session) handleDeviceEvent(frame wire.Frame) error {
	dev, ok := s.devices[frame.ID]
	if !ok {
		// An event for an id never materialized under --duplicates
		// resume is dropped silently; the stream stays aligned (spec
		// §8 scenario 5: "event stream continues without desync").
		return nil
	}
	return dev.Write(frame.Event)
}

// Close destroys every still-materialized device.
func (s *Session) Close() {
	for id, dev := range s.devices {
		if err := dev.Close(); err != nil {
			log.Warnf("receiver: close device %d: %v", id, err)
		}
	}
	s.devices = make(map[uint16]*uinput.OutputDevice)
}
