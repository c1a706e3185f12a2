package receiver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netevent/netevent/internal/uinput"
	"github.com/netevent/netevent/internal/wire"
)

func TestDispatchKeepAliveIsNoOp(t *testing.T) {
	s := NewSession(DuplicatesResume)
	err := s.dispatch(nil, wire.Frame{Command: wire.CmdKeepAlive})
	require.NoError(t, err)
}

func TestDispatchRepeatedHelloRevalidates(t *testing.T) {
	s := NewSession(DuplicatesResume)
	var magic [8]byte
	copy(magic[:], wire.HelloMagic)
	err := s.dispatch(nil, wire.Frame{Command: wire.CmdHello, HelloMagic: magic, HelloVersion: wire.ProtocolVersion})
	require.NoError(t, err)

	err = s.dispatch(nil, wire.Frame{Command: wire.CmdHello, HelloVersion: wire.ProtocolVersion + 1})
	require.Error(t, err)
}

func TestRemoveUnknownDeviceIsNoOp(t *testing.T) {
	s := NewSession(DuplicatesResume)
	s.handleRemoveDevice(99)
}

func TestDeviceEventForUnknownIDIsDroppedSilently(t *testing.T) {
	s := NewSession(DuplicatesResume)
	err := s.handleDeviceEvent(wire.Frame{Command: wire.CmdDeviceEvent, ID: 7})
	require.NoError(t, err)
}

func TestDuplicateAddDeviceRejectReturnsProtocolError(t *testing.T) {
	s := NewSession(DuplicatesReject)
	var existing uinput.OutputDevice
	s.devices[3] = &existing

	err := s.handleAddDevice(bytes.NewReader(nil), wire.Frame{
		Command: wire.CmdAddDevice, ID: 3,
		DevInfoSize: wire.UinputUserDevSize, DevNameSize: wire.DevNameSize,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate AddDevice")
}

func TestRunStopsCleanlyOnEOF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteHello(&buf))

	s := NewSession(DuplicatesResume)
	require.NoError(t, s.Run(&buf))
}

func TestRunRejectsMissingHello(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteKeepAlive(&buf))

	s := NewSession(DuplicatesResume)
	err := s.Run(&buf)
	require.Error(t, err)
}
