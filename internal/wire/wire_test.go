package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netevent/netevent/internal/bitfield"
	"github.com/netevent/netevent/internal/evcodes"
)

func TestHelloRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHello(&buf))
	require.NoError(t, ReadHello(&buf))
}

func TestHelloVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	binHdr := make([]byte, FrameSize)
	buf.Write(binHdr)
	// Overwrite discriminator + version + magic manually for a v3 hello.
	raw := buf.Bytes()
	raw[1] = byte(CmdHello)
	raw[3] = 3
	copy(raw[4:12], HelloMagic)
	err := ReadHello(bytes.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "protocol version mismatch: got 3, expected 2")
}

func TestInputEventByteOrderIdempotence(t *testing.T) {
	e := InputEvent{TvSec: 0x0102030405060708, TvUsec: 123456, Type: 1, Code: 30, Value: -1}
	got := e.ToNet().ToHost()
	assert.Equal(t, e, got)
}

// TestAddDeviceEventRemoveScenario implements spec §8 scenario 2: a
// device named "test", id {1,2,3,4}, EV_KEY enabled with only KEY_A (30)
// supported, followed by a press/release DeviceEvent and a RemoveDevice.
func TestAddDeviceEventRemoveScenario(t *testing.T) {
	evTypes := bitfield.New(evcodes.EV_MAX)
	evTypes.Set(evcodes.EV_KEY, true)
	keyBits := bitfield.New(evcodes.KEY_MAX)
	keyBits.Set(evcodes.KEY_A, true)

	snap := DeviceSnapshot{
		Name:       "test",
		ID:         DeviceID{Bustype: 1, Vendor: 2, Product: 3, Version: 4},
		EventTypes: evTypes,
		TypeBits:   map[int]*bitfield.BitField{evcodes.EV_KEY: keyBits},
		AbsInfos:   map[int]AbsInfo{},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHello(&buf))
	require.NoError(t, WriteAddDeviceFrame(&buf, 0, UinputUserDevSize, DevNameSize))
	require.NoError(t, EncodeAddDevicePayload(&buf, snap, DevNameSize))
	require.NoError(t, WriteDeviceEvent(&buf, 0, InputEvent{Type: evcodes.EV_KEY, Code: evcodes.KEY_A, Value: 1}))
	require.NoError(t, WriteDeviceEvent(&buf, 0, InputEvent{Type: evcodes.EV_KEY, Code: evcodes.KEY_A, Value: 0}))
	require.NoError(t, WriteRemoveDevice(&buf, 0))

	require.NoError(t, ReadHello(&buf))

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, CmdAddDevice, f.Command)
	require.Equal(t, uint16(DevNameSize), f.DevNameSize)
	require.Equal(t, uint16(UinputUserDevSize), f.DevInfoSize)

	got, err := DecodeAddDevicePayload(&buf, int(f.DevNameSize))
	require.NoError(t, err)
	assert.Equal(t, "test", got.Name)
	assert.Equal(t, DeviceID{1, 2, 3, 4}, got.ID)
	assert.True(t, got.EventTypes.Get(evcodes.EV_KEY))
	assert.True(t, got.TypeBits[evcodes.EV_KEY].Get(evcodes.KEY_A))

	press, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, CmdDeviceEvent, press.Command)
	assert.Equal(t, int32(1), press.Event.Value)

	release, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(0), release.Event.Value)

	remove, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, CmdRemoveDevice, remove.Command)
	assert.Equal(t, uint16(0), remove.ID)
}

func TestDuplicateAddDeviceResumeStaysAligned(t *testing.T) {
	evTypes := bitfield.New(evcodes.EV_MAX)
	evTypes.Set(evcodes.EV_KEY, true)
	keyBits := bitfield.New(evcodes.KEY_MAX)
	keyBits.Set(evcodes.KEY_A, true)
	snap := DeviceSnapshot{Name: "dup", ID: DeviceID{5, 5, 5, 5}, EventTypes: evTypes,
		TypeBits: map[int]*bitfield.BitField{evcodes.EV_KEY: keyBits}, AbsInfos: map[int]AbsInfo{}}

	var buf bytes.Buffer
	require.NoError(t, WriteAddDeviceFrame(&buf, 5, UinputUserDevSize, DevNameSize))
	require.NoError(t, EncodeAddDevicePayload(&buf, snap, DevNameSize))
	require.NoError(t, WriteAddDeviceFrame(&buf, 5, UinputUserDevSize, DevNameSize))
	require.NoError(t, EncodeAddDevicePayload(&buf, snap, DevNameSize))
	require.NoError(t, WriteDeviceEvent(&buf, 5, InputEvent{Type: evcodes.EV_KEY, Code: evcodes.KEY_A, Value: 1}))

	f1, err := ReadFrame(&buf)
	require.NoError(t, err)
	_, err = DecodeAddDevicePayload(&buf, int(f1.DevNameSize))
	require.NoError(t, err)

	f2, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.NoError(t, SkipAddDevicePayload(&buf, int(f2.DevNameSize)))

	f3, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, CmdDeviceEvent, f3.Command)
	assert.Equal(t, uint16(5), f3.ID)
}
