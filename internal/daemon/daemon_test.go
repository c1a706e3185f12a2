package daemon

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	bind := fmt.Sprintf("@netevent-daemon-test-%d-%s", os.Getpid(), t.Name())
	d, err := New(bind)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.server.Close()
		_ = d.poller.Close()
	})
	return d
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "on", "ON", "yes", "true"} {
		got, err := parseBool(s)
		require.NoError(t, err)
		assert.True(t, got)
	}
	for _, s := range []string{"0", "off", "OFF", "no", "false"} {
		got, err := parseBool(s)
		require.NoError(t, err)
		assert.False(t, got)
	}
	_, err := parseBool("maybe")
	require.Error(t, err)
}

func TestParseTypeCodeValue(t *testing.T) {
	typ, code, value, err := parseTypeCodeValue("KEY:30:1")
	require.NoError(t, err)
	assert.Equal(t, 1, typ)
	assert.Equal(t, uint16(30), code)
	assert.Equal(t, int32(1), value)

	_, _, _, err = parseTypeCodeValue("KEY:30")
	require.Error(t, err)

	_, _, _, err = parseTypeCodeValue("NOPE:30:1")
	require.Error(t, err)
}

func TestCmdActionSetRemoveRejectsUnknownEvent(t *testing.T) {
	d := newTestDaemon(t)

	err := d.cmdAction([]string{"set", "output-changed", "echo", "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo hi", d.actions[ActionOutputChanged])

	err = d.cmdAction([]string{"set", "bogus-event", "echo", "hi"})
	require.Error(t, err)

	err = d.cmdAction([]string{"remove", "output-changed"})
	require.NoError(t, err)
	_, ok := d.actions[ActionOutputChanged]
	assert.False(t, ok)

	err = d.cmdAction([]string{"remove", "output-changed"})
	require.Error(t, err)
}

func TestCmdGrabTogglesExactlyOnceAndQueuesAction(t *testing.T) {
	d := newTestDaemon(t)
	d.actions[ActionGrabChanged] = "notify-grab"

	require.NoError(t, d.cmdGrab([]string{"on"}))
	assert.True(t, d.grabbing)
	require.Len(t, d.cmdQueue, 1)
	assert.Equal(t, "notify-grab", d.cmdQueue[0].Text)

	d.cmdQueue = nil
	require.NoError(t, d.cmdGrab([]string{"on"}))
	assert.Empty(t, d.cmdQueue, "re-stating the current grab state must not re-fire grab-changed")

	require.NoError(t, d.cmdGrab([]string{"toggle"}))
	assert.False(t, d.grabbing)
	require.Len(t, d.cmdQueue, 1)
}

func TestCmdHotkeyUnknownDeviceIsError(t *testing.T) {
	d := newTestDaemon(t)
	err := d.cmdHotkey([]string{"add", "no-such-device", "KEY:30:1", "echo", "hi"})
	require.Error(t, err)
}

func TestDispatchUnknownVerb(t *testing.T) {
	d := newTestDaemon(t)
	err := d.dispatch(-1, []string{"bogus"})
	require.Error(t, err)
}

func TestDispatchNopAndQuit(t *testing.T) {
	d := newTestDaemon(t)
	require.NoError(t, d.dispatch(-1, []string{"nop"}))

	require.False(t, d.quit.Load())
	require.NoError(t, d.dispatch(-1, []string{"quit"}))
	require.True(t, d.quit.Load())
}

func TestUpdateEnvReflectsCurrentState(t *testing.T) {
	d := newTestDaemon(t)
	d.updateEnv()
	assert.Equal(t, "<none>", os.Getenv("NETEVENT_OUTPUT_NAME"))
	assert.Equal(t, "0", os.Getenv("NETEVENT_GRABBING"))

	d.currentName = "primary"
	d.grabbing = true
	d.updateEnv()
	assert.Equal(t, "primary", os.Getenv("NETEVENT_OUTPUT_NAME"))
	assert.Equal(t, "1", os.Getenv("NETEVENT_GRABBING"))
	assert.Equal(t, "1", os.Getenv("GRAB"))
}
