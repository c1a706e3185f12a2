package daemon

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newBrokenOutput returns an Output whose fd is already closed, so any
// write against it fails with EBADF -- standing in for a write error on
// a live sink without needing a real subprocess or socket peer.
func newBrokenOutput(t *testing.T, name string) *Output {
	t.Helper()
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe2(fds, unix.O_CLOEXEC))
	require.NoError(t, unix.Close(fds[0]))
	require.NoError(t, unix.Close(fds[1]))
	return &Output{Name: name, kind: outputFile, fd: fds[1]}
}

func TestWriteToOutputDropsOutputOnWriteError(t *testing.T) {
	d := newTestDaemon(t)
	o := newBrokenOutput(t, "broken")
	d.outputs["broken"] = o
	d.current = o
	d.currentName = "broken"

	d.writeToOutput(o, "test-write", func(io.Writer) error {
		return o.Write([]byte("x"))
	})

	_, stillThere := d.outputs["broken"]
	assert.False(t, stillThere, "a broken output must be dropped on write failure")
	assert.Nil(t, d.current, "losing the current output must clear the selection")
	assert.Equal(t, "", d.currentName)
}

func TestWriteToOutputLeavesHealthyOutputInPlace(t *testing.T) {
	d := newTestDaemon(t)
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe2(fds, unix.O_CLOEXEC))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
	})
	o := &Output{Name: "ok", kind: outputFile, fd: fds[1]}
	d.outputs["ok"] = o
	t.Cleanup(func() { _ = o.Close() })

	d.writeToOutput(o, "test-write", func(io.Writer) error {
		return o.Write([]byte("x"))
	})

	_, stillThere := d.outputs["ok"]
	assert.True(t, stillThere, "a successful write must not drop the output")
}
