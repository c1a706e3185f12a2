//go:build linux
// +build linux

package poller

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAddReadDispatch(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	var reads int
	p.Add(fds[0], Callbacks{
		OnRead: func() error {
			reads++
			buf := make([]byte, 16)
			unix.Read(fds[0], buf)
			return nil
		},
	})
	require.NoError(t, p.Flush())

	_, err = unix.Write(fds[1], []byte("hi"))
	require.NoError(t, err)

	require.NoError(t, p.RunOnce(1000, func() bool { return false }))
	require.Equal(t, 1, reads)
}

func TestRemoveIsDeferredAndIdempotent(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	removed := 0
	p.Add(fds[0], Callbacks{OnRemove: func() { removed++ }})
	require.NoError(t, p.Flush())

	p.Remove(fds[0])
	p.Remove(fds[0]) // idempotent: still one queued removal
	require.NoError(t, p.Flush())
	require.Equal(t, 1, removed)
}

func TestHupDispatchedBeforeRead(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])

	var order []string
	p.Add(fds[0], Callbacks{
		OnHup: func() { order = append(order, "hup") },
		OnRead: func() error {
			order = append(order, "read")
			return nil
		},
	})
	require.NoError(t, p.Flush())

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)
	require.NoError(t, unix.Close(fds[1]))

	require.NoError(t, p.RunOnce(1000, func() bool { return false }))
	require.NotEmpty(t, order)
	require.Equal(t, "hup", order[0])
}
