package sockctl

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func abstractName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("@netevent-test-%d-%s", os.Getpid(), t.Name())
}

func TestListenAcceptAbstract(t *testing.T) {
	name := abstractName(t)
	srv, err := Listen(name)
	require.NoError(t, err)
	defer srv.Close()

	cfd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(cfd)
	require.NoError(t, unix.Connect(cfd, &unix.SockaddrUnix{Name: "@" + name[1:]}))

	sfd, err := srv.Accept()
	require.NoError(t, err)
	defer unix.Close(sfd)

	client := NewClient(sfd)
	defer client.Close()

	require.NoError(t, client.WriteString("hello\n"))
	buf := make([]byte, 16)
	n, err := unix.Read(cfd, buf)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(buf[:n]))
}

func TestClientReadLinesSplitsOnNewline(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	client := NewClient(fds[0])
	defer client.Close()

	_, err = unix.Write(fds[1], []byte("device add stick /dev/input/event0\nuse primary\n"))
	require.NoError(t, err)

	lines, eof, err := client.ReadLines()
	require.NoError(t, err)
	require.False(t, eof)
	require.Equal(t, []string{"device add stick /dev/input/event0", "use primary"}, lines)
}

func TestClientReadLinesEOF(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.Close(fds[1]))

	client := NewClient(fds[0])
	defer client.Close()

	_, eof, err := client.ReadLines()
	require.NoError(t, err)
	require.True(t, eof)
}

func TestListenFilesystemPathUnlinkedOnClose(t *testing.T) {
	path := fmt.Sprintf("%s/netevent-test-%d.sock", t.TempDir(), os.Getpid())
	srv, err := Listen(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	require.NoError(t, srv.Close())
	_, statErr = os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
