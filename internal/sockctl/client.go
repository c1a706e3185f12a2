package sockctl

import (
	"golang.org/x/sys/unix"

	"github.com/netevent/netevent/internal/neterr"
)

const readChunk = 4096

// Client is one accepted control-socket connection with a line-buffered
// read side. It accumulates partial reads across poller callbacks and
// yields complete '\n'-terminated lines (trailing '\r' stripped).
type Client struct {
	fd  int
	buf []byte
}

// NewClient wraps an already-accepted fd.
func NewClient(fd int) *Client { return &Client{fd: fd} }

// Fd returns the underlying file descriptor.
func (c *Client) Fd() int { return c.fd }

// ReadLines performs one non-blocking-shaped read of whatever is
// currently available and returns any complete lines it produced. eof
// is true when the peer has closed its write side.
func (c *Client) ReadLines() (lines []string, eof bool, err error) {
	chunk := make([]byte, readChunk)
	n, rerr := unix.Read(c.fd, chunk)
	if rerr != nil {
		return nil, false, neterr.IoErr(rerr, "read control client")
	}
	if n == 0 {
		return nil, true, nil
	}
	c.buf = append(c.buf, chunk[:n]...)

	start := 0
	for i := 0; i < len(c.buf); i++ {
		if c.buf[i] != '\n' {
			continue
		}
		line := c.buf[start:i]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		lines = append(lines, string(line))
		start = i + 1
	}
	c.buf = append([]byte(nil), c.buf[start:]...)
	return lines, false, nil
}

// WriteString writes s in full to the client.
func (c *Client) WriteString(s string) error {
	b := []byte(s)
	for len(b) > 0 {
		n, err := unix.Write(c.fd, b)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return neterr.IoErr(err, "write control client")
		}
		b = b[n:]
	}
	return nil
}

// Close closes the client fd.
func (c *Client) Close() error {
	if err := unix.Close(c.fd); err != nil {
		return neterr.IoErr(err, "close control client")
	}
	return nil
}
