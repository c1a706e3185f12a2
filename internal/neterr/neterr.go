// Package neterr provides the daemon's error taxonomy: Io, Protocol,
// Device, Config and Exhaustion kinds, each wrapping an underlying cause.
package neterr

import "fmt"

// Kind classifies the failure so callers can branch on it instead of
// matching message strings.
type Kind int

// The five kinds of failure the daemon distinguishes.
const (
	// Io covers read/write/open failures on fds.
	Io Kind = iota
	// Protocol covers wire framing/magic/version/size mismatches.
	Protocol
	// Device covers ioctl-backed query/setup/create failures.
	Device
	// Config covers bad arguments, unknown tokens, unknown verbs.
	Config
	// Exhaustion covers running out of ids or other bounded resources.
	Exhaustion
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Protocol:
		return "protocol"
	case Device:
		return "device"
	case Config:
		return "config"
	case Exhaustion:
		return "exhaustion"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the concrete error type carrying a Kind and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind wrapping err. Returns nil if err is nil.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IoErr wraps err as an Io error.
func IoErr(err error, msg string) *Error { return Wrap(Io, err, msg) }

// ProtocolErr wraps err as a Protocol error.
func ProtocolErr(err error, msg string) *Error { return Wrap(Protocol, err, msg) }

// DeviceErr wraps err as a Device error.
func DeviceErr(err error, msg string) *Error { return Wrap(Device, err, msg) }

// ConfigErr wraps err as a Config error.
func ConfigErr(err error, msg string) *Error { return Wrap(Config, err, msg) }
