// Package daemon implements the netevent core event loop (spec §4.8):
// the table of inputs and outputs, the hotkey and action tables, the
// command queue, and the dispatch that ties them to the FdPoller.
package daemon

import (
	"github.com/netevent/netevent/internal/evdev"
)

// Input is one registered evdev source (spec §3 "Input").
type Input struct {
	ID         uint16
	Name       string
	Source     *evdev.InputSource
	Persistent bool
}

// HotkeyKey identifies one (device, event) combination that triggers a
// command instead of being forwarded (spec §3 "HotkeyKey").
type HotkeyKey struct {
	DeviceID uint16
	Type     uint16
	Code     uint16
	Value    int32
}

// Action event names (spec §4.8 "Output lifecycle events").
const (
	ActionOutputChanged = "output-changed"
	ActionDeviceLost    = "device-lost"
	ActionGrabChanged   = "grab-changed"
)

// CommandQueueEntry is one pending command line (spec §3). OriginFd is
// -1 for internally generated commands (hotkeys, actions).
type CommandQueueEntry struct {
	OriginFd int32
	Text     string
}
