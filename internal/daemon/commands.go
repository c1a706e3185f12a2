package daemon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/netevent/netevent/internal/cmdline"
	"github.com/netevent/netevent/internal/evcodes"
	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/log"
	"github.com/netevent/netevent/metrics"
)

// drainCommandQueue executes every entry queued so far, in order (spec
// §4.8 step 1). Entries enqueued by a handler invoked during this drain
// (e.g. a grab-changed or output-changed action fired by "grab" or
// "use") are appended to cmdQueue and observed only on the next call,
// never inline.
func (d *Daemon) drainCommandQueue() {
	queue := d.cmdQueue
	d.cmdQueue = nil
	for _, entry := range queue {
		d.execEntry(entry)
	}
}

func (d *Daemon) execEntry(entry CommandQueueEntry) {
	commands, err := cmdline.ParseLine(entry.Text)
	if err != nil {
		d.replyTo(entry.OriginFd, "ERROR: "+err.Error()+"\n")
		return
	}
	for _, args := range commands {
		d.runCommand(entry.OriginFd, args)
	}
}

func (d *Daemon) runCommand(originFd int32, args []string) {
	metrics.Add(metrics.CommandsExecuted, 1)
	if len(args) == 0 {
		return
	}
	err := d.dispatch(originFd, args)
	if err != nil {
		d.replyTo(originFd, "ERROR: "+err.Error()+"\n")
		return
	}
	if originFd >= 0 {
		d.replyTo(originFd, "Ok.\n")
	}
}

// dispatch implements the closed CommandHandlers grammar (spec §4.9).
func (d *Daemon) dispatch(originFd int32, args []string) error {
	verb := args[0]
	rest := args[1:]
	switch verb {
	case "nop":
		return nil
	case "device":
		return d.cmdDevice(rest)
	case "output":
		return d.cmdOutput(rest)
	case "hotkey":
		return d.cmdHotkey(rest)
	case "action":
		return d.cmdAction(rest)
	case "grab":
		return d.cmdGrab(rest)
	case "use":
		if len(rest) != 1 {
			return neterr.New(neterr.Config, "use: expected NAME")
		}
		return d.UseOutput(rest[0])
	case "exec":
		return d.cmdExec(rest)
	case "source":
		return d.cmdSource(rest)
	case "info":
		return d.cmdInfo(originFd)
	case "quit":
		d.quit.Store(true)
		return nil
	default:
		return neterr.New(neterr.Config, "unknown command: "+verb)
	}
}

func (d *Daemon) cmdDevice(args []string) error {
	if len(args) == 0 {
		return neterr.New(neterr.Config, "device: expected a subcommand")
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return neterr.New(neterr.Config, "device add: expected NAME PATH")
		}
		return d.AddInput(args[1], args[2])
	case "remove":
		if len(args) != 2 {
			return neterr.New(neterr.Config, "device remove: expected NAME")
		}
		return d.RemoveInput(args[1])
	case "rename":
		if len(args) != 3 {
			return neterr.New(neterr.Config, "device rename: expected NAME NEWNAME")
		}
		return d.RenameInput(args[1], args[2])
	case "reset-name":
		if len(args) != 2 {
			return neterr.New(neterr.Config, "device reset-name: expected NAME")
		}
		return d.ResetInputName(args[1])
	case "set-persistent":
		if len(args) != 3 {
			return neterr.New(neterr.Config, "device set-persistent: expected NAME BOOL")
		}
		b, err := parseBool(args[2])
		if err != nil {
			return err
		}
		return d.SetPersistent(args[1], b)
	default:
		return neterr.New(neterr.Config, "device: unknown subcommand "+args[0])
	}
}

func (d *Daemon) cmdOutput(args []string) error {
	if len(args) == 0 {
		return neterr.New(neterr.Config, "output: expected a subcommand")
	}
	switch args[0] {
	case "add":
		rest := args[1:]
		resume := false
		if len(rest) > 0 && rest[0] == "--resume" {
			resume = true
			rest = rest[1:]
		}
		if len(rest) < 2 {
			return neterr.New(neterr.Config, "output add: expected [--resume] NAME SPEC...")
		}
		return d.AddOutput(rest[0], strings.Join(rest[1:], " "), resume)
	case "remove":
		if len(args) != 2 {
			return neterr.New(neterr.Config, "output remove: expected NAME")
		}
		return d.RemoveOutput(args[1])
	case "use":
		if len(args) != 2 {
			return neterr.New(neterr.Config, "output use: expected NAME")
		}
		return d.UseOutput(args[1])
	default:
		return neterr.New(neterr.Config, "output: unknown subcommand "+args[0])
	}
}

func (d *Daemon) cmdHotkey(args []string) error {
	if len(args) == 0 {
		return neterr.New(neterr.Config, "hotkey: expected a subcommand")
	}
	switch args[0] {
	case "add":
		if len(args) < 4 {
			return neterr.New(neterr.Config, "hotkey add: expected DEVICE TYPE:CODE:VALUE CMD...")
		}
		key, err := d.resolveHotkeyKey(args[1], args[2])
		if err != nil {
			return err
		}
		d.hotkeys.add(key, strings.Join(args[3:], " "))
		return nil
	case "remove":
		if len(args) != 3 {
			return neterr.New(neterr.Config, "hotkey remove: expected DEVICE TYPE:CODE:VALUE")
		}
		key, err := d.resolveHotkeyKey(args[1], args[2])
		if err != nil {
			return err
		}
		if !d.hotkeys.remove(key) {
			return neterr.New(neterr.Config, "no such hotkey")
		}
		return nil
	default:
		return neterr.New(neterr.Config, "hotkey: unknown subcommand "+args[0])
	}
}

func (d *Daemon) resolveHotkeyKey(device, spec string) (HotkeyKey, error) {
	id, ok := d.nameToID[device]
	if !ok {
		return HotkeyKey{}, neterr.New(neterr.Config, "no such input: "+device)
	}
	t, c, v, err := parseTypeCodeValue(spec)
	if err != nil {
		return HotkeyKey{}, err
	}
	return HotkeyKey{DeviceID: id, Type: uint16(t), Code: c, Value: v}, nil
}

func (d *Daemon) cmdAction(args []string) error {
	if len(args) == 0 {
		return neterr.New(neterr.Config, "action: expected a subcommand")
	}
	switch args[0] {
	case "set":
		if len(args) < 3 {
			return neterr.New(neterr.Config, "action set: expected EVENT CMD...")
		}
		if !validActionNames[args[1]] {
			return neterr.New(neterr.Config, "action set: unknown event "+args[1])
		}
		d.actions[args[1]] = strings.Join(args[2:], " ")
		return nil
	case "remove":
		if len(args) != 2 {
			return neterr.New(neterr.Config, "action remove: expected EVENT")
		}
		if _, ok := d.actions[args[1]]; !ok {
			return neterr.New(neterr.Config, "no such action: "+args[1])
		}
		delete(d.actions, args[1])
		return nil
	default:
		return neterr.New(neterr.Config, "action: unknown subcommand "+args[0])
	}
}

func (d *Daemon) cmdGrab(args []string) error {
	if len(args) != 1 {
		return neterr.New(neterr.Config, "grab: expected on|off|toggle")
	}
	switch strings.ToLower(args[0]) {
	case "toggle":
		d.setGrab(!d.grabbing)
		return nil
	default:
		b, err := parseBool(args[0])
		if err != nil {
			return neterr.New(neterr.Config, "grab: expected on|off|toggle")
		}
		d.setGrab(b)
		return nil
	}
}

func (d *Daemon) cmdExec(args []string) error {
	if len(args) == 0 {
		return neterr.New(neterr.Config, "exec: expected CMD...")
	}
	cmd := strings.Join(args, " ")
	pid, err := spawnShell(cmd, -1)
	if err != nil {
		return err
	}
	waitForPid(pid)
	return nil
}

func (d *Daemon) cmdSource(args []string) error {
	if len(args) != 1 {
		return neterr.New(neterr.Config, "source: expected PATH")
	}
	return d.sourceFile(args[0])
}

// RunSource runs path as if it had been fed to the `source` command,
// for use by cmd/netevent's -source startup flag.
func (d *Daemon) RunSource(path string) error {
	return d.sourceFile(path)
}

func (d *Daemon) cmdInfo(originFd int32) error {
	var b strings.Builder
	grabState := "off"
	if d.grabbing {
		grabState = "on"
	}
	fmt.Fprintf(&b, "grab: %s\n", grabState)
	fmt.Fprintf(&b, "current output: %s\n", d.currentNameOrNone())
	fmt.Fprintln(&b, "inputs:")
	for _, in := range d.inputs {
		if in == nil {
			continue
		}
		fmt.Fprintf(&b, "  %d %s %s\n", in.ID, in.Name, in.Source.String())
	}
	fmt.Fprintln(&b, "outputs:")
	for name := range d.outputs {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	fmt.Fprintln(&b, "hotkeys:")
	for k, cmd := range d.hotkeys {
		fmt.Fprintf(&b, "  device=%d type=%d code=%d value=%d -> %s\n", k.DeviceID, k.Type, k.Code, k.Value, cmd)
	}
	fmt.Fprintln(&b, "actions:")
	for name, cmd := range d.actions {
		fmt.Fprintf(&b, "  %s -> %s\n", name, cmd)
	}
	d.replyTo(originFd, b.String())
	return nil
}

func (d *Daemon) currentNameOrNone() string {
	if d.currentName == "" {
		return "<none>"
	}
	return d.currentName
}

// sourceFile reads path line by line, executing each line immediately
// (spec §4.7: "When read from a source FILE, lines beginning with # ...
// are comments").
func (d *Daemon) sourceFile(path string) error {
	lines, err := readLines(path)
	if err != nil {
		return neterr.IoErr(err, "source "+path)
	}
	for _, line := range lines {
		if cmdline.IsComment(line) {
			continue
		}
		commands, err := cmdline.ParseLine(line)
		if err != nil {
			log.Errorf("daemon: source %s: %v", path, err)
			continue
		}
		for _, args := range commands {
			if len(args) == 0 {
				continue
			}
			if err := d.dispatch(-1, args); err != nil {
				log.Errorf("daemon: source %s: %v", path, err)
			}
		}
	}
	return nil
}

// parseTypeCodeValue parses the "TYPE:CODE:VALUE" token used by hotkey
// add/remove (spec §4.9).
func parseTypeCodeValue(spec string) (t int, code uint16, value int32, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return 0, 0, 0, neterr.New(neterr.Config, "expected TYPE:CODE:VALUE, got "+spec)
	}
	t, ok := evcodes.ParseType(parts[0])
	if !ok {
		return 0, 0, 0, neterr.New(neterr.Config, "unknown event type "+parts[0])
	}
	c, cerr := strconv.ParseUint(parts[1], 0, 16)
	if cerr != nil {
		return 0, 0, 0, neterr.New(neterr.Config, "bad CODE: "+parts[1])
	}
	v, verr := strconv.ParseInt(parts[2], 0, 32)
	if verr != nil {
		return 0, 0, 0, neterr.New(neterr.Config, "bad VALUE: "+parts[2])
	}
	return t, uint16(c), int32(v), nil
}

// parseBool implements spec §4.9 boolean parsing: case-insensitive
// 1|on|yes|true -> true, 0|off|no|false -> false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "yes", "true":
		return true, nil
	case "0", "off", "no", "false":
		return false, nil
	default:
		return false, neterr.New(neterr.Config, "expected a boolean, got "+s)
	}
}
