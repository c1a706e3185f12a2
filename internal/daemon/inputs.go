package daemon

import (
	"io"

	"github.com/netevent/netevent/internal/evdev"
	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/internal/poller"
	"github.com/netevent/netevent/internal/wire"
	"github.com/netevent/netevent/log"
	"github.com/netevent/netevent/metrics"
)

// allocInputID returns the next free dense id, reusing the free list
// before growing the table (spec §3 Invariants, §9 "Arena + id for
// inputs").
func (d *Daemon) allocInputID() (uint16, error) {
	if n := len(d.freeIDs); n > 0 {
		id := d.freeIDs[n-1]
		d.freeIDs = d.freeIDs[:n-1]
		return id, nil
	}
	if len(d.inputs) >= maxInputs {
		return 0, neterr.New(neterr.Exhaustion, "too many inputs")
	}
	id := uint16(len(d.inputs))
	d.inputs = append(d.inputs, nil)
	return id, nil
}

func (d *Daemon) freeInputID(id uint16) {
	d.freeIDs = append(d.freeIDs, id)
}

// AddInput opens path, registers a new Input under name, and announces
// it to every live output (spec §4.8 "Device-announcement rules": "When
// a new input is added, send AddDevice for that input to every live
// output").
func (d *Daemon) AddInput(name, path string) error {
	if _, exists := d.nameToID[name]; exists {
		return neterr.New(neterr.Config, "input name already in use: "+name)
	}
	src, err := evdev.Open(path)
	if err != nil {
		return err
	}
	id, err := d.allocInputID()
	if err != nil {
		_ = src.Close()
		return err
	}
	in := &Input{ID: id, Name: name, Source: src}
	d.inputs[id] = in
	d.nameToID[name] = id

	if d.grabbing {
		// Invariant (spec §3): "If grabbing == true, every input's
		// source is in the grabbed state."
		if gerr := src.Grab(true); gerr != nil {
			log.Errorf("daemon: grab new input %s: %v", name, gerr)
		}
	}

	d.poller.Add(src.Fd(), poller.Callbacks{
		OnRead: func() error { return d.onInputReadable(id) },
		OnHup:  func() { d.onInputLost(id) },
		OnError: func() error {
			d.onInputLost(id)
			return nil
		},
	})

	for _, o := range d.outputs {
		d.writeToOutput(o, "announce input "+name, func(w io.Writer) error {
			return src.WriteAddDevice(w, id)
		})
	}
	return nil
}

// RemoveInput destroys an input by name (spec §3 Input lifecycle).
func (d *Daemon) RemoveInput(name string) error {
	id, ok := d.nameToID[name]
	if !ok {
		return neterr.New(neterr.Config, "no such input: "+name)
	}
	d.destroyInput(id)
	return nil
}

func (d *Daemon) destroyInput(id uint16) {
	in := d.inputs[id]
	if in == nil {
		return
	}
	fd := in.Source.Fd()
	d.poller.Remove(fd)
	_ = in.Source.Close()
	d.inputs[id] = nil
	delete(d.nameToID, in.Name)
	d.freeInputID(id)
	d.hotkeys.removeForInput(id)

	if !in.Persistent {
		for _, o := range d.outputs {
			d.writeToOutput(o, "RemoveDevice for "+in.Name, func(w io.Writer) error {
				return wire.WriteRemoveDevice(w, id)
			})
		}
	}
}

// RenameInput overrides the name an input advertises in future
// AddDevice frames (spec §4.2 set_name). It does not re-announce or
// affect the lookup table key.
func (d *Daemon) RenameInput(name, newName string) error {
	id, ok := d.nameToID[name]
	if !ok {
		return neterr.New(neterr.Config, "no such input: "+name)
	}
	d.inputs[id].Source.SetName(newName)
	return nil
}

// ResetInputName restores the name captured at open time.
func (d *Daemon) ResetInputName(name string) error {
	id, ok := d.nameToID[name]
	if !ok {
		return neterr.New(neterr.Config, "no such input: "+name)
	}
	d.inputs[id].Source.ResetName()
	return nil
}

// SetPersistent toggles whether destroying this input suppresses the
// RemoveDevice announcement (spec §3 Input: "persistent inhibits
// emitting RemoveDevice when the source closes").
func (d *Daemon) SetPersistent(name string, persistent bool) error {
	id, ok := d.nameToID[name]
	if !ok {
		return neterr.New(neterr.Config, "no such input: "+name)
	}
	d.inputs[id].Persistent = persistent
	return nil
}

// onInputReadable is the input read handler (spec §4.8): read one
// event, check the hotkey table, else forward to the current output
// while grabbing.
func (d *Daemon) onInputReadable(id uint16) error {
	in := d.inputs[id]
	if in == nil {
		return nil
	}
	ev, ok, err := in.Source.ReadEvent()
	if err != nil {
		log.Errorf("daemon: read input %s: %v", in.Name, err)
		d.onInputLost(id)
		return nil
	}
	if !ok {
		d.onInputLost(id)
		return nil
	}

	key := HotkeyKey{DeviceID: id, Type: ev.Type, Code: ev.Code, Value: ev.Value}
	if cmd, hit := d.hotkeys[key]; hit {
		metrics.Add(metrics.HotkeyMatches, 1)
		d.enqueue(-1, cmd)
		return nil
	}
	if d.current == nil || !d.grabbing {
		return nil
	}
	if err := wire.WriteDeviceEvent(writerFor(d.current), id, ev); err != nil {
		log.Errorf("daemon: write DeviceEvent to %s: %v", d.current.Name, err)
		metrics.Add(metrics.DroppedWrites, 1)
		d.dropOutput(d.current.Name)
		return nil
	}
	metrics.Add(metrics.EventsForwarded, 1)
	return nil
}

// onInputLost handles EOF/error on an input's fd (spec §3 Input
// lifecycle, §4.8 "device-lost").
func (d *Daemon) onInputLost(id uint16) {
	in := d.inputs[id]
	if in == nil {
		return
	}
	d.destroyInput(id)
	d.fireAction(ActionDeviceLost)
}

// writerFor adapts an Output to io.Writer for the wire package's
// Write* helpers, surfacing write errors instead of panicking on a
// short write.
func writerFor(o *Output) outputWriter { return outputWriter{o} }

type outputWriter struct{ o *Output }

func (w outputWriter) Write(p []byte) (int, error) {
	if err := w.o.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
