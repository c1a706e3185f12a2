package daemon

import (
	"io"

	"github.com/netevent/netevent/internal/neterr"
	"github.com/netevent/netevent/internal/poller"
	"github.com/netevent/netevent/internal/wire"
	"github.com/netevent/netevent/log"
	"github.com/netevent/netevent/metrics"
)

// AddOutput creates a new sink named name from spec, writes a Hello to
// it and, unless resume is set, announces every existing input to it
// (spec §4.8
// "Device-announcement rules": "When a new output is added (except
// with --resume), announce all existing inputs ... Then publish a
// fresh Hello before announcements").
func (d *Daemon) AddOutput(name, spec string, resume bool) error {
	if _, exists := d.outputs[name]; exists {
		return neterr.New(neterr.Config, "output name already in use: "+name)
	}
	o, err := newOutput(name, spec)
	if err != nil {
		return err
	}
	d.outputs[name] = o
	d.poller.Add(o.Fd(), poller.Callbacks{
		OnHup: func() { d.dropOutput(name) },
		OnError: func() error {
			d.dropOutput(name)
			return nil
		},
	})

	d.writeToOutput(o, "Hello", wire.WriteHello)
	if !resume {
		for _, in := range d.inputs {
			if in == nil {
				continue
			}
			if _, stillLive := d.outputs[name]; !stillLive {
				break
			}
			id := in.ID
			src := in.Source
			d.writeToOutput(o, "announce "+in.Name, func(w io.Writer) error {
				return src.WriteAddDevice(w, id)
			})
		}
	}
	return nil
}

// writeToOutput runs fn against o, dropping o on any write failure so a
// broken sink cannot linger to receive further announcements or events
// (mirrors the original's writeToOutput/removeOutput coupling: any
// failed write to an output removes it on the spot).
func (d *Daemon) writeToOutput(o *Output, what string, fn func(w io.Writer) error) {
	if err := fn(writerFor(o)); err != nil {
		log.Errorf("daemon: %s to output %s: %v", what, o.Name, err)
		metrics.Add(metrics.DroppedWrites, 1)
		d.dropOutput(o.Name)
	}
}

// RemoveOutput destroys a named output explicitly (spec §3 Output
// lifecycle).
func (d *Daemon) RemoveOutput(name string) error {
	if _, ok := d.outputs[name]; !ok {
		return neterr.New(neterr.Config, "no such output: "+name)
	}
	d.dropOutput(name)
	return nil
}

// dropOutput removes an output from the table regardless of cause
// (explicit removal, write error, or fd error/HUP), clearing the
// current-output selection if it was the one dropped.
func (d *Daemon) dropOutput(name string) {
	o, ok := d.outputs[name]
	if !ok {
		return
	}
	d.poller.Remove(o.Fd())
	_ = o.Close()
	delete(d.outputs, name)
	if d.current == o {
		d.loseCurrentOutput()
	}
}

// UseOutput selects name as the current output (spec §4.9 "output
// use"/"use"). Fires output-changed after the selection and the
// published env var both take effect (spec §5 "Ordering guarantees").
func (d *Daemon) UseOutput(name string) error {
	o, ok := d.outputs[name]
	if !ok {
		return neterr.New(neterr.Config, "no such output: "+name)
	}
	d.current = o
	d.currentName = name
	d.updateEnv()
	d.fireAction(ActionOutputChanged)
	return nil
}

// loseCurrentOutput clears the current-output selection and, if
// grabbing was on, turns grab off (spec §3 CurrentOutput: "Losing the
// current output implicitly turns off grab"; §4.8 "lostCurrentOutput()
// ... clears the selection and, if grabbing was on, turns grab off (and
// fires the grab-changed action)").
func (d *Daemon) loseCurrentOutput() {
	d.current = nil
	d.currentName = ""
	d.updateEnv()
	if d.grabbing {
		d.setGrab(false)
	}
}

// setGrab applies the grab flag to every live input and fires
// grab-changed on an actual transition (spec §4.8 "grab(...) applies").
// Env var publication happens before the fork per the fixed ordering in
// spec §9 Open Questions ("env var first, fork second").
func (d *Daemon) setGrab(on bool) {
	if on == d.grabbing {
		return
	}
	for _, in := range d.inputs {
		if in == nil {
			continue
		}
		if err := in.Source.Grab(on); err != nil {
			log.Errorf("daemon: grab(%v) on %s: %v", on, in.Name, err)
		}
	}
	d.grabbing = on
	d.updateEnv()
	d.fireAction(ActionGrabChanged)
}
