package daemon

import "os"

// actionTable maps a fixed set of event names to the command text fired
// when that event is raised (spec §3 "ActionTable").
type actionTable map[string]string

// validActionNames is the fixed set from spec §4.8.
var validActionNames = map[string]bool{
	ActionOutputChanged: true,
	ActionDeviceLost:    true,
	ActionGrabChanged:   true,
}

// updateEnv publishes the environment variables child shells observe
// (spec §4.8, §6): NETEVENT_OUTPUT_NAME, NETEVENT_GRABBING, and the
// legacy GRAB alias. Must be called before the associated action fires.
func (d *Daemon) updateEnv() {
	name := "<none>"
	if d.currentName != "" {
		name = d.currentName
	}
	grabbing := "0"
	if d.grabbing {
		grabbing = "1"
	}
	_ = os.Setenv("NETEVENT_OUTPUT_NAME", name)
	_ = os.Setenv("NETEVENT_GRABBING", grabbing)
	_ = os.Setenv("GRAB", grabbing)
}

// fireAction enqueues the ActionTable entry for event, if any, as an
// internally originated command (spec §4.8 "Output lifecycle events").
func (d *Daemon) fireAction(event string) {
	cmd, ok := d.actions[event]
	if !ok {
		return
	}
	d.enqueue(-1, cmd)
}

func environ() []string {
	return os.Environ()
}
