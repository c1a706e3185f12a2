// Command netevent runs the capture daemon: it owns input devices,
// output sinks, and the control socket described in spec §4 and §6.
// Flag parsing is deliberately minimal (spec §1, §6.1) -- the binary
// exists to make the library runnable end to end, not to showcase CLI
// design.
package main

import (
	"flag"
	"os"

	"github.com/netevent/netevent/internal/daemon"
	"github.com/netevent/netevent/log"
)

func main() {
	listen := flag.String("listen", "@netevent", "control socket bind target (@NAME for abstract, otherwise a filesystem path)")
	source := flag.String("source", "", "optional command script to run once at startup, as if piped through the `source` command")
	flag.Parse()

	d, err := daemon.New(*listen)
	if err != nil {
		log.Fatalf("netevent: %v", err)
	}

	if *source != "" {
		if err := d.RunSource(*source); err != nil {
			log.Errorf("netevent: -source %s: %v", *source, err)
		}
	}

	if err := d.Run(); err != nil {
		log.Errorf("netevent: %v", err)
		os.Exit(2)
	}
}
