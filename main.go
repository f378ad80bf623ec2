package main

import (
	"os"
	"runtime"

	"fmradio/cmd"
	applog "fmradio/internal/log"
	"fmradio/pkg/build"
)

// main validates build info, then hands the arguments to the command tree.
// Each command owns its own startup and shutdown: load config, wire the
// engine, run until done or interrupted, then close the engine before its
// transports.
func main() {
	if err := build.Initialize(); err != nil {
		if build.GetBuildFlags().Dev() {
			applog.Debugf("development build: %v", err)
		} else {
			applog.Warnf("partially stamped build: %v", err)
		}
	}

	// One thread for the render loop, one for the engine worker, the rest
	// for I/O and UI.
	if runtime.GOMAXPROCS(0) < 3 {
		runtime.GOMAXPROCS(3)
	}

	if err := cmd.Execute(os.Args[1:]); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
