// Command reminderctl inspects and drives the reminder engine from a shell.
package main

import (
	"os"

	"github.com/carepulse/portal/libs/runtime"
)

func main() {
	ctx, stop := runtime.SignalContext()
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
