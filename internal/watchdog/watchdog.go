// Package watchdog monitors the host process that spawned this child and
// terminates the child if the host goes away, the Go analogue of
// secondaryBootstrapScript.py's watchdog_monitor_parent daemon thread.
package watchdog

import (
	"os"
	"time"
)

// PollInterval is how often liveness is checked.
var PollInterval = 3 * time.Second

// hostAliveFn is a var indirection over the platform-specific hostAlive so
// tests can stub liveness without depending on real process signals.
var hostAliveFn = hostAlive

// Start launches the watchdog goroutine. It calls onDead (os.Exit(1) by
// default) the first time the host is observed to be gone.
func Start(onDead func()) {
	if onDead == nil {
		onDead = func() { os.Exit(1) }
	}
	go func() {
		for {
			if !hostAliveFn() {
				onDead()
				return
			}
			time.Sleep(PollInterval)
		}
	}()
}
