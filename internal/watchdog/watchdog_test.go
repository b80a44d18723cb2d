package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartCallsOnDeadWhenHostGone(t *testing.T) {
	origInterval := PollInterval
	origHostAlive := hostAliveFn
	defer func() {
		PollInterval = origInterval
		hostAliveFn = origHostAlive
	}()

	PollInterval = 5 * time.Millisecond
	var alive atomic.Bool
	alive.Store(false)
	hostAliveFn = func() bool { return alive.Load() }

	var called atomic.Bool
	Start(func() { called.Store(true) })

	require.Eventually(t, func() bool { return called.Load() }, time.Second, 5*time.Millisecond)
}
