//go:build windows

package watchdog

import "os"

// initialPPID is captured once at process start; the original's Windows
// branch detects parent death by noticing os.getppid() changed value
// (Windows recycles the current ppid to a new owner once the original
// parent exits, rather than raising an error the way POSIX signal-zero
// does).
var initialPPID = os.Getppid()

func hostAlive() bool {
	return os.Getppid() == initialPPID
}
