package host

import (
	"encoding/json"
	"fmt"
	"strconv"

	"jumpgo/internal/bundle"
)

// Handshake describes the fixed argv prefix and extra files a Launcher
// passes to a freshly started child, per SPEC_FULL.md §4.G:
//
//	[extra_file_count, bootstrap_fd, program_fd, pipe_out_fd, pipe_in_fd,
//	 status_fd, ...extra_fds, ...user_argv]
//
// bootstrap_fd is retained for parity with the distilled protocol's own
// argv shape even though this Go child has no separate bootstrap script to
// load from a descriptor; it is always 0 here.
type Handshake struct {
	ExtraFileCount int
	BootstrapFD    int
	ProgramFD      int
	PipeOutFD      int
	PipeInFD       int
	StatusFD       int
	ExtraFDs       []int
	UserArgv       []string
}

// Argv renders the handshake as the argument vector the child expects
// (argv[0] is the binary itself and is supplied by the caller separately).
func (h Handshake) Argv() []string {
	argv := []string{
		strconv.Itoa(h.ExtraFileCount),
		strconv.Itoa(h.BootstrapFD),
		strconv.Itoa(h.ProgramFD),
		strconv.Itoa(h.PipeOutFD),
		strconv.Itoa(h.PipeInFD),
		strconv.Itoa(h.StatusFD),
	}
	for _, fd := range h.ExtraFDs {
		argv = append(argv, strconv.Itoa(fd))
	}
	argv = append(argv, h.UserArgv...)
	return argv
}

// ParseHandshake reconstructs a Handshake from a child's os.Args[1:], the
// inverse of Argv, used by cmd/jumpgo-child.
func ParseHandshake(args []string) (Handshake, error) {
	if len(args) < 6 {
		return Handshake{}, fmt.Errorf("host: handshake: expected at least 6 leading args, got %d", len(args))
	}
	ints := make([]int, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return Handshake{}, fmt.Errorf("host: handshake: arg %d (%q) is not an integer: %w", i, args[i], err)
		}
		ints[i] = v
	}
	h := Handshake{
		ExtraFileCount: ints[0],
		BootstrapFD:    ints[1],
		ProgramFD:      ints[2],
		PipeOutFD:      ints[3],
		PipeInFD:       ints[4],
		StatusFD:       ints[5],
	}

	// ExtraFileCount counts the four managed descriptors (program, pipe
	// out, pipe in, status) plus any caller-supplied extras; only the
	// extras beyond those four appear as additional leading integers.
	rest := args[6:]
	extraCount := h.ExtraFileCount - 4
	if extraCount < 0 {
		extraCount = 0
	}
	for i := 0; i < extraCount && i < len(rest); i++ {
		v, err := strconv.Atoi(rest[i])
		if err != nil {
			return Handshake{}, fmt.Errorf("host: handshake: extra fd %d (%q) is not an integer: %w", i, rest[i], err)
		}
		h.ExtraFDs = append(h.ExtraFDs, v)
	}
	h.UserArgv = rest[len(h.ExtraFDs):]
	return h, nil
}

// MarshalBundle encodes b as the JSON document written to the program
// descriptor.
func MarshalBundle(b bundle.Bundle) ([]byte, error) {
	return json.Marshal(b)
}
