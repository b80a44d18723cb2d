// Command jumpgo-child is the interpreter-hosting subprocess: it reads its
// fd-prefixed argument vector, loads the program bundle the host wrote to
// the program descriptor, and executes the bundle's entry module under an
// embedded Go interpreter. Structurally this is the Go analogue of the
// teacher's cmd/agent binary (a small, single-purpose main wired to
// internal packages that do the real work) translated from "guest VM
// agent" to "embedded interpreter child".
package main

import (
	"encoding/json"
	"io"
	"log"
	"os"

	"jumpgo/internal/bundle"
	"jumpgo/internal/host"
	"jumpgo/internal/loader"
	"jumpgo/internal/watchdog"
)

type statusRecord struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Exception string `json:"exception,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	hs, err := host.ParseHandshake(os.Args[1:])
	if err != nil {
		log.Fatalf("jumpgo-child: parse handshake: %v", err)
	}

	var statusFile *os.File
	if hs.StatusFD >= 0 {
		statusFile = os.NewFile(uintptr(hs.StatusFD), "status")
	}

	programFile := os.NewFile(uintptr(hs.ProgramFD), "program")
	if programFile == nil {
		log.Fatalf("jumpgo-child: invalid program fd %d", hs.ProgramFD)
	}
	raw, err := io.ReadAll(programFile)
	if err != nil {
		log.Fatalf("jumpgo-child: read program bundle: %v", err)
	}
	_ = programFile.Close()

	b, err := bundle.Decode(raw)
	if err != nil {
		log.Fatalf("jumpgo-child: decode bundle: %v", err)
	}

	cat, err := bundle.Build(b)
	if err != nil {
		log.Fatalf("jumpgo-child: build catalog: %v", err)
	}

	loaded, err := loader.Stage(cat, loader.ChildHost{
		PipeIn:   hs.PipeInFD,
		PipeOut:  hs.PipeOutFD,
		StatusIn: hs.StatusFD,
		KVPairs:  b.KVPairs,
	})
	if err != nil {
		writeStatus(statusFile, statusRecord{Type: "exception", Exception: "LoaderError", Message: err.Error()})
		os.Exit(1)
	}
	defer loaded.Cleanup()

	watchdog.Start(nil)

	if runErr := loaded.Run(); runErr != nil {
		writeStatus(statusFile, statusRecord{Type: "exception", Exception: "RuntimeError", Message: runErr.Error(), Traceback: runErr.Error()})
	}
	writeStatus(statusFile, statusRecord{Type: "status", Message: "exit"})
}

func writeStatus(f *os.File, rec statusRecord) {
	if f == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	_, _ = f.Write(raw)
}
