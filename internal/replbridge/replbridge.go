// Package replbridge implements the interactive, delimiter-framed code
// execution loop described in SPEC_FULL.md §4.E: accumulate a submission
// until the fixed sentinel, hand it to the embedded interpreter in one
// shot, optionally capture combined stdout/stderr, and report exactly one
// structured status/exception record per submission.
package replbridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"jumpgo/internal/errkind"
)

// Delimiter separates submissions on both the input and output pipes.
const Delimiter = "\x01\x02\x03\n"

const captureToggle = "__CAPTURE_COMBINED__ ="

// StatusRecord is the single per-submission record written to the status
// pipe.
type StatusRecord struct {
	Type      string `json:"type"` // "status" or "exception"
	Message   string `json:"message,omitempty"`
	Exception string `json:"exception,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Bridge drives one REPL session over an input reader, output writer, and
// status writer.
type Bridge struct {
	interp          *interp.Interpreter
	in              *bufio.Reader
	out             io.Writer
	status          io.Writer
	captureCombined bool
}

// New constructs a Bridge. GoPath, if non-empty, is passed through to the
// embedded interpreter (e.g. so REPL code can import modules staged by
// internal/loader in the same process). Combined stdout/stderr capture
// defaults to true, matching repl.py's own default.
func New(in io.Reader, out, status io.Writer, goPath string) *Bridge {
	i := interp.New(interp.Options{GoPath: goPath})
	_ = i.Use(stdlib.Symbols)
	return &Bridge{
		interp:          i,
		in:              bufio.NewReader(in),
		out:             out,
		status:          status,
		captureCombined: true,
	}
}

// Run reads submissions until the input stream closes.
func (b *Bridge) Run() error {
	for {
		submission, err := b.readSubmission()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errkind.New(errkind.KindClosed, "replbridge.Run", err)
		}
		b.handleSubmission(submission)
	}
}

func (b *Bridge) readSubmission() (string, error) {
	var sb strings.Builder
	for {
		line, err := b.in.ReadString('\n')
		if strings.HasSuffix(sb.String()+line, Delimiter) {
			sb.WriteString(line)
			s := sb.String()
			return strings.TrimSuffix(s, Delimiter), nil
		}
		sb.WriteString(line)
		if err != nil {
			if err == io.EOF && sb.Len() == 0 {
				return "", io.EOF
			}
			return sb.String(), err
		}
	}
}

func (b *Bridge) handleSubmission(src string) {
	if val, ok := parseCaptureToggle(src); ok {
		b.captureCombined = val
		b.writeStatus(StatusRecord{Type: "status", Message: "ok"})
		return
	}

	if b.captureCombined {
		b.runCaptured(src)
	} else {
		b.runPlain(src)
	}
}

func parseCaptureToggle(src string) (bool, bool) {
	firstLine := src
	if idx := strings.IndexByte(src, '\n'); idx >= 0 {
		firstLine = src[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)
	if !strings.HasPrefix(firstLine, captureToggle) {
		return false, false
	}
	rhs := strings.TrimSpace(strings.TrimPrefix(firstLine, captureToggle))
	rhs = strings.TrimSuffix(rhs, ";")
	switch rhs {
	case "True", "true":
		return true, true
	case "False", "false":
		return false, true
	default:
		return false, false
	}
}

func (b *Bridge) runPlain(src string) {
	defer b.recoverPanic(func() { _, _ = io.WriteString(b.out, Delimiter) })
	_, err := b.interp.Eval(src)
	_, _ = io.WriteString(b.out, Delimiter)
	b.reportResult(err)
}

func (b *Bridge) runCaptured(src string) {
	origStdout, origStderr := os.Stdout, os.Stderr
	pr, pw, perr := os.Pipe()
	if perr != nil {
		_, _ = io.WriteString(b.out, Delimiter)
		b.reportResult(perr)
		return
	}
	os.Stdout, os.Stderr = pw, pw

	captured := make(chan string, 1)
	go func() {
		buf, _ := io.ReadAll(pr)
		captured <- string(buf)
	}()

	restoreAndFlush := func() {
		os.Stdout, os.Stderr = origStdout, origStderr
		_ = pw.Close()
		out := <-captured
		if out != "" {
			_, _ = io.WriteString(b.out, out)
		}
		_, _ = io.WriteString(b.out, Delimiter)
	}

	defer b.recoverPanic(restoreAndFlush)

	_, evalErr := b.interp.Eval(src)
	restoreAndFlush()
	b.reportResult(evalErr)
}

func (b *Bridge) reportResult(err error) {
	if err != nil {
		b.writeStatus(StatusRecord{
			Type:      "exception",
			Exception: fmt.Sprintf("%T", err),
			Message:   err.Error(),
			Traceback: err.Error(),
		})
		return
	}
	b.writeStatus(StatusRecord{Type: "status", Message: "ok"})
}

// recoverPanic catches a panic escaping Eval, runs cleanup (restoring
// stdout/stderr and flushing the delimiter) so the output pipe framing is
// never left unterminated, and reports the panic as an exception record.
func (b *Bridge) recoverPanic(cleanup func()) {
	if r := recover(); r != nil {
		if cleanup != nil {
			cleanup()
		}
		b.writeStatus(StatusRecord{
			Type:      "exception",
			Exception: "panic",
			Message:   fmt.Sprintf("%v", r),
			Traceback: string(debug.Stack()),
		})
	}
}

func (b *Bridge) writeStatus(rec StatusRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	_, _ = b.status.Write(raw)
	if f, ok := b.status.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}
