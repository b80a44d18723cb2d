// Package wire implements the newline-delimited JSON framed transport used
// between the host and the child: one JSON value per line, with blocking,
// non-blocking, and timed variants of send and receive.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"jumpgo/internal/errkind"
)

// MaxLineBytes bounds a single framed message. Program bundles travel on a
// separate one-shot descriptor, so the message channel never needs to carry
// more than this.
const MaxLineBytes = 16 << 20 // 16 MiB

// Queue is a bidirectional framed-JSON channel over a pair of byte streams.
// It owns both streams exclusively: callers must not read or write them
// directly once a Queue has been constructed around them.
type Queue struct {
	w      io.Writer
	wMu    sync.Mutex
	closer io.Closer

	lines  chan lineResult
	closed chan struct{}
	once   sync.Once
}

type lineResult struct {
	data []byte
	err  error
}

// New wraps a read/write pair as a Queue. Close closes w if it implements
// io.Closer, and closer if non-nil; when closer is nil, r is closed in its
// place if it implements io.Closer.
func New(r io.Reader, w io.Writer, closer io.Closer) *Queue {
	if closer == nil {
		if rc, ok := r.(io.Closer); ok {
			closer = rc
		}
	}
	q := &Queue{
		w:      w,
		closer: closer,
		lines:  make(chan lineResult, 64),
		closed: make(chan struct{}),
	}
	go q.readLoop(bufio.NewReaderSize(r, 64<<10))
	return q
}

// readLoop is the single background reader: it owns the read side so that
// bytes read past a line boundary are never dropped between Get calls, the
// same buffering concern the original jumpboot JSONQueue handled with a
// per-call string accumulator.
func (q *Queue) readLoop(br *bufio.Reader) {
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			select {
			case q.lines <- lineResult{data: []byte(line)}:
			case <-q.closed:
				return
			}
		}
		if err != nil {
			select {
			case q.lines <- lineResult{err: err}:
			case <-q.closed:
			}
			return
		}
	}
}

// Put serializes value as one JSON line and writes it. When blocking is
// true and timeout is non-zero, the write is bounded by timeout; on expiry
// it fails with errkind.KindTimeout. When blocking is false, the write is
// attempted once and any failure is reported as errkind.KindWouldBlock; a
// write that has not completed by the time Put checks is also reported as
// errkind.KindWouldBlock but is not cancelled, so it may still land later
// (Go offers no portable non-blocking pipe write, so this is best-effort:
// see the Open Question decisions in DESIGN.md).
func (q *Queue) Put(value any, blocking bool, timeout time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errkind.New(errkind.KindSerialization, "wire.Put", err)
	}
	raw = append(raw, '\n')

	done := make(chan error, 1)
	go func() {
		q.wMu.Lock()
		defer q.wMu.Unlock()
		_, werr := q.w.Write(raw)
		done <- werr
	}()

	if !blocking {
		select {
		case werr := <-done:
			if werr != nil {
				return errkind.New(errkind.KindWouldBlock, "wire.Put", werr)
			}
			return nil
		default:
			// Write is still in flight; it lands later, unsynchronized with
			// this call, but the caller is told it would have blocked.
			return errkind.New(errkind.KindWouldBlock, "wire.Put", fmt.Errorf("write did not complete immediately"))
		}
	}

	if timeout <= 0 {
		if werr := <-done; werr != nil {
			return errkind.New(errkind.KindOS, "wire.Put", werr)
		}
		return nil
	}

	select {
	case werr := <-done:
		if werr != nil {
			return errkind.New(errkind.KindOS, "wire.Put", werr)
		}
		return nil
	case <-time.After(timeout):
		return errkind.New(errkind.KindTimeout, "wire.Put", fmt.Errorf("write timed out after %s", timeout))
	}
}

// Get reads and decodes the next framed JSON value into dst (a pointer).
// blocking/timeout mirror Put's semantics. A closed stream fails with
// errkind.KindClosed.
func (q *Queue) Get(dst any, blocking bool, timeout time.Duration) error {
	if !blocking {
		select {
		case res := <-q.lines:
			return q.decodeResult(res, dst)
		default:
			return errkind.New(errkind.KindWouldBlock, "wire.Get", fmt.Errorf("no message available"))
		}
	}

	if timeout <= 0 {
		res := <-q.lines
		return q.decodeResult(res, dst)
	}

	select {
	case res := <-q.lines:
		return q.decodeResult(res, dst)
	case <-time.After(timeout):
		return errkind.New(errkind.KindTimeout, "wire.Get", fmt.Errorf("read timed out after %s", timeout))
	}
}

func (q *Queue) decodeResult(res lineResult, dst any) error {
	if res.err != nil {
		if res.err == io.EOF && len(res.data) == 0 {
			return errkind.New(errkind.KindClosed, "wire.Get", res.err)
		}
		if len(res.data) == 0 {
			return errkind.New(errkind.KindClosed, "wire.Get", res.err)
		}
	}
	if len(res.data) > MaxLineBytes {
		return errkind.New(errkind.KindSerialization, "wire.Get", fmt.Errorf("line too long: %d bytes", len(res.data)))
	}
	if err := json.Unmarshal(trimNewline(res.data), dst); err != nil {
		return errkind.New(errkind.KindSerialization, "wire.Get", err)
	}
	return nil
}

func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		return b[:n-1]
	}
	return b
}

// Close closes the writer and closer (if they implement/are io.Closer) and
// signals the background reader to stop.
func (q *Queue) Close() error {
	var err error
	q.once.Do(func() {
		close(q.closed)
		if wc, ok := q.w.(io.Closer); ok {
			if cerr := wc.Close(); cerr != nil {
				err = cerr
			}
		}
		if q.closer != nil {
			if cerr := q.closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
