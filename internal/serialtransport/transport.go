// Package serialtransport provides async byte I/O over a serial-like
// port with reconnect backoff and COBS frame extraction (spec.md §4.2).
//
// No full-source serial driver exists anywhere in the retrieval pack
// (only a manifest, github.com/daedaluz/goserial, with no accompanying
// code) so this package depends on the small Port interface below
// instead of a concrete OS serial package; cmd/supervisord is the place
// a real driver would be wired in.
package serialtransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Port is the minimal serial-port surface this package needs. A real
// implementation wraps an OS serial driver; tests use an in-memory pipe.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
	SetDTR(on bool) error
	SetRTS(on bool) error
}

// Opener opens (or reopens) the underlying device.
type Opener func(ctx context.Context) (Port, error)

const (
	readTimeout     = 50 * time.Millisecond
	writeTimeout    = 100 * time.Millisecond
	maxFrameBytes   = 512
	backoffMin      = 500 * time.Millisecond
	backoffMax      = 5 * time.Second
)

// Counters is a snapshot of transport-level error tallies (spec.md §7).
type Counters struct {
	BytesRead      uint64
	BytesWritten   uint64
	FramesDropped  uint64 // exceeded maxFrameBytes
	WriteTimeouts  uint64
	WriteFailures  uint64
	Disconnects    uint64
}

// Transport manages one serial connection: open, read-extract-dispatch,
// reconnect-with-backoff on error.
type Transport struct {
	open   Opener
	logger *slog.Logger

	onPacket     func(frame []byte)
	onDisconnect func(err error)

	mu        sync.Mutex
	port      Port
	connected atomic.Bool

	bytesRead     atomic.Uint64
	bytesWritten  atomic.Uint64
	framesDropped atomic.Uint64
	writeTimeouts atomic.Uint64
	writeFailures atomic.Uint64
	disconnects   atomic.Uint64
}

// New returns a Transport that will use open to (re)establish the
// connection. logger defaults to slog.Default() when nil.
func New(open Opener, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{open: open, logger: logger}
}

// OnPacket registers the callback invoked with each extracted, still
// COBS-stuffed frame (delimiter stripped). Must be set before Run.
func (t *Transport) OnPacket(fn func(frame []byte)) { t.onPacket = fn }

// OnDisconnect registers the callback invoked whenever the connection is
// torn down (including the first connect failure).
func (t *Transport) OnDisconnect(fn func(err error)) { t.onDisconnect = fn }

// Connected reports whether the port is currently open.
func (t *Transport) Connected() bool { return t.connected.Load() }

// Counters returns a snapshot of accumulated counters.
func (t *Transport) Counters() Counters {
	return Counters{
		BytesRead:     t.bytesRead.Load(),
		BytesWritten:  t.bytesWritten.Load(),
		FramesDropped: t.framesDropped.Load(),
		WriteTimeouts: t.writeTimeouts.Load(),
		WriteFailures: t.writeFailures.Load(),
		Disconnects:   t.disconnects.Load(),
	}
}

// Write sends raw bytes (a complete, already-framed message) to the
// port, bounded by writeTimeout. Returns false on timeout, disconnect,
// or write error; the frame is dropped either way, per spec.md §4.2.
func (t *Transport) Write(b []byte) bool {
	t.mu.Lock()
	p := t.port
	t.mu.Unlock()
	if p == nil {
		return false
	}

	done := make(chan error, 1)
	go func() { _, err := p.Write(b); done <- err }()

	select {
	case err := <-done:
		if err != nil {
			t.writeFailures.Add(1)
			return false
		}
		t.bytesWritten.Add(uint64(len(b)))
		return true
	case <-time.After(writeTimeout):
		t.writeTimeouts.Add(1)
		return false
	}
}

// Run opens the port and services it until ctx is canceled, reconnecting
// with exponential backoff on any I/O error. It returns only when ctx is
// done.
func (t *Transport) Run(ctx context.Context) {
	backoff := backoffMin
	for ctx.Err() == nil {
		p, err := t.open(ctx)
		if err != nil {
			t.logger.Warn("serial open failed", "error", err)
			t.signalDisconnect(err)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if err := p.SetDTR(true); err != nil {
			t.logger.Warn("set DTR failed", "error", err)
		}
		if err := p.SetRTS(true); err != nil {
			t.logger.Warn("set RTS failed", "error", err)
		}

		t.mu.Lock()
		t.port = p
		t.mu.Unlock()
		t.connected.Store(true)
		backoff = backoffMin

		readErr := t.readLoop(ctx, p)

		t.mu.Lock()
		t.port = nil
		t.mu.Unlock()
		t.connected.Store(false)
		_ = p.Close()
		t.signalDisconnect(readErr)

		if ctx.Err() != nil {
			return
		}
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (t *Transport) signalDisconnect(err error) {
	t.disconnects.Add(1)
	if t.onDisconnect != nil {
		t.onDisconnect(err)
	}
}

// readLoop reads bytes until ctx is canceled or an I/O error occurs,
// extracting and dispatching complete COBS frames delimited by 0x00.
func (t *Transport) readLoop(ctx context.Context, p Port) error {
	var frame []byte
	buf := make([]byte, 4096)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := readWithTimeout(p, buf, readTimeout)
		if err != nil {
			if errors.Is(err, errReadTimeout) {
				continue
			}
			return err
		}
		t.bytesRead.Add(uint64(n))

		for _, b := range buf[:n] {
			if b == 0x00 {
				if len(frame) > 0 && t.onPacket != nil {
					t.onPacket(frame)
				}
				frame = nil
				continue
			}
			if len(frame) >= maxFrameBytes {
				t.framesDropped.Add(1)
				frame = nil
				continue
			}
			frame = append(frame, b)
		}
	}
}

var errReadTimeout = errors.New("serialtransport: read timeout")

// readWithTimeout reads once from p, bounding the call to d. Port
// implementations backed by real hardware typically honor their own
// configured read deadline and return promptly; this wrapper also
// guards against an Opener whose Port blocks indefinitely (e.g. in
// tests), so Run always remains responsive to ctx cancellation.
func readWithTimeout(p Port, buf []byte, d time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := p.Read(buf)
		ch <- result{n, err}
	}()

	select {
	case r := <-ch:
		return r.n, r.err
	case <-time.After(d):
		return 0, errReadTimeout
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffMax {
		next = backoffMax
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
