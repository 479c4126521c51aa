package serialtransport

import (
	"context"
	"io"
	"testing"
	"time"
)

// fakePort is an in-memory Port backed by an io.Pipe, for deterministic
// tests without real hardware.
type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newFakePort() (*fakePort, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &fakePort{r: pr}, pw
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *fakePort) Close() error                { return p.r.Close() }
func (p *fakePort) SetDTR(bool) error           { return nil }
func (p *fakePort) SetRTS(bool) error           { return nil }

func TestTransportExtractsFrames(t *testing.T) {
	port, feedW := newFakePort()

	tr := New(func(ctx context.Context) (Port, error) { return port, nil }, nil)

	received := make(chan []byte, 4)
	tr.OnPacket(func(f []byte) { received <- append([]byte(nil), f...) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	// wait for connect
	for i := 0; i < 100 && !tr.Connected(); i++ {
		time.Sleep(time.Millisecond)
	}
	if !tr.Connected() {
		t.Fatal("transport never connected")
	}

	go func() {
		feedW.Write([]byte{0x01, 0x02, 0x00, 0x03, 0x00})
	}()

	select {
	case f := <-received:
		if len(f) != 2 || f[0] != 0x01 || f[1] != 0x02 {
			t.Fatalf("unexpected first frame: %v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first frame")
	}

	select {
	case f := <-received:
		if len(f) != 1 || f[0] != 0x03 {
			t.Fatalf("unexpected second frame: %v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second frame")
	}
}

func TestTransportWriteFailsWithoutConnection(t *testing.T) {
	tr := New(func(ctx context.Context) (Port, error) { return nil, io.ErrClosedPipe }, nil)
	if tr.Write([]byte{0x01}) {
		t.Fatal("expected write to fail with no connection")
	}
}
