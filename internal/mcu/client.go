package mcu

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/0mdb/robot-buddy-supervisor/internal/frame"
)

// Sender is the transport surface a client needs: encode-and-write a
// complete frame, and report whether the underlying port is connected.
type Sender interface {
	Write(b []byte) bool
	Connected() bool
}

// client holds the state shared by the motion and face clients: a
// sequence counter, the negotiated frame version, and type-keyed
// telemetry subscribers.
type client struct {
	name    string
	sender  Sender
	version frame.Version
	logger  *slog.Logger

	seq atomic.Uint32

	mu   sync.RWMutex
	subs map[uint8][]func(pkt frame.Packet)
}

func newClient(name string, sender Sender, version frame.Version, logger *slog.Logger) *client {
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		name:    name,
		sender:  sender,
		version: version,
		logger:  logger,
		subs:    make(map[uint8][]func(pkt frame.Packet)),
	}
}

// On registers fn to be invoked for every decoded packet of the given
// telemetry type.
func (c *client) On(telType uint8, fn func(pkt frame.Packet)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[telType] = append(c.subs[telType], fn)
}

// send encodes a frame with the next sequence number and writes it,
// conditioned on transport.connected (spec.md §4.3).
func (c *client) send(cmdType uint8, payload []byte) bool {
	if !c.sender.Connected() {
		return false
	}
	seq := c.seq.Add(1)
	var encoded []byte
	switch c.version {
	case frame.V1:
		encoded = frame.EncodeV1(cmdType, uint8(seq), payload)
	default:
		encoded = frame.EncodeV2(cmdType, seq, 0, payload)
	}
	return c.sender.Write(encoded)
}

// HandleFrame parses one delimiter-stripped COBS frame and dispatches
// it to any subscribers registered for its type. Intended as the
// target of serialtransport.Transport.OnPacket. Unknown types are
// logged and dropped (spec.md §9).
func (c *client) HandleFrame(raw []byte) {
	c.handle(raw)
}

// handle parses one delimiter-stripped COBS frame and dispatches it to
// any subscribers registered for its type. Unknown types are logged and
// dropped (spec.md §9).
func (c *client) handle(raw []byte) {
	pkt, err := frame.Decode(c.version, raw)
	if err != nil {
		c.logger.Debug("mcu frame decode error", "client", c.name, "error", err)
		return
	}

	c.mu.RLock()
	fns := append([]func(pkt frame.Packet){}, c.subs[pkt.Type]...)
	c.mu.RUnlock()

	if len(fns) == 0 {
		c.logger.Debug("mcu frame with no subscriber", "client", c.name, "type", pkt.Type)
		return
	}
	for _, fn := range fns {
		fn(pkt)
	}
}
