// Package audio implements the supervisor's audio-path plumbing
// (spec.md §5 "Audio path", §6 "Audio sockets"): unix-domain socket
// path bookkeeping plus the length-prefixed PCM framing and base64
// relay helpers, grounded in
// _examples/original_source/supervisor/core/worker_manager.py (socket
// path ownership and stale-socket cleanup) and
// _examples/original_source/supervisor/workers/ai_worker.py and
// tts_worker.py (Mode A direct-socket vs. Mode B NDJSON-relay framing).
//
// In direct mode (Mode A) the AI worker binds the mic/spk unix sockets
// and the ear/tts workers connect to them; the core never joins that
// data path; it only allocates the paths, passes them to workers at
// spawn, and unlinks stale files at start and stop. In relay mode
// (Mode B) there are no sockets at all: PCM travels base64-encoded
// inside NDJSON envelope payloads ("data_b64"), so the core's role is
// just the encode/decode helpers below.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// MaxChunkBytes is the largest PCM chunk the u16 length prefix can
// address.
const MaxChunkBytes = 65535

// SampleRateHz and BitsPerSample fix the PCM format spec.md §6
// mandates for both audio directions.
const (
	SampleRateHz  = 16000
	BitsPerSample = 16
	Channels      = 1
)

// ErrChunkTooLarge is returned by WriteChunk when pcm exceeds
// MaxChunkBytes.
var ErrChunkTooLarge = errors.New("audio: chunk exceeds u16 length prefix")

// WriteChunk writes one length-prefixed PCM chunk: chunk_len:u16_le
// followed by the raw bytes (spec.md §6). Used only by direct-mode
// peers; the core itself never calls this against a live socket, but
// exposes it for worker-facing tooling and tests.
func WriteChunk(w io.Writer, pcm []byte) error {
	if len(pcm) > MaxChunkBytes {
		return ErrChunkTooLarge
	}
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(pcm)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write length prefix: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write pcm: %w", err)
	}
	return nil
}

// ReadChunk reads one length-prefixed PCM chunk.
func ReadChunk(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("audio: read length prefix: %w", err)
	}
	n := binary.LittleEndian.Uint16(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("audio: read pcm: %w", err)
	}
	return buf, nil
}

// Direction names the two audio sockets spec.md §6 fixes.
type Direction string

const (
	DirMic Direction = "mic"
	DirSpk Direction = "spk"
)

// SocketPath returns the fixed path for one direction's socket
// (spec.md §6: "/tmp/rb-mic-<pid>.sock", "/tmp/rb-spk-<pid>.sock"),
// owned and handed to workers by the core but never bound by it.
func SocketPath(dir Direction, pid int) string {
	return fmt.Sprintf("/tmp/rb-%s-%d.sock", dir, pid)
}

// Paths bundles both socket paths for one supervisor process, passed
// to the AI worker's spawn config (spec.md §6, worker_manager.py's
// mic_socket_path/spk_socket_path properties).
type Paths struct {
	Mic string
	Spk string
}

// NewPaths returns the fixed socket paths for pid.
func NewPaths(pid int) Paths {
	return Paths{Mic: SocketPath(DirMic, pid), Spk: SocketPath(DirSpk, pid)}
}

// UnlinkStale removes any leftover socket files for pid, ignoring a
// missing file (spec.md §4.5, §6: "Stale sockets from prior processes
// are unlinked at supervisor start and at stop").
func (p Paths) UnlinkStale() {
	_ = os.Remove(p.Mic)
	_ = os.Remove(p.Spk)
}

// Mode names which audio path is active for a given session.
type Mode string

const (
	ModeDirect Mode = "direct" // Mode A: unix sockets between workers
	ModeRelay  Mode = "relay"  // Mode B: base64 PCM inside NDJSON envelopes
)

// EncodeRelayChunk base64-encodes a PCM chunk for embedding in an
// envelope payload's "data_b64" field (relay mode).
func EncodeRelayChunk(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeRelayChunk decodes a "data_b64" envelope payload field back
// into raw PCM bytes.
func DecodeRelayChunk(dataB64 string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, fmt.Errorf("audio: decode relay chunk: %w", err)
	}
	return pcm, nil
}
