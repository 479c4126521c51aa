// Package envelope implements the NDJSON message format exchanged with
// worker subprocesses (spec.md §3.5), grounded in
// _examples/original_source/supervisor/messages/envelope.py and the
// teacher's internal/protocol/message.go flat-JSON idiom.
package envelope

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the envelope wire version (spec.md §3.5).
const SchemaVersion = 2

// Envelope is one worker message: a small fixed header flattened into
// the same JSON object as the payload (spec.md §3.5).
type Envelope struct {
	Version   int            `json:"v"`
	Type      string         `json:"type"`
	Src       string         `json:"src"`
	Seq       uint64         `json:"seq"`
	TNS       uint64         `json:"t_ns"`
	Payload   map[string]any `json:"-"`
	RefSeq    *uint64        `json:"ref_seq,omitempty"`
	RefType   *string        `json:"ref_type,omitempty"`
	SessionID *string        `json:"session_id,omitempty"`
	Err       *string        `json:"err,omitempty"`
}

var headerKeys = map[string]bool{
	"v": true, "type": true, "src": true, "seq": true, "t_ns": true,
	"ref_seq": true, "ref_type": true, "session_id": true, "err": true,
}

// ToLine serializes env as a single compact JSON line terminated by '\n':
// the header fields and the payload map merged into one flat object.
func (env Envelope) ToLine() ([]byte, error) {
	flat := make(map[string]any, len(env.Payload)+8)
	for k, v := range env.Payload {
		flat[k] = v
	}
	v := env.Version
	if v == 0 {
		v = SchemaVersion
	}
	flat["v"] = v
	flat["type"] = env.Type
	flat["src"] = env.Src
	flat["seq"] = env.Seq
	flat["t_ns"] = env.TNS
	if env.RefSeq != nil {
		flat["ref_seq"] = *env.RefSeq
	}
	if env.RefType != nil {
		flat["ref_type"] = *env.RefType
	}
	if env.SessionID != nil {
		flat["session_id"] = *env.SessionID
	}
	if env.Err != nil {
		flat["err"] = *env.Err
	}

	b, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	return append(b, '\n'), nil
}

// FromLine parses one NDJSON line (with or without trailing newline)
// into an Envelope, popping the required header fields and leaving the
// remainder as Payload.
func FromLine(line []byte) (Envelope, error) {
	var flat map[string]any
	if err := json.Unmarshal(line, &flat); err != nil {
		return Envelope{}, fmt.Errorf("envelope: unmarshal: %w", err)
	}

	typ, ok := flat["type"].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("envelope: missing required field %q", "type")
	}
	src, ok := flat["src"].(string)
	if !ok {
		return Envelope{}, fmt.Errorf("envelope: missing required field %q", "src")
	}
	seq, err := popNumber(flat, "seq")
	if err != nil {
		return Envelope{}, err
	}
	tns, err := popNumber(flat, "t_ns")
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{Type: typ, Src: src, Seq: uint64(seq), TNS: uint64(tns), Version: SchemaVersion}
	if vRaw, ok := flat["v"]; ok {
		if vf, ok := vRaw.(float64); ok {
			env.Version = int(vf)
		}
	}
	if rs, ok := flat["ref_seq"]; ok {
		if f, ok := rs.(float64); ok {
			u := uint64(f)
			env.RefSeq = &u
		}
	}
	if rt, ok := flat["ref_type"].(string); ok {
		env.RefType = &rt
	}
	if sid, ok := flat["session_id"].(string); ok {
		env.SessionID = &sid
	}
	if e, ok := flat["err"].(string); ok {
		env.Err = &e
	}

	payload := make(map[string]any, len(flat))
	for k, v := range flat {
		if !headerKeys[k] {
			payload[k] = v
		}
	}
	env.Payload = payload
	return env, nil
}

func popNumber(m map[string]any, key string) (float64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("envelope: missing required field %q", key)
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("envelope: field %q is not a number", key)
	}
	return f, nil
}

// SeqCounter is a monotonic per-source sequence generator.
type SeqCounter struct {
	n uint64
}

// Next returns the next sequence number, starting from 1.
func (c *SeqCounter) Next() uint64 {
	c.n++
	return c.n
}
