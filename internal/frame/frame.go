package frame

import "encoding/binary"

// Version selects the envelope header layout (spec.md §4.1).
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

// HeaderSize returns the fixed header size in bytes for v.
func (v Version) HeaderSize() int {
	switch v {
	case V1:
		return 2 // type:u8, seq:u8
	case V2:
		return 13 // type:u8, seq:u32_le, t_src_us:u64_le
	default:
		return 0
	}
}

// Packet is a decoded frame: header fields plus payload.
type Packet struct {
	Version Version
	Type    uint8
	Seq     uint32 // truncated to u8 range when Version == V1
	TSrcUS  uint64 // zero when Version == V1
	Payload []byte
}

// EncodeV1 builds a complete wire frame (COBS-stuffed, CRC-checked,
// delimiter-terminated) using the v1 header: type:u8, seq:u8.
func EncodeV1(typ, seq uint8, payload []byte) []byte {
	body := make([]byte, 2, 2+len(payload)+2)
	body[0] = typ
	body[1] = seq
	body = append(body, payload...)
	return encodeBody(body)
}

// EncodeV2 builds a complete wire frame using the v2 header: type:u8,
// seq:u32_le, t_src_us:u64_le.
func EncodeV2(typ uint8, seq uint32, tSrcUS uint64, payload []byte) []byte {
	body := make([]byte, 13, 13+len(payload)+2)
	body[0] = typ
	binary.LittleEndian.PutUint32(body[1:5], seq)
	binary.LittleEndian.PutUint64(body[5:13], tSrcUS)
	body = append(body, payload...)
	return encodeBody(body)
}

func encodeBody(body []byte) []byte {
	crc := crc16CCITT(body)
	withCRC := make([]byte, len(body)+2)
	copy(withCRC, body)
	binary.LittleEndian.PutUint16(withCRC[len(body):], crc)

	encoded := cobsEncode(withCRC)
	return append(encoded, 0x00)
}

// Decode parses a single delimiter-stripped, COBS-stuffed frame (as
// produced by a serial extractor splitting on 0x00) into a Packet.
func Decode(version Version, raw []byte) (Packet, error) {
	hdrSize := version.HeaderSize()
	if hdrSize == 0 {
		return Packet{}, ErrTooShort
	}

	plain, err := cobsDecode(raw)
	if err != nil {
		return Packet{}, err
	}
	if len(plain) < hdrSize+2 {
		return Packet{}, ErrTooShort
	}

	body := plain[:len(plain)-2]
	wantCRC := binary.LittleEndian.Uint16(plain[len(plain)-2:])
	if crc16CCITT(body) != wantCRC {
		return Packet{}, ErrCRCMismatch
	}

	pkt := Packet{Version: version, Type: body[0], Payload: append([]byte(nil), body[hdrSize:]...)}
	switch version {
	case V1:
		pkt.Seq = uint32(body[1])
	case V2:
		pkt.Seq = binary.LittleEndian.Uint32(body[1:5])
		pkt.TSrcUS = binary.LittleEndian.Uint64(body[5:13])
	}
	return pkt, nil
}

// Common (version-independent) command types, shared by both MCU
// clients (spec.md §6 protocol-version negotiation).
const (
	CommonTimeSyncReq        uint8 = 0x06
	CommonSetProtocolVersion uint8 = 0x07
	CommonTimeSyncResp       uint8 = 0x86
	CommonProtocolVersionAck uint8 = 0x87
)
