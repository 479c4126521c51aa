// Package frame implements the wire framing shared with both MCUs: COBS
// byte-stuffing, CRC-16/CCITT integrity, and the v1/v2 envelope header
// (spec.md §4.1). No COBS or CRC source exists anywhere in the retrieval
// pack, so this package is written directly from the spec's algorithm
// description rather than ported from an example.
package frame

import "errors"

var (
	// ErrTooShort is returned when a decoded frame is shorter than the
	// minimum header+CRC size.
	ErrTooShort = errors.New("frame: too short")
	// ErrCRCMismatch is returned when the trailing CRC-16 does not match
	// the computed value over the preceding bytes.
	ErrCRCMismatch = errors.New("frame: crc mismatch")
	// ErrCOBSDecode is returned when COBS byte-stuffing is malformed
	// (a zero appears where an offset was expected, or an offset runs
	// past the end of the buffer).
	ErrCOBSDecode = errors.New("frame: cobs decode error")
)

// cobsEncode returns src encoded with Consistent Overhead Byte Stuffing:
// zero bytes are removed and replaced by offset pointers to the next
// zero (or end of buffer). The result contains no zero bytes and is not
// delimiter-terminated; callers append a single 0x00 after it.
func cobsEncode(src []byte) []byte {
	dst := make([]byte, 0, len(src)+len(src)/254+2)
	codeIdx := 0
	dst = append(dst, 0) // placeholder for first code byte
	code := byte(1)

	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code
	return dst
}

// cobsDecode reverses cobsEncode. src must not contain the trailing
// delimiter byte.
func cobsDecode(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))
	i, n := 0, len(src)
	for i < n {
		code := int(src[i])
		if code == 0 {
			return nil, ErrCOBSDecode
		}
		i++
		end := i + code - 1
		if end > n {
			return nil, ErrCOBSDecode
		}
		dst = append(dst, src[i:end]...)
		i = end
		if code != 0xFF && i < n {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}
