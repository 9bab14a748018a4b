package isecnet

import "encoding/binary"

// V2 framing constants.
const (
	// v2HeaderSize covers dest(2) + src(2) + size(2) + cmd(2).
	v2HeaderSize = 8

	// MinV2FrameSize is the smallest decodable V2 frame: a header plus
	// the checksum byte, no payload.
	MinV2FrameSize = v2HeaderSize + 1
)

// Checksum computes the inverted-XOR checksum both dialects use: the
// XOR of all bytes, then XOR 0xFF.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum ^ 0xFF
}

// Obfuscate XORs every byte with key, in place, returning data. The
// transform is its own inverse. The cloud relay requires it on the
// APP_CONNECT frame, keyed by the byte issued during CONNECT.
func Obfuscate(data []byte, key byte) []byte {
	for i := range data {
		data[i] ^= key
	}
	return data
}

// PackPassword converts a 4-6 digit panel password into the 6-byte
// digit array the AUTHORIZE payload carries. Digit '0' packs as 10;
// missing trailing digits pack as 0.
func PackPassword(password string) [6]byte {
	var digits [6]byte
	for i := 0; i < len(password) && i < 6; i++ {
		c := password[i]
		if c == '0' {
			digits[i] = 10
		} else if c >= '1' && c <= '9' {
			digits[i] = c - '0'
		}
	}
	return digits
}

// V2Packet is a decoded V2 frame.
type V2Packet struct {
	// Src is the source id field. Zero during the handshake; the relay
	// assigns a value at APP_CONNECT.
	Src [2]byte

	// Cmd is the command code.
	Cmd Command

	// Payload holds the bytes after the command field.
	Payload []byte

	// Raw is the full frame as read, checksum included. Status parsers
	// index into it at absolute offsets.
	Raw []byte
}

// EncodeV2 builds a V2 frame around cmd and payload. The destination
// field is always zero; src is the relay-assigned source id.
func EncodeV2(cmd Command, payload []byte, src [2]byte) []byte {
	buf := make([]byte, 0, v2HeaderSize+len(payload)+1)
	buf = append(buf, 0, 0)
	buf = append(buf, src[0], src[1])
	buf = binary.BigEndian.AppendUint16(buf, uint16(2+len(payload)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(cmd))
	buf = append(buf, payload...)
	return append(buf, Checksum(buf))
}

// DecodeV2 parses and verifies a V2 frame. Trailing bytes beyond the
// declared size are ignored (the relay never coalesces frames, but a
// read buffer may be oversized).
func DecodeV2(buf []byte) (V2Packet, error) {
	if len(buf) < MinV2FrameSize {
		return V2Packet{}, parseErr(ErrShortFrame, buf)
	}

	size := int(binary.BigEndian.Uint16(buf[4:6]))
	if size < 2 {
		return V2Packet{}, parseErr(ErrBadSize, buf)
	}

	// dest + src + size fields, then size bytes, then checksum
	total := 6 + size + 1
	if len(buf) < total {
		return V2Packet{}, parseErr(ErrShortFrame, buf)
	}

	if Checksum(buf[:total-1]) != buf[total-1] {
		return V2Packet{}, parseErr(ErrBadChecksum, buf[:total])
	}

	return V2Packet{
		Src:     [2]byte{buf[2], buf[3]},
		Cmd:     Command(binary.BigEndian.Uint16(buf[6:8])),
		Payload: buf[v2HeaderSize : total-1],
		Raw:     buf[:total],
	}, nil
}

// V2FrameLen inspects a partially read buffer and reports the full
// frame length once the size field is readable. Returns 0 while more
// header bytes are needed.
func V2FrameLen(buf []byte) int {
	if len(buf) < 6 {
		return 0
	}
	return 6 + int(binary.BigEndian.Uint16(buf[4:6])) + 1
}
