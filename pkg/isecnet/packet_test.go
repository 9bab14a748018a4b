package isecnet

import (
	"bytes"
	"errors"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0xFF},
		{"single byte", []byte{0xFF}, 0x00},
		{"receiver hello", []byte{0x02, 0xE0, 0x01}, 0x1C},
		{"self canceling", []byte{0xAA, 0xAA}, 0xFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(%x) = 0x%02X, want 0x%02X", tt.data, got, tt.want)
			}
		})
	}
}

func TestPackPassword(t *testing.T) {
	tests := []struct {
		password string
		want     [6]byte
	}{
		{"1234", [6]byte{1, 2, 3, 4, 0, 0}},
		{"0000", [6]byte{10, 10, 10, 10, 0, 0}},
		{"123456", [6]byte{1, 2, 3, 4, 5, 6}},
		{"907060", [6]byte{9, 10, 7, 10, 6, 10}},
		{"", [6]byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if got := PackPassword(tt.password); got != tt.want {
				t.Errorf("PackPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestEncodeV2Layout(t *testing.T) {
	frame := EncodeV2(CmdArmDisarm, []byte{0x01, 0x01}, [2]byte{0x8F, 0x3C})

	want := []byte{
		0x00, 0x00, // destination
		0x8F, 0x3C, // source
		0x00, 0x04, // size: cmd + payload
		0x40, 0x1E, // ARM_DISARM
		0x01, 0x01, // payload
	}
	want = append(want, Checksum(want))

	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %x, want %x", frame, want)
	}
}

func TestV2RoundTrip(t *testing.T) {
	src := [2]byte{0xAA, 0xBB}

	for size := 0; size <= 250; size++ {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}

		frame := EncodeV2(CmdPanelStatus, payload, src)
		pkt, err := DecodeV2(frame)
		if err != nil {
			t.Fatalf("size %d: decode failed: %v", size, err)
		}
		if pkt.Cmd != CmdPanelStatus {
			t.Fatalf("size %d: cmd = %v", size, pkt.Cmd)
		}
		if pkt.Src != src {
			t.Fatalf("size %d: src = %v", size, pkt.Src)
		}
		if !bytes.Equal(pkt.Payload, payload) {
			t.Fatalf("size %d: payload mismatch", size)
		}
	}
}

func TestDecodeV2DetectsCorruption(t *testing.T) {
	frame := EncodeV2(CmdAuthorize, AuthorizePayload("1234"), [2]byte{0x01, 0x02})

	for i := range frame {
		corrupted := bytes.Clone(frame)
		corrupted[i] ^= 0x40

		_, err := DecodeV2(corrupted)
		if err == nil {
			t.Errorf("byte %d: corruption not detected", i)
			continue
		}
		// A flipped size byte can also surface as a short frame.
		if !errors.Is(err, ErrBadChecksum) && !errors.Is(err, ErrShortFrame) && !errors.Is(err, ErrBadSize) {
			t.Errorf("byte %d: unexpected error %v", i, err)
		}
	}
}

func TestDecodeV2Errors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrShortFrame},
		{"header only", []byte{0, 0, 0, 0, 0, 2, 0xF0}, ErrShortFrame},
		{"size below command", []byte{0, 0, 0, 0, 0, 1, 0xF0, 0xFE, 0x00}, ErrBadSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeV2(tt.buf)
			if !errors.Is(err, tt.want) {
				t.Errorf("DecodeV2 error = %v, want %v", err, tt.want)
			}

			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error is not a *ParseError: %v", err)
			}
		})
	}
}

func TestDecodeV2TrailingBytes(t *testing.T) {
	frame := EncodeV2(CmdKeepAlive, nil, [2]byte{1, 1})
	padded := append(bytes.Clone(frame), 0xDE, 0xAD)

	pkt, err := DecodeV2(padded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if pkt.Cmd != CmdKeepAlive {
		t.Errorf("cmd = %v", pkt.Cmd)
	}
	if len(pkt.Raw) != len(frame) {
		t.Errorf("raw length = %d, want %d", len(pkt.Raw), len(frame))
	}
}

func TestObfuscateRoundTrip(t *testing.T) {
	frame := EncodeV2(CmdAppConnect, AppConnectPayload("11223344AABB"), [2]byte{0, 0})
	original := bytes.Clone(frame)

	Obfuscate(frame, 0x42)
	if bytes.Equal(frame, original) {
		t.Fatal("obfuscation changed nothing")
	}
	Obfuscate(frame, 0x42)
	if !bytes.Equal(frame, original) {
		t.Fatal("double obfuscation did not restore the frame")
	}
}

func TestV2FrameLen(t *testing.T) {
	frame := EncodeV2(CmdPanelStatus, []byte{1, 2, 3}, [2]byte{0, 0})

	if got := V2FrameLen(frame[:4]); got != 0 {
		t.Errorf("incomplete header: got %d, want 0", got)
	}
	if got := V2FrameLen(frame); got != len(frame) {
		t.Errorf("full frame: got %d, want %d", got, len(frame))
	}
	if got := V2FrameLen(frame[:6]); got != len(frame) {
		t.Errorf("size field visible: got %d, want %d", got, len(frame))
	}
}

func BenchmarkEncodeV2(b *testing.B) {
	payload := []byte{0x01, 0x01}
	for i := 0; i < b.N; i++ {
		EncodeV2(CmdArmDisarm, payload, [2]byte{0xAA, 0xBB})
	}
}

func BenchmarkDecodeV2(b *testing.B) {
	frame := EncodeV2(CmdPanelStatus, make([]byte, 136), [2]byte{0xAA, 0xBB})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeV2(frame); err != nil {
			b.Fatal(err)
		}
	}
}
