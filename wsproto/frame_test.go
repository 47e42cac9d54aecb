package wsproto

import (
	"bytes"
	"testing"
)

func maskedClientFrame(opcode byte, payload []byte) []byte {
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ key[i%4]
	}
	plen := len(payload)
	var hdr []byte
	switch {
	case plen <= 125:
		hdr = []byte{FinBit | opcode, MaskBit | byte(plen)}
	case plen <= 0xFFFF:
		hdr = []byte{FinBit | opcode, MaskBit | 126, byte(plen >> 8), byte(plen)}
	default:
		hdr = []byte{FinBit | opcode, MaskBit | 127, 0, 0, 0, 0, byte(plen >> 24), byte(plen >> 16), byte(plen >> 8), byte(plen)}
	}
	buf := append(hdr, key[:]...)
	buf = append(buf, masked...)
	return buf
}

func TestFrameRoundTrip(t *testing.T) {
	sizes := []int{0, 2, 125, 126, 65535, 65536}
	for _, size := range sizes {
		payload := bytes.Repeat([]byte{'x'}, size)
		for _, op := range []byte{OpcodeText, OpcodeBinary} {
			raw := maskedClientFrame(op, payload)
			n, ok := Len(raw)
			if !ok || n != len(raw) {
				t.Fatalf("size %d op %d: Len = %d, %v", size, op, n, ok)
			}
			f, err := Decode(raw)
			if err != nil {
				t.Fatalf("size %d op %d: decode: %v", size, op, err)
			}
			if f.Opcode != op || !bytes.Equal(f.Payload, payload) {
				t.Fatalf("size %d op %d: mismatch", size, op)
			}
		}
	}
}

func TestEncodeServerNeverMasks(t *testing.T) {
	out := Encode(OpcodeText, []byte("hi"))
	if out[1]&MaskBit != 0 {
		t.Fatal("server frame must not be masked")
	}
}

func TestEncodeKnownVector(t *testing.T) {
	// Scenario 5 from spec.md §8: server echo of "hi" is 81 02 68 69.
	out := Encode(OpcodeText, []byte("hi"))
	want := []byte{0x81, 0x02, 0x68, 0x69}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x want % x", out, want)
	}
}

func TestLenIncomplete(t *testing.T) {
	raw := maskedClientFrame(OpcodeText, []byte("hello world"))
	if _, ok := Len(raw[:3]); ok {
		t.Fatal("expected incomplete frame to report not-ok")
	}
}

func TestDecodeRejectsFragmentation(t *testing.T) {
	raw := maskedClientFrame(OpcodeText, []byte("x"))
	raw[0] &^= FinBit
	if _, err := Decode(raw); err != ErrFragmented {
		t.Fatalf("expected ErrFragmented, got %v", err)
	}
}
