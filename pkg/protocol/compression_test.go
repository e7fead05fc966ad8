package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

// mixedPayload builds a payload with enough byte variety to clear the
// entropy gate but enough repetition to deflate well.
func mixedPayload(n int) []byte {
	rng := rand.New(rand.NewSource(7))
	block := make([]byte, 64)
	rng.Read(block)

	buf := make([]byte, 0, n)
	for len(buf) < n {
		buf = append(buf, block...)
	}
	return buf[:n]
}

func TestMaybeCompressRoundTrip(t *testing.T) {
	payload := mixedPayload(2048)

	wire, compressed := MaybeCompress(payload)
	if !compressed {
		t.Fatalf("MaybeCompress() did not compress a repetitive high-entropy payload")
	}
	if len(wire) > len(payload)*8/10 {
		t.Errorf("compressed size %d exceeds 80%% of original %d", len(wire), len(payload))
	}

	out, err := Decompress(wire)
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("round trip mismatch")
	}
}

func TestMaybeCompressSkips(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"too short", mixedPayload(99)},
		{"gzip magic", append([]byte{0x1F, 0x8B}, mixedPayload(200)...)},
		{"zlib magic", append([]byte{0x78, 0x9C}, mixedPayload(200)...)},
		{"lz4 magic", append([]byte{0x04, 0x22}, mixedPayload(200)...)},
		{"low entropy", bytes.Repeat([]byte{'a', 'b'}, 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, compressed := MaybeCompress(tt.payload)
			if compressed {
				t.Errorf("MaybeCompress() compressed, want skip")
			}
			if !bytes.Equal(wire, tt.payload) {
				t.Errorf("skipped payload was modified")
			}
		})
	}
}

func TestMaybeCompressRejectsIncompressible(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	payload := make([]byte, 1024)
	rng.Read(payload)

	if _, compressed := MaybeCompress(payload); compressed {
		t.Errorf("MaybeCompress() accepted random data that cannot hit the 80%% ratio")
	}
}

func TestDecompressDeclaredLengthMismatch(t *testing.T) {
	payload := mixedPayload(1024)
	wire, compressed := MaybeCompress(payload)
	if !compressed {
		t.Fatal("setup: payload did not compress")
	}

	// Lie about the original length.
	wire[0], wire[1] = 0x00, 0x10
	if _, err := Decompress(wire); err != ErrDecompressFailed {
		t.Errorf("Decompress() error = %v, want %v", err, ErrDecompressFailed)
	}
}

func TestDecompressTruncatedInput(t *testing.T) {
	if _, err := Decompress([]byte{0x01}); err != ErrDecompressFailed {
		t.Errorf("Decompress() error = %v, want %v", err, ErrDecompressFailed)
	}
	if _, err := Decompress([]byte{0x00, 0x08, 0xFF}); err != ErrDecompressFailed {
		t.Errorf("Decompress() error = %v, want %v", err, ErrDecompressFailed)
	}
}

func TestCompressedPacketRoundTrip(t *testing.T) {
	payload := mixedPayload(4096)
	p := NewPacket(TypeMessage, TTLData, 1700000000000, MakePeerID("AAAAAAAA"), nil, payload)
	if !p.Compressed {
		t.Fatal("setup: packet payload did not compress")
	}

	encoded, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(encoded) >= len(payload) {
		t.Errorf("encoded size %d not smaller than payload %d", len(encoded), len(payload))
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !decoded.Compressed {
		t.Errorf("compression flag lost on the wire")
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("decompressed payload mismatch")
	}
}

func TestShannonEntropy(t *testing.T) {
	if e := shannonEntropy(bytes.Repeat([]byte{0x41}, 100)); e != 0 {
		t.Errorf("entropy of constant data = %f, want 0", e)
	}

	uniform := make([]byte, 256)
	for i := range uniform {
		uniform[i] = byte(i)
	}
	if e := shannonEntropy(uniform); e < 7.99 || e > 8.01 {
		t.Errorf("entropy of uniform bytes = %f, want 8", e)
	}
}
