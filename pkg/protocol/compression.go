package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
)

// Compression policy knobs
const (
	compressMinSize    = 100  // don't bother below this
	compressMinEntropy = 4.0  // Shannon entropy in bits/byte
	compressMaxRatio   = 0.80 // accept only if compressed <= 80% of original
)

// Magic prefixes of already-compressed formats; recompressing these wastes
// cycles for negative gain.
var compressedMagics = [][]byte{
	{0x1F, 0x8B}, // gzip
	{0x78, 0x9C}, // zlib
	{0x04, 0x22}, // lz4 frame
}

// MaybeCompress returns the wire form of a payload. When the payload is
// worth compressing the result is a 2-byte big-endian original length
// followed by the deflate stream, and the second return is true; otherwise
// the payload is returned unchanged.
func MaybeCompress(payload []byte) ([]byte, bool) {
	if !worthCompressing(payload) {
		return payload, false
	}

	var buf bytes.Buffer
	buf.Grow(len(payload)/2 + 2)

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(payload)))
	buf.Write(prefix[:])

	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return payload, false
	}
	if _, err := w.Write(payload); err != nil {
		return payload, false
	}
	if err := w.Close(); err != nil {
		return payload, false
	}

	if buf.Len() > int(float64(len(payload))*compressMaxRatio) {
		return payload, false
	}
	return buf.Bytes(), true
}

// Decompress reverses MaybeCompress. The decoder never second-guesses the
// flag: a payload marked compressed must carry the length prefix and
// inflate to exactly that many bytes, capped at MaxDecompressedSize.
func Decompress(wire []byte) ([]byte, error) {
	if len(wire) < 2 {
		return nil, ErrDecompressFailed
	}
	originalLen := int(binary.BigEndian.Uint16(wire[0:2]))
	if originalLen > MaxDecompressedSize {
		return nil, ErrDecompressFailed
	}

	r := flate.NewReader(bytes.NewReader(wire[2:]))
	defer r.Close()

	out := make([]byte, 0, originalLen)
	buf := bytes.NewBuffer(out)
	n, err := io.Copy(buf, io.LimitReader(r, int64(originalLen)+1))
	if err != nil {
		return nil, ErrDecompressFailed
	}
	if int(n) != originalLen {
		return nil, ErrDecompressFailed
	}
	return buf.Bytes(), nil
}

func worthCompressing(payload []byte) bool {
	if len(payload) < compressMinSize || len(payload) > MaxPayloadSize {
		return false
	}
	for _, magic := range compressedMagics {
		if bytes.HasPrefix(payload, magic) {
			return false
		}
	}
	return shannonEntropy(payload) >= compressMinEntropy
}

// shannonEntropy returns the byte entropy in bits per byte.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}
