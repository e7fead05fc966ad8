package protocol

import "crypto/rand"

// Padding block sizes, smallest first.
var blockSizes = []int{256, 512, 1024, 2048}

// OptimalBlockSize returns the smallest block strictly greater than n, or
// n itself when the payload is already larger than the biggest block.
func OptimalBlockSize(n int) int {
	for _, size := range blockSizes {
		if n < size {
			return size
		}
	}
	return n
}

// Pad appends random bytes up to target, with a trailing byte holding the
// total pad count. Payloads whose gap to target exceeds 255 bytes are
// returned unchanged; a single length byte cannot describe the padding.
func Pad(data []byte, target int) []byte {
	padCount := target - len(data)
	if padCount <= 0 || padCount > 255 {
		return data
	}

	padded := make([]byte, target)
	copy(padded, data)
	if padCount > 1 {
		if _, err := rand.Read(padded[len(data) : target-1]); err != nil {
			return data
		}
	}
	padded[target-1] = byte(padCount)
	return padded
}

// Unpad strips the trailing pad described by the last byte. Data whose
// trailing byte is zero or larger than the data itself is returned
// unchanged.
func Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	n := int(data[len(data)-1])
	if n == 0 || n > len(data) {
		return data
	}
	return data[:len(data)-n]
}
