// Package entropy scores the randomness of a file's content. High scores on
// previously low-scoring files are the primary indicator of mass encryption.
package entropy

import (
	"io"
	"math"
	"os"
)

const chunkSize = 4096

// Measure returns the normalized Shannon entropy of the file's byte
// distribution, in [0,1] where 1 is maximally random (encrypted or compressed
// content). A missing, unreadable or empty file scores 0.0; transient read
// failures degrade to 0.0 rather than surfacing an error, so a vanished file
// can never break the caller's loop.
func Measure(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0.0
	}
	defer f.Close()

	var counts [256]int64
	var size int64
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			counts[b]++
		}
		size += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0.0
		}
	}
	if size == 0 {
		return 0.0
	}

	var h float64
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(size)
		h -= p * math.Log2(p)
	}
	// Shannon entropy over bytes tops out at 8 bits.
	return h / 8
}
