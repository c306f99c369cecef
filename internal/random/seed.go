// Package random draws fresh world seeds for command-line callers.
//
// Generation itself never calls into this package: every world is a pure
// function of the seed it is handed. Only a caller that asks for a new world
// without naming one draws entropy here, and it must report the drawn seed
// so the world can be regenerated.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// NewSeed draws a non-zero seed from crypto/rand.
func NewSeed() (uint64, error) {
	return SeedFrom(crand.Reader)
}

// SeedFrom draws a non-zero seed from r. Zero is reserved for "unset".
func SeedFrom(r io.Reader) (uint64, error) {
	var b [8]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read random seed: %w", err)
		}
		if seed := binary.LittleEndian.Uint64(b[:]); seed != 0 {
			return seed, nil
		}
	}
}
