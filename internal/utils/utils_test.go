package utils

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestBits(t *testing.T) {
	t.Run("reads leading bits", func(t *testing.T) {
		// Prepare
		h := uint64(0xA5) << 56

		// Execute
		top8 := Bits(h, 0, 8)
		top3 := Bits(h, 0, 3)
		mid := Bits(h, 3, 4)

		// Check
		assert.Equal(t, uint64(0xA5), top8, "top 8 bits")
		assert.Equal(t, uint64(0x5), top3, "top 3 bits 101")
		assert.Equal(t, uint64(0x2), mid, "bits 3 to 6 are 0010")
	})

	t.Run("reads zero when asked for no bits", func(t *testing.T) {
		assert.Equal(t, uint64(0), Bits(0xffffffffffffffff, 10, 0), "zero bits")
	})

	t.Run("pads with zero past the end of the hash", func(t *testing.T) {
		// Prepare
		h := uint64(0xff)

		// Execute
		straddle := Bits(h, 60, 8)
		beyond := Bits(h, 64, 8)

		// Check
		assert.Equal(t, uint64(0xf0), straddle, "last 4 bits followed by zero padding")
		assert.Equal(t, uint64(0), beyond, "beyond the hash is zero")
	})
}

func TestBit(t *testing.T) {
	t.Run("reads single bits", func(t *testing.T) {
		h := uint64(1) << 62

		assert.Equal(t, uint64(0), Bit(h, 0), "first bit")
		assert.Equal(t, uint64(1), Bit(h, 1), "second bit")
		assert.Equal(t, uint64(0), Bit(h, 70), "past end")
	})
}

func TestAlignDown(t *testing.T) {
	t.Run("aligns to block", func(t *testing.T) {
		assert.Equal(t, 8, AlignDown(13, 8), "13 aligned to 8")
		assert.Equal(t, 13, AlignDown(13, 1), "block of one")
		assert.Equal(t, 0, AlignDown(255, 256), "full level")
	})
}
