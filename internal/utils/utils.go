package utils

// HashBits - Number of bits in a hash value
const HashBits = 64

// Bits - Returns n (0-64) bits of hash starting at bit position start counted from the most significant bit.
// Bits beyond the 64 available are read as zero, this is what lets a walk through the directory pass the end of
// the hash without failing.
func Bits(hash uint64, start, n int) uint64 {
	if n <= 0 || start >= HashBits {
		return 0
	}

	return (hash << uint(start)) >> uint(HashBits-n)
}

// Bit - Returns the single bit at position start counted from the most significant bit
func Bit(hash uint64, position int) uint64 {
	return Bits(hash, position, 1)
}

// AlignDown - Returns index rounded down to the nearest multiple of size, size must be a power of 2
func AlignDown(index, size int) int {
	return index &^ (size - 1)
}
