package hash

// IdentityHashAlgorithm - The internally used hash algorithm. It returns the key as is which keeps the directory
// routing on the top bits of the key and makes ordered queries follow key order.
type IdentityHashAlgorithm struct{}

// NewIdentityHashAlgorithm - Returns a pointer to a new IdentityHashAlgorithm instance
func NewIdentityHashAlgorithm() *IdentityHashAlgorithm {
	return &IdentityHashAlgorithm{}
}

// HashFunc - Returns the key unchanged
func (I *IdentityHashAlgorithm) HashFunc(key uint64) uint64 {
	return key
}

// MixHashAlgorithm - Scrambles the key using the 64-bit finalizer from MurmurHash3 (fmix64).
// Each step is invertible so the function is a bijection, which gives an even spread over the directory for
// keys that are clustered (sequential cluster positions for instance) at the price of ordered queries following
// hash order rather than key order.
type MixHashAlgorithm struct{}

// NewMixHashAlgorithm - Returns a pointer to a new MixHashAlgorithm instance
func NewMixHashAlgorithm() *MixHashAlgorithm {
	return &MixHashAlgorithm{}
}

// HashFunc - Returns the fmix64 value of key
func (M *MixHashAlgorithm) HashFunc(key uint64) uint64 {
	h := key
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
