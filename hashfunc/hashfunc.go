package hashfunc

// HashAlgorithm - Interface that permits an implementation using the HashTable to supply a custom hash function
// suited for its particular distribution of keys.
//
// The directory routes on the top bits of the returned value, and ordered queries (ceiling, floor, higher, lower)
// follow the order of the hash values. Hence, an order preserving function gives ordered queries in key order.
type HashAlgorithm interface {
	// HashFunc - Given key it generates a 64-bit hash value.
	// The function must be a bijection over uint64, two distinct keys must never produce the same hash value
	// since the table uses the hash as the unique identity of an entry.
	HashFunc(key uint64) uint64
}
