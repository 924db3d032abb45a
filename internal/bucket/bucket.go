package bucket

import (
	"cmp"
	"fmt"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/model"
	"github.com/gostonefire/exthashdb/internal/utils"
	"slices"
)

// NoBucket - Link value used when a bucket has no next or previous bucket in the chain
const NoBucket int64 = -1

// DefaultCapacity - Default number of entries in a bucket
const DefaultCapacity = 4

// Entry - One entry in a bucket, the hash is kept along with the position since it is what the entries are
// ordered by and what the directory routes on.
type Entry struct {
	Hash     uint64
	Position model.Position
}

// Bucket - Fixed capacity array of entries sorted by hash
//   - Depth is the number of hash bits consumed to reach the bucket, all entries share that many leading bits
//   - Next and Prev links the bucket into the ordered chain of all buckets
type Bucket struct {
	Depth    uint8
	Next     int64
	Prev     int64
	entries  []Entry
	capacity int
}

// New - Returns a pointer to a new empty Bucket
func New(depth uint8, capacity int) *Bucket {
	return &Bucket{
		Depth:    depth,
		Next:     NoBucket,
		Prev:     NoBucket,
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// FromEntries - Returns a pointer to a Bucket holding the given entries, used when a bucket is read back
// from storage. The entries must already be sorted by hash.
func FromEntries(depth uint8, capacity int, next, prev int64, entries []Entry) (bucket *Bucket, err error) {
	if len(entries) > capacity {
		err = crt.NewBucketCapacityExceeded(fmt.Sprintf("bucket with %d entries exceeds capacity %d", len(entries), capacity))
		return
	}

	bucket = New(depth, capacity)
	bucket.Next = next
	bucket.Prev = prev
	bucket.entries = append(bucket.entries, entries...)

	return
}

// Size - Returns number of entries in the bucket
func (B *Bucket) Size() int {
	return len(B.entries)
}

// Capacity - Returns max number of entries in the bucket
func (B *Bucket) Capacity() int {
	return B.capacity
}

// IsFull - Returns true if no more entries can be added
func (B *Bucket) IsFull() bool {
	return len(B.entries) >= B.capacity
}

// Find - Binary search for hash.
// It returns:
//   - index is the index of the entry if found, otherwise the index where it would be inserted
//   - found is true if an entry with the hash exists
func (B *Bucket) Find(hash uint64) (index int, found bool) {
	return slices.BinarySearchFunc(B.entries, hash, func(e Entry, h uint64) int {
		return cmp.Compare(e.Hash, h)
	})
}

// Get - Returns the position stored for hash, found is false if there is no such entry
func (B *Bucket) Get(hash uint64) (position model.Position, found bool) {
	index, found := B.Find(hash)
	if found {
		position = B.entries[index].Position
	}

	return
}

// Entry - Returns entry at index
func (B *Bucket) Entry(index int) Entry {
	return B.entries[index]
}

// AddEntry - Inserts entry at its sorted position.
// It returns:
//   - added is false if an entry with the same hash already exists, the bucket is then left untouched
//   - err is of type crt.BucketCapacityExceeded if the bucket is full
func (B *Bucket) AddEntry(entry Entry) (added bool, err error) {
	index, found := B.Find(entry.Hash)
	if found {
		return
	}

	if B.IsFull() {
		err = crt.BucketCapacityExceeded{}
		return
	}

	B.entries = slices.Insert(B.entries, index, entry)
	added = true

	return
}

// DeleteEntry - Removes the entry at index, compacting the array, and returns it
func (B *Bucket) DeleteEntry(index int) (removed Entry) {
	removed = B.entries[index]
	B.entries = slices.Delete(B.entries, index, index+1)

	return
}

// Content - Returns all entries in hash order. The returned slice must not be modified.
func (B *Bucket) Content() []Entry {
	return B.entries
}

// Range - Returns a copy of entries from (inclusive) to (exclusive)
func (B *Bucket) Range(from, to int) []Entry {
	return slices.Clone(B.entries[from:to])
}

// SplitOff - Removes all entries having bit set at position (counted from the most significant bit) and
// returns them. Since entries are sorted by hash and share all leading bits before position, the removed entries
// are always a suffix of the array.
func (B *Bucket) SplitOff(position int) (upper []Entry) {
	index := len(B.entries)
	for i, e := range B.entries {
		if utils.Bit(e.Hash, position) == 1 {
			index = i
			break
		}
	}

	upper = slices.Clone(B.entries[index:])
	B.entries = B.entries[:index]

	return
}

// Clone - Returns a deep copy of the bucket
func (B *Bucket) Clone() *Bucket {
	c := New(B.Depth, B.capacity)
	c.Next = B.Next
	c.Prev = B.Prev
	c.entries = append(c.entries, B.entries...)

	return c
}
