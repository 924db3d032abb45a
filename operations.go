package exthashdb

import (
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
)

// boundary - Kind of ordered query
type boundary int

const (
	ceiling boundary = iota
	higher
	floor
	lower
)

// Put - Adds position to the table keyed by position.Key. The table is insert only, a position with a key that is
// already present is not stored.
//   - position is the value to store
//
// It returns:
//   - added is false if the key was already present, the stored value and size are then left untouched
//   - err is a standard error or of type crt.CorruptedIndex if the directory is inconsistent
func (H *HashTable) Put(position Position) (added bool, err error) {
	h := H.hashAlgorithm.HashFunc(position.Key)
	entry := bucket.Entry{Hash: h, Position: position}

	// Every structural change below is followed by a new walk from the root until the entry finds room
	for {
		var path directory.Path
		var ref directory.SlotRef
		path, ref, err = H.dir.Walk(h)
		if err != nil {
			return
		}

		if ref.Kind == directory.EmptySlot {
			err = H.newBucketAt(path)
			if err != nil {
				return
			}
			continue
		}

		var b *bucket.Bucket
		b, err = H.storage.GetBucket(ref.Bucket)
		if err != nil {
			return
		}

		if _, found := b.Find(h); found {
			return
		}

		if !b.IsFull() {
			_, err = b.AddEntry(entry)
			if err != nil {
				return
			}
			err = H.storage.SetBucket(ref.Bucket, b)
			if err != nil {
				return
			}
			H.size++
			added = true
			return
		}

		err = H.grow(path, ref.Bucket, b)
		if err != nil {
			return
		}
	}
}

// Get - Gets the position stored for key.
//   - key is the key of the position
//
// It returns:
//   - position is the stored position if found, if not found an error of type crt.NoRecordFound is also returned.
//   - err is either of type crt.NoRecordFound or a standard error, if something went wrong
func (H *HashTable) Get(key uint64) (position Position, err error) {
	h := H.hashAlgorithm.HashFunc(key)

	b, _, err := H.bucketFor(h)
	if err != nil {
		return
	}

	position, found := b.Get(h)
	if !found {
		err = crt.NoRecordFound{}
	}

	return
}

// Contains - Returns true if key is present in the table
func (H *HashTable) Contains(key uint64) (found bool, err error) {
	h := H.hashAlgorithm.HashFunc(key)

	b, _, err := H.bucketFor(h)
	if err != nil {
		if _, ok := err.(crt.NoRecordFound); ok {
			err = nil
		}
		return
	}

	_, found = b.Find(h)

	return
}

// Delete - Removes the position stored for key. If the bucket it was stored in becomes empty, the bucket is merged
// with its buddy and directory nodes left holding a single reference per hash map are spliced out.
//   - key is the key of the position
//
// It returns:
//   - position is the removed position, if not found an error of type crt.NoRecordFound is returned.
//   - err is either of type crt.NoRecordFound or a standard error, if something went wrong
func (H *HashTable) Delete(key uint64) (position Position, err error) {
	h := H.hashAlgorithm.HashFunc(key)

	path, ref, err := H.dir.Walk(h)
	if err != nil {
		return
	}
	if ref.Kind != directory.BucketSlot {
		err = crt.NoRecordFound{}
		return
	}

	b, err := H.storage.GetBucket(ref.Bucket)
	if err != nil {
		return
	}

	index, found := b.Find(h)
	if !found {
		err = crt.NoRecordFound{}
		return
	}

	position = b.DeleteEntry(index).Position
	err = H.storage.SetBucket(ref.Bucket, b)
	if err != nil {
		return
	}
	H.size--

	if b.Size() == 0 && b.Depth > 0 {
		err = H.mergeBucket(path, ref.Bucket, b)
	}

	return
}

// CeilingEntries - Returns the entries of the first bucket, in hash order, holding entries with a hash greater
// than or equal to the hash of key, starting from the first such entry. Nil if there is none.
func (H *HashTable) CeilingEntries(key uint64) (entries []Entry, err error) {
	return H.boundaryEntries(key, ceiling)
}

// HigherEntries - Returns the entries of the first bucket, in hash order, holding entries with a hash greater
// than the hash of key, starting from the first such entry. Nil if there is none.
func (H *HashTable) HigherEntries(key uint64) (entries []Entry, err error) {
	return H.boundaryEntries(key, higher)
}

// FloorEntries - Returns the entries of the last bucket, in hash order, holding entries with a hash less than or
// equal to the hash of key, up to and including the last such entry. Nil if there is none.
func (H *HashTable) FloorEntries(key uint64) (entries []Entry, err error) {
	return H.boundaryEntries(key, floor)
}

// LowerEntries - Returns the entries of the last bucket, in hash order, holding entries with a hash less than the
// hash of key, up to and including the last such entry. Nil if there is none.
func (H *HashTable) LowerEntries(key uint64) (entries []Entry, err error) {
	return H.boundaryEntries(key, lower)
}

// bucketFor - Returns the bucket that hash routes to, crt.NoRecordFound if the slot is empty
func (H *HashTable) bucketFor(h uint64) (b *bucket.Bucket, position int64, err error) {
	_, ref, err := H.dir.Walk(h)
	if err != nil {
		return
	}
	if ref.Kind != directory.BucketSlot {
		err = crt.NoRecordFound{}
		return
	}

	position = ref.Bucket
	b, err = H.storage.GetBucket(position)

	return
}

// boundaryEntries - Locates the bucket for key and returns the qualifying sub range. If nothing qualifies it
// follows the bucket chain in the direction of the query.
func (H *HashTable) boundaryEntries(key uint64, kind boundary) (entries []Entry, err error) {
	h := H.hashAlgorithm.HashFunc(key)
	forward := kind == ceiling || kind == higher

	path, ref, err := H.dir.Walk(h)
	if err != nil {
		return
	}

	position := bucket.NoBucket
	if ref.Kind == directory.BucketSlot {
		position = ref.Bucket
	} else {
		var r directory.SlotRef
		var found bool
		if forward {
			r, found = H.dir.NextBucket(path)
		} else {
			r, found = H.dir.PrevBucket(path)
		}
		if found {
			position = r.Bucket
		}
	}

	for position != bucket.NoBucket {
		var b *bucket.Bucket
		b, err = H.storage.GetBucket(position)
		if err != nil {
			return
		}

		index, found := b.Find(h)
		from, to := 0, 0
		switch kind {
		case ceiling:
			from, to = index, b.Size()
		case higher:
			if found {
				index++
			}
			from, to = index, b.Size()
		case floor:
			if found {
				index++
			}
			from, to = 0, index
		case lower:
			from, to = 0, index
		}

		if from < to {
			entries = toEntries(b.Range(from, to))
			return
		}

		if forward {
			position = b.Next
		} else {
			position = b.Prev
		}
	}

	return
}

// toEntries - Converts bucket entries to public entries
func toEntries(bucketEntries []bucket.Entry) (entries []Entry) {
	entries = make([]Entry, len(bucketEntries))
	for i, e := range bucketEntries {
		entries[i] = Entry{Key: e.Position.Key, Value: e.Position}
	}

	return
}
