package exthashdb

import (
	"fmt"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/utils"
)

// ChainIterator - Is used to iterate over all entries one by one in hash order by following the bucket chain.
// The table must not be changed while iterating.
type ChainIterator struct {
	table    *HashTable
	position int64
	buffer   []Entry
	err      error
}

// Entries - Returns a pointer to a new ChainIterator starting at the first bucket
func (H *HashTable) Entries() *ChainIterator {
	iterator := &ChainIterator{table: H, position: bucket.NoBucket}
	if first, found := H.dir.FirstBucket(H.dir.RootRef()); found {
		iterator.position = first.Bucket
	}

	return iterator
}

// HasNext - Returns true if there are more entries to be fetched from a call to Next.
func (C *ChainIterator) HasNext() bool {
	for len(C.buffer) == 0 && C.position != bucket.NoBucket && C.err == nil {
		b, err := C.table.storage.GetBucket(C.position)
		if err != nil {
			C.err = fmt.Errorf("error while retrieving bucket %d: %w", C.position, err)
			break
		}
		C.buffer = toEntries(b.Content())
		C.position = b.Next
	}

	return len(C.buffer) > 0 || C.err != nil
}

// Next - Returns next entry.
// It returns:
//   - entry is the next entry.
//   - err is either a standard error or if there are no more entries when calling this function an error of type crt.NoRecordFound is returned.
func (C *ChainIterator) Next() (entry Entry, err error) {
	if !C.HasNext() {
		err = crt.NoRecordFound{}
		return
	}
	if C.err != nil {
		err = C.err
		return
	}

	entry = C.buffer[0]
	C.buffer = C.buffer[1:]

	return
}

// CheckChainOrder - Verifies the bucket chain: every bucket is reachable from the first one without gaps, links
// are consistent in both directions, hashes are strictly increasing along the chain, every entry shares the
// leading depth bits of its bucket and routes to it, and the entry count equals Size.
// It returns an error of type crt.CorruptedIndex describing the first violation found.
func (H *HashTable) CheckChainOrder() (err error) {
	first, found := H.dir.FirstBucket(H.dir.RootRef())
	if !found {
		if H.size != 0 {
			err = crt.NewCorruptedIndex(fmt.Sprintf("no buckets but size is %d", H.size))
		}
		return
	}

	stats := H.Stats()
	prev := bucket.NoBucket
	position := first.Bucket
	var count, visited int64
	var last uint64
	hasLast := false

	for position != bucket.NoBucket {
		visited++
		if visited > stats.Buckets {
			err = crt.NewCorruptedIndex("bucket chain is longer than number of buckets")
			return
		}

		var b *bucket.Bucket
		b, err = H.storage.GetBucket(position)
		if err != nil {
			return
		}

		if b.Prev != prev {
			err = crt.NewCorruptedIndex(fmt.Sprintf("bucket %d links back to %d, expected %d", position, b.Prev, prev))
			return
		}

		depth := int(b.Depth)
		for _, e := range b.Content() {
			if hasLast && e.Hash <= last {
				err = crt.NewCorruptedIndex(fmt.Sprintf("hash %x in bucket %d is not above %x", e.Hash, position, last))
				return
			}
			if utils.Bits(e.Hash, 0, depth) != utils.Bits(b.Entry(0).Hash, 0, depth) {
				err = crt.NewCorruptedIndex(fmt.Sprintf("hash %x does not share depth %d prefix in bucket %d", e.Hash, depth, position))
				return
			}

			var ref directory.SlotRef
			_, ref, err = H.dir.Walk(e.Hash)
			if err != nil {
				return
			}
			if ref != directory.BucketRef(position) {
				err = crt.NewCorruptedIndex(fmt.Sprintf("hash %x in bucket %d routes elsewhere", e.Hash, position))
				return
			}

			last = e.Hash
			hasLast = true
		}

		count += int64(b.Size())
		prev = position
		position = b.Next
	}

	if visited != stats.Buckets {
		err = crt.NewCorruptedIndex(fmt.Sprintf("chain holds %d buckets of %d", visited, stats.Buckets))
		return
	}
	if count != H.size {
		err = crt.NewCorruptedIndex(fmt.Sprintf("chain holds %d entries but size is %d", count, H.size))
	}

	return
}
