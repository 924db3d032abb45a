package exthashdb

import (
	"fmt"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/utils"
)

// newBucketAt - Allocates an empty bucket for the empty slot at the end of path and links it into the chain
// between the closest buckets before and after the slot
func (H *HashTable) newBucketAt(path directory.Path) (err error) {
	nb := bucket.New(uint8(path.GlobalDepth()), H.bucketCapacity)

	prevRef, hasPrev := H.dir.PrevBucket(path)
	nextRef, hasNext := H.dir.NextBucket(path)
	if hasPrev {
		nb.Prev = prevRef.Bucket
	}
	if hasNext {
		nb.Next = nextRef.Bucket
	}

	position, err := H.storage.NewBucket(nb)
	if err != nil {
		return
	}

	if hasPrev {
		err = H.setLink(prevRef.Bucket, func(b *bucket.Bucket) { b.Next = position })
		if err != nil {
			return
		}
	}
	if hasNext {
		err = H.setLink(nextRef.Bucket, func(b *bucket.Bucket) { b.Prev = position })
		if err != nil {
			return
		}
	}

	last := path.Last()
	H.dir.SetSlot(last.Node, last.ItemIndex, directory.BucketRef(position))

	return
}

// grow - Makes room for one more entry in the full bucket b at the end of path. The bucket is split if the walk
// consumed more bits than its depth, otherwise the directory is extended so the next walk consumes more bits.
func (H *HashTable) grow(path directory.Path, position int64, b *bucket.Bucket) (err error) {
	depth := int(b.Depth)
	if depth >= utils.HashBits || depth > path.GlobalDepth() {
		err = crt.NewCorruptedIndex(fmt.Sprintf("bucket %d at depth %d can not be split", position, depth))
		return
	}

	if depth < path.GlobalDepth() {
		return H.splitBucket(path, position, b)
	}

	last := path.Last()
	switch {
	case last.Node == directory.RootIndex && last.Depth < H.dir.MaxLevelDepth():
		err = H.dir.DoubleRoot()
		H.stats.RootDoublings++
	case last.Depth < H.dir.MaxLevelDepth():
		_, _, err = H.dir.SplitNode(path)
		H.stats.NodeSplits++
	default:
		_, err = H.dir.AddLevel(path)
		H.stats.LevelsAdded++
	}

	return
}

// splitBucket - Splits b on the hash bit following its depth. Entries with the bit cleared stay, the others move to
// a new bucket placed after b in the chain, and the upper half of the slots covering b is pointed at the new bucket.
func (H *HashTable) splitBucket(path directory.Path, position int64, b *bucket.Bucket) (err error) {
	depth := int(b.Depth)

	item, start, size, err := path.Cover(depth)
	if err != nil {
		return
	}

	upper := b.SplitOff(depth)
	nb, err := bucket.FromEntries(uint8(depth+1), H.bucketCapacity, b.Next, position, upper)
	if err != nil {
		return
	}

	newPosition, err := H.storage.NewBucket(nb)
	if err != nil {
		return
	}

	if b.Next != bucket.NoBucket {
		err = H.setLink(b.Next, func(next *bucket.Bucket) { next.Prev = newPosition })
		if err != nil {
			return
		}
	}

	b.Depth = uint8(depth + 1)
	b.Next = newPosition
	err = H.storage.SetBucket(position, b)
	if err != nil {
		return
	}

	half := size / 2
	H.dir.SetRange(item.Node, start+half, half, directory.BucketRef(newPosition))
	H.stats.Splits++

	return
}

// mergeBucket - Merges the empty bucket b into its buddy if the buddy has the same depth. The buddy takes over
// all slots of b, b is unlinked from the chain and released. Directory nodes below the merged range and along path
// that are left with a single reference per hash map are spliced into their parents.
func (H *HashTable) mergeBucket(path directory.Path, position int64, b *bucket.Bucket) (err error) {
	depth := int(b.Depth)

	item, start, size, err := path.Cover(depth - 1)
	if err != nil {
		return
	}

	half := size / 2
	buddyStart := start
	if utils.AlignDown(item.ItemIndex, half) == start {
		buddyStart = start + half
	}

	buddyRef, found := H.dir.FirstBucket(H.dir.Node(item.Node).Slots[buddyStart])
	if !found {
		return
	}

	buddy, err := H.storage.GetBucket(buddyRef.Bucket)
	if err != nil {
		return
	}
	if int(buddy.Depth) != depth {
		return
	}

	if b.Prev != bucket.NoBucket {
		err = H.setLink(b.Prev, func(prev *bucket.Bucket) { prev.Next = b.Next })
		if err != nil {
			return
		}
	}
	if b.Next != bucket.NoBucket {
		err = H.setLink(b.Next, func(next *bucket.Bucket) { next.Prev = b.Prev })
		if err != nil {
			return
		}
	}

	err = H.storage.ReleaseBucket(position)
	if err != nil {
		return
	}

	err = H.setLink(buddyRef.Bucket, func(m *bucket.Bucket) { m.Depth-- })
	if err != nil {
		return
	}

	H.stats.Merges++
	H.stats.NodesMerged += int64(H.dir.MergeRange(item.Node, start, size, buddyRef))
	H.stats.NodesMerged += int64(H.dir.MergeUp(path))

	return
}

// setLink - Reads the bucket at position, applies update and writes it back
func (H *HashTable) setLink(position int64, update func(b *bucket.Bucket)) (err error) {
	b, err := H.storage.GetBucket(position)
	if err != nil {
		return
	}

	update(b)

	return H.storage.SetBucket(position, b)
}
