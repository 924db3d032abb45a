package memstore

import (
	"fmt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/model"
)

// MemBuckets - Represents an in memory bucket storage. Buckets are kept in a slice where released positions are
// reused before the slice grows. Buckets are copied in and out so callers never share state with the store.
type MemBuckets struct {
	buckets           []*bucket.Bucket
	free              []int64
	capacity          int64
	maxLevelDepth     int64
	internalAlgorithm bool
}

// NewMemBuckets - Returns a pointer to a new instance of in memory bucket storage
//   - storageConf is a model.StorageConf struct, the name is not used
func NewMemBuckets(storageConf model.StorageConf) (memBuckets *MemBuckets, err error) {
	if storageConf.BucketCapacity <= 0 {
		err = fmt.Errorf("bucket capacity must be a positive value higher than 0 (zero)")
		return
	}

	memBuckets = &MemBuckets{
		capacity:          storageConf.BucketCapacity,
		maxLevelDepth:     storageConf.MaxLevelDepth,
		internalAlgorithm: storageConf.InternalAlgorithm,
	}

	return
}

// NewBucket - Stores b at a new position and returns the position
func (M *MemBuckets) NewBucket(b *bucket.Bucket) (position int64, err error) {
	if n := len(M.free); n > 0 {
		position = M.free[n-1]
		M.free = M.free[:n-1]
		M.buckets[position] = b.Clone()
		return
	}

	position = int64(len(M.buckets))
	M.buckets = append(M.buckets, b.Clone())

	return
}

// GetBucket - Returns a copy of the bucket at position
func (M *MemBuckets) GetBucket(position int64) (b *bucket.Bucket, err error) {
	if position < 0 || position >= int64(len(M.buckets)) || M.buckets[position] == nil {
		err = fmt.Errorf("no bucket at position %d", position)
		return
	}

	b = M.buckets[position].Clone()

	return
}

// SetBucket - Replaces the bucket at position with a copy of b
func (M *MemBuckets) SetBucket(position int64, b *bucket.Bucket) (err error) {
	if position < 0 || position >= int64(len(M.buckets)) || M.buckets[position] == nil {
		err = fmt.Errorf("no bucket at position %d", position)
		return
	}

	M.buckets[position] = b.Clone()

	return
}

// ReleaseBucket - Releases the bucket at position for reuse
func (M *MemBuckets) ReleaseBucket(position int64) (err error) {
	if position < 0 || position >= int64(len(M.buckets)) || M.buckets[position] == nil {
		err = fmt.Errorf("no bucket at position %d", position)
		return
	}

	M.buckets[position] = nil
	M.free = append(M.free, position)

	return
}

// Clear - Releases all buckets
func (M *MemBuckets) Clear() (err error) {
	M.buckets = nil
	M.free = nil

	return
}

// Sync - Nothing to persist for memory storage
func (M *MemBuckets) Sync(_ *directory.Directory, _ int64) (err error) {
	return
}

// GetStorageParameters - Returns a struct with storage parameters
func (M *MemBuckets) GetStorageParameters() (params model.StorageParameters) {
	params = model.StorageParameters{
		BucketCapacity:    M.capacity,
		MaxLevelDepth:     M.maxLevelDepth,
		NumberOfBuckets:   int64(len(M.buckets)),
		FreeBuckets:       int64(len(M.free)),
		InternalAlgorithm: M.internalAlgorithm,
	}

	return
}

// CloseFiles - Nothing to close for memory storage
func (M *MemBuckets) CloseFiles() {}

// RemoveFiles - Drops all buckets
func (M *MemBuckets) RemoveFiles() (err error) {
	return M.Clear()
}
