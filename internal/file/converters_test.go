package file

import (
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestBucketToBytes(t *testing.T) {
	t.Run("converts bucket and back", func(t *testing.T) {
		// Prepare
		b := bucket.New(5, 4)
		b.Next = 12
		b.Prev = bucket.NoBucket
		_, _ = b.AddEntry(bucket.Entry{Hash: 2, Position: model.Position{Key: 2, SegmentID: 3, SegmentPos: 4000, RecordSize: 55, Version: 6, RecordType: 'd'}})
		_, _ = b.AddEntry(bucket.Entry{Hash: 1, Position: model.Position{Key: 1, SegmentID: -1, SegmentPos: -2}})

		// Execute
		buf := bucketToBytes(b, 4)
		r, nextFree, err := bytesToBucket(buf, 4)

		// Check
		require.NoError(t, err, "converts back")
		assert.Equal(t, int64(0), nextFree, "no free link")
		assert.Equal(t, int64(BucketRecordLength(4)), int64(len(buf)), "record length")
		assert.Equal(t, b.Depth, r.Depth, "depth")
		assert.Equal(t, b.Next, r.Next, "next")
		assert.Equal(t, b.Prev, r.Prev, "prev")
		assert.Equal(t, b.Content(), r.Content(), "entries")
	})

	t.Run("reads a released record", func(t *testing.T) {
		// Execute
		r, nextFree, err := bytesToBucket(freeBucketToBytes(9, 4), 4)

		// Check
		assert.NoError(t, err, "converts")
		assert.Nil(t, r, "no bucket")
		assert.Equal(t, int64(9), nextFree, "free link")
	})

	t.Run("fails on short buffer", func(t *testing.T) {
		_, _, err := bytesToBucket(make([]byte, 10), 4)
		assert.Error(t, err, "short buffer")
	})
}

func TestHeaderToBytes(t *testing.T) {
	t.Run("converts header and back", func(t *testing.T) {
		// Prepare
		header := Header{
			InternalAlg:     true,
			BucketCapacity:  4,
			MaxLevelDepth:   8,
			NumberOfBuckets: 100,
			FreeListHead:    -1,
			FreeBuckets:     0,
			FileSize:        123456,
			TableSize:       250,
		}

		// Execute
		r := bytesToHeader(headerToBytes(header))

		// Check
		assert.Equal(t, header, r, "same header")
	})
}

func TestDirectoryToBytes(t *testing.T) {
	t.Run("converts directory and back", func(t *testing.T) {
		// Prepare
		d, _ := directory.New(2)
		_ = d.DoubleRoot()
		_ = d.DoubleRoot()
		for i := 0; i < 4; i++ {
			d.SetSlot(directory.RootIndex, i, directory.BucketRef(int64(i)))
		}
		path, _, _ := d.Walk(0)
		child, _ := d.AddLevel(path)

		// Execute
		r, err := bytesToDirectory(directoryToBytes(d))

		// Check
		require.NoError(t, err, "converts back")
		assert.Equal(t, 2, r.MaxLevelDepth(), "max level depth")
		assert.Equal(t, d.NodeCount(), r.NodeCount(), "node count")
		assert.Equal(t, d.Root().Slots, r.Root().Slots, "root slots")
		assert.Equal(t, d.Node(child).Slots, r.Node(child).Slots, "child slots")
		assert.Equal(t, d.Node(child).LocalDepth, r.Node(child).LocalDepth, "child depth")
	})
}
