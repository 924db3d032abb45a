package memstore

import (
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newStore(t *testing.T) *MemBuckets {
	m, err := NewMemBuckets(model.StorageConf{BucketCapacity: 4, MaxLevelDepth: 8, InternalAlgorithm: true})
	require.NoError(t, err, "creates storage")
	return m
}

func TestNewMemBuckets(t *testing.T) {
	t.Run("rejects zero capacity", func(t *testing.T) {
		_, err := NewMemBuckets(model.StorageConf{})
		assert.Error(t, err, "zero capacity")
	})
}

func TestMemBuckets_NewBucket(t *testing.T) {
	t.Run("stores copies", func(t *testing.T) {
		// Prepare
		m := newStore(t)
		b := bucket.New(1, 4)

		// Execute
		pos, err := m.NewBucket(b)
		require.NoError(t, err, "stores bucket")
		_, _ = b.AddEntry(bucket.Entry{Hash: 1})
		stored, err := m.GetBucket(pos)

		// Check
		assert.NoError(t, err, "gets bucket")
		assert.Equal(t, int64(0), pos, "first position")
		assert.Equal(t, 0, stored.Size(), "later changes not visible")

		_, _ = stored.AddEntry(bucket.Entry{Hash: 2})
		again, _ := m.GetBucket(pos)
		assert.Equal(t, 0, again.Size(), "changes to fetched copy not visible")
	})

	t.Run("reuses released positions", func(t *testing.T) {
		// Prepare
		m := newStore(t)
		_, _ = m.NewBucket(bucket.New(0, 4))
		p1, _ := m.NewBucket(bucket.New(0, 4))
		_, _ = m.NewBucket(bucket.New(0, 4))

		// Execute
		err := m.ReleaseBucket(p1)
		require.NoError(t, err, "releases bucket")
		p, _ := m.NewBucket(bucket.New(0, 4))

		// Check
		assert.Equal(t, p1, p, "position reused")
		params := m.GetStorageParameters()
		assert.Equal(t, int64(3), params.NumberOfBuckets, "three positions")
		assert.Equal(t, int64(0), params.FreeBuckets, "none free")
	})
}

func TestMemBuckets_SetBucket(t *testing.T) {
	t.Run("replaces bucket", func(t *testing.T) {
		// Prepare
		m := newStore(t)
		pos, _ := m.NewBucket(bucket.New(0, 4))
		b := bucket.New(2, 4)
		b.Next = 5

		// Execute
		err := m.SetBucket(pos, b)

		// Check
		assert.NoError(t, err, "sets bucket")
		r, _ := m.GetBucket(pos)
		assert.Equal(t, uint8(2), r.Depth, "depth")
		assert.Equal(t, int64(5), r.Next, "next")
	})

	t.Run("fails on released position", func(t *testing.T) {
		// Prepare
		m := newStore(t)
		pos, _ := m.NewBucket(bucket.New(0, 4))
		_ = m.ReleaseBucket(pos)

		// Execute
		err := m.SetBucket(pos, bucket.New(0, 4))
		_, getErr := m.GetBucket(pos)

		// Check
		assert.Error(t, err, "set fails")
		assert.Error(t, getErr, "get fails")
	})
}
