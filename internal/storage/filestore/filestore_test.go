package filestore

import (
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) (*FileBuckets, string) {
	name := filepath.Join(t.TempDir(), "test")
	f, err := NewFileBuckets(model.StorageConf{Name: name, BucketCapacity: 4, MaxLevelDepth: 8, InternalAlgorithm: true})
	require.NoError(t, err, "creates storage")
	return f, name
}

func TestNewFileBuckets(t *testing.T) {
	t.Run("creates bucket file", func(t *testing.T) {
		// Execute
		f, name := newStore(t)
		defer f.CloseFiles()

		// Check
		_, err := os.Stat(GetBucketFileName(name))
		assert.NoError(t, err, "bucket file exists")
		params := f.GetStorageParameters()
		assert.True(t, params.Persistent, "persistent")
		assert.Equal(t, int64(4), params.BucketCapacity, "capacity")
		assert.Equal(t, int64(0), params.NumberOfBuckets, "no buckets")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewFileBuckets(model.StorageConf{BucketCapacity: 4})
		assert.Error(t, err, "empty name")
	})
}

func TestFileBuckets_ReleaseBucket(t *testing.T) {
	t.Run("reuses released records in lifo order", func(t *testing.T) {
		// Prepare
		f, _ := newStore(t)
		defer f.CloseFiles()
		p0, _ := f.NewBucket(bucket.New(0, 4))
		p1, _ := f.NewBucket(bucket.New(0, 4))
		p2, _ := f.NewBucket(bucket.New(0, 4))

		// Execute
		require.NoError(t, f.ReleaseBucket(p0), "releases p0")
		require.NoError(t, f.ReleaseBucket(p2), "releases p2")
		a, _ := f.NewBucket(bucket.New(1, 4))
		b, _ := f.NewBucket(bucket.New(1, 4))
		c, _ := f.NewBucket(bucket.New(1, 4))

		// Check
		assert.Equal(t, p2, a, "last released first")
		assert.Equal(t, p0, b, "then the first released")
		assert.Equal(t, int64(3), c, "then a new record")
		assert.Equal(t, int64(1), p1, "p1 untouched")
		_, err := f.GetBucket(p1)
		assert.NoError(t, err, "p1 readable")
		assert.Equal(t, int64(4), f.GetStorageParameters().NumberOfBuckets, "four records")
	})

	t.Run("fails to read released record", func(t *testing.T) {
		// Prepare
		f, _ := newStore(t)
		defer f.CloseFiles()
		p, _ := f.NewBucket(bucket.New(0, 4))
		_ = f.ReleaseBucket(p)

		// Execute
		_, err := f.GetBucket(p)

		// Check
		assert.Error(t, err, "released")
	})
}

func TestNewFileBucketsFromExistingFiles(t *testing.T) {
	t.Run("reopens buckets and directory", func(t *testing.T) {
		// Prepare
		f, name := newStore(t)
		b := bucket.New(0, 4)
		_, _ = b.AddEntry(bucket.Entry{Hash: 3, Position: model.Position{Key: 3, SegmentPos: 30}})
		pos, err := f.NewBucket(b)
		require.NoError(t, err, "stores bucket")
		dir, _ := directory.New(8)
		dir.SetSlot(directory.RootIndex, 0, directory.BucketRef(pos))
		require.NoError(t, f.Sync(dir, 1), "syncs")
		f.CloseFiles()

		// Execute
		r, rDir, size, err := NewFileBucketsFromExistingFiles(name, false)

		// Check
		require.NoError(t, err, "reopens")
		defer r.CloseFiles()
		assert.Equal(t, int64(1), size, "table size")
		assert.Equal(t, directory.BucketRef(pos), rDir.Root().Slots[0], "directory restored")
		rb, err := r.GetBucket(pos)
		assert.NoError(t, err, "reads bucket")
		p, found := rb.Get(3)
		assert.True(t, found, "entry found")
		assert.Equal(t, int64(30), p.SegmentPos, "position")
	})

	t.Run("fails without directory file", func(t *testing.T) {
		// Prepare
		f, name := newStore(t)
		f.CloseFiles()

		// Execute
		_, _, _, err := NewFileBucketsFromExistingFiles(name, false)

		// Check
		assert.Error(t, err, "no directory file")
	})
}

func TestFileBuckets_Clear(t *testing.T) {
	t.Run("truncates file", func(t *testing.T) {
		// Prepare
		f, name := newStore(t)
		defer f.CloseFiles()
		_, _ = f.NewBucket(bucket.New(0, 4))

		// Execute
		err := f.Clear()

		// Check
		assert.NoError(t, err, "clears")
		assert.Equal(t, int64(0), f.GetStorageParameters().NumberOfBuckets, "no buckets")
		stat, _ := os.Stat(GetBucketFileName(name))
		assert.Equal(t, f.GetStorageParameters().BucketFileSize, stat.Size(), "file size matches header")
	})
}

func TestFileBuckets_RemoveFiles(t *testing.T) {
	t.Run("removes files", func(t *testing.T) {
		// Prepare
		f, name := newStore(t)
		dir, _ := directory.New(8)
		_ = f.Sync(dir, 0)

		// Execute
		err := f.RemoveFiles()

		// Check
		assert.NoError(t, err, "removes files")
		_, err = os.Stat(GetBucketFileName(name))
		assert.True(t, os.IsNotExist(err), "bucket file removed")
		_, err = os.Stat(GetDirFileName(name))
		assert.True(t, os.IsNotExist(err), "directory file removed")
	})
}
