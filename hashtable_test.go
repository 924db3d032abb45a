package exthashdb

import (
	"errors"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/storage/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

// prefixKey - Returns a key having bits as its n leading bits followed by low
func prefixKey(bits uint64, n int, low uint64) uint64 {
	return bits<<(64-n) | low
}

func positionOf(key uint64) Position {
	return Position{Key: key, SegmentID: int32(key % 7), SegmentPos: int64(key % 100000), RecordSize: 128, Version: 1, RecordType: 'd'}
}

func TestNewHashTable(t *testing.T) {
	t.Run("creates in memory table with defaults", func(t *testing.T) {
		// Execute
		ht, info, err := NewHashTable(TableConf{})

		// Check
		require.NoError(t, err, "creates table")
		assert.Equal(t, int64(4), info.BucketCapacity, "default capacity")
		assert.Equal(t, int64(8), info.MaxLevelDepth, "default max level depth")
		assert.False(t, info.Persistent, "in memory")
		assert.Equal(t, int64(0), ht.Size(), "empty")
		assert.Equal(t, int64(1), ht.Stats().Nodes, "root only")
	})

	t.Run("rejects bad max level depth", func(t *testing.T) {
		_, _, err := NewHashTable(TableConf{MaxLevelDepth: 9})
		assert.Error(t, err, "depth 9")
	})

	t.Run("rejects negative capacity", func(t *testing.T) {
		_, _, err := NewHashTable(TableConf{BucketCapacity: -1})
		assert.Error(t, err, "negative capacity")
	})
}

func TestNewFromExistingFiles(t *testing.T) {
	t.Run("reopens a synced table", func(t *testing.T) {
		// Prepare
		name := filepath.Join(t.TempDir(), "test")
		ht, _, err := NewHashTable(TableConf{Name: name, MaxLevelDepth: 2})
		require.NoError(t, err, "creates table")
		for k := uint64(0); k < 200; k++ {
			_, err = ht.Put(positionOf(k * 0x9e3779b97f4a7c15))
			require.NoError(t, err, "puts")
		}
		ht.CloseFiles()

		// Execute
		reopened, info, err := NewFromExistingFiles(name, nil)

		// Check
		require.NoError(t, err, "reopens table")
		assert.True(t, info.Persistent, "persistent")
		assert.Equal(t, int64(2), info.MaxLevelDepth, "max level depth kept")
		assert.Equal(t, int64(200), reopened.Size(), "size kept")
		for k := uint64(0); k < 200; k++ {
			key := k * 0x9e3779b97f4a7c15
			p, err := reopened.Get(key)
			assert.NoError(t, err, "gets key")
			assert.Equal(t, positionOf(key), p, "same value")
		}
		assert.NoError(t, reopened.CheckChainOrder(), "chain intact")

		// Clean up
		err = reopened.RemoveFiles()
		assert.NoError(t, err, "removes files")
		_, err = os.Stat(filestore.GetBucketFileName(name))
		assert.True(t, os.IsNotExist(err), "bucket file removed")
		_, err = os.Stat(filestore.GetDirFileName(name))
		assert.True(t, os.IsNotExist(err), "directory file removed")
	})

	t.Run("error when reopen a non-existing table", func(t *testing.T) {
		_, _, err := NewFromExistingFiles(filepath.Join(t.TempDir(), "missing"), nil)
		assert.Error(t, err, "missing table")
	})

	t.Run("error when reopen internal table with external algorithm", func(t *testing.T) {
		// Prepare
		name := filepath.Join(t.TempDir(), "test")
		ht, _, err := NewHashTable(TableConf{Name: name})
		require.NoError(t, err, "creates table")
		ht.CloseFiles()

		// Execute
		_, _, err = NewFromExistingFiles(name, MixHashAlgorithm())

		// Check
		assert.Error(t, err, "algorithm mismatch")
	})

	t.Run("error when reopen external table without algorithm", func(t *testing.T) {
		// Prepare
		name := filepath.Join(t.TempDir(), "test")
		ht, _, err := NewHashTable(TableConf{Name: name, HashAlgorithm: MixHashAlgorithm()})
		require.NoError(t, err, "creates table")
		ht.CloseFiles()

		// Execute
		_, _, err = NewFromExistingFiles(name, nil)

		// Check
		assert.Error(t, err, "algorithm missing")
	})
}

func TestHashTable_Clear(t *testing.T) {
	t.Run("removes everything", func(t *testing.T) {
		// Prepare
		ht, _, _ := NewHashTable(TableConf{MaxLevelDepth: 2})
		for k := uint64(0); k < 100; k++ {
			_, _ = ht.Put(positionOf(k << 40))
		}

		// Execute
		err := ht.Clear()

		// Check
		assert.NoError(t, err, "clears")
		assert.Equal(t, int64(0), ht.Size(), "empty")
		stats := ht.Stats()
		assert.Equal(t, int64(0), stats.Buckets, "no buckets")
		assert.Equal(t, int64(1), stats.Nodes, "root only")
		_, err = ht.Get(5 << 40)
		assert.True(t, errors.Is(err, crt.NoRecordFound{}), "gone")

		added, err := ht.Put(positionOf(1))
		assert.NoError(t, err, "puts after clear")
		assert.True(t, added, "added after clear")
		assert.NoError(t, ht.CheckChainOrder(), "chain intact")
	})
}

func TestHashTable_Entries(t *testing.T) {
	t.Run("iterates in key order", func(t *testing.T) {
		// Prepare
		ht, _, _ := NewHashTable(TableConf{MaxLevelDepth: 3})
		keys := []uint64{prefixKey(0b111, 3, 1), 42, prefixKey(0b010, 3, 9), prefixKey(0b010, 3, 3), 7, prefixKey(0b1, 1, 0)}
		for _, k := range keys {
			_, _ = ht.Put(positionOf(k))
		}

		// Execute
		var got []uint64
		iter := ht.Entries()
		for iter.HasNext() {
			e, err := iter.Next()
			require.NoError(t, err, "next entry")
			got = append(got, e.Key)
		}
		_, err := iter.Next()

		// Check
		assert.Equal(t, []uint64{7, 42, prefixKey(0b010, 3, 3), prefixKey(0b010, 3, 9), prefixKey(0b1, 1, 0), prefixKey(0b111, 3, 1)}, got, "ordered keys")
		assert.True(t, errors.Is(err, crt.NoRecordFound{}), "exhausted")
	})

	t.Run("empty table has no entries", func(t *testing.T) {
		ht, _, _ := NewHashTable(TableConf{})
		assert.False(t, ht.Entries().HasNext(), "nothing to iterate")
	})
}

func TestSyncHashTable(t *testing.T) {
	t.Run("serves concurrent readers and writers", func(t *testing.T) {
		// Prepare
		ht, _, _ := NewHashTable(TableConf{HashAlgorithm: MixHashAlgorithm()})
		s := NewSyncHashTable(ht)
		done := make(chan struct{})

		// Execute
		for w := uint64(0); w < 4; w++ {
			go func(w uint64) {
				for k := uint64(0); k < 500; k++ {
					_, _ = s.Put(positionOf(w*1000 + k))
					_, _ = s.Get(w*1000 + k)
					_, _ = s.CeilingEntries(k)
				}
				done <- struct{}{}
			}(w)
		}
		for i := 0; i < 4; i++ {
			<-done
		}

		// Check
		assert.Equal(t, int64(2000), s.Size(), "all entries added")
		assert.NoError(t, ht.CheckChainOrder(), "chain intact")
	})
}
