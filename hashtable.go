package exthashdb

import (
	"fmt"
	"github.com/gostonefire/exthashdb/hashfunc"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/hash"
	"github.com/gostonefire/exthashdb/internal/model"
	"github.com/gostonefire/exthashdb/internal/storage/filestore"
	"github.com/gostonefire/exthashdb/internal/storage/memstore"
)

// Position - Physical position of a record, the value stored in the table
type Position = model.Position

// Entry - Key and value pair returned from ordered queries
type Entry = model.Entry

// BucketStorage - Interface for any bucket storage implementation
type BucketStorage interface {
	NewBucket(b *bucket.Bucket) (position int64, err error)
	GetBucket(position int64) (b *bucket.Bucket, err error)
	SetBucket(position int64, b *bucket.Bucket) (err error)
	ReleaseBucket(position int64) (err error)
	Clear() (err error)
	Sync(dir *directory.Directory, tableSize int64) (err error)
	GetStorageParameters() (params model.StorageParameters)
	CloseFiles()
	RemoveFiles() (err error)
}

// TableConf - Configuration given to NewHashTable
//   - Name is the name of the table and is used to form file names, an empty name gives an in memory table
//   - BucketCapacity is the number of entries in a bucket, defaults to 4
//   - MaxLevelDepth is the max local depth of a directory node (1 to 8), defaults to 8 giving 256 slots per node
//   - HashAlgorithm is an optional custom hash algorithm following the hashfunc.HashAlgorithm interface, if nil
//     the internal order preserving algorithm is used
type TableConf struct {
	Name           string
	BucketCapacity int
	MaxLevelDepth  int
	HashAlgorithm  hashfunc.HashAlgorithm
}

// TableInfo - Information structure containing some information about the table
//   - BucketCapacity is the number of entries available in each bucket
//   - MaxLevelDepth is the max local depth of a directory node
//   - Persistent is true for a file backed table
type TableInfo struct {
	BucketCapacity int64
	MaxLevelDepth  int64
	Persistent     bool
}

// TableStats - Statistics on structural changes and current shape of the table
//   - Splits is the number of bucket splits
//   - Merges is the number of bucket merges
//   - RootDoublings is the number of times the root hash map was doubled
//   - NodeSplits is the number of directory node splits
//   - LevelsAdded is the number of directory nodes added one level deeper
//   - NodesMerged is the number of directory nodes spliced into their parents
//   - Buckets is the number of buckets in use
//   - Nodes is the number of directory nodes in use
type TableStats struct {
	Splits        int64
	Merges        int64
	RootDoublings int64
	NodeSplits    int64
	LevelsAdded   int64
	NodesMerged   int64
	Buckets       int64
	Nodes         int64
}

// HashTable - The main implementation struct. It is not safe for concurrent use, see SyncHashTable.
type HashTable struct {
	storage        BucketStorage
	dir            *directory.Directory
	hashAlgorithm  hashfunc.HashAlgorithm
	bucketCapacity int
	name           string
	size           int64
	stats          TableStats
}

// MixHashAlgorithm - Returns a hash algorithm spreading clustered keys evenly over the directory.
// Ordered queries then follow hash order rather than key order.
func MixHashAlgorithm() hashfunc.HashAlgorithm {
	return hash.NewMixHashAlgorithm()
}

// NewHashTable - Returns a new empty hash table, file backed if a name is given, otherwise in memory.
//   - tableConf is a TableConf struct
//
// It returns:
//   - hashTable is a pointer to a HashTable struct
//   - tableInfo is a TableInfo struct containing some data regarding the table created
//   - err is a normal go Error which should be nil if everything went ok
func NewHashTable(tableConf TableConf) (hashTable *HashTable, tableInfo TableInfo, err error) {
	if tableConf.BucketCapacity == 0 {
		tableConf.BucketCapacity = bucket.DefaultCapacity
	}
	if tableConf.MaxLevelDepth == 0 {
		tableConf.MaxLevelDepth = directory.DefaultMaxLevelDepth
	}

	if tableConf.BucketCapacity < 1 {
		err = fmt.Errorf("bucket capacity must be a positive value higher than 0 (zero)")
		return
	}

	dir, err := directory.New(tableConf.MaxLevelDepth)
	if err != nil {
		return
	}

	internalAlg := tableConf.HashAlgorithm == nil
	if internalAlg {
		tableConf.HashAlgorithm = hash.NewIdentityHashAlgorithm()
	}

	storageConf := model.StorageConf{
		Name:              tableConf.Name,
		BucketCapacity:    int64(tableConf.BucketCapacity),
		MaxLevelDepth:     int64(tableConf.MaxLevelDepth),
		InternalAlgorithm: internalAlg,
	}

	var storage BucketStorage
	if tableConf.Name == "" {
		storage, err = memstore.NewMemBuckets(storageConf)
	} else {
		storage, err = filestore.NewFileBuckets(storageConf)
	}
	if err != nil {
		return
	}

	hashTable = &HashTable{
		storage:        storage,
		dir:            dir,
		hashAlgorithm:  tableConf.HashAlgorithm,
		bucketCapacity: tableConf.BucketCapacity,
		name:           tableConf.Name,
	}

	tableInfo = hashTable.info()

	return
}

// NewFromExistingFiles - Opens a file backed table as of its last Sync. If the table was created with a custom hash
// algorithm, that same algorithm has to be supplied.
//   - name is the name of an existing table
//   - hashAlgorithm is an optional entry to provide a custom hash algorithm following the hashfunc.HashAlgorithm interface.
//
// It returns:
//   - hashTable is a pointer to a HashTable struct
//   - tableInfo is a TableInfo struct containing some data regarding the table opened
//   - err is a normal Go Error which should be nil if everything went ok
func NewFromExistingFiles(name string, hashAlgorithm hashfunc.HashAlgorithm) (
	hashTable *HashTable,
	tableInfo TableInfo,
	err error,
) {
	fb, dir, size, err := filestore.NewFileBucketsFromExistingFiles(name, hashAlgorithm != nil)
	if err != nil {
		return
	}

	if hashAlgorithm == nil {
		hashAlgorithm = hash.NewIdentityHashAlgorithm()
	}

	hashTable = &HashTable{
		storage:        fb,
		dir:            dir,
		hashAlgorithm:  hashAlgorithm,
		bucketCapacity: int(fb.GetStorageParameters().BucketCapacity),
		name:           name,
		size:           size,
	}

	tableInfo = hashTable.info()

	return
}

// info - Returns a TableInfo from storage parameters
func (H *HashTable) info() TableInfo {
	sp := H.storage.GetStorageParameters()

	return TableInfo{
		BucketCapacity: sp.BucketCapacity,
		MaxLevelDepth:  sp.MaxLevelDepth,
		Persistent:     sp.Persistent,
	}
}

// Name - Returns the name of the table, empty for an in memory table
func (H *HashTable) Name() string {
	return H.name
}

// Size - Returns number of entries in the table
func (H *HashTable) Size() int64 {
	return H.size
}

// Stats - Returns statistics on the table
func (H *HashTable) Stats() (stats TableStats) {
	stats = H.stats
	sp := H.storage.GetStorageParameters()
	stats.Buckets = sp.NumberOfBuckets - sp.FreeBuckets
	stats.Nodes = int64(H.dir.NodeCount())

	return
}

// Sync - Writes the directory and the table size to file, a no-op for in memory tables.
// Buckets are written as they change, the directory only on Sync and CloseFiles.
func (H *HashTable) Sync() (err error) {
	return H.storage.Sync(H.dir, H.size)
}

// CloseFiles - Syncs and closes the table files. Use this preferably in a "defer" directly after a NewHashTable or
// NewFromExistingFiles.
func (H *HashTable) CloseFiles() {
	_ = H.Sync()
	H.storage.CloseFiles()
}

// RemoveFiles - Removes the table files if they exist, it first tries to close them.
func (H *HashTable) RemoveFiles() (err error) {
	return H.storage.RemoveFiles()
}

// Clear - Removes all entries, leaving an empty directory
func (H *HashTable) Clear() (err error) {
	err = H.storage.Clear()
	if err != nil {
		return
	}

	H.dir.Reset()
	H.size = 0

	return
}
