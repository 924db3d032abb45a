package filestore

import (
	"fmt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/file"
	"github.com/gostonefire/exthashdb/internal/model"
	"os"
)

// FileBuckets - Represents a file based bucket storage. Buckets are fixed length records in a bucket file where
// released records form a free list that is used before the file grows. The directory is kept in memory by the
// table and written to a separate directory file on Sync.
type FileBuckets struct {
	bucketFileName string
	dirFileName    string
	bucketFile     *os.File
	header         file.Header
}

// GetBucketFileName - Return the bucket file name given the table name
func GetBucketFileName(name string) (fileName string) {
	return fmt.Sprintf("%s-buckets.bin", name)
}

// GetDirFileName - Return the directory file name given the table name
func GetDirFileName(name string) (fileName string) {
	return fmt.Sprintf("%s-dir.bin", name)
}

// NewFileBuckets - Returns a pointer to a new instance of file based bucket storage.
// It always creates new files (or opens and truncate existing files)
//   - storageConf is a model.StorageConf struct providing configuration parameter affecting files creation
//
// It returns:
//   - fileBuckets which is a pointer to the created instance
//   - err which is a standard Go type of error
func NewFileBuckets(storageConf model.StorageConf) (fileBuckets *FileBuckets, err error) {
	if storageConf.Name == "" {
		err = fmt.Errorf("name can not be empty, it will be used to name physical files")
		return
	}
	if storageConf.BucketCapacity <= 0 || storageConf.BucketCapacity > 0xffff {
		err = fmt.Errorf("bucket capacity must be between 1 and %d", 0xffff)
		return
	}

	fileBuckets = &FileBuckets{
		bucketFileName: GetBucketFileName(storageConf.Name),
		dirFileName:    GetDirFileName(storageConf.Name),
		header: file.Header{
			InternalAlg:    storageConf.InternalAlgorithm,
			BucketCapacity: storageConf.BucketCapacity,
			MaxLevelDepth:  storageConf.MaxLevelDepth,
			FreeListHead:   bucket.NoBucket,
		},
	}

	fileBuckets.bucketFile, err = file.CreateNewBucketFile(fileBuckets.bucketFileName, fileBuckets.header)
	if err != nil {
		return
	}
	fileBuckets.header.FileSize = file.BucketFileSize(0, storageConf.BucketCapacity)

	return
}

// NewFileBucketsFromExistingFiles - Returns a pointer to a new instance of file based bucket storage given existing
// files, along with the directory and table size as of the last sync. If files don't exist, don't have a valid
// header or if the file size seems wrong given size from header it fails with error.
//   - name is the name to base file names on
//   - externalAlg is true if an external hash algorithm is to be used with the files
func NewFileBucketsFromExistingFiles(name string, externalAlg bool) (
	fileBuckets *FileBuckets,
	dir *directory.Directory,
	tableSize int64,
	err error,
) {
	fileBuckets = &FileBuckets{
		bucketFileName: GetBucketFileName(name),
		dirFileName:    GetDirFileName(name),
	}

	fileBuckets.bucketFile, fileBuckets.header, err = file.OpenBucketFile(fileBuckets.bucketFileName, externalAlg)
	if err != nil {
		return
	}

	if !fileBuckets.header.InternalAlg && !externalAlg {
		fileBuckets.CloseFiles()
		err = fmt.Errorf("seems the bucket file was used with an external hash algorithm but no external was given")
		return
	}

	dir, err = file.ReadDirectory(fileBuckets.dirFileName)
	if err != nil {
		fileBuckets.CloseFiles()
		return
	}

	if int64(dir.MaxLevelDepth()) != fileBuckets.header.MaxLevelDepth {
		fileBuckets.CloseFiles()
		err = fmt.Errorf("directory file max level depth %d doesn't match bucket file %d", dir.MaxLevelDepth(), fileBuckets.header.MaxLevelDepth)
		return
	}

	tableSize = fileBuckets.header.TableSize

	return
}

// NewBucket - Writes b to a released record if there is one, otherwise to a new record at the end of the file
func (F *FileBuckets) NewBucket(b *bucket.Bucket) (position int64, err error) {
	if F.header.FreeListHead != bucket.NoBucket {
		position = F.header.FreeListHead
		var nextFree int64
		_, nextFree, err = file.GetBucket(F.bucketFile, position, F.header.BucketCapacity)
		if err != nil {
			return
		}
		F.header.FreeListHead = nextFree
		F.header.FreeBuckets--
	} else {
		position = F.header.NumberOfBuckets
		F.header.NumberOfBuckets++
		F.header.FileSize = file.BucketFileSize(F.header.NumberOfBuckets, F.header.BucketCapacity)
	}

	err = file.SetBucket(F.bucketFile, position, F.header.BucketCapacity, b)
	if err != nil {
		return
	}

	err = file.SetHeader(F.bucketFile, F.header)

	return
}

// GetBucket - Reads the bucket at position
func (F *FileBuckets) GetBucket(position int64) (b *bucket.Bucket, err error) {
	if position < 0 || position >= F.header.NumberOfBuckets {
		err = fmt.Errorf("no bucket at position %d", position)
		return
	}

	b, _, err = file.GetBucket(F.bucketFile, position, F.header.BucketCapacity)
	if err != nil {
		return
	}
	if b == nil {
		err = fmt.Errorf("bucket at position %d is released", position)
	}

	return
}

// SetBucket - Writes b at position
func (F *FileBuckets) SetBucket(position int64, b *bucket.Bucket) (err error) {
	if position < 0 || position >= F.header.NumberOfBuckets {
		err = fmt.Errorf("no bucket at position %d", position)
		return
	}

	return file.SetBucket(F.bucketFile, position, F.header.BucketCapacity, b)
}

// ReleaseBucket - Puts the record at position first in the free list
func (F *FileBuckets) ReleaseBucket(position int64) (err error) {
	if position < 0 || position >= F.header.NumberOfBuckets {
		err = fmt.Errorf("no bucket at position %d", position)
		return
	}

	err = file.SetFreeBucket(F.bucketFile, position, F.header.BucketCapacity, F.header.FreeListHead)
	if err != nil {
		return
	}

	F.header.FreeListHead = position
	F.header.FreeBuckets++

	err = file.SetHeader(F.bucketFile, F.header)

	return
}

// Clear - Truncates the bucket file to an empty file
func (F *FileBuckets) Clear() (err error) {
	F.header.NumberOfBuckets = 0
	F.header.FreeListHead = bucket.NoBucket
	F.header.FreeBuckets = 0
	F.header.TableSize = 0
	F.header.FileSize = file.BucketFileSize(0, F.header.BucketCapacity)

	err = F.bucketFile.Truncate(F.header.FileSize)
	if err != nil {
		err = fmt.Errorf("error while truncating bucket file: %s", err)
		return
	}

	err = file.SetHeader(F.bucketFile, F.header)

	return
}

// Sync - Writes the directory and table size to files and flushes the bucket file
func (F *FileBuckets) Sync(dir *directory.Directory, tableSize int64) (err error) {
	F.header.TableSize = tableSize
	err = file.SetHeader(F.bucketFile, F.header)
	if err != nil {
		return
	}

	err = file.WriteDirectory(F.dirFileName, dir)
	if err != nil {
		return
	}

	err = F.bucketFile.Sync()

	return
}

// GetStorageParameters - Returns a struct with storage parameters
func (F *FileBuckets) GetStorageParameters() (params model.StorageParameters) {
	params = model.StorageParameters{
		BucketCapacity:    F.header.BucketCapacity,
		MaxLevelDepth:     F.header.MaxLevelDepth,
		NumberOfBuckets:   F.header.NumberOfBuckets,
		FreeBuckets:       F.header.FreeBuckets,
		BucketFileSize:    F.header.FileSize,
		InternalAlgorithm: F.header.InternalAlg,
		Persistent:        true,
	}

	return
}

// CloseFiles - Closes the bucket file
func (F *FileBuckets) CloseFiles() {
	file.CloseFiles(F.bucketFile)
	F.bucketFile = nil
}

// RemoveFiles - Removes the bucket and directory files, it first tries to close them
func (F *FileBuckets) RemoveFiles() (err error) {
	F.CloseFiles()
	return file.RemoveFiles(F.bucketFileName, F.dirFileName)
}
