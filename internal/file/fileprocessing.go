package file

import (
	"fmt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/conf"
	"github.com/gostonefire/exthashdb/internal/directory"
	"io"
	"os"
)

// GetHeader - Reads header data from file and returns it as a Header struct
func GetHeader(f *os.File) (header Header, err error) {
	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return
	}

	buf := make([]byte, conf.BucketFileHeaderLength)
	_, err = io.ReadFull(f, buf)
	if err != nil {
		return
	}

	header = bytesToHeader(buf)

	return
}

// SetHeader - Takes a Header struct and writes header data to file
func SetHeader(f *os.File, header Header) (err error) {
	_, err = f.Seek(0, io.SeekStart)
	if err != nil {
		return
	}

	_, err = f.Write(headerToBytes(header))

	return
}

// bucketAddress - Returns file address of a bucket record
func bucketAddress(position, capacity int64) int64 {
	return conf.BucketFileHeaderLength + position*BucketRecordLength(capacity)
}

// GetBucket - Reads the bucket record at position.
// It returns:
//   - b is the bucket, nil if the record has been released
//   - nextFree is the next released record if this one is released
//   - err is a standard error
func GetBucket(f *os.File, position, capacity int64) (b *bucket.Bucket, nextFree int64, err error) {
	_, err = f.Seek(bucketAddress(position, capacity), io.SeekStart)
	if err != nil {
		return
	}

	buf := make([]byte, BucketRecordLength(capacity))
	_, err = io.ReadFull(f, buf)
	if err != nil {
		err = fmt.Errorf("error while reading bucket %d: %w", position, err)
		return
	}

	b, nextFree, err = bytesToBucket(buf, capacity)

	return
}

// SetBucket - Writes a bucket record at position, extending the file if position is beyond its end
func SetBucket(f *os.File, position, capacity int64, b *bucket.Bucket) (err error) {
	_, err = f.Seek(bucketAddress(position, capacity), io.SeekStart)
	if err != nil {
		return
	}

	_, err = f.Write(bucketToBytes(b, capacity))

	return
}

// SetFreeBucket - Writes a released bucket record at position linking to nextFree
func SetFreeBucket(f *os.File, position, capacity, nextFree int64) (err error) {
	_, err = f.Seek(bucketAddress(position, capacity), io.SeekStart)
	if err != nil {
		return
	}

	_, err = f.Write(freeBucketToBytes(nextFree, capacity))

	return
}

// BucketFileSize - Returns expected size of a bucket file holding numberOfBuckets records
func BucketFileSize(numberOfBuckets, capacity int64) int64 {
	return bucketAddress(numberOfBuckets, capacity)
}

// CreateNewBucketFile - Creates a new bucket file holding only a header. If it already exists it will first be
// truncated to zero length, hence deleting all existing data.
func CreateNewBucketFile(fileName string, header Header) (filePtr *os.File, err error) {
	filePtr, err = os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		err = fmt.Errorf("error while open/create new bucket file: %s", err)
		return
	}

	header.FileSize = BucketFileSize(header.NumberOfBuckets, header.BucketCapacity)
	err = SetHeader(filePtr, header)
	if err != nil {
		_ = filePtr.Close()
		filePtr = nil
		err = fmt.Errorf("error while writing header to new bucket file: %s", err)
	}

	return
}

// OpenBucketFile - Opens the bucket file and does some rudimentary checks of its validity
func OpenBucketFile(fileName string, externalAlg bool) (filePtr *os.File, header Header, err error) {
	stat, statErr := os.Stat(fileName)
	if statErr != nil {
		err = fmt.Errorf("bucket file not found")
		return
	}

	filePtr, err = os.OpenFile(fileName, os.O_RDWR, 0644)
	if err != nil {
		err = fmt.Errorf("unable to open existing bucket file: %s", err)
		return
	}

	header, err = GetHeader(filePtr)
	if err != nil {
		_ = filePtr.Close()
		filePtr = nil
		err = fmt.Errorf("unable to read header from bucket file: %s", err)
		return
	}

	if stat.Size() != header.FileSize {
		_ = filePtr.Close()
		filePtr = nil
		err = fmt.Errorf("actual file size doesn't conform with header indicated file size")
		return
	}

	if header.InternalAlg && externalAlg {
		_ = filePtr.Close()
		filePtr = nil
		err = fmt.Errorf("seems the bucket file was used with the internal hash algorithm but an external was given")
		return
	}

	return
}

// WriteDirectory - Writes the whole directory to file, replacing any earlier content
func WriteDirectory(fileName string, dir *directory.Directory) (err error) {
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		err = fmt.Errorf("error while open/create directory file: %s", err)
		return
	}
	defer func(f *os.File) { _ = f.Close() }(f)

	_, err = f.Write(directoryToBytes(dir))
	if err != nil {
		err = fmt.Errorf("error while writing directory file: %s", err)
		return
	}

	err = f.Sync()

	return
}

// ReadDirectory - Reads a directory from file
func ReadDirectory(fileName string) (dir *directory.Directory, err error) {
	buf, err := os.ReadFile(fileName)
	if err != nil {
		err = fmt.Errorf("unable to read directory file: %s", err)
		return
	}

	dir, err = bytesToDirectory(buf)

	return
}

// CloseFiles - Closes the bucket file
func CloseFiles(bucketFile *os.File) {
	if bucketFile != nil {
		_ = bucketFile.Sync()
		_ = bucketFile.Close()
	}
}

// RemoveFiles - Removes the bucket and directory files, make sure to close them first before calling this function
func RemoveFiles(bucketFileName, dirFileName string) (err error) {
	// Only try to remove if exists, and are not by accident directories
	for _, fileName := range []string{dirFileName, bucketFileName} {
		if stat, ok := os.Stat(fileName); ok == nil {
			if !stat.IsDir() {
				err = os.Remove(fileName)
				if err != nil {
					err = fmt.Errorf("error while removing file %s: %s", fileName, err)
					return
				}
			}
		}
	}

	return
}
