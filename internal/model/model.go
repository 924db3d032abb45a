package model

// PositionLength - Length of a serialized Position
const PositionLength int64 = 29

// Position - Physical position of a record, it is the value stored in the hash index
//   - Key is the cluster position of the record and the key in the index
//   - SegmentID is the id of the data segment the record is stored in
//   - SegmentPos is the offset of the record within the segment
//   - RecordSize is the size of the record
//   - Version is the record version
//   - RecordType is the type of record
type Position struct {
	Key        uint64
	SegmentID  int32
	SegmentPos int64
	RecordSize int32
	Version    int32
	RecordType uint8
}

// Entry - Key and value pair as returned from ordered queries
type Entry struct {
	Key   uint64
	Value Position
}

// StorageParameters - Represents parameters specific for any implementation of bucket storage
type StorageParameters struct {
	BucketCapacity    int64
	MaxLevelDepth     int64
	NumberOfBuckets   int64
	FreeBuckets       int64
	BucketFileSize    int64
	InternalAlgorithm bool
	Persistent        bool
}

// StorageConf - Is a struct to be passed in the call to a NewXXStorage and contains configuration that affects
// bucket storage.
//   - Name is the name to base file names on (only used by file storage)
//   - BucketCapacity is the max number of entries in a bucket
//   - MaxLevelDepth is the max local depth of a directory node
//   - InternalAlgorithm is true if the internal hash algorithm is in use
type StorageConf struct {
	Name              string
	BucketCapacity    int64
	MaxLevelDepth     int64
	InternalAlgorithm bool
}
