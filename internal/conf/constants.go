package conf

// BucketFileHeaderLength - Length of bucket file header
const BucketFileHeaderLength int64 = 1024

// InternalAlgorithmOffset - Header offset to whether using internal (1) or external (0) hash algorithm - 1 byte
const InternalAlgorithmOffset int64 = 0

// BucketCapacityOffset - Header offset to max number of entries per bucket - 2 bytes
const BucketCapacityOffset int64 = 1

// MaxLevelDepthOffset - Header offset to max local depth of a directory node - 1 byte
const MaxLevelDepthOffset int64 = 3

// NumberOfBucketsOffset - Header offset to number of bucket records in file, including released ones - 8 bytes
const NumberOfBucketsOffset int64 = 4

// FreeListHeadOffset - Header offset to the first released bucket record, -1 if none - 8 bytes
const FreeListHeadOffset int64 = 12

// FreeBucketsOffset - Header offset to number of released bucket records - 8 bytes
const FreeBucketsOffset int64 = 20

// FileSizeOffset - Header offset to the file size (should of course reflect true file size) - 8 bytes
const FileSizeOffset int64 = 28

// TableSizeOffset - Header offset to number of entries in the table as of last sync - 8 bytes
const TableSizeOffset int64 = 36

// BucketInUse - Flag indicating a bucket record that is in use
const BucketInUse uint8 = 1

// BucketHeaderLength - Length of header in each bucket record: in use flag (1), depth (1), size (2),
// next (8) and prev (8)
const BucketHeaderLength int64 = 20

// BucketDepthOffset - Bucket header offset to depth - 1 byte
const BucketDepthOffset int64 = 1

// BucketSizeOffset - Bucket header offset to number of entries - 2 bytes
const BucketSizeOffset int64 = 2

// BucketNextOffset - Bucket header offset to next bucket in chain (or next free record) - 8 bytes
const BucketNextOffset int64 = 4

// BucketPrevOffset - Bucket header offset to previous bucket in chain - 8 bytes
const BucketPrevOffset int64 = 12

// HashLength - Length of the hash stored with each entry
const HashLength int64 = 8

// DirectoryFileHeaderLength - Length of directory file header: max level depth (1) and node count (4)
const DirectoryFileHeaderLength int64 = 16

// NodeHeaderLength - Length of header for each directory node: in use flag (1) and local depth (1)
const NodeHeaderLength int64 = 2

// SlotLength - Length of a serialized directory slot: kind (1) and bucket position or child node/offset (8)
const SlotLength int64 = 9
