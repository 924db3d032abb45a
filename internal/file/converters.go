package file

import (
	"encoding/binary"
	"fmt"
	"github.com/gostonefire/exthashdb/internal/bucket"
	"github.com/gostonefire/exthashdb/internal/conf"
	"github.com/gostonefire/exthashdb/internal/directory"
	"github.com/gostonefire/exthashdb/internal/model"
)

// Header - Represents the bucket file header data
type Header struct {
	InternalAlg     bool
	BucketCapacity  int64
	MaxLevelDepth   int64
	NumberOfBuckets int64
	FreeListHead    int64
	FreeBuckets     int64
	FileSize        int64
	TableSize       int64
}

// BucketRecordLength - Returns length of a bucket record given the bucket capacity
func BucketRecordLength(capacity int64) int64 {
	return conf.BucketHeaderLength + capacity*(conf.HashLength+model.PositionLength)
}

// bytesToHeader - Converts a slice of bytes to a Header struct
func bytesToHeader(buf []byte) (header Header) {
	header = Header{
		InternalAlg:     buf[conf.InternalAlgorithmOffset] == 1,
		BucketCapacity:  int64(binary.LittleEndian.Uint16(buf[conf.BucketCapacityOffset:])),
		MaxLevelDepth:   int64(buf[conf.MaxLevelDepthOffset]),
		NumberOfBuckets: int64(binary.LittleEndian.Uint64(buf[conf.NumberOfBucketsOffset:])),
		FreeListHead:    int64(binary.LittleEndian.Uint64(buf[conf.FreeListHeadOffset:])),
		FreeBuckets:     int64(binary.LittleEndian.Uint64(buf[conf.FreeBucketsOffset:])),
		FileSize:        int64(binary.LittleEndian.Uint64(buf[conf.FileSizeOffset:])),
		TableSize:       int64(binary.LittleEndian.Uint64(buf[conf.TableSizeOffset:])),
	}

	return
}

// headerToBytes - Converts a Header struct to a slice of bytes
func headerToBytes(header Header) (buf []byte) {
	buf = make([]byte, conf.BucketFileHeaderLength)

	if header.InternalAlg {
		buf[conf.InternalAlgorithmOffset] = 1
	}

	binary.LittleEndian.PutUint16(buf[conf.BucketCapacityOffset:], uint16(header.BucketCapacity))
	buf[conf.MaxLevelDepthOffset] = uint8(header.MaxLevelDepth)
	binary.LittleEndian.PutUint64(buf[conf.NumberOfBucketsOffset:], uint64(header.NumberOfBuckets))
	binary.LittleEndian.PutUint64(buf[conf.FreeListHeadOffset:], uint64(header.FreeListHead))
	binary.LittleEndian.PutUint64(buf[conf.FreeBucketsOffset:], uint64(header.FreeBuckets))
	binary.LittleEndian.PutUint64(buf[conf.FileSizeOffset:], uint64(header.FileSize))
	binary.LittleEndian.PutUint64(buf[conf.TableSizeOffset:], uint64(header.TableSize))

	return
}

// positionToBytes - Writes a Position into buf which must hold at least model.PositionLength bytes
func positionToBytes(buf []byte, position model.Position) {
	binary.LittleEndian.PutUint64(buf[0:], position.Key)
	binary.LittleEndian.PutUint32(buf[8:], uint32(position.SegmentID))
	binary.LittleEndian.PutUint64(buf[12:], uint64(position.SegmentPos))
	binary.LittleEndian.PutUint32(buf[20:], uint32(position.RecordSize))
	binary.LittleEndian.PutUint32(buf[24:], uint32(position.Version))
	buf[28] = position.RecordType
}

// bytesToPosition - Reads a Position from buf
func bytesToPosition(buf []byte) (position model.Position) {
	position = model.Position{
		Key:        binary.LittleEndian.Uint64(buf[0:]),
		SegmentID:  int32(binary.LittleEndian.Uint32(buf[8:])),
		SegmentPos: int64(binary.LittleEndian.Uint64(buf[12:])),
		RecordSize: int32(binary.LittleEndian.Uint32(buf[20:])),
		Version:    int32(binary.LittleEndian.Uint32(buf[24:])),
		RecordType: buf[28],
	}

	return
}

// bucketToBytes - Converts a Bucket to a bucket record
func bucketToBytes(b *bucket.Bucket, capacity int64) (buf []byte) {
	buf = make([]byte, BucketRecordLength(capacity))
	buf[0] = conf.BucketInUse
	buf[conf.BucketDepthOffset] = b.Depth
	binary.LittleEndian.PutUint16(buf[conf.BucketSizeOffset:], uint16(b.Size()))
	binary.LittleEndian.PutUint64(buf[conf.BucketNextOffset:], uint64(b.Next))
	binary.LittleEndian.PutUint64(buf[conf.BucketPrevOffset:], uint64(b.Prev))

	entryStart := conf.BucketHeaderLength
	for _, e := range b.Content() {
		binary.LittleEndian.PutUint64(buf[entryStart:], e.Hash)
		positionToBytes(buf[entryStart+conf.HashLength:], e.Position)
		entryStart += conf.HashLength + model.PositionLength
	}

	return
}

// bytesToBucket - Converts a bucket record to a Bucket
// It returns:
//   - b is the bucket, nil if the record is not in use
//   - nextFree is the next released record when the record is not in use
//   - err is a standard error if the record is malformed
func bytesToBucket(buf []byte, capacity int64) (b *bucket.Bucket, nextFree int64, err error) {
	expected := BucketRecordLength(capacity)
	if int64(len(buf)) < expected {
		err = fmt.Errorf("length of data in buf (%d) less than bucket record size (%d)", len(buf), expected)
		return
	}

	next := int64(binary.LittleEndian.Uint64(buf[conf.BucketNextOffset:]))
	if buf[0] != conf.BucketInUse {
		nextFree = next
		return
	}

	size := int64(binary.LittleEndian.Uint16(buf[conf.BucketSizeOffset:]))
	if size > capacity {
		err = fmt.Errorf("bucket record holds %d entries, more than capacity %d", size, capacity)
		return
	}

	entries := make([]bucket.Entry, size)
	entryStart := conf.BucketHeaderLength
	for i := range entries {
		entries[i] = bucket.Entry{
			Hash:     binary.LittleEndian.Uint64(buf[entryStart:]),
			Position: bytesToPosition(buf[entryStart+conf.HashLength:]),
		}
		entryStart += conf.HashLength + model.PositionLength
	}

	b, err = bucket.FromEntries(
		buf[conf.BucketDepthOffset],
		int(capacity),
		next,
		int64(binary.LittleEndian.Uint64(buf[conf.BucketPrevOffset:])),
		entries,
	)

	return
}

// freeBucketToBytes - Returns a released bucket record linking to the next released record
func freeBucketToBytes(nextFree, capacity int64) (buf []byte) {
	buf = make([]byte, BucketRecordLength(capacity))
	binary.LittleEndian.PutUint64(buf[conf.BucketNextOffset:], uint64(nextFree))

	return
}

// slotToBytes - Writes a SlotRef into buf which must hold at least conf.SlotLength bytes
func slotToBytes(buf []byte, slot directory.SlotRef) {
	buf[0] = uint8(slot.Kind)
	switch slot.Kind {
	case directory.BucketSlot:
		binary.LittleEndian.PutUint64(buf[1:], uint64(slot.Bucket))
	case directory.ChildSlot:
		binary.LittleEndian.PutUint32(buf[1:], uint32(slot.Node))
		binary.LittleEndian.PutUint32(buf[5:], uint32(slot.Offset))
	}
}

// bytesToSlot - Reads a SlotRef from buf
func bytesToSlot(buf []byte) (slot directory.SlotRef, err error) {
	switch kind := directory.SlotKind(buf[0]); kind {
	case directory.EmptySlot:
	case directory.BucketSlot:
		slot = directory.BucketRef(int64(binary.LittleEndian.Uint64(buf[1:])))
	case directory.ChildSlot:
		slot = directory.ChildRef(int32(binary.LittleEndian.Uint32(buf[1:])), int(int32(binary.LittleEndian.Uint32(buf[5:]))))
	default:
		err = fmt.Errorf("unknown slot kind %d", kind)
	}

	return
}

// directoryToBytes - Converts all nodes in the directory arena to bytes, released nodes are kept as not in use
func directoryToBytes(dir *directory.Directory) (buf []byte) {
	nodes := dir.Nodes()
	levelSize := int64(dir.LevelSize())
	nodeLength := conf.NodeHeaderLength + levelSize*conf.SlotLength

	buf = make([]byte, conf.DirectoryFileHeaderLength+int64(len(nodes))*nodeLength)
	buf[0] = uint8(dir.MaxLevelDepth())
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(nodes)))

	nodeStart := conf.DirectoryFileHeaderLength
	for _, node := range nodes {
		if node != nil {
			buf[nodeStart] = 1
			buf[nodeStart+1] = node.LocalDepth
			slotStart := nodeStart + conf.NodeHeaderLength
			for _, slot := range node.Slots {
				slotToBytes(buf[slotStart:], slot)
				slotStart += conf.SlotLength
			}
		}
		nodeStart += nodeLength
	}

	return
}

// bytesToDirectory - Converts bytes to a directory
func bytesToDirectory(buf []byte) (dir *directory.Directory, err error) {
	if int64(len(buf)) < conf.DirectoryFileHeaderLength {
		err = fmt.Errorf("length of data in buf (%d) less than directory header size", len(buf))
		return
	}

	maxLevelDepth := int(buf[0])
	nodeCount := int64(binary.LittleEndian.Uint32(buf[1:]))
	levelSize := int64(1) << maxLevelDepth
	nodeLength := conf.NodeHeaderLength + levelSize*conf.SlotLength

	expected := conf.DirectoryFileHeaderLength + nodeCount*nodeLength
	if int64(len(buf)) < expected {
		err = fmt.Errorf("length of data in buf (%d) less than directory size (%d)", len(buf), expected)
		return
	}

	nodes := make([]*directory.Node, nodeCount)
	nodeStart := conf.DirectoryFileHeaderLength
	for i := range nodes {
		if buf[nodeStart] == 1 {
			node := &directory.Node{LocalDepth: buf[nodeStart+1], Slots: make([]directory.SlotRef, levelSize)}
			slotStart := nodeStart + conf.NodeHeaderLength
			for s := range node.Slots {
				node.Slots[s], err = bytesToSlot(buf[slotStart:])
				if err != nil {
					return
				}
				slotStart += conf.SlotLength
			}
			nodes[i] = node
		}
		nodeStart += nodeLength
	}

	dir, err = directory.Restore(maxLevelDepth, nodes)

	return
}
