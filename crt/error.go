package crt

// NoRecordFound - Custom error to inform that no record was found
type NoRecordFound struct {
	msg string
}

// Error - Used to notify that no record was found
func (E NoRecordFound) Error() string {
	if E.msg == "" {
		return "no record found"
	}
	return E.msg
}

// BucketCapacityExceeded - Custom error to inform that an entry was added to a bucket that is already full.
// It is never expected during a put since buckets are split before they overflow.
type BucketCapacityExceeded struct {
	msg string
}

// NewBucketCapacityExceeded - Returns a BucketCapacityExceeded with a custom message
func NewBucketCapacityExceeded(msg string) BucketCapacityExceeded {
	return BucketCapacityExceeded{msg: msg}
}

// Error - Used to notify that a bucket is full
func (B BucketCapacityExceeded) Error() string {
	if B.msg == "" {
		return "bucket capacity exceeded"
	}
	return B.msg
}

// CorruptedIndex - Custom error to inform that the directory structure could not resolve a hash to a bucket.
// The condition is fatal for the operation and is never retried.
type CorruptedIndex struct {
	msg string
}

// NewCorruptedIndex - Returns a CorruptedIndex with a custom message
func NewCorruptedIndex(msg string) CorruptedIndex {
	return CorruptedIndex{msg: msg}
}

// Error - Used to notify that the index is corrupted
func (C CorruptedIndex) Error() string {
	if C.msg == "" {
		return "corrupted index"
	}
	return C.msg
}
