// Package oplog holds the replicated operation log. The leader appends entries with Log, followers append the
// entries they receive with LogReceived, which detects duplicates, gaps and term conflicts.
package oplog

import (
	"errors"
	"github.com/gostonefire/exthashdb/internal/wire"
)

var (
	// ErrLogCorrupted is returned when a stored entry can not be decoded.
	ErrLogCorrupted = errors.New("oplog: log corrupted")

	// ErrClosed is returned by any operation on a closed log.
	ErrClosed = errors.New("oplog: log closed")

	// ErrNotLeader is returned by Log on a member that has not been made leader.
	ErrNotLeader = errors.New("oplog: not the leader")
)

// ReceiveStatus - Outcome of LogReceived
type ReceiveStatus int

const (
	// Appended - The entry was appended, possibly after removing conflicting entries
	Appended ReceiveStatus = iota
	// Duplicate - The entry is already in the log with the same term
	Duplicate
	// Gap - Entries between the last one in the log and the received one are missing
	Gap
	// TermMismatch - The previous entry in the log has another term than the received entry expects
	TermMismatch
)

// String - Returns the name of the status
func (R ReceiveStatus) String() string {
	switch R {
	case Appended:
		return "appended"
	case Duplicate:
		return "duplicate"
	case Gap:
		return "gap"
	case TermMismatch:
		return "term_mismatch"
	default:
		return "unknown"
	}
}

// LogIDStatus - Outcome of RemoveAfter
type LogIDStatus int

const (
	// Present - The id is in the log, every later entry was removed
	Present LogIDStatus = iota
	// Future - The id is after the last entry
	Future
	// TooOld - The id is before the first retained entry
	TooOld
	// Invalid - An entry with the id exists but with another term
	Invalid
)

// String - Returns the name of the status
func (L LogIDStatus) String() string {
	switch L {
	case Present:
		return "present"
	case Future:
		return "future"
	case TooOld:
		return "too_old"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Entry - A log entry, the id and the request it carries
type Entry struct {
	ID      LogID
	Request wire.Message
}

// OperationLog - The operations of a replicated log
type OperationLog interface {
	Log(request wire.Message) (id LogID, err error)
	LogReceived(id LogID, request wire.Message) (status ReceiveStatus, err error)
	LastPersistentLog() LogID
	Iterate(from, to int64) (iterator *Iterator, err error)
	SearchFrom(from LogID) (iterator *Iterator, found bool, err error)
	RemoveAfter(id LogID) (status LogIDStatus, err error)
	RemoveBefore(id int64) (err error)
	SetLeader(leader bool, term int64)
	Close() (err error)
}

// Iterator - Is used to iterate over a range of log entries in id order
type Iterator struct {
	entries []Entry
}

// HasNext - Returns true if there are more entries to be fetched from a call to Next
func (I *Iterator) HasNext() bool {
	return len(I.entries) > 0
}

// Next - Returns the next entry, found is false when the iterator is exhausted
func (I *Iterator) Next() (entry Entry, found bool) {
	if len(I.entries) == 0 {
		return
	}

	entry, found = I.entries[0], true
	I.entries = I.entries[1:]

	return
}
