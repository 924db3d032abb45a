package oplog

import (
	"fmt"
	"github.com/gostonefire/exthashdb/internal/wire"
	"sync"
)

// store - Where entries are kept. Entries are contiguous by id from first to last.
type store interface {
	append(entry Entry) error
	get(id int64) (entry Entry, found bool, err error)
	// scan returns entries with from <= id <= to in id order
	scan(from, to int64) (entries []Entry, err error)
	removeAfter(id int64) error
	removeBefore(id int64) error
	// bounds returns the first and last entry ids, first > last when empty
	bounds() (first int64, last LogID, err error)
	close() error
}

// Log - The OperationLog implementation, safe for concurrent use
type Log struct {
	mu     sync.Mutex
	store  store
	first  int64
	last   LogID
	leader bool
	term   int64
	closed bool
}

// newLog - Returns a Log on top of s, reading its bounds
func newLog(s store) (log *Log, err error) {
	first, last, err := s.bounds()
	if err != nil {
		return
	}

	log = &Log{store: s, first: first, last: last}

	return
}

// Log - Appends request as the next entry with the current leader term
func (L *Log) Log(request wire.Message) (id LogID, err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		err = ErrClosed
		return
	}
	if !L.leader {
		err = ErrNotLeader
		return
	}

	id = LogID{ID: L.last.ID + 1, Term: L.term, PreviousIDTerm: L.last.Term}
	err = L.append(Entry{ID: id, Request: request})

	return
}

// LogReceived - Appends an entry received from the leader.
// It returns:
//   - status is Appended if the entry was added, Duplicate if it was already present with the same term, Gap if
//     entries are missing before it and TermMismatch if the entry before it has another term than expected.
//     An entry already present with another term is replaced along with every entry after it.
//   - err is ErrClosed or a storage error
func (L *Log) LogReceived(id LogID, request wire.Message) (status ReceiveStatus, err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		err = ErrClosed
		return
	}

	if id.ID > L.last.ID+1 {
		status = Gap
		return
	}

	if id.ID <= L.last.ID {
		if id.ID < L.first {
			status = Duplicate
			return
		}

		var existing Entry
		var found bool
		existing, found, err = L.store.get(id.ID)
		if err != nil {
			return
		}
		if found && existing.ID.Term == id.Term {
			status = Duplicate
			return
		}
	}

	matches, err := L.previousMatches(id)
	if err != nil {
		return
	}
	if !matches {
		status = TermMismatch
		return
	}

	if id.ID <= L.last.ID {
		err = L.truncate(id.ID - 1)
		if err != nil {
			return
		}
	}

	err = L.append(Entry{ID: id, Request: request})
	status = Appended

	return
}

// previousMatches - Returns true if the entry before id has the term id expects
func (L *Log) previousMatches(id LogID) (matches bool, err error) {
	prev := id.ID - 1
	if prev < L.first || prev < 0 {
		matches = true
		return
	}
	if prev == L.last.ID {
		matches = L.last.Term == id.PreviousIDTerm
		return
	}

	entry, found, err := L.store.get(prev)
	if err != nil {
		return
	}
	matches = found && entry.ID.Term == id.PreviousIDTerm

	return
}

// LastPersistentLog - Returns the id of the last entry, NoLog if the log is empty
func (L *Log) LastPersistentLog() LogID {
	L.mu.Lock()
	defer L.mu.Unlock()

	return L.last
}

// Iterate - Returns an iterator over entries with from <= id <= to
func (L *Log) Iterate(from, to int64) (iterator *Iterator, err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		err = ErrClosed
		return
	}

	entries, err := L.store.scan(max(from, L.first), min(to, L.last.ID))
	if err != nil {
		return
	}
	iterator = &Iterator{entries: entries}

	return
}

// SearchFrom - Returns an iterator over every entry after from. found is false if from is not in the log with
// the same term, or is older than the first retained entry. NoLog is always found.
func (L *Log) SearchFrom(from LogID) (iterator *Iterator, found bool, err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		err = ErrClosed
		return
	}

	if from.ID >= 0 {
		if from.ID < L.first || from.ID > L.last.ID {
			return
		}
		var entry Entry
		entry, found, err = L.store.get(from.ID)
		if err != nil || !found || entry.ID.Term != from.Term {
			found = false
			return
		}
	} else if L.first > 0 {
		return
	}

	entries, err := L.store.scan(max(from.ID+1, L.first), L.last.ID)
	if err != nil {
		return
	}
	iterator, found = &Iterator{entries: entries}, true

	return
}

// RemoveAfter - Removes every entry after id. NoLog removes all entries.
func (L *Log) RemoveAfter(id LogID) (status LogIDStatus, err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		err = ErrClosed
		return
	}

	switch {
	case id.ID < 0:
		err = L.truncate(-1)
		status = Present
		return
	case id.ID > L.last.ID:
		status = Future
		return
	case id.ID < L.first:
		status = TooOld
		return
	}

	entry, found, err := L.store.get(id.ID)
	if err != nil {
		return
	}
	if !found || entry.ID.Term != id.Term {
		status = Invalid
		return
	}

	err = L.truncate(id.ID)
	status = Present

	return
}

// RemoveBefore - Drops every entry with an id lower than id, keeping at least the last entry
func (L *Log) RemoveBefore(id int64) (err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		err = ErrClosed
		return
	}

	id = min(id, L.last.ID)
	if id <= L.first {
		return
	}

	err = L.store.removeBefore(id)
	if err != nil {
		return
	}
	L.first = id

	return
}

// SetLeader - Sets whether this member leads and the term new entries get
func (L *Log) SetLeader(leader bool, term int64) {
	L.mu.Lock()
	defer L.mu.Unlock()

	L.leader = leader
	L.term = term
}

// Close - Closes the underlying storage
func (L *Log) Close() (err error) {
	L.mu.Lock()
	defer L.mu.Unlock()

	if L.closed {
		return
	}
	L.closed = true

	return L.store.close()
}

// append - Stores entry, which must follow the last entry
func (L *Log) append(entry Entry) (err error) {
	err = L.store.append(entry)
	if err != nil {
		err = fmt.Errorf("error while appending entry %s: %w", entry.ID, err)
		return
	}

	if L.last.ID < 0 {
		L.first = entry.ID.ID
	}
	L.last = entry.ID

	return
}

// truncate - Removes every entry after id and moves last back to id
func (L *Log) truncate(id int64) (err error) {
	err = L.store.removeAfter(id)
	if err != nil {
		return
	}

	if id < L.first {
		L.first = 0
		L.last = NoLog
		return
	}

	entry, found, err := L.store.get(id)
	if err != nil {
		return
	}
	if !found {
		err = fmt.Errorf("%w: entry %d missing", ErrLogCorrupted, id)
		return
	}
	L.last = entry.ID

	return
}
