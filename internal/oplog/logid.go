package oplog

import (
	"fmt"
	"github.com/gostonefire/exthashdb/internal/wire"
	"io"
)

// LogIDLength - Serialized length of a LogID
const LogIDLength = 24

// NoLog - The position before the first entry of any log
var NoLog = LogID{ID: -1, Term: -1, PreviousIDTerm: -1}

// LogID - Identity of a log entry
//   - ID is the sequence number, starting at 0 and increasing by one per entry
//   - Term is the leader term the entry was created in
//   - PreviousIDTerm is the term of the entry with ID - 1, -1 for the first entry
type LogID struct {
	ID             int64
	Term           int64
	PreviousIDTerm int64
}

// Less - Returns true if L orders before other, ordering is on ID only
func (L LogID) Less(other LogID) bool {
	return L.ID < other.ID
}

// String - Returns a compact text form
func (L LogID) String() string {
	return fmt.Sprintf("%d/%d(%d)", L.ID, L.Term, L.PreviousIDTerm)
}

// Serialize - Writes the three fields big endian
func (L LogID) Serialize(w io.Writer) (err error) {
	if err = wire.WriteInt64(w, L.ID); err != nil {
		return
	}
	if err = wire.WriteInt64(w, L.Term); err != nil {
		return
	}

	return wire.WriteInt64(w, L.PreviousIDTerm)
}

// DeserializeLogID - Reads a LogID written by Serialize
func DeserializeLogID(r io.Reader) (id LogID, err error) {
	if id.ID, err = wire.ReadInt64(r); err != nil {
		return
	}
	if id.Term, err = wire.ReadInt64(r); err != nil {
		return
	}
	id.PreviousIDTerm, err = wire.ReadInt64(r)

	return
}
