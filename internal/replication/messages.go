// Package replication binds the hash table to the coordination packages: index operations are submitted to the
// leader, logged, and applied by every member to its own copy of the database table.
package replication

import (
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/internal/wire"
	"io"
)

// Message type tags
const (
	// Node requests and responses
	TypePutEntryRequest int32 = iota + 1
	TypeDeleteEntryRequest
	TypeEntryResponse

	// Submit requests and responses
	TypeSubmitPut
	TypeSubmitDelete
	TypeSubmitResponse

	// Structural submit requests and the node requests they log
	TypeSubmitCreateDatabase
	TypeSubmitDropDatabase
	TypeCreateDatabaseRequest
	TypeDropDatabaseRequest

	// Raft operations and the submit requests carrying them
	TypeSubmitAddMember
	TypeSubmitRemoveMember
	TypeAddMemberRequest
	TypeRemoveMemberRequest

	// Acknowledgement of structural and raft operations
	TypeAckResponse

	// Structural sync, logged in the database it flushes
	TypeSubmitSyncDatabase
	TypeSyncDatabaseRequest
)

// NewRegistry - Returns a registry knowing every replication message
func NewRegistry() *wire.Registry {
	registry := wire.NewRegistry()
	factories := map[int32]wire.Factory{
		TypePutEntryRequest:       func() wire.Message { return &PutEntryRequest{} },
		TypeDeleteEntryRequest:    func() wire.Message { return &DeleteEntryRequest{} },
		TypeEntryResponse:         func() wire.Message { return &EntryResponse{} },
		TypeSubmitPut:             func() wire.Message { return &SubmitPut{} },
		TypeSubmitDelete:          func() wire.Message { return &SubmitDelete{} },
		TypeSubmitResponse:        func() wire.Message { return &SubmitResponse{} },
		TypeSubmitCreateDatabase:  func() wire.Message { return &SubmitCreateDatabase{} },
		TypeSubmitDropDatabase:    func() wire.Message { return &SubmitDropDatabase{} },
		TypeCreateDatabaseRequest: func() wire.Message { return &CreateDatabaseRequest{} },
		TypeDropDatabaseRequest:   func() wire.Message { return &DropDatabaseRequest{} },
		TypeSubmitAddMember:       func() wire.Message { return &SubmitAddMember{} },
		TypeSubmitRemoveMember:    func() wire.Message { return &SubmitRemoveMember{} },
		TypeAddMemberRequest:      func() wire.Message { return &AddMemberRequest{} },
		TypeRemoveMemberRequest:   func() wire.Message { return &RemoveMemberRequest{} },
		TypeAckResponse:           func() wire.Message { return &AckResponse{} },
		TypeSubmitSyncDatabase:    func() wire.Message { return &SubmitSyncDatabase{} },
		TypeSyncDatabaseRequest:   func() wire.Message { return &SyncDatabaseRequest{} },
	}
	for messageType, factory := range factories {
		// Tags are unique by construction
		_ = registry.Register(messageType, factory)
	}

	return registry
}

// Outcome - Result of an index operation on one member
type Outcome int8

const (
	// OutcomeOK - The entry was added or removed
	OutcomeOK Outcome = iota
	// OutcomeExists - A put found the key already present
	OutcomeExists
	// OutcomeMissing - A delete did not find the key
	OutcomeMissing
	// OutcomeError - The operation failed
	OutcomeError
)

// String - Returns the name of the outcome
func (O Outcome) String() string {
	switch O {
	case OutcomeOK:
		return "ok"
	case OutcomeExists:
		return "exists"
	case OutcomeMissing:
		return "missing"
	default:
		return "error"
	}
}

// accepted - Implemented by responses that count towards a quorum when Accepted returns true
type accepted interface {
	Accepted() bool
}

func writePosition(w io.Writer, p exthashdb.Position) (err error) {
	if err = wire.WriteUint64(w, p.Key); err != nil {
		return
	}
	if err = wire.WriteInt32(w, p.SegmentID); err != nil {
		return
	}
	if err = wire.WriteInt64(w, p.SegmentPos); err != nil {
		return
	}
	if err = wire.WriteInt32(w, p.RecordSize); err != nil {
		return
	}
	if err = wire.WriteInt32(w, p.Version); err != nil {
		return
	}
	_, err = w.Write([]byte{p.RecordType})

	return
}

func readPosition(r io.Reader) (p exthashdb.Position, err error) {
	if p.Key, err = wire.ReadUint64(r); err != nil {
		return
	}
	if p.SegmentID, err = wire.ReadInt32(r); err != nil {
		return
	}
	if p.SegmentPos, err = wire.ReadInt64(r); err != nil {
		return
	}
	if p.RecordSize, err = wire.ReadInt32(r); err != nil {
		return
	}
	if p.Version, err = wire.ReadInt32(r); err != nil {
		return
	}
	var b [1]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return
	}
	p.RecordType = b[0]

	return
}

func writeOutcome(w io.Writer, o Outcome) error {
	_, err := w.Write([]byte{byte(o)})
	return err
}

func readOutcome(r io.Reader) (o Outcome, err error) {
	var b [1]byte
	_, err = io.ReadFull(r, b[:])
	o = Outcome(b[0])
	return
}
