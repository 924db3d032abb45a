package replication

import (
	"errors"
	"fmt"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/crt"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"io"
)

// PutEntryRequest - Logged insert of a position into the table of the database
type PutEntryRequest struct {
	Position exthashdb.Position
}

// Type - Returns the message type tag
func (P *PutEntryRequest) Type() int32 { return TypePutEntryRequest }

// Serialize - Writes the position to put
func (P *PutEntryRequest) Serialize(w io.Writer) error { return writePosition(w, P.Position) }

// Deserialize - Reads the position to put written by Serialize
func (P *PutEntryRequest) Deserialize(r io.Reader) (err error) {
	P.Position, err = readPosition(r)
	return
}

// Execute - Puts the position, an existing key is left untouched and reported as OutcomeExists
func (P *PutEntryRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := tableSession(session)
	if err != nil {
		return &EntryResponse{Outcome: OutcomeError, Message: err.Error()}
	}

	response := &EntryResponse{Outcome: OutcomeOK, Position: P.Position}
	added, err := s.table.Put(P.Position)
	switch {
	case err != nil:
		response.Outcome, response.Message = OutcomeError, err.Error()
	case !added:
		response.Outcome = OutcomeExists
		response.Position, _ = s.table.Get(P.Position.Key)
	}
	s.record("put", response.Outcome)

	return response
}

// DeleteEntryRequest - Logged removal of a key from the table of the database
type DeleteEntryRequest struct {
	Key uint64
}

// Type - Returns the message type tag
func (D *DeleteEntryRequest) Type() int32 { return TypeDeleteEntryRequest }

// Serialize - Writes the key to delete
func (D *DeleteEntryRequest) Serialize(w io.Writer) error { return wire.WriteUint64(w, D.Key) }

// Deserialize - Reads the key to delete written by Serialize
func (D *DeleteEntryRequest) Deserialize(r io.Reader) (err error) {
	D.Key, err = wire.ReadUint64(r)
	return
}

// Execute - Deletes the key, a missing key is reported as OutcomeMissing
func (D *DeleteEntryRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := tableSession(session)
	if err != nil {
		return &EntryResponse{Outcome: OutcomeError, Message: err.Error()}
	}

	response := &EntryResponse{Outcome: OutcomeOK}
	response.Position, err = s.table.Delete(D.Key)
	if err != nil {
		if errors.Is(err, crt.NoRecordFound{}) {
			response.Outcome = OutcomeMissing
		} else {
			response.Outcome, response.Message = OutcomeError, err.Error()
		}
	}
	s.record("delete", response.Outcome)

	return response
}

// EntryResponse - Result of a PutEntryRequest or DeleteEntryRequest on one member
//   - Outcome is the result
//   - Position is the put position, the existing one, or the deleted one
//   - Message describes an error
type EntryResponse struct {
	Outcome  Outcome
	Position exthashdb.Position
	Message  string
}

// Type - Returns the message type tag
func (E *EntryResponse) Type() int32 { return TypeEntryResponse }

// Serialize - Writes the outcome, position and message
func (E *EntryResponse) Serialize(w io.Writer) (err error) {
	if err = writeOutcome(w, E.Outcome); err != nil {
		return
	}
	if err = writePosition(w, E.Position); err != nil {
		return
	}

	return wire.WriteString(w, E.Message)
}

// Deserialize - Reads the outcome, position and message written by Serialize
func (E *EntryResponse) Deserialize(r io.Reader) (err error) {
	if E.Outcome, err = readOutcome(r); err != nil {
		return
	}
	if E.Position, err = readPosition(r); err != nil {
		return
	}
	E.Message, err = wire.ReadString(r)

	return
}

// Accepted - An existing or missing key is still a successful execution, every member ends in the same state
func (E *EntryResponse) Accepted() bool {
	return E.Outcome != OutcomeError
}

// SyncDatabaseRequest - Logged flush of the table of the database to its files
type SyncDatabaseRequest struct{}

// Type - Returns the message type tag
func (S *SyncDatabaseRequest) Type() int32 { return TypeSyncDatabaseRequest }

// Serialize - Writes nothing, the message has no fields
func (S *SyncDatabaseRequest) Serialize(_ io.Writer) error { return nil }

// Deserialize - Reads nothing, the message has no fields
func (S *SyncDatabaseRequest) Deserialize(_ io.Reader) error { return nil }

// Execute - Syncs the table, a no-op for in memory tables
func (S *SyncDatabaseRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := tableSession(session)
	if err == nil {
		err = s.table.Sync()
	}

	return newAckResponse(err)
}

// CreateDatabaseRequest - Logged creation of a database, executed in the system database
type CreateDatabaseRequest struct {
	Name string
}

// Type - Returns the message type tag
func (C *CreateDatabaseRequest) Type() int32 { return TypeCreateDatabaseRequest }

// Serialize - Writes the database name
func (C *CreateDatabaseRequest) Serialize(w io.Writer) error { return wire.WriteString(w, C.Name) }

// Deserialize - Reads the database name written by Serialize
func (C *CreateDatabaseRequest) Deserialize(r io.Reader) (err error) {
	C.Name, err = wire.ReadString(r)
	return
}

// Execute - Creates the table of the database on the member
func (C *CreateDatabaseRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := systemSession(session)
	if err == nil {
		err = s.databases.Create(C.Name)
	}

	return newAckResponse(err)
}

// DropDatabaseRequest - Logged removal of a database, executed in the system database
type DropDatabaseRequest struct {
	Name string
}

// Type - Returns the message type tag
func (D *DropDatabaseRequest) Type() int32 { return TypeDropDatabaseRequest }

// Serialize - Writes the database name
func (D *DropDatabaseRequest) Serialize(w io.Writer) error { return wire.WriteString(w, D.Name) }

// Deserialize - Reads the database name written by Serialize
func (D *DropDatabaseRequest) Deserialize(r io.Reader) (err error) {
	D.Name, err = wire.ReadString(r)
	return
}

// Execute - Drops the table of the database and its files on the member
func (D *DropDatabaseRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := systemSession(session)
	if err == nil {
		err = s.databases.Drop(D.Name)
	}

	return newAckResponse(err)
}

// AddMemberRequest - Logged addition of a member, executed in the system database
type AddMemberRequest struct {
	Member cluster.Member
}

// Type - Returns the message type tag
func (A *AddMemberRequest) Type() int32 { return TypeAddMemberRequest }

// Serialize - Writes the member to add
func (A *AddMemberRequest) Serialize(w io.Writer) error { return A.Member.Serialize(w) }

// Deserialize - Reads the member to add written by Serialize
func (A *AddMemberRequest) Deserialize(r io.Reader) (err error) {
	A.Member, err = cluster.DeserializeMember(r)
	return
}

// Execute - Adds the member to the membership of the executing node
func (A *AddMemberRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := systemSession(session)
	if err == nil {
		s.memberAdded(A.Member)
	}

	return newAckResponse(err)
}

// RemoveMemberRequest - Logged removal of a member, executed in the system database
type RemoveMemberRequest struct {
	Member cluster.Member
}

// Type - Returns the message type tag
func (R *RemoveMemberRequest) Type() int32 { return TypeRemoveMemberRequest }

// Serialize - Writes the member to remove
func (R *RemoveMemberRequest) Serialize(w io.Writer) error { return R.Member.Serialize(w) }

// Deserialize - Reads the member to remove written by Serialize
func (R *RemoveMemberRequest) Deserialize(r io.Reader) (err error) {
	R.Member, err = cluster.DeserializeMember(r)
	return
}

// Execute - Removes the member from the membership of the executing node
func (R *RemoveMemberRequest) Execute(_ cluster.Member, _ oplog.LogID, session cluster.Session) cluster.NodeResponse {
	s, err := systemSession(session)
	if err == nil {
		s.memberRemoved(R.Member)
	}

	return newAckResponse(err)
}

// AckResponse - Result of a structural or membership operation on one member
type AckResponse struct {
	Success bool
	Message string
}

func newAckResponse(err error) *AckResponse {
	if err != nil {
		return &AckResponse{Message: err.Error()}
	}
	return &AckResponse{Success: true}
}

// Type - Returns the message type tag
func (A *AckResponse) Type() int32 { return TypeAckResponse }

// Serialize - Writes the success flag and message
func (A *AckResponse) Serialize(w io.Writer) (err error) {
	if err = wire.WriteBool(w, A.Success); err != nil {
		return
	}

	return wire.WriteString(w, A.Message)
}

// Deserialize - Reads the success flag and message written by Serialize
func (A *AckResponse) Deserialize(r io.Reader) (err error) {
	if A.Success, err = wire.ReadBool(r); err != nil {
		return
	}
	A.Message, err = wire.ReadString(r)

	return
}

// Accepted - True when the member applied the operation
func (A *AckResponse) Accepted() bool {
	return A.Success
}

// tableSession - Returns session as a Session on a database table
func tableSession(session cluster.Session) (s *Session, err error) {
	s, ok := session.(*Session)
	if !ok || s.table == nil {
		err = fmt.Errorf("%w: no table in session on %s", ErrUnknownDatabase, session.Database())
	}

	return
}

// systemSession - Returns session as a Session on the system database
func systemSession(session cluster.Session) (s *Session, err error) {
	s, ok := session.(*Session)
	if !ok || s.database != SystemDatabase {
		err = fmt.Errorf("%w: %s is not the system database", ErrReservedDatabase, session.Database())
	}

	return
}
