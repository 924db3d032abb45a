// Package cluster holds member identity and the contracts between a member and the rest of the cluster: the
// network used to exchange requests and responses and the sessions node requests execute in.
package cluster

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"io"
)

var (
	// ErrUnknownMember is returned when a message is addressed to a member not on the network.
	ErrUnknownMember = errors.New("cluster: unknown member")

	// ErrUnexpectedMessage is returned when a message does not implement the category it was sent as.
	ErrUnexpectedMessage = errors.New("cluster: unexpected message")
)

// Member - Identity of a cluster member
type Member struct {
	ID   uuid.UUID
	Name string
}

// NewMember - Returns a Member with a new random id
func NewMember(name string) Member {
	return Member{ID: uuid.New(), Name: name}
}

// String - Returns the name followed by the short form of the id
func (M Member) String() string {
	return fmt.Sprintf("%s(%s)", M.Name, M.ID.String()[:8])
}

// Serialize - Writes id and name
func (M Member) Serialize(w io.Writer) (err error) {
	if err = wire.WriteUUID(w, M.ID); err != nil {
		return
	}

	return wire.WriteString(w, M.Name)
}

// DeserializeMember - Reads a Member written by Serialize
func DeserializeMember(r io.Reader) (member Member, err error) {
	if member.ID, err = wire.ReadUUID(r); err != nil {
		return
	}
	member.Name, err = wire.ReadString(r)

	return
}

// Session - An open database session node requests execute in
type Session interface {
	Database() string
	Close() error
}

// SessionFactory - Opens sessions for executing replicated requests
type SessionFactory interface {
	OpenNoAuthorization(database string) (session Session, err error)
}

// NodeRequest - A request the leader logs and sends to every member for execution
type NodeRequest interface {
	wire.Message
	Execute(member Member, id oplog.LogID, session Session) NodeResponse
}

// NodeResponse - The result of executing a NodeRequest on one member
type NodeResponse interface {
	wire.Message
}

// Network - Outgoing messages of one member
type Network interface {
	// SendRequest sends a logged request to members
	SendRequest(members []Member, database string, id oplog.LogID, request NodeRequest) error
	// SendResponse returns the response to a logged request to the member that sent it
	SendResponse(member Member, database string, id oplog.LogID, response NodeResponse) error
	// Submit hands a request to the leader for coordination
	Submit(leader Member, database string, requestID uuid.UUID, request wire.Message) error
	// Reply returns the outcome of a submitted request to the submitter
	Reply(member Member, database string, requestID uuid.UUID, response wire.Message) error
	// RequestResync asks the leader for every logged entry after from
	RequestResync(leader Member, database string, from oplog.LogID) error
}

// Receiver - Incoming messages of one member
type Receiver interface {
	ReceiveRequest(from Member, database string, id oplog.LogID, request NodeRequest)
	ReceiveResponse(from Member, database string, id oplog.LogID, response NodeResponse)
	ReceiveSubmit(from Member, database string, requestID uuid.UUID, request wire.Message)
	ReceiveReply(from Member, database string, requestID uuid.UUID, response wire.Message)
	ReceiveResync(from Member, database string, after oplog.LogID)
}
