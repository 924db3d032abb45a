package replication

import (
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/coordinator"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"io"
)

// leaderAware - Submit requests that act on the leader node once their operation succeeded
type leaderAware interface {
	setLeader(node *Node)
}

// SubmitPut - Asks the leader to replicate a put
type SubmitPut struct {
	Position exthashdb.Position
}

// Type - Returns the message type tag
func (S *SubmitPut) Type() int32 { return TypeSubmitPut }

// Serialize - Writes the position to put
func (S *SubmitPut) Serialize(w io.Writer) error { return writePosition(w, S.Position) }

// Deserialize - Reads the position to put written by Serialize
func (S *SubmitPut) Deserialize(r io.Reader) (err error) {
	S.Position, err = readPosition(r)
	return
}

// Begin - Logs a PutEntryRequest and replies to requester once a quorum answered
func (S *SubmitPut) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &PutEntryRequest{Position: S.Position}, nil)
}

// SubmitDelete - Asks the leader to replicate a delete
type SubmitDelete struct {
	Key uint64
}

// Type - Returns the message type tag
func (S *SubmitDelete) Type() int32 { return TypeSubmitDelete }

// Serialize - Writes the key to delete
func (S *SubmitDelete) Serialize(w io.Writer) error { return wire.WriteUint64(w, S.Key) }

// Deserialize - Reads the key to delete written by Serialize
func (S *SubmitDelete) Deserialize(r io.Reader) (err error) {
	S.Key, err = wire.ReadUint64(r)
	return
}

// Begin - Logs a DeleteEntryRequest and replies to requester once a quorum answered
func (S *SubmitDelete) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &DeleteEntryRequest{Key: S.Key}, nil)
}

// SubmitCreateDatabase - Asks the leader to create a database on every member. It is submitted to the system
// database.
type SubmitCreateDatabase struct {
	Name   string
	leader *Node
}

// Type - Returns the message type tag
func (S *SubmitCreateDatabase) Type() int32 { return TypeSubmitCreateDatabase }

// Serialize - Writes the database name
func (S *SubmitCreateDatabase) Serialize(w io.Writer) error { return wire.WriteString(w, S.Name) }

// Deserialize - Reads the database name written by Serialize
func (S *SubmitCreateDatabase) Deserialize(r io.Reader) (err error) {
	S.Name, err = wire.ReadString(r)
	return
}

func (S *SubmitCreateDatabase) setLeader(node *Node) { S.leader = node }

// Begin - Logs the creation, the leader starts coordinating the database once a quorum created it
func (S *SubmitCreateDatabase) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &CreateDatabaseRequest{Name: S.Name}, func() {
		if S.leader != nil {
			S.leader.openCoordinator(S.Name)
		}
	})
}

// SubmitDropDatabase - Asks the leader to drop a database on every member. It is submitted to the system database.
type SubmitDropDatabase struct {
	Name   string
	leader *Node
}

// Type - Returns the message type tag
func (S *SubmitDropDatabase) Type() int32 { return TypeSubmitDropDatabase }

// Serialize - Writes the database name
func (S *SubmitDropDatabase) Serialize(w io.Writer) error { return wire.WriteString(w, S.Name) }

// Deserialize - Reads the database name written by Serialize
func (S *SubmitDropDatabase) Deserialize(r io.Reader) (err error) {
	S.Name, err = wire.ReadString(r)
	return
}

func (S *SubmitDropDatabase) setLeader(node *Node) { S.leader = node }

// Begin - Logs the drop, the leader stops coordinating the database once a quorum dropped it
func (S *SubmitDropDatabase) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &DropDatabaseRequest{Name: S.Name}, func() {
		if S.leader != nil {
			S.leader.closeCoordinator(S.Name)
		}
	})
}

// SubmitSyncDatabase - Asks the leader to have every member flush the table of the database. It is submitted to
// the database itself so that it is ordered after every earlier put and delete.
type SubmitSyncDatabase struct{}

// Type - Returns the message type tag
func (S *SubmitSyncDatabase) Type() int32 { return TypeSubmitSyncDatabase }

// Serialize - Writes nothing, the message has no fields
func (S *SubmitSyncDatabase) Serialize(_ io.Writer) error { return nil }

// Deserialize - Reads nothing, the message has no fields
func (S *SubmitSyncDatabase) Deserialize(_ io.Reader) error { return nil }

// Begin - Logs a SyncDatabaseRequest after every operation already logged for the database
func (S *SubmitSyncDatabase) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &SyncDatabaseRequest{}, nil)
}

// SubmitAddMember - Raft operation adding a member. Once a quorum applied it the leader sends it every later
// operation and replays the system database to it.
type SubmitAddMember struct {
	Member cluster.Member
	leader *Node
}

// Type - Returns the message type tag
func (S *SubmitAddMember) Type() int32 { return TypeSubmitAddMember }

// Serialize - Writes the member to add
func (S *SubmitAddMember) Serialize(w io.Writer) error { return S.Member.Serialize(w) }

// Deserialize - Reads the member to add written by Serialize
func (S *SubmitAddMember) Deserialize(r io.Reader) (err error) {
	S.Member, err = cluster.DeserializeMember(r)
	return
}

func (S *SubmitAddMember) setLeader(node *Node) { S.leader = node }

// Begin - Logs the addition, on success the leader includes the member and replays the system log to it
func (S *SubmitAddMember) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &AddMemberRequest{Member: S.Member}, func() {
		if S.leader != nil {
			S.leader.MemberAdded(S.Member)
			_ = c.Resync(S.Member, oplog.NoLog)
		}
	})
}

// SubmitRemoveMember - Raft operation removing a member
type SubmitRemoveMember struct {
	Member cluster.Member
	leader *Node
}

// Type - Returns the message type tag
func (S *SubmitRemoveMember) Type() int32 { return TypeSubmitRemoveMember }

// Serialize - Writes the member to remove
func (S *SubmitRemoveMember) Serialize(w io.Writer) error { return S.Member.Serialize(w) }

// Deserialize - Reads the member to remove written by Serialize
func (S *SubmitRemoveMember) Deserialize(r io.Reader) (err error) {
	S.Member, err = cluster.DeserializeMember(r)
	return
}

func (S *SubmitRemoveMember) setLeader(node *Node) { S.leader = node }

// Begin - Logs the removal, on success the leader stops sending operations to the member
func (S *SubmitRemoveMember) Begin(c *coordinator.Coordinator, requester cluster.Member, requestID uuid.UUID) {
	beginOperation(c, requester, requestID, S, &RemoveMemberRequest{Member: S.Member}, func() {
		if S.leader != nil {
			S.leader.MemberRemoved(S.Member)
		}
	})
}

// SubmitResponse - Outcome of a submitted request returned to its submitter
//   - Success is true when a quorum of members accepted the operation
//   - Outcome and Position are taken from the first accepting member in membership order
//   - Message describes a failure
type SubmitResponse struct {
	Success  bool
	Outcome  Outcome
	Position exthashdb.Position
	Message  string
}

// Type - Returns the message type tag
func (S *SubmitResponse) Type() int32 { return TypeSubmitResponse }

// Serialize - Writes success, outcome, position and message
func (S *SubmitResponse) Serialize(w io.Writer) (err error) {
	if err = wire.WriteBool(w, S.Success); err != nil {
		return
	}
	if err = writeOutcome(w, S.Outcome); err != nil {
		return
	}
	if err = writePosition(w, S.Position); err != nil {
		return
	}

	return wire.WriteString(w, S.Message)
}

// Deserialize - Reads success, outcome, position and message written by Serialize
func (S *SubmitResponse) Deserialize(r io.Reader) (err error) {
	if S.Success, err = wire.ReadBool(r); err != nil {
		return
	}
	if S.Outcome, err = readOutcome(r); err != nil {
		return
	}
	if S.Position, err = readPosition(r); err != nil {
		return
	}
	S.Message, err = wire.ReadString(r)

	return
}

// acceptResponse - Quorum classification of replication responses
func acceptResponse(response cluster.NodeResponse) bool {
	a, ok := response.(accepted)
	return ok && a.Accepted()
}

// beginOperation - Sends request for submit under a QuorumHandler replying to the requester when it finishes.
// succeeded runs before the reply when the quorum accepted.
func beginOperation(
	c *coordinator.Coordinator,
	requester cluster.Member,
	requestID uuid.UUID,
	submit coordinator.SubmitRequest,
	request cluster.NodeRequest,
	succeeded func(),
) {
	submission := &coordinator.Submission{Requester: requester, RequestID: requestID, Request: submit}
	handler := &coordinator.QuorumHandler{
		Accept: acceptResponse,
		OnSuccess: func(c *coordinator.Coordinator, ctx *coordinator.RequestContext) {
			if succeeded != nil {
				succeeded()
			}
			_ = c.Reply(requester, requestID, summarize(ctx, true))
		},
		OnFailure: func(c *coordinator.Coordinator, ctx *coordinator.RequestContext) {
			_ = c.Reply(requester, requestID, summarize(ctx, false))
		},
	}

	ctx, err := c.SendOperation(submission, request, handler)
	if err != nil && ctx == nil {
		_ = c.Reply(requester, requestID, &SubmitResponse{Outcome: OutcomeError, Message: err.Error()})
	}
}

// summarize - Builds the reply from the responses of ctx, looking at members in the order they were involved
func summarize(ctx *coordinator.RequestContext, success bool) *SubmitResponse {
	reply := &SubmitResponse{Success: success, Outcome: OutcomeError}
	responses := ctx.Responses()

	for _, member := range ctx.Involved() {
		response, ok := responses[member.ID]
		if !ok || acceptResponse(response) != success {
			continue
		}
		switch r := response.(type) {
		case *EntryResponse:
			reply.Outcome, reply.Position, reply.Message = r.Outcome, r.Position, r.Message
		case *AckResponse:
			reply.Message = r.Message
			if r.Success {
				reply.Outcome = OutcomeOK
			}
		}
		return reply
	}

	if !success {
		reply.Message = "quorum not reached"
	}

	return reply
}
