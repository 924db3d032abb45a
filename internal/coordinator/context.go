package coordinator

import (
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/worker"
	"sync"
	"time"
)

// Status - State of a RequestContext
type Status int

const (
	// Started - Waiting for responses
	Started Status = iota
	// QuorumOK - A quorum of members accepted the request
	QuorumOK
	// QuorumKO - A quorum can no longer be reached or the request timed out
	QuorumKO
)

// String - Returns the name of the status
func (S Status) String() string {
	switch S {
	case Started:
		return "started"
	case QuorumOK:
		return "quorum_ok"
	case QuorumKO:
		return "quorum_ko"
	default:
		return "unknown"
	}
}

// Submission - Where a coordinated operation came from, the submitter gets the reply
type Submission struct {
	Requester cluster.Member
	RequestID uuid.UUID
	Request   SubmitRequest
}

// RequestContext - Book keeping of one logged operation while members respond
type RequestContext struct {
	id         oplog.LogID
	submission *Submission
	request    cluster.NodeRequest
	involved   []cluster.Member
	handler    ResponseHandler
	quorum     int
	started    time.Time

	mu          sync.Mutex
	responses   map[uuid.UUID]cluster.NodeResponse
	status      Status
	timeoutTask *worker.Task
}

// newRequestContext - Returns a context expecting responses from involved, the quorum is a strict majority
func newRequestContext(
	id oplog.LogID,
	submission *Submission,
	request cluster.NodeRequest,
	involved []cluster.Member,
	handler ResponseHandler,
) *RequestContext {
	return &RequestContext{
		id:         id,
		submission: submission,
		request:    request,
		involved:   involved,
		handler:    handler,
		quorum:     len(involved)/2 + 1,
		started:    time.Now(),
		responses:  make(map[uuid.UUID]cluster.NodeResponse),
	}
}

// ID - Returns the log id of the operation
func (R *RequestContext) ID() oplog.LogID {
	return R.id
}

// Submission - Returns the originating submission, nil if the operation was sent directly
func (R *RequestContext) Submission() *Submission {
	return R.submission
}

// Request - Returns the node request sent to members
func (R *RequestContext) Request() cluster.NodeRequest {
	return R.request
}

// Involved - Returns the members the request was sent to
func (R *RequestContext) Involved() []cluster.Member {
	return R.involved
}

// Quorum - Returns number of members that make a majority of the involved ones
func (R *RequestContext) Quorum() int {
	return R.quorum
}

// Status - Returns the current status
func (R *RequestContext) Status() Status {
	R.mu.Lock()
	defer R.mu.Unlock()

	return R.status
}

// SetStatus - Sets the status, a handler calls it when it decides the outcome
func (R *RequestContext) SetStatus(status Status) {
	R.mu.Lock()
	defer R.mu.Unlock()

	R.status = status
}

// Responses - Returns a copy of the responses received so far keyed by member id
func (R *RequestContext) Responses() map[uuid.UUID]cluster.NodeResponse {
	R.mu.Lock()
	defer R.mu.Unlock()

	responses := make(map[uuid.UUID]cluster.NodeResponse, len(R.responses))
	for id, response := range R.responses {
		responses[id] = response
	}

	return responses
}

// addResponse - Records response of member. Responses from members not involved and repeated responses are
// ignored and reported as not added.
func (R *RequestContext) addResponse(member cluster.Member, response cluster.NodeResponse) (added bool) {
	R.mu.Lock()
	defer R.mu.Unlock()

	if _, ok := R.responses[member.ID]; ok {
		return
	}
	for _, m := range R.involved {
		if m.ID == member.ID {
			R.responses[member.ID] = response
			added = true
			return
		}
	}

	return
}

// setTimeoutTask - Attaches the periodic timeout check
func (R *RequestContext) setTimeoutTask(task *worker.Task) {
	R.mu.Lock()
	defer R.mu.Unlock()

	R.timeoutTask = task
}

// cancelTimeout - Cancels the periodic timeout check if there is one
func (R *RequestContext) cancelTimeout() {
	R.mu.Lock()
	task := R.timeoutTask
	R.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
}
