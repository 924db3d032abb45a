package coordinator

import (
	"github.com/gostonefire/exthashdb/internal/cluster"
)

// ResponseHandler - Decides when a RequestContext is finished. Both methods run on the coordinator worker and
// return true when the context is finished and can be dropped.
type ResponseHandler interface {
	Receive(coordinator *Coordinator, ctx *RequestContext, member cluster.Member, response cluster.NodeResponse) (finished bool)
	Timeout(coordinator *Coordinator, ctx *RequestContext) (finished bool)
}

// QuorumHandler - A ResponseHandler finishing on a majority. Responses are classified by Accept only, the
// handler itself never looks into them.
//   - Accept returns true for a response counting towards the quorum, nil accepts every response
//   - OnSuccess is called once when a quorum accepted
//   - OnFailure is called once when a quorum can no longer be reached or at the first timeout check
type QuorumHandler struct {
	Accept    func(response cluster.NodeResponse) bool
	OnSuccess func(coordinator *Coordinator, ctx *RequestContext)
	OnFailure func(coordinator *Coordinator, ctx *RequestContext)
}

// Receive - Counts accepted and rejected responses against the quorum
func (Q *QuorumHandler) Receive(coordinator *Coordinator, ctx *RequestContext, _ cluster.Member, _ cluster.NodeResponse) bool {
	accepted, rejected := 0, 0
	for _, response := range ctx.Responses() {
		if Q.Accept == nil || Q.Accept(response) {
			accepted++
		} else {
			rejected++
		}
	}

	switch {
	case accepted >= ctx.Quorum():
		Q.succeed(coordinator, ctx)
		return true
	case rejected > len(ctx.Involved())-ctx.Quorum():
		Q.fail(coordinator, ctx)
		return true
	}

	return false
}

// Timeout - Fails the request, a quorum was not reached in time
func (Q *QuorumHandler) Timeout(coordinator *Coordinator, ctx *RequestContext) bool {
	Q.fail(coordinator, ctx)
	return true
}

func (Q *QuorumHandler) succeed(coordinator *Coordinator, ctx *RequestContext) {
	ctx.SetStatus(QuorumOK)
	if Q.OnSuccess != nil {
		Q.OnSuccess(coordinator, ctx)
	}
}

func (Q *QuorumHandler) fail(coordinator *Coordinator, ctx *RequestContext) {
	ctx.SetStatus(QuorumKO)
	if Q.OnFailure != nil {
		Q.OnFailure(coordinator, ctx)
	}
}
