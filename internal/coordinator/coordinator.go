// Package coordinator runs the leader side of replication: operations are logged, sent to every member and
// tracked in a RequestContext until a ResponseHandler declares them finished.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/metrics"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"github.com/gostonefire/exthashdb/internal/worker"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Defaults for Config
const (
	DefaultTimeoutInterval = time.Second
	DefaultDrainTimeout    = time.Hour
)

// ErrNoMembers is returned when an operation is sent while no member is registered.
var ErrNoMembers = errors.New("coordinator: no members")

// SubmitRequest - A request submitted to the leader. Begin runs on the coordinator worker and typically turns the
// request into one or more operations with SendOperation.
type SubmitRequest interface {
	wire.Message
	Begin(coordinator *Coordinator, requester cluster.Member, requestID uuid.UUID)
}

// Config - Coordinator configuration
//   - Database is the database coordinated
//   - Log is the leader log, it is made leader with Term
//   - Network sends requests and replies
//   - Members is the initial membership, the leader included if it executes operations too
//   - TimeoutInterval is the period of the timeout check of each operation, DefaultTimeoutInterval if 0
//   - DrainTimeout bounds the wait for queued work in Close, DefaultDrainTimeout if 0
//   - Logger and Metrics are optional
type Config struct {
	Database        string
	Log             oplog.OperationLog
	Term            int64
	Network         cluster.Network
	Members         []cluster.Member
	TimeoutInterval time.Duration
	DrainTimeout    time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Coordinator - Leader side coordination of one database
type Coordinator struct {
	database        string
	log             oplog.OperationLog
	network         cluster.Network
	timeoutInterval time.Duration
	drainTimeout    time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
	worker          *worker.Executor
	scheduler       *worker.Scheduler

	// sendMu keeps broadcast order equal to log order
	sendMu   sync.Mutex
	mu       sync.Mutex
	members  []cluster.Member
	contexts map[int64]*RequestContext
}

// New - Returns a pointer to a started Coordinator
func New(cfg Config) *Coordinator {
	if cfg.TimeoutInterval <= 0 {
		cfg.TimeoutInterval = DefaultTimeoutInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	cfg.Log.SetLeader(true, cfg.Term)
	logger := cfg.Logger.With("database", cfg.Database, "role", "coordinator")

	return &Coordinator{
		database:        cfg.Database,
		log:             cfg.Log,
		network:         cfg.Network,
		timeoutInterval: cfg.TimeoutInterval,
		drainTimeout:    cfg.DrainTimeout,
		logger:          logger,
		metrics:         cfg.Metrics,
		worker:          worker.NewExecutor("coordinator-"+cfg.Database, logger),
		scheduler:       worker.NewScheduler(),
		members:         slices.Clone(cfg.Members),
		contexts:        make(map[int64]*RequestContext),
	}
}

// Database - Returns the coordinated database
func (C *Coordinator) Database() string {
	return C.database
}

// Log - Returns the leader log
func (C *Coordinator) Log() oplog.OperationLog {
	return C.log
}

// Members - Returns a snapshot of the membership
func (C *Coordinator) Members() []cluster.Member {
	C.mu.Lock()
	defer C.mu.Unlock()

	return slices.Clone(C.members)
}

// AddMember - Adds member, later operations are sent to it too
func (C *Coordinator) AddMember(member cluster.Member) {
	C.mu.Lock()
	defer C.mu.Unlock()

	if !slices.ContainsFunc(C.members, func(m cluster.Member) bool { return m.ID == member.ID }) {
		C.members = append(C.members, member)
	}
}

// RemoveMember - Removes member, operations already sent still expect its response
func (C *Coordinator) RemoveMember(member cluster.Member) {
	C.mu.Lock()
	defer C.mu.Unlock()

	C.members = slices.DeleteFunc(C.members, func(m cluster.Member) bool { return m.ID == member.ID })
}

// Pending - Returns number of operations waiting for their handler to finish them
func (C *Coordinator) Pending() int {
	C.mu.Lock()
	defer C.mu.Unlock()

	return len(C.contexts)
}

// SendOperation - Logs request, sends it to every current member and tracks the responses with handler. The
// handler's Timeout is called every timeout interval until the operation is finished.
//   - submission is the originating submission, nil if there is none
//   - request is the node request to log and send
//   - handler decides when the operation is finished
//
// It returns:
//   - ctx is the context tracking the operation, nil if the operation is not tracked
//   - err is ErrNoMembers, a log error, worker.ErrShutdown when the coordinator is closed, or a network error. On
//     a network error the operation stays tracked and finishes through its handler.
func (C *Coordinator) SendOperation(submission *Submission, request cluster.NodeRequest, handler ResponseHandler) (ctx *RequestContext, err error) {
	members := C.Members()
	if len(members) == 0 {
		err = ErrNoMembers
		return
	}

	C.sendMu.Lock()
	defer C.sendMu.Unlock()

	id, err := C.log.Log(request)
	if err != nil {
		err = fmt.Errorf("error while logging operation: %w", err)
		return
	}

	ctx = newRequestContext(id, submission, request, members, handler)
	C.mu.Lock()
	C.contexts[id.ID] = ctx
	C.mu.Unlock()
	C.metrics.OperationsSent.WithLabelValues(C.database).Inc()
	C.metrics.InFlight.WithLabelValues(C.database).Inc()

	task, err := C.scheduler.SchedulePeriodic(C.timeoutInterval, func() { C.checkTimeout(ctx) })
	if err != nil {
		C.mu.Lock()
		delete(C.contexts, id.ID)
		C.mu.Unlock()
		C.metrics.InFlight.WithLabelValues(C.database).Dec()
		C.logger.Error("operation not sent, no timeout check", "log_id", id.String(), "error", err)
		ctx = nil
		err = fmt.Errorf("error while scheduling timeout of operation %s: %w", id, err)
		return
	}
	ctx.setTimeoutTask(task)

	C.logger.Debug("sending operation", "log_id", id.String(), "members", len(members))
	err = C.network.SendRequest(members, C.database, id, request)
	if err != nil {
		C.logger.Warn("operation not sent to every member", "log_id", id.String(), "error", err)
		err = fmt.Errorf("error while sending operation %s: %w", id, err)
	}

	return
}

// Receive - Hands the response of member to the handler of the operation on the coordinator worker. Responses to
// finished or unknown operations are dropped.
func (C *Coordinator) Receive(member cluster.Member, id oplog.LogID, response cluster.NodeResponse) error {
	return C.worker.Execute(func() {
		C.mu.Lock()
		ctx, ok := C.contexts[id.ID]
		C.mu.Unlock()

		if !ok || ctx.id != id {
			C.logger.Debug("response to unknown operation dropped", "log_id", id.String(), "member", member.String())
			return
		}
		if !ctx.addResponse(member, response) {
			return
		}
		if ctx.handler.Receive(C, ctx, member, response) {
			C.finish(ctx)
		}
	})
}

// checkTimeout - Queues a timeout check of ctx on the coordinator worker
func (C *Coordinator) checkTimeout(ctx *RequestContext) {
	_ = C.worker.Execute(func() {
		C.mu.Lock()
		current, ok := C.contexts[ctx.id.ID]
		C.mu.Unlock()

		if !ok || current != ctx {
			return
		}

		C.metrics.Timeouts.WithLabelValues(C.database).Inc()
		C.logger.Debug("operation timeout check", "log_id", ctx.id.String(), "responses", len(ctx.Responses()))
		if ctx.handler.Timeout(C, ctx) {
			C.finish(ctx)
		}
	})
}

// finish - Cancels the timeout check of ctx and stops tracking it
func (C *Coordinator) finish(ctx *RequestContext) {
	ctx.cancelTimeout()

	C.mu.Lock()
	delete(C.contexts, ctx.id.ID)
	C.mu.Unlock()

	status := ctx.Status()
	C.metrics.InFlight.WithLabelValues(C.database).Dec()
	C.metrics.QuorumOutcomes.WithLabelValues(C.database, status.String()).Inc()
	C.metrics.QuorumLatency.WithLabelValues(C.database).Observe(time.Since(ctx.started).Seconds())
	C.logger.Debug("operation finished", "log_id", ctx.id.String(), "status", status.String())
}

// Submit - Begins request submitted by requester on the coordinator worker
func (C *Coordinator) Submit(requester cluster.Member, requestID uuid.UUID, request SubmitRequest) error {
	return C.worker.Execute(func() {
		request.Begin(C, requester, requestID)
	})
}

// Reply - Sends the outcome of a submitted request back to its submitter
func (C *Coordinator) Reply(member cluster.Member, requestID uuid.UUID, response wire.Message) error {
	return C.network.Reply(member, C.database, requestID, response)
}

// Resync - Sends member every logged entry after from on the coordinator worker. If from is not in the log the
// whole log is sent, the member drops what it already has.
func (C *Coordinator) Resync(member cluster.Member, from oplog.LogID) error {
	return C.worker.Execute(func() {
		iterator, found, err := C.log.SearchFrom(from)
		if err == nil && !found {
			C.logger.Info("resync point not in log, sending whole log", "member", member.String(), "from", from.String())
			iterator, found, err = C.log.SearchFrom(oplog.NoLog)
		}
		if err != nil || !found {
			C.logger.Error("resync failed", "member", member.String(), "from", from.String(), "found", found, "error", err)
			return
		}

		C.metrics.Resyncs.WithLabelValues(C.database, "served").Inc()
		sent := 0
		for iterator.HasNext() {
			entry, _ := iterator.Next()
			request, ok := entry.Request.(cluster.NodeRequest)
			if !ok {
				continue
			}
			if err = C.network.SendRequest([]cluster.Member{member}, C.database, entry.ID, request); err != nil {
				C.logger.Warn("resync interrupted", "member", member.String(), "log_id", entry.ID.String(), "error", err)
				return
			}
			sent++
		}
		C.logger.Info("resync sent", "member", member.String(), "from", from.String(), "entries", sent)
	})
}

// Close - Stops timeout checks and waits for queued work, at most the drain timeout. Unfinished operations are
// abandoned.
func (C *Coordinator) Close(ctx context.Context) (err error) {
	C.scheduler.Close()

	ctx, cancel := context.WithTimeout(ctx, C.drainTimeout)
	defer cancel()
	err = C.worker.Shutdown(ctx)

	C.mu.Lock()
	abandoned := len(C.contexts)
	C.contexts = make(map[int64]*RequestContext)
	C.mu.Unlock()
	if abandoned > 0 {
		C.logger.Info("coordinator closed with unfinished operations", "abandoned", abandoned)
	}
	C.metrics.InFlight.WithLabelValues(C.database).Sub(float64(abandoned))

	return
}
