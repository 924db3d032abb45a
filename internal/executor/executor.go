// Package executor runs the member side of replication: logged requests received from the leader are appended to
// the local log and executed strictly in log order.
package executor

import (
	"context"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/metrics"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/worker"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultDrainTimeout - Wait bound for queued requests in Close
	DefaultDrainTimeout = time.Hour
	// DefaultResyncInterval - Time before a resync from the same log position is requested again
	DefaultResyncInterval = time.Second
)

// Config - Executor configuration
//   - Self is the member executing
//   - Leader is the member resyncs are requested from
//   - Log is the member's own log, never the coordinator's
//   - Sessions opens the sessions requests execute in
//   - ResyncInterval is the time after which an unanswered resync is requested again, DefaultResyncInterval if 0
//   - Logger, Metrics and DrainTimeout are optional
type Config struct {
	Database       string
	Self           cluster.Member
	Leader         cluster.Member
	Log            oplog.OperationLog
	Network        cluster.Network
	Sessions       cluster.SessionFactory
	DrainTimeout   time.Duration
	ResyncInterval time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// DistributedExecutor - Applies logged requests of one database on one member
type DistributedExecutor struct {
	database     string
	self         cluster.Member
	log          oplog.OperationLog
	network      cluster.Network
	sessions     cluster.SessionFactory
	drainTimeout   time.Duration
	resyncInterval time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	worker         *worker.Executor

	mu     sync.Mutex
	leader cluster.Member
	// resyncFrom is the log id of the outstanding resync request sent at resyncAt, nil when there is none
	resyncFrom *oplog.LogID
	resyncAt   time.Time
}

// New - Returns a pointer to a started DistributedExecutor
func New(cfg Config) *DistributedExecutor {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = DefaultResyncInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	logger := cfg.Logger.With("database", cfg.Database, "role", "executor", "member", cfg.Self.String())

	return &DistributedExecutor{
		database:       cfg.Database,
		self:           cfg.Self,
		leader:         cfg.Leader,
		log:            cfg.Log,
		network:        cfg.Network,
		sessions:       cfg.Sessions,
		drainTimeout:   cfg.DrainTimeout,
		resyncInterval: cfg.ResyncInterval,
		logger:         logger,
		metrics:        cfg.Metrics,
		worker:         worker.NewExecutor("executor-"+cfg.Database, logger),
	}
}

// SetLeader - Sets the member resyncs are requested from
func (D *DistributedExecutor) SetLeader(leader cluster.Member) {
	D.mu.Lock()
	defer D.mu.Unlock()

	D.leader = leader
	D.resyncFrom = nil
}

// Log - Returns the member's log
func (D *DistributedExecutor) Log() oplog.OperationLog {
	return D.log
}

// Receive - Queues request, logged by the leader as id, for the executor worker
func (D *DistributedExecutor) Receive(from cluster.Member, id oplog.LogID, request cluster.NodeRequest) error {
	return D.worker.Execute(func() {
		D.apply(from, id, request)
	})
}

// apply - Appends request to the log and executes it if it was appended. Missing or conflicting history is
// requested from the leader once per log position and resync interval.
func (D *DistributedExecutor) apply(from cluster.Member, id oplog.LogID, request cluster.NodeRequest) {
	status, err := D.log.LogReceived(id, request)
	if err != nil {
		D.logger.Error("error while logging received request", "log_id", id.String(), "error", err)
		return
	}
	D.metrics.Received.WithLabelValues(D.database, status.String()).Inc()

	switch status {
	case oplog.Gap, oplog.TermMismatch:
		D.requestResync(id, status)
		return
	case oplog.Duplicate:
		D.logger.Debug("duplicate request skipped", "log_id", id.String())
		return
	}

	D.mu.Lock()
	D.resyncFrom = nil
	D.mu.Unlock()

	session, err := D.sessions.OpenNoAuthorization(D.database)
	if err != nil {
		D.logger.Error("error while opening session", "log_id", id.String(), "error", err)
		return
	}
	response := request.Execute(D.self, id, session)
	if err = session.Close(); err != nil {
		D.logger.Warn("error while closing session", "log_id", id.String(), "error", err)
	}

	if err = D.network.SendResponse(from, D.database, id, response); err != nil {
		D.logger.Warn("response not sent", "log_id", id.String(), "to", from.String(), "error", err)
	}
}

// requestResync - Asks the leader for the entries after the last one in the log, unless that was already asked
// within the resync interval. A replay lost on its way is requested again on the next gap after the interval.
func (D *DistributedExecutor) requestResync(received oplog.LogID, status oplog.ReceiveStatus) {
	last := D.log.LastPersistentLog()
	now := time.Now()

	D.mu.Lock()
	if D.resyncFrom != nil && *D.resyncFrom == last && now.Sub(D.resyncAt) < D.resyncInterval {
		D.mu.Unlock()
		return
	}
	D.resyncFrom = &last
	D.resyncAt = now
	leader := D.leader
	D.mu.Unlock()

	D.logger.Info("requesting resync", "log_id", received.String(), "status", status.String(), "from", last.String())
	D.metrics.Resyncs.WithLabelValues(D.database, "requested").Inc()
	if err := D.network.RequestResync(leader, D.database, last); err != nil {
		D.logger.Warn("resync request not sent", "leader", leader.String(), "error", err)
		D.mu.Lock()
		D.resyncFrom = nil
		D.mu.Unlock()
	}
}

// Close - Waits for queued requests, at most the drain timeout
func (D *DistributedExecutor) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, D.drainTimeout)
	defer cancel()

	return D.worker.Shutdown(ctx)
}
