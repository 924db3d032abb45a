package replication

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/coordinator"
	"github.com/gostonefire/exthashdb/internal/executor"
	"github.com/gostonefire/exthashdb/internal/metrics"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	// ErrRejected is returned when a submitted operation did not reach a quorum.
	ErrRejected = errors.New("replication: operation rejected")

	// ErrNotLeader is returned to submitters of a member that does not lead.
	ErrNotLeader = errors.New("replication: not the leader")

	// ErrNodeClosed is returned by a closed node.
	ErrNodeClosed = errors.New("replication: node closed")
)

// NodeConfig - Configuration of a cluster member
//   - Self is the member, Leader the member coordinating every database, possibly Self
//   - Members is the initial membership, Self and Leader are added if missing
//   - Term is the leader term used when Self leads
//   - Hub is the network the node joins
//   - Logs stores the operation logs, MemoryLogs if nil
//   - Table and TableDir configure the database tables, see DatabasesConfig
//   - TimeoutInterval and DrainTimeout are passed to coordinators and executors
//   - ResyncInterval bounds how often an executor asks the leader for the same missing entries, TimeoutInterval
//     if 0
//   - Logger and Metrics are optional
type NodeConfig struct {
	Self            cluster.Member
	Leader          cluster.Member
	Members         []cluster.Member
	Term            int64
	Hub             *cluster.Hub
	Logs            LogStore
	Table           exthashdb.TableConf
	TableDir        string
	TimeoutInterval time.Duration
	DrainTimeout    time.Duration
	ResyncInterval  time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
}

// Node - A cluster member. It executes every logged operation on its own tables and, when it leads, coordinates
// every database. Its client API submits operations to the leader and waits for the outcome.
type Node struct {
	self            cluster.Member
	leader          cluster.Member
	term            int64
	hub             *cluster.Hub
	network         cluster.Network
	logs            LogStore
	databases       *Databases
	timeoutInterval time.Duration
	drainTimeout    time.Duration
	resyncInterval  time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics

	mu           sync.Mutex
	closed       bool
	members      []cluster.Member
	executors    map[string]*executor.DistributedExecutor
	coordinators map[string]*coordinator.Coordinator
	pending      map[uuid.UUID]chan *SubmitResponse
}

// NewNode - Returns a pointer to a Node joined to the hub. A leader starts coordinating the system database.
func NewNode(cfg NodeConfig) (node *Node, err error) {
	if cfg.Hub == nil {
		err = errors.New("replication: node needs a hub")
		return
	}
	if cfg.Logs == nil {
		cfg.Logs = MemoryLogs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = cfg.TimeoutInterval
	}

	members := slices.Clone(cfg.Members)
	for _, m := range []cluster.Member{cfg.Leader, cfg.Self} {
		if !containsMember(members, m) {
			members = append(members, m)
		}
	}

	node = &Node{
		self:            cfg.Self,
		leader:          cfg.Leader,
		term:            cfg.Term,
		hub:             cfg.Hub,
		logs:            cfg.Logs,
		timeoutInterval: cfg.TimeoutInterval,
		drainTimeout:    cfg.DrainTimeout,
		resyncInterval:  cfg.ResyncInterval,
		logger:          cfg.Logger.With("member", cfg.Self.String()),
		metrics:         cfg.Metrics,
		members:         members,
		executors:       make(map[string]*executor.DistributedExecutor),
		coordinators:    make(map[string]*coordinator.Coordinator),
		pending:         make(map[uuid.UUID]chan *SubmitResponse),
	}
	node.databases = NewDatabases(DatabasesConfig{
		Table:    cfg.Table,
		Dir:      cfg.TableDir,
		Listener: node,
		Logger:   node.logger,
		Metrics:  cfg.Metrics,
	})

	node.network = cfg.Hub.Join(cfg.Self, node)
	if node.IsLeader() {
		if _, err = node.startCoordinator(SystemDatabase); err != nil {
			cfg.Hub.Leave(cfg.Self)
			return
		}
	}
	node.logger.Info("node started", "leader", cfg.Leader.String(), "members", len(members))

	return
}

// Self - Returns the member of the node
func (N *Node) Self() cluster.Member {
	return N.self
}

// IsLeader - Returns true if the node coordinates the databases
func (N *Node) IsLeader() bool {
	return N.self.ID == N.leader.ID
}

// Members - Returns a snapshot of the membership as known by the node
func (N *Node) Members() []cluster.Member {
	N.mu.Lock()
	defer N.mu.Unlock()

	return slices.Clone(N.members)
}

// Databases - Returns the tables of the node
func (N *Node) Databases() *Databases {
	return N.databases
}

// Get - Reads key from the local table of database
func (N *Node) Get(database string, key uint64) (position exthashdb.Position, err error) {
	table, err := N.databases.Table(database)
	if err != nil {
		return
	}

	return table.Get(key)
}

// Put - Submits a put of position to the leader and waits for the outcome. A key already present is not an
// error, the reply then has OutcomeExists and the stored position.
func (N *Node) Put(ctx context.Context, database string, position exthashdb.Position) (*SubmitResponse, error) {
	return N.submit(ctx, database, &SubmitPut{Position: position})
}

// Delete - Submits a delete of key to the leader and waits for the outcome. A missing key is not an error, the
// reply then has OutcomeMissing.
func (N *Node) Delete(ctx context.Context, database string, key uint64) (*SubmitResponse, error) {
	return N.submit(ctx, database, &SubmitDelete{Key: key})
}

// CreateDatabase - Creates database on every member
func (N *Node) CreateDatabase(ctx context.Context, database string) (err error) {
	_, err = N.submit(ctx, SystemDatabase, &SubmitCreateDatabase{Name: database})
	return
}

// DropDatabase - Drops database on every member
func (N *Node) DropDatabase(ctx context.Context, database string) (err error) {
	_, err = N.submit(ctx, SystemDatabase, &SubmitDropDatabase{Name: database})
	return
}

// SyncDatabase - Flushes the table of database on every member after the operations submitted before it
func (N *Node) SyncDatabase(ctx context.Context, database string) (err error) {
	_, err = N.submit(ctx, database, &SubmitSyncDatabase{})
	return
}

// AddMember - Adds member to the cluster, it catches up on every database through resync
func (N *Node) AddMember(ctx context.Context, member cluster.Member) (err error) {
	_, err = N.submit(ctx, SystemDatabase, &SubmitAddMember{Member: member})
	return
}

// RemoveMember - Removes member from the cluster
func (N *Node) RemoveMember(ctx context.Context, member cluster.Member) (err error) {
	_, err = N.submit(ctx, SystemDatabase, &SubmitRemoveMember{Member: member})
	return
}

// submit - Sends request to the leader and waits for its reply or ctx
func (N *Node) submit(ctx context.Context, database string, request wire.Message) (response *SubmitResponse, err error) {
	requestID := uuid.New()
	replies := make(chan *SubmitResponse, 1)

	N.mu.Lock()
	if N.closed {
		N.mu.Unlock()
		err = ErrNodeClosed
		return
	}
	N.pending[requestID] = replies
	N.mu.Unlock()

	defer func() {
		N.mu.Lock()
		delete(N.pending, requestID)
		N.mu.Unlock()
	}()

	if err = N.network.Submit(N.leader, database, requestID, request); err != nil {
		err = fmt.Errorf("error while submitting to %s: %w", N.leader, err)
		return
	}

	select {
	case response = <-replies:
	case <-ctx.Done():
		err = ctx.Err()
		return
	}

	if !response.Success {
		err = fmt.Errorf("%w: %s", ErrRejected, response.Message)
	}

	return
}

// ReceiveRequest - Hands a logged request to the executor of database. Requests for a database not created yet on
// the node are dropped, the node catches up when the creation is applied.
func (N *Node) ReceiveRequest(from cluster.Member, database string, id oplog.LogID, request cluster.NodeRequest) {
	if !N.databases.Exists(database) {
		N.logger.Debug("request for unknown database dropped", "database", database, "log_id", id.String())
		return
	}

	e, err := N.executor(database)
	if err == nil {
		err = e.Receive(from, id, request)
	}
	if err != nil {
		N.logger.Warn("request not queued", "database", database, "log_id", id.String(), "error", err)
	}
}

// ReceiveResponse - Hands a response to the coordinator of database
func (N *Node) ReceiveResponse(from cluster.Member, database string, id oplog.LogID, response cluster.NodeResponse) {
	c := N.coordinator(database)
	if c == nil {
		N.logger.Debug("response without coordinator dropped", "database", database, "log_id", id.String())
		return
	}

	if err := c.Receive(from, id, response); err != nil {
		N.logger.Warn("response not queued", "database", database, "log_id", id.String(), "error", err)
	}
}

// ReceiveSubmit - Begins a submitted request on the coordinator of database
func (N *Node) ReceiveSubmit(from cluster.Member, database string, requestID uuid.UUID, request wire.Message) {
	err := N.beginSubmit(from, database, requestID, request)
	if err == nil {
		return
	}

	N.logger.Debug("submit refused", "database", database, "from", from.String(), "error", err)
	if err = N.network.Reply(from, database, requestID, &SubmitResponse{Outcome: OutcomeError, Message: err.Error()}); err != nil {
		N.logger.Warn("reply not sent", "to", from.String(), "error", err)
	}
}

func (N *Node) beginSubmit(from cluster.Member, database string, requestID uuid.UUID, request wire.Message) error {
	if !N.IsLeader() {
		return ErrNotLeader
	}

	submit, ok := request.(coordinator.SubmitRequest)
	if !ok {
		return fmt.Errorf("%w: type %d is not a submit request", cluster.ErrUnexpectedMessage, request.Type())
	}
	if l, ok := submit.(leaderAware); ok {
		l.setLeader(N)
	}

	c := N.coordinator(database)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownDatabase, database)
	}

	return c.Submit(from, requestID, submit)
}

// ReceiveReply - Wakes up the submitter waiting for requestID
func (N *Node) ReceiveReply(from cluster.Member, database string, requestID uuid.UUID, response wire.Message) {
	N.mu.Lock()
	replies, ok := N.pending[requestID]
	delete(N.pending, requestID)
	N.mu.Unlock()

	reply, isReply := response.(*SubmitResponse)
	if !ok || !isReply {
		N.logger.Debug("unexpected reply dropped", "database", database, "from", from.String(), "request_id", requestID)
		return
	}

	replies <- reply
}

// ReceiveResync - Replays the log of database to a lagging member
func (N *Node) ReceiveResync(from cluster.Member, database string, after oplog.LogID) {
	c := N.coordinator(database)
	if c == nil {
		N.logger.Debug("resync without coordinator dropped", "database", database, "from", from.String())
		return
	}

	if err := c.Resync(from, after); err != nil {
		N.logger.Warn("resync not queued", "database", database, "error", err)
	}
}

// DatabaseCreated - Asks the leader for the log of the new database, the leader included. Operations dropped
// before the table existed are replayed this way.
func (N *Node) DatabaseCreated(database string) {
	e, err := N.executor(database)
	if err != nil {
		N.logger.Error("executor not started", "database", database, "error", err)
		return
	}
	if err = N.network.RequestResync(N.leader, database, e.Log().LastPersistentLog()); err != nil {
		N.logger.Warn("resync request not sent", "database", database, "error", err)
	}
}

// DatabaseDropped - Stops executing operations of database and removes its log
func (N *Node) DatabaseDropped(database string) {
	N.mu.Lock()
	e, ok := N.executors[database]
	delete(N.executors, database)
	N.mu.Unlock()

	if !ok {
		return
	}
	if err := N.closeExecutor(context.Background(), database, e); err != nil {
		N.logger.Warn("error while closing executor", "database", database, "error", err)
	}
	if err := N.logs.Remove(database, RoleExecutor); err != nil {
		N.logger.Warn("error while removing log", "database", database, "error", err)
	}
}

// MemberAdded - Adds member to the membership and to every coordinator
func (N *Node) MemberAdded(member cluster.Member) {
	N.mu.Lock()
	if !containsMember(N.members, member) {
		N.members = append(N.members, member)
	}
	coordinators := N.coordinatorList()
	N.mu.Unlock()

	for _, c := range coordinators {
		c.AddMember(member)
	}
	N.logger.Info("member added", "added", member.String())
}

// MemberRemoved - Removes member from the membership and from every coordinator
func (N *Node) MemberRemoved(member cluster.Member) {
	N.mu.Lock()
	N.members = slices.DeleteFunc(N.members, func(m cluster.Member) bool { return m.ID == member.ID })
	coordinators := N.coordinatorList()
	N.mu.Unlock()

	for _, c := range coordinators {
		c.RemoveMember(member)
	}
	N.logger.Info("member removed", "removed", member.String())
}

// executor - Returns the executor of database, started on first use
func (N *Node) executor(database string) (e *executor.DistributedExecutor, err error) {
	N.mu.Lock()
	defer N.mu.Unlock()

	if N.closed {
		err = ErrNodeClosed
		return
	}
	if e = N.executors[database]; e != nil {
		return
	}

	log, err := N.logs.Open(database, RoleExecutor)
	if err != nil {
		err = fmt.Errorf("error while opening executor log of %s: %w", database, err)
		return
	}
	e = executor.New(executor.Config{
		Database:       database,
		Self:           N.self,
		Leader:         N.leader,
		Log:            log,
		Network:        N.network,
		Sessions:       N.databases,
		DrainTimeout:   N.drainTimeout,
		ResyncInterval: N.resyncInterval,
		Logger:         N.logger,
		Metrics:        N.metrics,
	})
	N.executors[database] = e

	return
}

// coordinator - Returns the coordinator of database, nil if there is none
func (N *Node) coordinator(database string) *coordinator.Coordinator {
	N.mu.Lock()
	defer N.mu.Unlock()

	return N.coordinators[database]
}

// coordinatorList - Returns the coordinators, N.mu must be held
func (N *Node) coordinatorList() (coordinators []*coordinator.Coordinator) {
	for _, c := range N.coordinators {
		coordinators = append(coordinators, c)
	}

	return
}

// startCoordinator - Starts coordinating database unless already done
func (N *Node) startCoordinator(database string) (c *coordinator.Coordinator, err error) {
	N.mu.Lock()
	defer N.mu.Unlock()

	if N.closed {
		err = ErrNodeClosed
		return
	}
	if c = N.coordinators[database]; c != nil {
		return
	}

	log, err := N.logs.Open(database, RoleCoordinator)
	if err != nil {
		err = fmt.Errorf("error while opening coordinator log of %s: %w", database, err)
		return
	}
	c = coordinator.New(coordinator.Config{
		Database:        database,
		Log:             log,
		Term:            N.term,
		Network:         N.network,
		Members:         N.members,
		TimeoutInterval: N.timeoutInterval,
		DrainTimeout:    N.drainTimeout,
		Logger:          N.logger,
		Metrics:         N.metrics,
	})
	N.coordinators[database] = c

	return
}

// openCoordinator - Starts coordinating a database created by a quorum
func (N *Node) openCoordinator(database string) {
	if _, err := N.startCoordinator(database); err != nil {
		N.logger.Error("coordinator not started", "database", database, "error", err)
	}
}

// closeCoordinator - Stops coordinating a dropped database and removes its log
func (N *Node) closeCoordinator(database string) {
	N.mu.Lock()
	c, ok := N.coordinators[database]
	delete(N.coordinators, database)
	N.mu.Unlock()

	if !ok {
		return
	}
	err := c.Close(context.Background())
	err = errors.Join(err, c.Log().Close(), N.logs.Remove(database, RoleCoordinator))
	if err != nil {
		N.logger.Warn("error while closing coordinator", "database", database, "error", err)
	}
}

func (N *Node) closeExecutor(ctx context.Context, database string, e *executor.DistributedExecutor) error {
	err := e.Close(ctx)
	if logErr := e.Log().Close(); logErr != nil {
		err = errors.Join(err, fmt.Errorf("error while closing executor log of %s: %w", database, logErr))
	}

	return err
}

// Close - Leaves the hub, drains every coordinator and executor concurrently and closes logs and tables. Pending
// submitters keep waiting on their context.
func (N *Node) Close(ctx context.Context) error {
	N.mu.Lock()
	if N.closed {
		N.mu.Unlock()
		return nil
	}
	N.closed = true
	coordinators := N.coordinators
	executors := N.executors
	N.coordinators = make(map[string]*coordinator.Coordinator)
	N.executors = make(map[string]*executor.DistributedExecutor)
	N.mu.Unlock()

	N.hub.Leave(N.self)

	var g errgroup.Group
	for _, c := range coordinators {
		g.Go(func() error {
			return errors.Join(c.Close(ctx), c.Log().Close())
		})
	}
	coordinatorsErr := g.Wait()

	var h errgroup.Group
	for database, e := range executors {
		h.Go(func() error {
			return N.closeExecutor(ctx, database, e)
		})
	}
	executorsErr := h.Wait()

	N.databases.Close()
	N.logger.Info("node closed")

	return errors.Join(coordinatorsErr, executorsErr)
}

func containsMember(members []cluster.Member, member cluster.Member) bool {
	return slices.ContainsFunc(members, func(m cluster.Member) bool { return m.ID == member.ID })
}
