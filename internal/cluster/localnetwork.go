package cluster

import (
	"fmt"
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync"
)

// Filter - Decides whether message from one member reaches another, false drops it
type Filter func(from, to Member, message wire.Message) bool

// Hub - In process message switch between members. Every message is encoded and decoded with the registry on its
// way, so receivers never share an instance with the sender.
type Hub struct {
	registry     *wire.Registry
	logger       *slog.Logger
	mu           sync.RWMutex
	receivers    map[uuid.UUID]Receiver
	members      map[uuid.UUID]Member
	disconnected map[uuid.UUID]bool
	filter       Filter
}

// NewHub - Returns a pointer to a new Hub without members
func NewHub(registry *wire.Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		registry:     registry,
		logger:       logger,
		receivers:    make(map[uuid.UUID]Receiver),
		members:      make(map[uuid.UUID]Member),
		disconnected: make(map[uuid.UUID]bool),
	}
}

// Join - Adds member to the hub and returns its network
func (H *Hub) Join(member Member, receiver Receiver) *LocalNetwork {
	H.mu.Lock()
	defer H.mu.Unlock()

	H.receivers[member.ID] = receiver
	H.members[member.ID] = member

	return &LocalNetwork{hub: H, self: member}
}

// Leave - Removes member from the hub
func (H *Hub) Leave(member Member) {
	H.mu.Lock()
	defer H.mu.Unlock()

	delete(H.receivers, member.ID)
	delete(H.members, member.ID)
	delete(H.disconnected, member.ID)
}

// Disconnect - Drops every message to and from member until Reconnect
func (H *Hub) Disconnect(member Member) {
	H.mu.Lock()
	defer H.mu.Unlock()

	H.disconnected[member.ID] = true
}

// Reconnect - Restores delivery to and from member
func (H *Hub) Reconnect(member Member) {
	H.mu.Lock()
	defer H.mu.Unlock()

	delete(H.disconnected, member.ID)
}

// SetFilter - Sets a filter applied to every message, nil removes it
func (H *Hub) SetFilter(filter Filter) {
	H.mu.Lock()
	defer H.mu.Unlock()

	H.filter = filter
}

// deliver - Copies message and hands it to the receiver of to. Dropped messages are not errors.
func (H *Hub) deliver(from, to Member, message wire.Message, handle func(r Receiver, copied wire.Message) error) (err error) {
	receiver, dropped, err := H.route(from, to)
	if err != nil {
		return
	}

	H.mu.RLock()
	filter := H.filter
	H.mu.RUnlock()
	if dropped || (filter != nil && !filter(from, to, message)) {
		H.logger.Debug("message dropped", "from", from.String(), "to", to.String(), "type", message.Type())
		return
	}

	copied, err := H.registry.Copy(message)
	if err != nil {
		return
	}

	return handle(receiver, copied)
}

// route - Returns the receiver of to and whether the link between from and to is down
func (H *Hub) route(from, to Member) (receiver Receiver, dropped bool, err error) {
	H.mu.RLock()
	defer H.mu.RUnlock()

	receiver, ok := H.receivers[to.ID]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownMember, to)
		return
	}
	dropped = H.disconnected[from.ID] || H.disconnected[to.ID]

	return
}

// LocalNetwork - The Network of one member on a Hub
type LocalNetwork struct {
	hub  *Hub
	self Member
}

// Self - Returns the member the network sends from
func (L *LocalNetwork) Self() Member {
	return L.self
}

// SendRequest - Delivers request to every member concurrently and waits for all deliveries
func (L *LocalNetwork) SendRequest(members []Member, database string, id oplog.LogID, request NodeRequest) error {
	var g errgroup.Group
	for _, member := range members {
		g.Go(func() error {
			return L.hub.deliver(L.self, member, request, func(r Receiver, copied wire.Message) error {
				nr, ok := copied.(NodeRequest)
				if !ok {
					return fmt.Errorf("%w: type %d is not a node request", ErrUnexpectedMessage, copied.Type())
				}
				r.ReceiveRequest(L.self, database, id, nr)
				return nil
			})
		})
	}

	return g.Wait()
}

// SendResponse - Delivers response to member
func (L *LocalNetwork) SendResponse(member Member, database string, id oplog.LogID, response NodeResponse) error {
	return L.hub.deliver(L.self, member, response, func(r Receiver, copied wire.Message) error {
		r.ReceiveResponse(L.self, database, id, copied)
		return nil
	})
}

// Submit - Delivers request to leader
func (L *LocalNetwork) Submit(leader Member, database string, requestID uuid.UUID, request wire.Message) error {
	return L.hub.deliver(L.self, leader, request, func(r Receiver, copied wire.Message) error {
		r.ReceiveSubmit(L.self, database, requestID, copied)
		return nil
	})
}

// Reply - Delivers response to member
func (L *LocalNetwork) Reply(member Member, database string, requestID uuid.UUID, response wire.Message) error {
	return L.hub.deliver(L.self, member, response, func(r Receiver, copied wire.Message) error {
		r.ReceiveReply(L.self, database, requestID, copied)
		return nil
	})
}

// RequestResync - Asks leader for the entries after from
func (L *LocalNetwork) RequestResync(leader Member, database string, from oplog.LogID) error {
	receiver, dropped, err := L.hub.route(L.self, leader)
	if err != nil || dropped {
		return err
	}

	receiver.ReceiveResync(L.self, database, from)

	return nil
}
