package cluster

import (
	"errors"
	"github.com/google/uuid"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
)

type echoRequest struct {
	text string
}

func (E *echoRequest) Type() int32 { return 1 }

func (E *echoRequest) Serialize(w io.Writer) error { return wire.WriteString(w, E.text) }

func (E *echoRequest) Deserialize(r io.Reader) (err error) {
	E.text, err = wire.ReadString(r)
	return
}

func (E *echoRequest) Execute(_ Member, _ oplog.LogID, _ Session) NodeResponse {
	return &echoResponse{text: E.text}
}

type echoResponse struct {
	text string
}

func (E *echoResponse) Type() int32 { return 2 }

func (E *echoResponse) Serialize(w io.Writer) error { return wire.WriteString(w, E.text) }

func (E *echoResponse) Deserialize(r io.Reader) (err error) {
	E.text, err = wire.ReadString(r)
	return
}

type recorder struct {
	mu        sync.Mutex
	requests  []string
	responses []string
	submits   []uuid.UUID
	replies   []uuid.UUID
	resyncs   []oplog.LogID
}

func (R *recorder) ReceiveRequest(_ Member, _ string, _ oplog.LogID, request NodeRequest) {
	R.mu.Lock()
	defer R.mu.Unlock()
	R.requests = append(R.requests, request.(*echoRequest).text)
}

func (R *recorder) ReceiveResponse(_ Member, _ string, _ oplog.LogID, response NodeResponse) {
	R.mu.Lock()
	defer R.mu.Unlock()
	R.responses = append(R.responses, response.(*echoResponse).text)
}

func (R *recorder) ReceiveSubmit(_ Member, _ string, requestID uuid.UUID, _ wire.Message) {
	R.mu.Lock()
	defer R.mu.Unlock()
	R.submits = append(R.submits, requestID)
}

func (R *recorder) ReceiveReply(_ Member, _ string, requestID uuid.UUID, _ wire.Message) {
	R.mu.Lock()
	defer R.mu.Unlock()
	R.replies = append(R.replies, requestID)
}

func (R *recorder) ReceiveResync(_ Member, _ string, after oplog.LogID) {
	R.mu.Lock()
	defer R.mu.Unlock()
	R.resyncs = append(R.resyncs, after)
}

func testHub() *Hub {
	registry := wire.NewRegistry()
	_ = registry.Register(1, func() wire.Message { return &echoRequest{} })
	_ = registry.Register(2, func() wire.Message { return &echoResponse{} })
	return NewHub(registry, nil)
}

func TestLocalNetwork_SendRequest(t *testing.T) {
	t.Run("delivers a copy to every member", func(t *testing.T) {
		// Prepare
		hub := testHub()
		leader := NewMember("leader")
		net := hub.Join(leader, &recorder{})
		var members []Member
		var recorders []*recorder
		for _, name := range []string{"a", "b", "c"} {
			m := NewMember(name)
			r := &recorder{}
			hub.Join(m, r)
			members = append(members, m)
			recorders = append(recorders, r)
		}

		// Execute
		err := net.SendRequest(members, "db", oplog.LogID{ID: 1}, &echoRequest{text: "hello"})

		// Check
		assert.NoError(t, err, "sends")
		for _, r := range recorders {
			assert.Equal(t, []string{"hello"}, r.requests, "received")
		}
	})

	t.Run("drops messages to disconnected and filtered members", func(t *testing.T) {
		// Prepare
		hub := testHub()
		leader := NewMember("leader")
		net := hub.Join(leader, &recorder{})
		a, b := NewMember("a"), NewMember("b")
		ra, rb := &recorder{}, &recorder{}
		hub.Join(a, ra)
		hub.Join(b, rb)
		hub.Disconnect(a)
		hub.SetFilter(func(_, to Member, _ wire.Message) bool { return to.ID != b.ID })

		// Execute
		err1 := net.SendRequest([]Member{a, b}, "db", oplog.LogID{ID: 1}, &echoRequest{text: "one"})
		hub.Reconnect(a)
		hub.SetFilter(nil)
		err2 := net.SendRequest([]Member{a, b}, "db", oplog.LogID{ID: 2}, &echoRequest{text: "two"})

		// Check
		assert.NoError(t, err1, "drops are not errors")
		assert.NoError(t, err2, "sends")
		assert.Equal(t, []string{"two"}, ra.requests, "a got second only")
		assert.Equal(t, []string{"two"}, rb.requests, "b got second only")
	})

	t.Run("fails for unknown member", func(t *testing.T) {
		// Prepare
		hub := testHub()
		net := hub.Join(NewMember("leader"), &recorder{})

		// Execute
		err := net.SendRequest([]Member{NewMember("ghost")}, "db", oplog.LogID{}, &echoRequest{})

		// Check
		assert.True(t, errors.Is(err, ErrUnknownMember), "unknown member")
	})
}

func TestLocalNetwork_Messages(t *testing.T) {
	t.Run("routes responses submits replies and resyncs", func(t *testing.T) {
		// Prepare
		hub := testHub()
		a, b := NewMember("a"), NewMember("b")
		ra, rb := &recorder{}, &recorder{}
		netA := hub.Join(a, ra)
		netB := hub.Join(b, rb)
		requestID := uuid.New()

		// Execute
		errResponse := netB.SendResponse(a, "db", oplog.LogID{ID: 3}, &echoResponse{text: "ok"})
		errSubmit := netB.Submit(a, "db", requestID, &echoRequest{text: "do"})
		errReply := netA.Reply(b, "db", requestID, &echoResponse{text: "done"})
		errResync := netB.RequestResync(a, "db", oplog.NoLog)

		// Check
		assert.NoError(t, errResponse, "response")
		assert.NoError(t, errSubmit, "submit")
		assert.NoError(t, errReply, "reply")
		assert.NoError(t, errResync, "resync")
		assert.Equal(t, []string{"ok"}, ra.responses, "response received")
		assert.Equal(t, []uuid.UUID{requestID}, ra.submits, "submit received")
		assert.Equal(t, []uuid.UUID{requestID}, rb.replies, "reply received")
		assert.Equal(t, []oplog.LogID{oplog.NoLog}, ra.resyncs, "resync received")
	})
}

func TestMember_Serialize(t *testing.T) {
	t.Run("reads back id and name", func(t *testing.T) {
		// Prepare
		member := NewMember("node-1")
		r, w := io.Pipe()
		go func() {
			_ = member.Serialize(w)
			_ = w.Close()
		}()

		// Execute
		decoded, err := DeserializeMember(r)

		// Check
		require.NoError(t, err, "deserializes")
		assert.Equal(t, member, decoded, "same member")
	})
}
