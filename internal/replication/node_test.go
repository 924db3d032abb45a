package replication

import (
	"context"
	"errors"
	"fmt"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// testCluster - Nodes on one hub, the first one leads
type testCluster struct {
	hub   *cluster.Hub
	nodes []*Node
}

func newTestCluster(t *testing.T, size int, configure func(i int, cfg *NodeConfig)) *testCluster {
	t.Helper()

	members := make([]cluster.Member, size)
	for i := range members {
		members[i] = cluster.NewMember(fmt.Sprintf("node-%d", i+1))
	}

	tc := &testCluster{hub: cluster.NewHub(NewRegistry(), nil)}
	for i, member := range members {
		cfg := NodeConfig{
			Self:            member,
			Leader:          members[0],
			Members:         members,
			Term:            1,
			Hub:             tc.hub,
			TimeoutInterval: waitFor,
		}
		if configure != nil {
			configure(i, &cfg)
		}
		node, err := NewNode(cfg)
		require.NoError(t, err, "new node")
		tc.nodes = append(tc.nodes, node)
	}

	t.Cleanup(func() {
		for _, node := range tc.nodes {
			assert.NoError(t, node.Close(context.Background()), "close node")
		}
	})

	return tc
}

// join - Starts a node outside the membership that follows the leader
func (T *testCluster) join(t *testing.T, name string) *Node {
	t.Helper()

	node, err := NewNode(NodeConfig{
		Self:            cluster.NewMember(name),
		Leader:          T.nodes[0].Self(),
		Hub:             T.hub,
		TimeoutInterval: waitFor,
	})
	require.NoError(t, err, "join")
	T.nodes = append(T.nodes, node)

	return node
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)

	return ctx
}

// tableSize - Size of the table of database on node, -1 if the database does not exist there
func tableSize(node *Node, database string) int64 {
	table, err := node.Databases().Table(database)
	if err != nil {
		return -1
	}

	return table.Size()
}

func TestNode_Put(t *testing.T) {
	t.Run("replicates puts and deletes to every member", func(t *testing.T) {
		// Prepare
		tc := newTestCluster(t, 3, nil)
		ctx := testContext(t)
		follower := tc.nodes[2]
		position := exthashdb.Position{Key: 1000, SegmentID: 2, SegmentPos: 4096, RecordSize: 128, Version: 1}
		require.NoError(t, follower.CreateDatabase(ctx, "orders"), "create database")

		// Execute
		put, err := follower.Put(ctx, "orders", position)
		require.NoError(t, err, "put")

		// Check
		assert.True(t, put.Success, "put success")
		assert.Equal(t, OutcomeOK, put.Outcome, "put outcome")
		for _, node := range tc.nodes {
			assert.Eventually(t, func() bool {
				stored, err := node.Get("orders", 1000)
				return err == nil && stored == position
			}, waitFor, tick, "position on %s", node.Self())
		}

		again, err := tc.nodes[1].Put(ctx, "orders", exthashdb.Position{Key: 1000, SegmentID: 9})
		require.NoError(t, err, "second put")
		assert.Equal(t, OutcomeExists, again.Outcome, "second put outcome")
		assert.Equal(t, position, again.Position, "existing position returned")

		deleted, err := tc.nodes[0].Delete(ctx, "orders", 1000)
		require.NoError(t, err, "delete")
		assert.Equal(t, OutcomeOK, deleted.Outcome, "delete outcome")
		assert.Equal(t, position, deleted.Position, "deleted position")

		missing, err := follower.Delete(ctx, "orders", 1000)
		require.NoError(t, err, "second delete")
		assert.Equal(t, OutcomeMissing, missing.Outcome, "second delete outcome")

		for _, node := range tc.nodes {
			assert.Eventually(t, func() bool { return tableSize(node, "orders") == 0 }, waitFor, tick, "empty on %s", node.Self())
		}
	})

	t.Run("rejects operations on unknown databases", func(t *testing.T) {
		// Prepare
		tc := newTestCluster(t, 3, nil)
		ctx := testContext(t)

		// Execute
		_, err := tc.nodes[1].Put(ctx, "missing", exthashdb.Position{Key: 1})

		// Check
		assert.True(t, errors.Is(err, ErrRejected), "rejected")
	})

	t.Run("replicates through persistent logs and file tables", func(t *testing.T) {
		// Prepare
		dir := t.TempDir()
		tc := newTestCluster(t, 3, func(i int, cfg *NodeConfig) {
			nodeDir := filepath.Join(dir, fmt.Sprintf("node-%d", i+1))
			cfg.Logs = BadgerLogs(oplog.BadgerConfig{Dir: filepath.Join(nodeDir, "oplog")}, NewRegistry())
			cfg.TableDir = filepath.Join(nodeDir, "tables")
		})
		ctx := testContext(t)
		require.NoError(t, tc.nodes[0].CreateDatabase(ctx, "orders"), "create database")

		// Execute
		for key := uint64(0); key < 20; key++ {
			_, err := tc.nodes[key%3].Put(ctx, "orders", exthashdb.Position{Key: key << 40, Version: int32(key)})
			require.NoError(t, err, "put %d", key)
		}

		err := tc.nodes[1].SyncDatabase(ctx, "orders")

		// Check
		assert.NoError(t, err, "sync")
		for i, node := range tc.nodes {
			assert.Eventually(t, func() bool { return tableSize(node, "orders") == 20 }, waitFor, tick, "size on %s", node.Self())
			dirFile := filepath.Join(dir, fmt.Sprintf("node-%d", i+1), "tables", "orders-dir.bin")
			assert.Eventually(t, func() bool {
				_, statErr := os.Stat(dirFile)
				return statErr == nil
			}, waitFor, tick, "directory synced on %s", node.Self())
		}
	})
}

func TestNode_CreateDatabase(t *testing.T) {
	t.Run("creates once and drops on every member", func(t *testing.T) {
		// Prepare
		tc := newTestCluster(t, 3, nil)
		ctx := testContext(t)

		// Execute
		errCreate := tc.nodes[1].CreateDatabase(ctx, "orders")
		errDuplicate := tc.nodes[2].CreateDatabase(ctx, "orders")

		// Check
		assert.NoError(t, errCreate, "create")
		assert.True(t, errors.Is(errDuplicate, ErrRejected), "duplicate rejected")
		for _, node := range tc.nodes {
			assert.Eventually(t, func() bool { return node.Databases().Exists("orders") }, waitFor, tick, "created on %s", node.Self())
		}

		errDrop := tc.nodes[0].DropDatabase(ctx, "orders")
		assert.NoError(t, errDrop, "drop")
		for _, node := range tc.nodes {
			assert.Eventually(t, func() bool { return !node.Databases().Exists("orders") }, waitFor, tick, "dropped on %s", node.Self())
		}

		_, errPut := tc.nodes[1].Put(ctx, "orders", exthashdb.Position{Key: 1})
		assert.True(t, errors.Is(errPut, ErrRejected), "put after drop rejected")
	})
}

func TestNode_Resync(t *testing.T) {
	t.Run("a reconnected member catches up on missed operations", func(t *testing.T) {
		// Prepare
		tc := newTestCluster(t, 3, nil)
		ctx := testContext(t)
		lagging := tc.nodes[2]
		require.NoError(t, tc.nodes[0].CreateDatabase(ctx, "orders"), "create database")
		require.Eventually(t, func() bool { return lagging.Databases().Exists("orders") }, waitFor, tick, "created")

		// Execute
		tc.hub.Disconnect(lagging.Self())
		for key := uint64(1); key <= 10; key++ {
			_, err := tc.nodes[1].Put(ctx, "orders", exthashdb.Position{Key: key})
			require.NoError(t, err, "put %d while disconnected", key)
		}
		assert.Equal(t, int64(0), tableSize(lagging, "orders"), "nothing reached the lagging member")
		tc.hub.Reconnect(lagging.Self())
		_, err := tc.nodes[0].Put(ctx, "orders", exthashdb.Position{Key: 11})
		require.NoError(t, err, "put after reconnect")

		// Check
		assert.Eventually(t, func() bool { return tableSize(lagging, "orders") == 11 }, waitFor, tick, "caught up")
		for key := uint64(1); key <= 11; key++ {
			position, err := lagging.Get("orders", key)
			assert.NoError(t, err, "key %d", key)
			assert.Equal(t, key, position.Key, "key %d", key)
		}
	})

	t.Run("a member asks again when the replay of missed operations is lost", func(t *testing.T) {
		// Prepare
		tc := newTestCluster(t, 3, func(_ int, cfg *NodeConfig) {
			cfg.ResyncInterval = 100 * time.Millisecond
		})
		ctx := testContext(t)
		lagging := tc.nodes[2]
		require.NoError(t, tc.nodes[0].CreateDatabase(ctx, "orders"), "create database")
		require.Eventually(t, func() bool { return lagging.Databases().Exists("orders") }, waitFor, tick, "created")

		tc.hub.Disconnect(lagging.Self())
		for key := uint64(1); key <= 5; key++ {
			_, err := tc.nodes[1].Put(ctx, "orders", exthashdb.Position{Key: key})
			require.NoError(t, err, "put %d while disconnected", key)
		}
		tc.hub.Reconnect(lagging.Self())

		var lost atomic.Int32
		tc.hub.SetFilter(func(_, to cluster.Member, message wire.Message) bool {
			put, ok := message.(*PutEntryRequest)
			if ok && to.ID == lagging.Self().ID && put.Position.Key <= 5 {
				lost.Add(1)
				return false
			}
			return true
		})
		_, err := tc.nodes[0].Put(ctx, "orders", exthashdb.Position{Key: 6})
		require.NoError(t, err, "put while replay is lost")
		require.Eventually(t, func() bool { return lost.Load() >= 5 }, waitFor, tick, "replay lost")
		tc.hub.SetFilter(nil)

		// Execute
		time.Sleep(200 * time.Millisecond)
		_, err = tc.nodes[0].Put(ctx, "orders", exthashdb.Position{Key: 7})
		require.NoError(t, err, "put after the replay was lost")

		// Check
		assert.Eventually(t, func() bool { return tableSize(lagging, "orders") == 7 }, waitFor, tick, "caught up")
		assert.Eventually(t, func() bool { return tableSize(tc.nodes[0], "orders") == 7 }, waitFor, tick, "leader size")
	})
}

func TestNode_AddMember(t *testing.T) {
	t.Run("an added member receives existing databases and later operations", func(t *testing.T) {
		// Prepare
		tc := newTestCluster(t, 3, nil)
		ctx := testContext(t)
		require.NoError(t, tc.nodes[0].CreateDatabase(ctx, "orders"), "create database")
		for key := uint64(1); key <= 10; key++ {
			_, err := tc.nodes[0].Put(ctx, "orders", exthashdb.Position{Key: key})
			require.NoError(t, err, "put %d", key)
		}
		newcomer := tc.join(t, "node-4")

		// Execute
		err := tc.nodes[1].AddMember(ctx, newcomer.Self())
		require.NoError(t, err, "add member")

		// Check
		assert.Eventually(t, func() bool { return tableSize(newcomer, "orders") == 10 }, waitFor, tick, "existing entries")
		for _, node := range tc.nodes[:3] {
			assert.Eventually(t, func() bool { return len(node.Members()) == 4 }, waitFor, tick, "membership on %s", node.Self())
		}

		_, err = tc.nodes[2].Put(ctx, "orders", exthashdb.Position{Key: 11})
		require.NoError(t, err, "put after add")
		assert.Eventually(t, func() bool { return tableSize(newcomer, "orders") == 11 }, waitFor, tick, "later entries")

		err = tc.nodes[0].RemoveMember(ctx, newcomer.Self())
		require.NoError(t, err, "remove member")
		for _, node := range tc.nodes[:3] {
			assert.Eventually(t, func() bool { return len(node.Members()) == 3 }, waitFor, tick, "membership after remove on %s", node.Self())
		}
	})
}
