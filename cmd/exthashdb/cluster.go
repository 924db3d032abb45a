package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/metrics"
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/replication"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"net/http"
	"path/filepath"
	"time"
)

func newClusterCommand(a *app) *cobra.Command {
	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Run replicated members in process",
	}

	var operations int
	var hold time.Duration
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Start the configured members, replicate puts and deletes and print every member's table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if operations < 0 {
				return fmt.Errorf("operations must not be negative, got %d", operations)
			}
			return a.runDemo(cmd, operations, hold)
		},
	}
	demo.Flags().IntVar(&operations, "operations", 1000, "number of puts, half of the keys are deleted again")
	demo.Flags().DurationVar(&hold, "hold", 0, "keep members and the metrics endpoint up this long after the run")

	clusterCmd.AddCommand(demo)

	return clusterCmd
}

// runDemo - Starts one node per configured member on a hub, the first member leads
func (a *app) runDemo(cmd *cobra.Command, operations int, hold time.Duration) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := a.config
	m := metrics.New()
	registry := replication.NewRegistry()
	hub := cluster.NewHub(registry, a.logger)

	members := make([]cluster.Member, len(cfg.Cluster.Members))
	for i, name := range cfg.Cluster.Members {
		members[i] = cluster.NewMember(name)
	}

	nodes := make([]*replication.Node, 0, len(members))
	defer func() {
		for _, node := range nodes {
			err = errors.Join(err, node.Close(context.Background()))
		}
	}()

	for _, member := range members {
		nodeConfig := replication.NodeConfig{
			Self:            member,
			Leader:          members[0],
			Members:         members,
			Term:            1,
			Hub:             hub,
			Logs:            replication.MemoryLogs(),
			Table:           exthashdb.TableConf{BucketCapacity: cfg.Index.BucketCapacity, MaxLevelDepth: cfg.Index.MaxLevelDepth, HashAlgorithm: hashAlgorithm(cfg.Index.Hash)},
			TimeoutInterval: cfg.Cluster.TimeoutInterval,
			DrainTimeout:    cfg.Cluster.DrainTimeout,
			Logger:          a.logger,
			Metrics:         m,
		}
		if !cfg.OpLog.InMemory {
			dir := filepath.Join(cfg.OpLog.Dir, member.Name)
			nodeConfig.Logs = replication.BadgerLogs(oplog.BadgerConfig{
				Dir:        filepath.Join(dir, "oplog"),
				SyncWrites: cfg.OpLog.SyncWrites,
				Logger:     a.logger,
			}, registry)
			nodeConfig.TableDir = filepath.Join(dir, "tables")
		}

		var node *replication.Node
		if node, err = replication.NewNode(nodeConfig); err != nil {
			return
		}
		nodes = append(nodes, node)
	}

	var server *http.Server
	if cfg.Metrics.Listen != "" {
		server = &http.Server{Addr: cfg.Metrics.Listen, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				a.logger.Error("metrics endpoint failed", "error", serveErr)
			}
		}()
		defer func() { _ = server.Close() }()
		a.logger.Info("serving metrics", "listen", cfg.Metrics.Listen)
	}

	database := cfg.Cluster.Database
	if err = nodes[0].CreateDatabase(ctx, database); err != nil {
		return
	}

	started := time.Now()
	if err = submitAll(ctx, nodes, operations, func(node *replication.Node, key uint64) error {
		_, err := node.Put(ctx, database, exthashdb.Position{Key: key, SegmentPos: int64(key) * 64, RecordSize: 64})
		return err
	}); err != nil {
		return
	}
	if err = submitAll(ctx, nodes, operations/2, func(node *replication.Node, key uint64) error {
		_, err := node.Delete(ctx, database, key)
		return err
	}); err != nil {
		return
	}
	a.logger.Info("operations replicated", "operations", operations+operations/2, "elapsed", time.Since(started).String())

	want := int64(operations - operations/2)
	if err = waitForSize(ctx, nodes, database, want, cfg.Cluster.TimeoutInterval); err != nil {
		return
	}

	for _, node := range nodes {
		table, tableErr := node.Databases().Table(database)
		if tableErr != nil {
			return tableErr
		}
		s := table.Stats()
		if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%s size=%d buckets=%d splits=%d merges=%d\n",
			node.Self().Name, table.Size(), s.Buckets, s.Splits, s.Merges); err != nil {
			return
		}
	}

	if hold > 0 {
		select {
		case <-time.After(hold):
		case <-ctx.Done():
		}
	}

	return
}

// submitAll - Submits count operations spread over every node, keys are spread over the whole key space
func submitAll(ctx context.Context, nodes []*replication.Node, count int, op func(node *replication.Node, key uint64) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(len(nodes) * 4)

	for i := 0; i < count; i++ {
		node := nodes[i%len(nodes)]
		key := demoKey(i)
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return op(node, key)
		})
	}

	return g.Wait()
}

// demoKey - Spreads i over the top bits so that the directory grows at every level
func demoKey(i int) uint64 {
	return uint64(i) * 0x9E3779B97F4A7C15
}

// waitForSize - Waits until every member applied the operations, followers may lag the quorum
func waitForSize(ctx context.Context, nodes []*replication.Node, database string, want int64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout*10)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		done := true
		for _, node := range nodes {
			table, err := node.Databases().Table(database)
			if err != nil || table.Size() != want {
				done = false
				break
			}
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("members did not apply every operation: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
