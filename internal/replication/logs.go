package replication

import (
	"github.com/gostonefire/exthashdb/internal/oplog"
	"github.com/gostonefire/exthashdb/internal/wire"
	"os"
	"path/filepath"
)

// Log roles, the leader keeps a coordinator and an executor log per database
const (
	RoleCoordinator = "coordinator"
	RoleExecutor    = "executor"
)

// LogStore - Opens and removes the operation logs of a member
type LogStore interface {
	Open(database, role string) (oplog.OperationLog, error)
	Remove(database, role string) error
}

// MemoryLogs - Returns a LogStore of in memory logs
func MemoryLogs() LogStore {
	return memoryLogs{}
}

type memoryLogs struct{}

// Open - Returns a new empty in memory log
func (memoryLogs) Open(_, _ string) (oplog.OperationLog, error) {
	return oplog.NewMemoryLog(), nil
}

// Remove - Nothing to remove, in memory logs go away with their instance
func (memoryLogs) Remove(_, _ string) error {
	return nil
}

// BadgerLogs - Returns a LogStore of badger logs in one directory per database and role below cfg.Dir. Requests are
// encoded with registry.
func BadgerLogs(cfg oplog.BadgerConfig, registry *wire.Registry) LogStore {
	return &badgerLogs{cfg: cfg, registry: registry}
}

type badgerLogs struct {
	cfg      oplog.BadgerConfig
	registry *wire.Registry
}

func (B *badgerLogs) dir(database, role string) string {
	return filepath.Join(B.cfg.Dir, database, role)
}

// Open - Opens the badger log of database and role, created if missing
func (B *badgerLogs) Open(database, role string) (log oplog.OperationLog, err error) {
	cfg := B.cfg
	if !cfg.InMemory {
		cfg.Dir = B.dir(database, role)
	}

	badgerLog, err := oplog.NewBadgerLog(cfg, B.registry)
	if err != nil {
		return
	}
	log = badgerLog

	return
}

// Remove - Removes the directory of the log of database and role
func (B *badgerLogs) Remove(database, role string) error {
	if B.cfg.InMemory {
		return nil
	}

	return os.RemoveAll(B.dir(database, role))
}
