package replication

import (
	"errors"
	"fmt"
	"github.com/gostonefire/exthashdb"
	"github.com/gostonefire/exthashdb/internal/cluster"
	"github.com/gostonefire/exthashdb/internal/metrics"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// SystemDatabase - Reserved database whose log carries structural and membership operations
const SystemDatabase = "_system"

var (
	// ErrUnknownDatabase is returned when a database has not been created on the member.
	ErrUnknownDatabase = errors.New("replication: unknown database")

	// ErrDatabaseExists is returned when a database is created twice.
	ErrDatabaseExists = errors.New("replication: database already exists")

	// ErrReservedDatabase is returned when the system database is created or dropped.
	ErrReservedDatabase = errors.New("replication: reserved database name")
)

// Listener - Notified on the member after a replicated structural or membership operation was applied
type Listener interface {
	DatabaseCreated(database string)
	DatabaseDropped(database string)
	MemberAdded(member cluster.Member)
	MemberRemoved(member cluster.Member)
}

// DatabasesConfig - Configuration of the tables of one member
//   - Table is the template every table is created from, its Name is ignored
//   - Dir gives file backed tables named after their database below it, empty gives in memory tables
//   - Listener, Logger and Metrics are optional
type DatabasesConfig struct {
	Table    exthashdb.TableConf
	Dir      string
	Listener Listener
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Databases - The hash tables of one member keyed by database name. It opens the sessions replicated requests
// execute in.
type Databases struct {
	template exthashdb.TableConf
	dir      string
	listener Listener
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	tables map[string]*exthashdb.SyncHashTable
}

// NewDatabases - Returns a pointer to a Databases without tables
func NewDatabases(cfg DatabasesConfig) *Databases {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	return &Databases{
		template: cfg.Table,
		dir:      cfg.Dir,
		listener: cfg.Listener,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tables:   make(map[string]*exthashdb.SyncHashTable),
	}
}

// Create - Creates an empty table for database
func (D *Databases) Create(database string) (err error) {
	if database == SystemDatabase || database == "" {
		err = fmt.Errorf("%w: %q", ErrReservedDatabase, database)
		return
	}

	D.mu.Lock()
	if _, ok := D.tables[database]; ok {
		D.mu.Unlock()
		err = fmt.Errorf("%w: %s", ErrDatabaseExists, database)
		return
	}

	conf := D.template
	conf.Name = ""
	if D.dir != "" {
		if err = os.MkdirAll(D.dir, 0o750); err != nil {
			D.mu.Unlock()
			err = fmt.Errorf("error while creating table directory %s: %w", D.dir, err)
			return
		}
		conf.Name = filepath.Join(D.dir, database)
	}
	table, _, err := exthashdb.NewHashTable(conf)
	if err != nil {
		D.mu.Unlock()
		err = fmt.Errorf("error while creating table for database %s: %w", database, err)
		return
	}
	D.tables[database] = exthashdb.NewSyncHashTable(table)
	D.mu.Unlock()

	D.metrics.IndexEntries.WithLabelValues(database).Set(0)
	D.logger.Info("database created", "database", database, "persistent", conf.Name != "")
	if D.listener != nil {
		D.listener.DatabaseCreated(database)
	}

	return
}

// Drop - Removes the table of database and its files
func (D *Databases) Drop(database string) (err error) {
	if database == SystemDatabase {
		err = fmt.Errorf("%w: %q", ErrReservedDatabase, database)
		return
	}

	D.mu.Lock()
	table, ok := D.tables[database]
	if !ok {
		D.mu.Unlock()
		err = fmt.Errorf("%w: %s", ErrUnknownDatabase, database)
		return
	}
	delete(D.tables, database)
	D.mu.Unlock()

	if err = table.RemoveFiles(); err != nil {
		err = fmt.Errorf("error while removing files of database %s: %w", database, err)
		return
	}

	D.metrics.IndexEntries.DeleteLabelValues(database)
	D.logger.Info("database dropped", "database", database)
	if D.listener != nil {
		D.listener.DatabaseDropped(database)
	}

	return
}

// Table - Returns the table of database
func (D *Databases) Table(database string) (table *exthashdb.SyncHashTable, err error) {
	D.mu.RLock()
	defer D.mu.RUnlock()

	table, ok := D.tables[database]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownDatabase, database)
	}

	return
}

// Exists - Returns true if database is the system database or has a table
func (D *Databases) Exists(database string) bool {
	if database == SystemDatabase {
		return true
	}

	D.mu.RLock()
	defer D.mu.RUnlock()

	_, ok := D.tables[database]
	return ok
}

// Names - Returns the sorted names of the databases
func (D *Databases) Names() []string {
	D.mu.RLock()
	defer D.mu.RUnlock()

	names := make([]string, 0, len(D.tables))
	for name := range D.tables {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// OpenNoAuthorization - Opens a session on database. The system database has no table.
func (D *Databases) OpenNoAuthorization(database string) (session cluster.Session, err error) {
	if database == SystemDatabase {
		session = &Session{database: database, databases: D}
		return
	}

	table, err := D.Table(database)
	if err != nil {
		return
	}
	session = &Session{database: database, table: table, databases: D}

	return
}

// Close - Syncs and closes the files of every table
func (D *Databases) Close() {
	D.mu.Lock()
	defer D.mu.Unlock()

	for name, table := range D.tables {
		table.CloseFiles()
		delete(D.tables, name)
	}
}

// Session - A session on one database of a member
type Session struct {
	database  string
	table     *exthashdb.SyncHashTable
	databases *Databases
}

// Database - Returns the database of the session
func (S *Session) Database() string {
	return S.database
}

// Table - Returns the table of the session, nil on the system database
func (S *Session) Table() *exthashdb.SyncHashTable {
	return S.table
}

// Close - Publishes the table size
func (S *Session) Close() error {
	if S.table != nil {
		S.databases.metrics.IndexEntries.WithLabelValues(S.database).Set(float64(S.table.Size()))
	}

	return nil
}

// record - Counts an index operation applied in the session
func (S *Session) record(operation string, outcome Outcome) {
	S.databases.metrics.IndexOperations.WithLabelValues(S.database, operation, outcome.String()).Inc()
}

func (S *Session) memberAdded(member cluster.Member) {
	if S.databases.listener != nil {
		S.databases.listener.MemberAdded(member)
	}
}

func (S *Session) memberRemoved(member cluster.Member) {
	if S.databases.listener != nil {
		S.databases.listener.MemberRemoved(member)
	}
}
