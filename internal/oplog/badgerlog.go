package oplog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/dgraph-io/badger/v4"
	"github.com/gostonefire/exthashdb/internal/wire"
	"log/slog"
	"math"
	"os"
)

// removeBatchSize - Keys deleted per transaction when removing ranges
const removeBatchSize = 1000

var entryPrefix = []byte("e/")

// BadgerConfig - Configuration of a persistent log
//   - Dir is the badger directory, ignored when InMemory is set
//   - InMemory keeps the badger database in memory only
//   - SyncWrites fsyncs every append
//   - Logger receives badger's internal log, nil silences it
type BadgerConfig struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// badgerLogger - Adapts slog to badger's logger interface
type badgerLogger struct {
	logger *slog.Logger
}

// Errorf - Forwards badger errors to the logger
func (B *badgerLogger) Errorf(format string, args ...interface{}) {
	B.logger.Error(fmt.Sprintf(format, args...))
}

// Warningf - Forwards badger warnings to the logger
func (B *badgerLogger) Warningf(format string, args ...interface{}) {
	B.logger.Warn(fmt.Sprintf(format, args...))
}

// Infof - Forwards badger info messages to the logger
func (B *badgerLogger) Infof(format string, args ...interface{}) {
	B.logger.Info(fmt.Sprintf(format, args...))
}

// Debugf - Forwards badger debug messages to the logger
func (B *badgerLogger) Debugf(format string, args ...interface{}) {
	B.logger.Debug(fmt.Sprintf(format, args...))
}

// badgerStore - Entries kept in badger keyed by big endian id, values are the LogID followed by the request
// encoded with its type tag
type badgerStore struct {
	db       *badger.DB
	registry *wire.Registry
}

// NewBadgerLog - Opens a persistent Log. Requests are encoded and decoded with registry, which must know every
// request type that is logged.
func NewBadgerLog(cfg BadgerConfig, registry *wire.Registry) (log *Log, err error) {
	if !cfg.InMemory && cfg.Dir == "" {
		err = errors.New("oplog: dir is required for a persistent log")
		return
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err = os.MkdirAll(cfg.Dir, 0750); err != nil {
			err = fmt.Errorf("error while creating log directory %s: %w", cfg.Dir, err)
			return
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	// Entries are small, a member opens a log per database and role
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1).
		WithMemTableSize(16 << 20).WithNumMemtables(2).WithBlockCacheSize(8 << 20).WithValueLogFileSize(64 << 20)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		err = fmt.Errorf("error while opening badger log: %w", err)
		return
	}

	log, err = newLog(&badgerStore{db: db, registry: registry})
	if err != nil {
		_ = db.Close()
	}

	return
}

func entryKey(id int64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], uint64(id))
	return key
}

func keyID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key[len(entryPrefix):]))
}

func (B *badgerStore) encode(entry Entry) (value []byte, err error) {
	var buf bytes.Buffer
	err = entry.ID.Serialize(&buf)
	if err != nil {
		return
	}
	err = B.registry.Encode(&buf, entry.Request)
	if err != nil {
		return
	}
	value = buf.Bytes()

	return
}

func (B *badgerStore) decode(value []byte) (entry Entry, err error) {
	r := bytes.NewReader(value)
	entry.ID, err = DeserializeLogID(r)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrLogCorrupted, err)
		return
	}
	entry.Request, err = B.registry.Decode(r)
	if err != nil {
		err = fmt.Errorf("%w: entry %d: %v", ErrLogCorrupted, entry.ID.ID, err)
	}

	return
}

func (B *badgerStore) append(entry Entry) error {
	value, err := B.encode(entry)
	if err != nil {
		return err
	}

	return B.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.ID.ID), value)
	})
}

func (B *badgerStore) get(id int64) (entry Entry, found bool, err error) {
	var value []byte
	err = B.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		err = nil
		return
	}
	if err != nil {
		return
	}

	entry, err = B.decode(value)
	found = err == nil

	return
}

func (B *badgerStore) scan(from, to int64) (entries []Entry, err error) {
	if from > to {
		return
	}

	err = B.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryKey(from)); it.ValidForPrefix(entryPrefix); it.Next() {
			item := it.Item()
			if keyID(item.Key()) > to {
				break
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err := B.decode(value)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return
}

// keysInRange - Returns keys of entries with from <= id <= to
func (B *badgerStore) keysInRange(from, to int64) (keys [][]byte, err error) {
	err = B.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(entryKey(from)); it.ValidForPrefix(entryPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if keyID(key) > to {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})

	return
}

// deleteKeys - Deletes keys in batches small enough for one transaction each
func (B *badgerStore) deleteKeys(keys [][]byte) error {
	for len(keys) > 0 {
		n := min(len(keys), removeBatchSize)
		batch := keys[:n]
		keys = keys[n:]
		err := B.db.Update(func(txn *badger.Txn) error {
			for _, key := range batch {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (B *badgerStore) removeAfter(id int64) error {
	keys, err := B.keysInRange(max(id+1, 0), math.MaxInt64)
	if err != nil {
		return err
	}

	return B.deleteKeys(keys)
}

func (B *badgerStore) removeBefore(id int64) error {
	keys, err := B.keysInRange(0, id-1)
	if err != nil {
		return err
	}

	return B.deleteKeys(keys)
}

func (B *badgerStore) bounds() (first int64, last LogID, err error) {
	last = NoLog
	var lastValue []byte
	err = B.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		it.Seek(entryPrefix)
		if it.ValidForPrefix(entryPrefix) {
			first = keyID(it.Item().Key())
		}
		it.Close()

		opts.Reverse = true
		rit := txn.NewIterator(opts)
		defer rit.Close()
		rit.Seek(entryKey(math.MaxInt64))
		if rit.ValidForPrefix(entryPrefix) {
			v, err := rit.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			lastValue = v
		}
		return nil
	})
	if err != nil || lastValue == nil {
		return
	}

	entry, err := B.decode(lastValue)
	if err != nil {
		return
	}
	last = entry.ID

	return
}

func (B *badgerStore) close() error {
	return B.db.Close()
}
