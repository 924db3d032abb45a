package oplog

// memoryStore - Entries kept in a slice, index 0 holding the entry with id offset
type memoryStore struct {
	offset  int64
	entries []Entry
}

// NewMemoryLog - Returns a pointer to a new empty Log held in memory
func NewMemoryLog() *Log {
	log, _ := newLog(&memoryStore{})
	return log
}

func (M *memoryStore) append(entry Entry) error {
	if len(M.entries) == 0 {
		M.offset = entry.ID.ID
	}
	M.entries = append(M.entries, entry)
	return nil
}

func (M *memoryStore) get(id int64) (entry Entry, found bool, err error) {
	i := id - M.offset
	if i < 0 || i >= int64(len(M.entries)) {
		return
	}

	return M.entries[i], true, nil
}

func (M *memoryStore) scan(from, to int64) (entries []Entry, err error) {
	from = max(from, M.offset)
	to = min(to, M.offset+int64(len(M.entries))-1)
	if from > to {
		return
	}

	entries = make([]Entry, to-from+1)
	copy(entries, M.entries[from-M.offset:to-M.offset+1])

	return
}

func (M *memoryStore) removeAfter(id int64) error {
	n := id - M.offset + 1
	switch {
	case n <= 0:
		M.entries = nil
	case n < int64(len(M.entries)):
		clear(M.entries[n:])
		M.entries = M.entries[:n]
	}
	return nil
}

func (M *memoryStore) removeBefore(id int64) error {
	n := id - M.offset
	if n <= 0 {
		return nil
	}
	n = min(n, int64(len(M.entries)))
	M.entries = append([]Entry(nil), M.entries[n:]...)
	M.offset = id
	return nil
}

func (M *memoryStore) bounds() (first int64, last LogID, err error) {
	if len(M.entries) == 0 {
		return 0, NoLog, nil
	}

	return M.offset, M.entries[len(M.entries)-1].ID, nil
}

func (M *memoryStore) close() error {
	M.entries = nil
	return nil
}
