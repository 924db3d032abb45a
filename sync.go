package exthashdb

import "sync"

// SyncHashTable - Wraps a HashTable for concurrent use. Put, Delete and Clear take the lock exclusively since
// splits and merges rewrite several directory slots and chain links, all reads share it.
type SyncHashTable struct {
	mu    sync.RWMutex
	table *HashTable
}

// NewSyncHashTable - Returns a pointer to a SyncHashTable wrapping table
func NewSyncHashTable(table *HashTable) *SyncHashTable {
	return &SyncHashTable{table: table}
}

// Put - See HashTable.Put
func (S *SyncHashTable) Put(position Position) (bool, error) {
	S.mu.Lock()
	defer S.mu.Unlock()
	return S.table.Put(position)
}

// Delete - See HashTable.Delete
func (S *SyncHashTable) Delete(key uint64) (Position, error) {
	S.mu.Lock()
	defer S.mu.Unlock()
	return S.table.Delete(key)
}

// Clear - See HashTable.Clear
func (S *SyncHashTable) Clear() error {
	S.mu.Lock()
	defer S.mu.Unlock()
	return S.table.Clear()
}

// Get - See HashTable.Get
func (S *SyncHashTable) Get(key uint64) (Position, error) {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.Get(key)
}

// Contains - See HashTable.Contains
func (S *SyncHashTable) Contains(key uint64) (bool, error) {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.Contains(key)
}

// Size - See HashTable.Size
func (S *SyncHashTable) Size() int64 {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.Size()
}

// CeilingEntries - See HashTable.CeilingEntries
func (S *SyncHashTable) CeilingEntries(key uint64) ([]Entry, error) {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.CeilingEntries(key)
}

// FloorEntries - See HashTable.FloorEntries
func (S *SyncHashTable) FloorEntries(key uint64) ([]Entry, error) {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.FloorEntries(key)
}

// HigherEntries - See HashTable.HigherEntries
func (S *SyncHashTable) HigherEntries(key uint64) ([]Entry, error) {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.HigherEntries(key)
}

// LowerEntries - See HashTable.LowerEntries
func (S *SyncHashTable) LowerEntries(key uint64) ([]Entry, error) {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.LowerEntries(key)
}

// Stats - See HashTable.Stats
func (S *SyncHashTable) Stats() TableStats {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.Stats()
}

// Sync - See HashTable.Sync
func (S *SyncHashTable) Sync() error {
	S.mu.Lock()
	defer S.mu.Unlock()
	return S.table.Sync()
}

// CheckChainOrder - See HashTable.CheckChainOrder
func (S *SyncHashTable) CheckChainOrder() error {
	S.mu.RLock()
	defer S.mu.RUnlock()
	return S.table.CheckChainOrder()
}

// CloseFiles - See HashTable.CloseFiles
func (S *SyncHashTable) CloseFiles() {
	S.mu.Lock()
	defer S.mu.Unlock()
	S.table.CloseFiles()
}

// RemoveFiles - See HashTable.RemoveFiles
func (S *SyncHashTable) RemoveFiles() error {
	S.mu.Lock()
	defer S.mu.Unlock()
	return S.table.RemoveFiles()
}
