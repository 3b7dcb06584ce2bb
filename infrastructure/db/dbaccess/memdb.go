package dbaccess

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
)

// MemoryDatabase is an in-process model.DBManager backed by a sorted
// map, used by unit tests in place of a goleveldb file database.
type MemoryDatabase struct {
	entries map[string][]byte
}

// NewMemoryDatabase returns an empty MemoryDatabase.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{entries: make(map[string][]byte)}
}

func (m *MemoryDatabase) Get(key []byte) ([]byte, error) {
	value, ok := m.entries[string(key)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "key %x", key)
	}
	return value, nil
}

func (m *MemoryDatabase) Has(key []byte) (bool, error) {
	_, ok := m.entries[string(key)]
	return ok, nil
}

func (m *MemoryDatabase) Cursor(prefix []byte) (model.DBCursor, error) {
	var keys []string
	for key := range m.entries {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return &memCursor{db: m, keys: keys, index: -1}, nil
}

func (m *MemoryDatabase) Put(key []byte, value []byte) error {
	cloned := make([]byte, len(value))
	copy(cloned, value)
	m.entries[string(key)] = cloned
	return nil
}

func (m *MemoryDatabase) Delete(key []byte) error {
	delete(m.entries, string(key))
	return nil
}

func (m *MemoryDatabase) Begin() (model.DBTransaction, error) {
	return &memTransaction{db: m, puts: make(map[string][]byte), deletes: make(map[string]struct{})}, nil
}

func (m *MemoryDatabase) Close() error { return nil }

type memCursor struct {
	db    *MemoryDatabase
	keys  []string
	index int
}

func (c *memCursor) Next() bool {
	c.index++
	return c.index < len(c.keys)
}

func (c *memCursor) Key() ([]byte, error) {
	return []byte(c.keys[c.index]), nil
}

func (c *memCursor) Value() ([]byte, error) {
	return c.db.entries[c.keys[c.index]], nil
}

func (c *memCursor) Close() error { return nil }

type memTransaction struct {
	db      *MemoryDatabase
	puts    map[string][]byte
	deletes map[string]struct{}
}

func (tx *memTransaction) Get(key []byte) ([]byte, error) {
	if value, ok := tx.puts[string(key)]; ok {
		return value, nil
	}
	if _, ok := tx.deletes[string(key)]; ok {
		return nil, errors.Wrapf(ErrNotFound, "key %x", key)
	}
	return tx.db.Get(key)
}

func (tx *memTransaction) Has(key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (tx *memTransaction) Cursor(prefix []byte) (model.DBCursor, error) {
	return tx.db.Cursor(prefix)
}

func (tx *memTransaction) Put(key []byte, value []byte) error {
	cloned := make([]byte, len(value))
	copy(cloned, value)
	tx.puts[string(key)] = cloned
	delete(tx.deletes, string(key))
	return nil
}

func (tx *memTransaction) Delete(key []byte) error {
	tx.deletes[string(key)] = struct{}{}
	delete(tx.puts, string(key))
	return nil
}

func (tx *memTransaction) Commit() error {
	for key, value := range tx.puts {
		tx.db.entries[key] = value
	}
	for key := range tx.deletes {
		delete(tx.db.entries, key)
	}
	return nil
}

func (tx *memTransaction) Rollback() error {
	tx.puts = make(map[string][]byte)
	tx.deletes = make(map[string]struct{})
	return nil
}
