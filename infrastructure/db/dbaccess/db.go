package dbaccess

import (
	"github.com/pkg/errors"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/util"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
)

// DatabaseContext is the goleveldb-backed model.DBManager used in
// production. All stores share one DatabaseContext; bucket prefixes
// (see bucket.go) keep their keyspaces disjoint.
type DatabaseContext struct {
	db *leveldb.DB
}

// New opens (creating if absent) the goleveldb database at path.
func New(path string) (*DatabaseContext, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening database at %s", path)
	}
	return &DatabaseContext{db: db}, nil
}

// Close closes the underlying database.
func (ctx *DatabaseContext) Close() error {
	return ctx.db.Close()
}

// Get implements model.DBReader.
func (ctx *DatabaseContext) Get(key []byte) ([]byte, error) {
	value, err := ctx.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "key %x", key)
		}
		return nil, err
	}
	return value, nil
}

// Has implements model.DBReader.
func (ctx *DatabaseContext) Has(key []byte) (bool, error) {
	return ctx.db.Has(key, nil)
}

// Cursor implements model.DBReader.
func (ctx *DatabaseContext) Cursor(prefix []byte) (model.DBCursor, error) {
	iter := ctx.db.NewIterator(util.BytesPrefix(prefix), nil)
	return &levelDBCursor{iter: iter}, nil
}

// Put implements model.DBWriter.
func (ctx *DatabaseContext) Put(key []byte, value []byte) error {
	return ctx.db.Put(key, value, nil)
}

// Delete implements model.DBWriter.
func (ctx *DatabaseContext) Delete(key []byte) error {
	return ctx.db.Delete(key, nil)
}

// Begin opens a batched transaction. goleveldb batches don't see their
// own uncommitted writes, so reads inside a transaction fall through to
// the database directly — every store in this module stages its writes
// in a model.StagingArea and only calls the transaction at Commit time,
// so this doesn't cost read-your-writes consistency in practice.
func (ctx *DatabaseContext) Begin() (model.DBTransaction, error) {
	return &transaction{ctx: ctx, batch: new(leveldb.Batch)}, nil
}

type transaction struct {
	ctx   *DatabaseContext
	batch *leveldb.Batch
}

func (tx *transaction) Get(key []byte) ([]byte, error)       { return tx.ctx.Get(key) }
func (tx *transaction) Has(key []byte) (bool, error)          { return tx.ctx.Has(key) }
func (tx *transaction) Cursor(prefix []byte) (model.DBCursor, error) {
	return tx.ctx.Cursor(prefix)
}

func (tx *transaction) Put(key []byte, value []byte) error {
	tx.batch.Put(key, value)
	return nil
}

func (tx *transaction) Delete(key []byte) error {
	tx.batch.Delete(key)
	return nil
}

func (tx *transaction) Commit() error {
	return tx.ctx.db.Write(tx.batch, nil)
}

func (tx *transaction) Rollback() error {
	tx.batch.Reset()
	return nil
}

type levelDBCursor struct {
	iter iterator
}

// iterator is the subset of leveldb's Iterator used here, named so the
// field above doesn't leak the third-party type into exported surface.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

func (c *levelDBCursor) Next() bool { return c.iter.Next() }

func (c *levelDBCursor) Key() ([]byte, error) {
	key := c.iter.Key()
	cloned := make([]byte, len(key))
	copy(cloned, key)
	return cloned, nil
}

func (c *levelDBCursor) Value() ([]byte, error) {
	value := c.iter.Value()
	cloned := make([]byte, len(value))
	copy(cloned, value)
	return cloned, nil
}

func (c *levelDBCursor) Close() error {
	c.iter.Release()
	return c.iter.Error()
}

// ErrNotFound is returned (wrapped) when a key has no value.
var ErrNotFound = errors.New("key not found")
