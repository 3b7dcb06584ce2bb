package model

// DBReader is the read half of the storage contract (spec.md §6.1): a
// plain ordered byte key/value view, namespaced by bucket prefix the way
// the teacher's dbaccess buckets are. Stores that need spec.md §3's
// versioned (key, topoheight) -> value history (account, balance,
// frozen-balance, delegation, contract) layer a topoheight-suffixed key
// encoding on top of this rather than pushing versioning into the
// contract itself; stores that are naturally immutable-by-hash (block
// headers, bodies, relations, ghostdag data, reachability, pruning
// point) use it directly.
type DBReader interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Cursor(prefix []byte) (DBCursor, error)
}

// DBWriter is the write half of the storage contract.
type DBWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// DBCursor walks a key range produced by Cursor, in key order.
type DBCursor interface {
	Next() bool
	Key() ([]byte, error)
	Value() ([]byte, error)
	Close() error
}

// DBManager composes read and write access plus the ability to open a
// transaction for a batch of writes that commit atomically.
type DBManager interface {
	DBReader
	DBWriter
	Begin() (DBTransaction, error)
	Close() error
}

// DBTransaction groups writes that must commit as a single unit (one
// block's worth of state changes, per spec.md §4.5 "Atomicity"). No
// storage-level lock is taken, neither around Commit nor around the
// validation work that populates the transaction.
type DBTransaction interface {
	DBReader
	DBWriter
	Commit() error
	Rollback() error
}

// StagingArea batches mutations to every store for a single block
// application before they are flushed to the database. Mirrors the
// teacher's model.StagingArea: a per-block scratch area that every
// store's Stage method writes into, and a single Commit call flushes
// every dirty store in one shot. Kept as a concrete struct (not an
// interface) because it is a pure accumulator with no substitutable
// behavior — every store keyed by a *StagingArea pointer looks up its
// own shard by identity.
type StagingArea struct {
	shards map[interface{}]interface{}
}

// NewStagingArea returns an empty staging area.
func NewStagingArea() *StagingArea {
	return &StagingArea{shards: make(map[interface{}]interface{})}
}

// ShardFor returns the store-specific shard for key, creating it via
// newShard if absent. Each store package calls this with itself as the
// key and a constructor for its own shard type.
func (sa *StagingArea) ShardFor(key interface{}, newShard func() interface{}) interface{} {
	if shard, ok := sa.shards[key]; ok {
		return shard
	}
	shard := newShard()
	sa.shards[key] = shard
	return shard
}
