package pruningstore

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("pruning"))
var pointKey = bucket.Key([]byte("point"))
var topoheightKey = bucket.Key([]byte("point-topoheight"))

type pruningStoreShard struct {
	hash       *externalapi.DomainHash
	topoheight *uint64
}

func newShard() interface{} {
	return &pruningStoreShard{}
}

// pruningStore tracks the current pruning point.
type pruningStore struct {
	hash       *externalapi.DomainHash
	topoheight uint64
}

// New instantiates a new PruningStore.
func New(dbContext model.DBReader) (model.PruningStore, error) {
	store := &pruningStore{}
	hasPoint, err := dbContext.Has(pointKey)
	if err != nil {
		return nil, err
	}
	if hasPoint {
		hashBytes, err := dbContext.Get(pointKey)
		if err != nil {
			return nil, err
		}
		hash := externalapi.DomainHash{}
		copy(hash[:], hashBytes)
		store.hash = &hash

		topoheightBytes, err := dbContext.Get(topoheightKey)
		if err != nil {
			return nil, err
		}
		store.topoheight = decodeUint64(topoheightBytes)
	}
	return store, nil
}

func (ps *pruningStore) shard(stagingArea *model.StagingArea) *pruningStoreShard {
	return stagingArea.ShardFor(ps, newShard).(*pruningStoreShard)
}

func (ps *pruningStore) StagePruningPoint(stagingArea *model.StagingArea, pruningPointHash *externalapi.DomainHash, topoheight uint64) {
	shard := ps.shard(stagingArea)
	shard.hash = pruningPointHash
	shard.topoheight = &topoheight
}

func (ps *pruningStore) IsStaged(stagingArea *model.StagingArea) bool {
	return ps.shard(stagingArea).hash != nil
}

func (ps *pruningStore) PruningPoint(dbContext model.DBReader, stagingArea *model.StagingArea) (*externalapi.DomainHash, error) {
	if hash := ps.shard(stagingArea).hash; hash != nil {
		return hash, nil
	}
	return ps.hash, nil
}

func (ps *pruningStore) PruningPointTopoheight(dbContext model.DBReader, stagingArea *model.StagingArea) (uint64, error) {
	if topoheight := ps.shard(stagingArea).topoheight; topoheight != nil {
		return *topoheight, nil
	}
	return ps.topoheight, nil
}

func (ps *pruningStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := ps.shard(stagingArea)
	if shard.hash == nil {
		return nil
	}
	if err := dbTx.Put(pointKey, shard.hash.ByteSlice()); err != nil {
		return err
	}
	if err := dbTx.Put(topoheightKey, encodeUint64(*shard.topoheight)); err != nil {
		return err
	}
	ps.hash = shard.hash
	ps.topoheight = *shard.topoheight
	return nil
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf[:]
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
