// Package topoheightstore maps a block hash to its selected-parent-chain
// position (topoheight), grounded on blockstatusstore's cache/shard/
// bucket shape.
package topoheightstore

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("topoheights"))

type topoheightStoreShard struct {
	staging map[externalapi.DomainHash]uint64
	deleted map[externalapi.DomainHash]struct{}
}

func newShard() interface{} {
	return &topoheightStoreShard{
		staging: make(map[externalapi.DomainHash]uint64),
		deleted: make(map[externalapi.DomainHash]struct{}),
	}
}

type topoheightStore struct {
	cache *lru.Cache[externalapi.DomainHash, uint64]
}

// New instantiates a new TopoheightStore.
func New(cacheSize int) (model.TopoheightStore, error) {
	cache, err := lru.New[externalapi.DomainHash, uint64](cacheSize)
	if err != nil {
		return nil, err
	}
	return &topoheightStore{cache: cache}, nil
}

func (ts *topoheightStore) shard(stagingArea *model.StagingArea) *topoheightStoreShard {
	return stagingArea.ShardFor(ts, newShard).(*topoheightStoreShard)
}

func (ts *topoheightStore) Stage(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, topoheight uint64) {
	shard := ts.shard(stagingArea)
	delete(shard.deleted, *blockHash)
	shard.staging[*blockHash] = topoheight
}

func (ts *topoheightStore) Delete(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) {
	shard := ts.shard(stagingArea)
	delete(shard.staging, *blockHash)
	shard.deleted[*blockHash] = struct{}{}
}

func (ts *topoheightStore) IsStaged(stagingArea *model.StagingArea) bool {
	shard := ts.shard(stagingArea)
	return len(shard.staging) != 0 || len(shard.deleted) != 0
}

func (ts *topoheightStore) Topoheight(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (uint64, bool, error) {
	shard := ts.shard(stagingArea)
	if _, ok := shard.deleted[*blockHash]; ok {
		return 0, false, nil
	}
	if topoheight, ok := shard.staging[*blockHash]; ok {
		return topoheight, true, nil
	}
	if topoheight, ok := ts.cache.Get(*blockHash); ok {
		return topoheight, true, nil
	}
	has, err := dbContext.Has(topoheightKey(blockHash))
	if err != nil {
		return 0, false, err
	}
	if !has {
		return 0, false, nil
	}
	raw, err := dbContext.Get(topoheightKey(blockHash))
	if err != nil {
		return 0, false, err
	}
	topoheight := binary.LittleEndian.Uint64(raw)
	ts.cache.Add(*blockHash, topoheight)
	return topoheight, true, nil
}

// Commit flushes staged topoheight assignments and deletions through dbTx.
func (ts *topoheightStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := ts.shard(stagingArea)
	for hash := range shard.deleted {
		if err := dbTx.Delete(topoheightKey(&hash)); err != nil {
			return err
		}
		ts.cache.Remove(hash)
	}
	for hash, topoheight := range shard.staging {
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], topoheight)
		if err := dbTx.Put(topoheightKey(&hash), raw[:]); err != nil {
			return err
		}
		ts.cache.Add(hash, topoheight)
	}
	return nil
}

func topoheightKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}
