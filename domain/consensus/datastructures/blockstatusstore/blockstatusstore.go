package blockstatusstore

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("block-statuses"))

type blockStatusStoreShard struct {
	staging map[externalapi.DomainHash]externalapi.BlockStatus
}

func newShard() interface{} {
	return &blockStatusStoreShard{staging: make(map[externalapi.DomainHash]externalapi.BlockStatus)}
}

// blockStatusStore tracks each block's position in the acceptance
// pipeline.
type blockStatusStore struct {
	cache *lru.Cache[externalapi.DomainHash, externalapi.BlockStatus]
}

// New instantiates a new BlockStatusStore.
func New(cacheSize int) (model.BlockStatusStore, error) {
	cache, err := lru.New[externalapi.DomainHash, externalapi.BlockStatus](cacheSize)
	if err != nil {
		return nil, err
	}
	return &blockStatusStore{cache: cache}, nil
}

func (bss *blockStatusStore) shard(stagingArea *model.StagingArea) *blockStatusStoreShard {
	return stagingArea.ShardFor(bss, newShard).(*blockStatusStoreShard)
}

func (bss *blockStatusStore) Stage(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, status externalapi.BlockStatus) {
	bss.shard(stagingArea).staging[*blockHash] = status
}

func (bss *blockStatusStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(bss.shard(stagingArea).staging) != 0
}

func (bss *blockStatusStore) Exists(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	if _, ok := bss.shard(stagingArea).staging[*blockHash]; ok {
		return true, nil
	}
	if bss.cache.Contains(*blockHash) {
		return true, nil
	}
	return dbContext.Has(statusKey(blockHash))
}

func (bss *blockStatusStore) Get(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (externalapi.BlockStatus, error) {
	if status, ok := bss.shard(stagingArea).staging[*blockHash]; ok {
		return status, nil
	}
	if status, ok := bss.cache.Get(*blockHash); ok {
		return status, nil
	}
	statusBytes, err := dbContext.Get(statusKey(blockHash))
	if err != nil {
		return 0, err
	}
	status := externalapi.BlockStatus(statusBytes[0])
	bss.cache.Add(*blockHash, status)
	return status, nil
}

// Commit flushes staged status writes through dbTx.
func (bss *blockStatusStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	for hash, status := range bss.shard(stagingArea).staging {
		if err := dbTx.Put(statusKey(&hash), []byte{byte(status)}); err != nil {
			return err
		}
		bss.cache.Add(hash, status)
	}
	return nil
}

func statusKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}
