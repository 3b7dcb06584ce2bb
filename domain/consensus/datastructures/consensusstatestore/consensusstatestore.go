package consensusstatestore

import (
	"bytes"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("consensus-state"))
var tipsKey = bucket.Key([]byte("tips"))

type consensusStateStoreShard struct {
	stagedTips []*externalapi.DomainHash
}

func newShard() interface{} {
	return &consensusStateStoreShard{}
}

// consensusStateStore tracks the DAG's current tip set.
type consensusStateStore struct {
	tips []*externalapi.DomainHash
}

// New instantiates a new ConsensusStateStore.
func New(dbContext model.DBReader) (model.ConsensusStateStore, error) {
	store := &consensusStateStore{}
	hasTips, err := dbContext.Has(tipsKey)
	if err != nil {
		return nil, err
	}
	if hasTips {
		tipsBytes, err := dbContext.Get(tipsKey)
		if err != nil {
			return nil, err
		}
		tips, err := deserializeHashes(tipsBytes)
		if err != nil {
			return nil, err
		}
		store.tips = tips
	}
	return store, nil
}

func (c *consensusStateStore) shard(stagingArea *model.StagingArea) *consensusStateStoreShard {
	return stagingArea.ShardFor(c, newShard).(*consensusStateStoreShard)
}

func (c *consensusStateStore) StageTips(stagingArea *model.StagingArea, tips []*externalapi.DomainHash) {
	c.shard(stagingArea).stagedTips = tips
}

func (c *consensusStateStore) IsStaged(stagingArea *model.StagingArea) bool {
	return c.shard(stagingArea).stagedTips != nil
}

func (c *consensusStateStore) Tips(dbContext model.DBReader, stagingArea *model.StagingArea) ([]*externalapi.DomainHash, error) {
	if tips := c.shard(stagingArea).stagedTips; tips != nil {
		return tips, nil
	}
	return c.tips, nil
}

func (c *consensusStateStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := c.shard(stagingArea)
	if shard.stagedTips == nil {
		return nil
	}
	tipsBytes, err := serializeHashes(shard.stagedTips)
	if err != nil {
		return err
	}
	if err := dbTx.Put(tipsKey, tipsBytes); err != nil {
		return err
	}
	c.tips = shard.stagedTips
	return nil
}

func serializeHashes(hashes []*externalapi.DomainHash) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.WriteElement(&buf, uint64(len(hashes))); err != nil {
		return nil, err
	}
	for _, hash := range hashes {
		if err := hashserialization.WriteElement(&buf, hash); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func deserializeHashes(hashBytes []byte) ([]*externalapi.DomainHash, error) {
	r := bytes.NewReader(hashBytes)
	var count uint64
	if err := hashserialization.ReadElement(r, &count); err != nil {
		return nil, err
	}
	hashes := make([]*externalapi.DomainHash, count)
	for i := range hashes {
		hash := &externalapi.DomainHash{}
		if err := hashserialization.ReadElement(r, hash); err != nil {
			return nil, err
		}
		hashes[i] = hash
	}
	return hashes, nil
}
