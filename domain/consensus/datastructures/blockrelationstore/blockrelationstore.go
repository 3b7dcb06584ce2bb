package blockrelationstore

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("block-relations"))

type blockRelationStoreShard struct {
	staging map[externalapi.DomainHash]*model.BlockRelations
}

func newShard() interface{} {
	return &blockRelationStoreShard{staging: make(map[externalapi.DomainHash]*model.BlockRelations)}
}

// blockRelationStore tracks each block's parent/child set.
type blockRelationStore struct {
	cache *lru.Cache[externalapi.DomainHash, *model.BlockRelations]
}

// New instantiates a new BlockRelationStore.
func New(cacheSize int) (model.BlockRelationStore, error) {
	cache, err := lru.New[externalapi.DomainHash, *model.BlockRelations](cacheSize)
	if err != nil {
		return nil, err
	}
	return &blockRelationStore{cache: cache}, nil
}

func (brs *blockRelationStore) shard(stagingArea *model.StagingArea) *blockRelationStoreShard {
	return stagingArea.ShardFor(brs, newShard).(*blockRelationStoreShard)
}

func (brs *blockRelationStore) StageRelation(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, relations *model.BlockRelations) {
	brs.shard(stagingArea).staging[*blockHash] = relations
}

func (brs *blockRelationStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(brs.shard(stagingArea).staging) != 0
}

func (brs *blockRelationStore) Get(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (*model.BlockRelations, error) {
	if relations, ok := brs.shard(stagingArea).staging[*blockHash]; ok {
		return relations.Clone(), nil
	}
	if relations, ok := brs.cache.Get(*blockHash); ok {
		return relations.Clone(), nil
	}
	relationBytes, err := dbContext.Get(relationKey(blockHash))
	if err != nil {
		return nil, err
	}
	relations, err := deserializeRelations(relationBytes)
	if err != nil {
		return nil, err
	}
	brs.cache.Add(*blockHash, relations)
	return relations.Clone(), nil
}

func (brs *blockRelationStore) Has(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	if _, ok := brs.shard(stagingArea).staging[*blockHash]; ok {
		return true, nil
	}
	if brs.cache.Contains(*blockHash) {
		return true, nil
	}
	return dbContext.Has(relationKey(blockHash))
}

func (brs *blockRelationStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	for hash, relations := range brs.shard(stagingArea).staging {
		relationBytes, err := serializeRelations(relations)
		if err != nil {
			return err
		}
		if err := dbTx.Put(relationKey(&hash), relationBytes); err != nil {
			return err
		}
		brs.cache.Add(hash, relations)
	}
	return nil
}

func relationKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}

func serializeRelations(relations *model.BlockRelations) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHashSlice(&buf, relations.Parents); err != nil {
		return nil, err
	}
	if err := writeHashSlice(&buf, relations.Children); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeRelations(relationBytes []byte) (*model.BlockRelations, error) {
	r := bytes.NewReader(relationBytes)
	parents, err := readHashSlice(r)
	if err != nil {
		return nil, err
	}
	children, err := readHashSlice(r)
	if err != nil {
		return nil, err
	}
	return &model.BlockRelations{Parents: parents, Children: children}, nil
}

func writeHashSlice(w *bytes.Buffer, hashes []*externalapi.DomainHash) error {
	if err := hashserialization.WriteElement(w, uint64(len(hashes))); err != nil {
		return err
	}
	for _, hash := range hashes {
		if err := hashserialization.WriteElement(w, hash); err != nil {
			return err
		}
	}
	return nil
}

func readHashSlice(r *bytes.Reader) ([]*externalapi.DomainHash, error) {
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
