package reachabilitydatastore

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("reachability-data"))
var reindexRootKey = bucket.Key([]byte("reindex-root"))

type reachabilityDataStoreShard struct {
	staging     map[externalapi.DomainHash]*model.ReachabilityData
	reindexRoot *externalapi.DomainHash
}

func newShard() interface{} {
	return &reachabilityDataStoreShard{staging: make(map[externalapi.DomainHash]*model.ReachabilityData)}
}

// reachabilityDataStore persists the interval-tree node for every block
// (spec.md §4.1).
type reachabilityDataStore struct {
	cache       *lru.Cache[externalapi.DomainHash, *model.ReachabilityData]
	reindexRoot *externalapi.DomainHash
}

// New instantiates a new ReachabilityDataStore.
func New(cacheSize int) (model.ReachabilityDataStore, error) {
	cache, err := lru.New[externalapi.DomainHash, *model.ReachabilityData](cacheSize)
	if err != nil {
		return nil, err
	}
	return &reachabilityDataStore{cache: cache}, nil
}

func (rds *reachabilityDataStore) shard(stagingArea *model.StagingArea) *reachabilityDataStoreShard {
	return stagingArea.ShardFor(rds, newShard).(*reachabilityDataStoreShard)
}

func (rds *reachabilityDataStore) StageReachabilityData(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, data *model.ReachabilityData) {
	rds.shard(stagingArea).staging[*blockHash] = data
}

func (rds *reachabilityDataStore) StageReindexRoot(stagingArea *model.StagingArea, root *externalapi.DomainHash) {
	rds.shard(stagingArea).reindexRoot = root
}

func (rds *reachabilityDataStore) IsStaged(stagingArea *model.StagingArea) bool {
	shard := rds.shard(stagingArea)
	return len(shard.staging) != 0 || shard.reindexRoot != nil
}

func (rds *reachabilityDataStore) ReachabilityData(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (*model.ReachabilityData, error) {
	if data, ok := rds.shard(stagingArea).staging[*blockHash]; ok {
		return data.Clone(), nil
	}
	if data, ok := rds.cache.Get(*blockHash); ok {
		return data.Clone(), nil
	}
	dataBytes, err := dbContext.Get(dataKey(blockHash))
	if err != nil {
		return nil, err
	}
	data, err := deserializeData(dataBytes)
	if err != nil {
		return nil, err
	}
	rds.cache.Add(*blockHash, data)
	return data.Clone(), nil
}

func (rds *reachabilityDataStore) HasReachabilityData(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	if _, ok := rds.shard(stagingArea).staging[*blockHash]; ok {
		return true, nil
	}
	if rds.cache.Contains(*blockHash) {
		return true, nil
	}
	return dbContext.Has(dataKey(blockHash))
}

func (rds *reachabilityDataStore) ReindexRoot(dbContext model.DBReader, stagingArea *model.StagingArea) (*externalapi.DomainHash, error) {
	if root := rds.shard(stagingArea).reindexRoot; root != nil {
		return root, nil
	}
	if rds.reindexRoot != nil {
		return rds.reindexRoot, nil
	}
	hasRoot, err := dbContext.Has(reindexRootKey)
	if err != nil {
		return nil, err
	}
	if !hasRoot {
		return nil, nil
	}
	rootBytes, err := dbContext.Get(reindexRootKey)
	if err != nil {
		return nil, err
	}
	hash := externalapi.DomainHash{}
	copy(hash[:], rootBytes)
	rds.reindexRoot = &hash
	return rds.reindexRoot, nil
}

func (rds *reachabilityDataStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := rds.shard(stagingArea)
	for hash, data := range shard.staging {
		dataBytes, err := serializeData(data)
		if err != nil {
			return err
		}
		if err := dbTx.Put(dataKey(&hash), dataBytes); err != nil {
			return err
		}
		rds.cache.Add(hash, data)
	}
	if shard.reindexRoot != nil {
		if err := dbTx.Put(reindexRootKey, shard.reindexRoot.ByteSlice()); err != nil {
			return err
		}
		rds.reindexRoot = shard.reindexRoot
	}
	return nil
}

func dataKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}

func serializeData(data *model.ReachabilityData) ([]byte, error) {
	var buf bytes.Buffer
	present := byte(0)
	if data.TreeParent != nil {
		present = 1
	}
	if err := hashserialization.WriteElement(&buf, present); err != nil {
		return nil, err
	}
	if present == 1 {
		if err := hashserialization.WriteElement(&buf, data.TreeParent); err != nil {
			return nil, err
		}
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(data.TreeChildren))); err != nil {
		return nil, err
	}
	for _, child := range data.TreeChildren {
		if err := hashserialization.WriteElement(&buf, child); err != nil {
			return nil, err
		}
	}
	if err := hashserialization.WriteElement(&buf, data.Interval.Start, data.Interval.End); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(data.FutureCoveringTreeNodes))); err != nil {
		return nil, err
	}
	for _, node := range data.FutureCoveringTreeNodes {
		if err := hashserialization.WriteElement(&buf, node); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func deserializeData(dataBytes []byte) (*model.ReachabilityData, error) {
	r := bytes.NewReader(dataBytes)
	data := &model.ReachabilityData{Interval: &model.ReachabilityInterval{}}
	var present byte
	if err := hashserialization.ReadElement(r, &present); err != nil {
		return nil, err
	}
	if present == 1 {
		hash := &externalapi.DomainHash{}
		if err := hashserialization.ReadElement(r, hash); err != nil {
			return nil, err
		}
		data.TreeParent = hash
	}
	var childCount uint64
	if err := hashserialization.ReadElement(r, &childCount); err != nil {
		return nil, err
	}
	data.TreeChildren = make([]*externalapi.DomainHash, childCount)
	for i := range data.TreeChildren {
		hash := &externalapi.DomainHash{}
		if err := hashserialization.ReadElement(r, hash); err != nil {
			return nil, err
		}
		data.TreeChildren[i] = hash
	}
	if err := hashserialization.ReadElement(r, &data.Interval.Start); err != nil {
		return nil, err
	}
	if err := hashserialization.ReadElement(r, &data.Interval.End); err != nil {
		return nil, err
	}
	var fctCount uint64
	if err := hashserialization.ReadElement(r, &fctCount); err != nil {
		return nil, err
	}
	data.FutureCoveringTreeNodes = make([]*externalapi.DomainHash, fctCount)
	for i := range data.FutureCoveringTreeNodes {
		hash := &externalapi.DomainHash{}
		if err := hashserialization.ReadElement(r, hash); err != nil {
			return nil, err
		}
		data.FutureCoveringTreeNodes[i] = hash
	}
	return data, nil
}
