package blockheaderstore

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("block-headers"))
var countKey = bucket.Key([]byte("count"))

type blockHeaderStoreShard struct {
	toAdd    map[externalapi.DomainHash]*externalapi.DomainBlockHeader
	toDelete map[externalapi.DomainHash]struct{}
}

func newShard() interface{} {
	return &blockHeaderStoreShard{
		toAdd:    make(map[externalapi.DomainHash]*externalapi.DomainBlockHeader),
		toDelete: make(map[externalapi.DomainHash]struct{}),
	}
}

// blockHeaderStore is the versioned-by-hash (headers are immutable once
// accepted, so there's no topoheight dimension here) store of block
// headers.
type blockHeaderStore struct {
	cache *lru.Cache[externalapi.DomainHash, *externalapi.DomainBlockHeader]
	count uint64
}

// New instantiates a new BlockHeaderStore.
func New(dbContext model.DBReader, cacheSize int) (model.BlockHeaderStore, error) {
	cache, err := lru.New[externalapi.DomainHash, *externalapi.DomainBlockHeader](cacheSize)
	if err != nil {
		return nil, err
	}
	store := &blockHeaderStore{cache: cache}
	if err := store.initializeCount(dbContext); err != nil {
		return nil, err
	}
	return store, nil
}

func (bhs *blockHeaderStore) initializeCount(dbContext model.DBReader) error {
	hasCount, err := dbContext.Has(countKey)
	if err != nil {
		return err
	}
	if !hasCount {
		return nil
	}
	countBytes, err := dbContext.Get(countKey)
	if err != nil {
		return err
	}
	bhs.count = deserializeCount(countBytes)
	return nil
}

func (bhs *blockHeaderStore) shard(stagingArea *model.StagingArea) *blockHeaderStoreShard {
	return stagingArea.ShardFor(bhs, newShard).(*blockHeaderStoreShard)
}

// Stage stages the given header for the given block hash.
func (bhs *blockHeaderStore) Stage(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, header *externalapi.DomainBlockHeader) {
	shard := bhs.shard(stagingArea)
	shard.toAdd[*blockHash] = header
	delete(shard.toDelete, *blockHash)
}

func (bhs *blockHeaderStore) IsStaged(stagingArea *model.StagingArea) bool {
	shard := bhs.shard(stagingArea)
	return len(shard.toAdd) != 0 || len(shard.toDelete) != 0
}

// BlockHeader returns the header for blockHash, checking the staging
// area, then the cache, then the database.
func (bhs *blockHeaderStore) BlockHeader(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error) {
	shard := bhs.shard(stagingArea)
	if header, ok := shard.toAdd[*blockHash]; ok {
		return header, nil
	}
	if header, ok := bhs.cache.Get(*blockHash); ok {
		return header, nil
	}

	headerBytes, err := dbContext.Get(headerKey(blockHash))
	if err != nil {
		return nil, err
	}
	header, err := deserializeHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	bhs.cache.Add(*blockHash, header)
	return header, nil
}

// HasBlockHeader returns whether a header is known for blockHash.
func (bhs *blockHeaderStore) HasBlockHeader(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	shard := bhs.shard(stagingArea)
	if _, ok := shard.toAdd[*blockHash]; ok {
		return true, nil
	}
	if bhs.cache.Contains(*blockHash) {
		return true, nil
	}
	return dbContext.Has(headerKey(blockHash))
}

// Delete marks blockHash's header for removal on commit.
func (bhs *blockHeaderStore) Delete(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) {
	shard := bhs.shard(stagingArea)
	if _, ok := shard.toAdd[*blockHash]; ok {
		delete(shard.toAdd, *blockHash)
		return
	}
	shard.toDelete[*blockHash] = struct{}{}
}

// Count returns the number of stored headers, including staged adds and
// minus staged deletes.
func (bhs *blockHeaderStore) Count(stagingArea *model.StagingArea) uint64 {
	shard := bhs.shard(stagingArea)
	return bhs.count + uint64(len(shard.toAdd)) - uint64(len(shard.toDelete))
}

// Commit flushes a staging area's header adds/deletes through dbTx and
// updates the in-memory count and cache.
func (bhs *blockHeaderStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := bhs.shard(stagingArea)
	for hash, header := range shard.toAdd {
		headerBytes, err := serializeHeader(header)
		if err != nil {
			return err
		}
		if err := dbTx.Put(headerKey(&hash), headerBytes); err != nil {
			return err
		}
		bhs.cache.Add(hash, header)
	}
	for hash := range shard.toDelete {
		if err := dbTx.Delete(headerKey(&hash)); err != nil {
			return err
		}
		bhs.cache.Remove(hash)
	}
	bhs.count = bhs.count + uint64(len(shard.toAdd)) - uint64(len(shard.toDelete))
	return dbTx.Put(countKey, serializeCount(bhs.count))
}

func headerKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}

func serializeHeader(header *externalapi.DomainBlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.SerializeHeader(&buf, header); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeHeader(headerBytes []byte) (*externalapi.DomainBlockHeader, error) {
	header, err := hashserialization.DeserializeHeader(bytes.NewReader(headerBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed deserializing block header")
	}
	return header, nil
}

func serializeCount(count uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(count >> (8 * i))
	}
	return buf
}

func deserializeCount(b []byte) uint64 {
	var count uint64
	for i := 0; i < 8 && i < len(b); i++ {
		count |= uint64(b[i]) << (8 * i)
	}
	return count
}
