package blockstore

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("blocks"))
var countKey = bucket.Key([]byte("count"))

type blockStoreShard struct {
	toAdd    map[externalapi.DomainHash]*externalapi.DomainBlock
	toDelete map[externalapi.DomainHash]struct{}
}

func newShard() interface{} {
	return &blockStoreShard{
		toAdd:    make(map[externalapi.DomainHash]*externalapi.DomainBlock),
		toDelete: make(map[externalapi.DomainHash]struct{}),
	}
}

// blockStore stores full block bodies (transactions), keyed by hash.
type blockStore struct {
	cache *lru.Cache[externalapi.DomainHash, *externalapi.DomainBlock]
	count uint64
}

// New instantiates a new BlockStore.
func New(dbContext model.DBReader, cacheSize int) (model.BlockStore, error) {
	cache, err := lru.New[externalapi.DomainHash, *externalapi.DomainBlock](cacheSize)
	if err != nil {
		return nil, err
	}
	store := &blockStore{cache: cache}
	hasCount, err := dbContext.Has(countKey)
	if err != nil {
		return nil, err
	}
	if hasCount {
		countBytes, err := dbContext.Get(countKey)
		if err != nil {
			return nil, err
		}
		store.count = decodeUint64(countBytes)
	}
	return store, nil
}

func (bs *blockStore) shard(stagingArea *model.StagingArea) *blockStoreShard {
	return stagingArea.ShardFor(bs, newShard).(*blockStoreShard)
}

func (bs *blockStore) Stage(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) {
	shard := bs.shard(stagingArea)
	shard.toAdd[*blockHash] = block
	delete(shard.toDelete, *blockHash)
}

func (bs *blockStore) IsStaged(stagingArea *model.StagingArea) bool {
	shard := bs.shard(stagingArea)
	return len(shard.toAdd) != 0 || len(shard.toDelete) != 0
}

func (bs *blockStore) Block(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (*externalapi.DomainBlock, error) {
	shard := bs.shard(stagingArea)
	if block, ok := shard.toAdd[*blockHash]; ok {
		return block, nil
	}
	if block, ok := bs.cache.Get(*blockHash); ok {
		return block, nil
	}
	blockBytes, err := dbContext.Get(blockKey(blockHash))
	if err != nil {
		return nil, err
	}
	block, err := deserializeBlock(blockBytes)
	if err != nil {
		return nil, err
	}
	bs.cache.Add(*blockHash, block)
	return block, nil
}

func (bs *blockStore) HasBlock(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	shard := bs.shard(stagingArea)
	if _, ok := shard.toAdd[*blockHash]; ok {
		return true, nil
	}
	if bs.cache.Contains(*blockHash) {
		return true, nil
	}
	return dbContext.Has(blockKey(blockHash))
}

func (bs *blockStore) Delete(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) {
	shard := bs.shard(stagingArea)
	if _, ok := shard.toAdd[*blockHash]; ok {
		delete(shard.toAdd, *blockHash)
		return
	}
	shard.toDelete[*blockHash] = struct{}{}
}

func (bs *blockStore) Count(stagingArea *model.StagingArea) uint64 {
	shard := bs.shard(stagingArea)
	return bs.count + uint64(len(shard.toAdd)) - uint64(len(shard.toDelete))
}

// Commit flushes staged block adds/deletes for pruning (spec.md
// "Pruning point": bodies below the pruning point are discarded while
// headers are retained).
func (bs *blockStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := bs.shard(stagingArea)
	for hash, block := range shard.toAdd {
		blockBytes, err := serializeBlock(block)
		if err != nil {
			return err
		}
		if err := dbTx.Put(blockKey(&hash), blockBytes); err != nil {
			return err
		}
		bs.cache.Add(hash, block)
	}
	for hash := range shard.toDelete {
		if err := dbTx.Delete(blockKey(&hash)); err != nil {
			return err
		}
		bs.cache.Remove(hash)
	}
	bs.count = bs.count + uint64(len(shard.toAdd)) - uint64(len(shard.toDelete))
	return dbTx.Put(countKey, encodeUint64(bs.count))
}

func blockKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}

func serializeBlock(block *externalapi.DomainBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.SerializeHeader(&buf, block.Header); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(block.Transactions))); err != nil {
		return nil, err
	}
	for _, tx := range block.Transactions {
		if err := hashserialization.SerializeTransaction(&buf, tx); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func deserializeBlock(blockBytes []byte) (*externalapi.DomainBlock, error) {
	reader := bytes.NewReader(blockBytes)
	header, err := hashserialization.DeserializeHeader(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed deserializing block header")
	}
	var numTransactions uint64
	if err := hashserialization.ReadElement(reader, &numTransactions); err != nil {
		return nil, err
	}
	transactions := make([]*externalapi.DomainTransaction, numTransactions)
	for i := range transactions {
		tx, err := hashserialization.DeserializeTransaction(reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed deserializing transaction")
		}
		transactions[i] = tx
	}
	return &externalapi.DomainBlock{Header: header, Transactions: transactions}, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
