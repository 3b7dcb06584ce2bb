package ghostdagdatastore

import (
	"bytes"
	"math/big"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("block-ghostdag-data"))

type ghostdagDataStoreShard struct {
	staging map[externalapi.DomainHash]*externalapi.GhostdagData
}

func newShard() interface{} {
	return &ghostdagDataStoreShard{staging: make(map[externalapi.DomainHash]*externalapi.GhostdagData)}
}

// ghostdagDataStore stores each accepted block's GhostdagData.
type ghostdagDataStore struct {
	cache *lru.Cache[externalapi.DomainHash, *externalapi.GhostdagData]
}

// New instantiates a new GHOSTDAGDataStore.
func New(cacheSize int) (model.GHOSTDAGDataStore, error) {
	cache, err := lru.New[externalapi.DomainHash, *externalapi.GhostdagData](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ghostdagDataStore{cache: cache}, nil
}

func (gds *ghostdagDataStore) shard(stagingArea *model.StagingArea) *ghostdagDataStoreShard {
	return stagingArea.ShardFor(gds, newShard).(*ghostdagDataStoreShard)
}

func (gds *ghostdagDataStore) Stage(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, data *externalapi.GhostdagData) {
	gds.shard(stagingArea).staging[*blockHash] = data.Clone()
}

func (gds *ghostdagDataStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(gds.shard(stagingArea).staging) != 0
}

func (gds *ghostdagDataStore) Get(dbContext model.DBReader, stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (*externalapi.GhostdagData, error) {
	if data, ok := gds.shard(stagingArea).staging[*blockHash]; ok {
		return data.Clone(), nil
	}
	if data, ok := gds.cache.Get(*blockHash); ok {
		return data.Clone(), nil
	}
	dataBytes, err := dbContext.Get(ghostdagKey(blockHash))
	if err != nil {
		return nil, err
	}
	data, err := deserializeGhostdagData(dataBytes)
	if err != nil {
		return nil, err
	}
	gds.cache.Add(*blockHash, data)
	return data.Clone(), nil
}

func (gds *ghostdagDataStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	for hash, data := range gds.shard(stagingArea).staging {
		dataBytes, err := serializeGhostdagData(data)
		if err != nil {
			return err
		}
		if err := dbTx.Put(ghostdagKey(&hash), dataBytes); err != nil {
			return err
		}
		gds.cache.Add(hash, data)
	}
	return nil
}

func ghostdagKey(hash *externalapi.DomainHash) []byte {
	return bucket.Key(hash.ByteSlice())
}

func serializeGhostdagData(data *externalapi.GhostdagData) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.WriteElement(&buf, data.BlueScore); err != nil {
		return nil, err
	}
	blueWorkBytes := data.BlueWork.Bytes()
	if err := hashserialization.WriteElement(&buf, uint64(len(blueWorkBytes))); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, blueWorkBytes); err != nil {
		return nil, err
	}
	if err := writeOptionalHash(&buf, data.SelectedParent); err != nil {
		return nil, err
	}
	if err := writeHashes(&buf, data.MergeSetBlues); err != nil {
		return nil, err
	}
	if err := writeHashes(&buf, data.MergeSetReds); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(data.BluesAnticoneSizes))); err != nil {
		return nil, err
	}
	for hash, size := range data.BluesAnticoneSizes {
		h := hash
		if err := hashserialization.WriteElement(&buf, &h); err != nil {
			return nil, err
		}
		if err := hashserialization.WriteElement(&buf, uint16(size)); err != nil {
			return nil, err
		}
	}
	if err := writeHashes(&buf, data.MergeSetNonDAA); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, data.DAAScore); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeGhostdagData(dataBytes []byte) (*externalapi.GhostdagData, error) {
	r := bytes.NewReader(dataBytes)
	data := &externalapi.GhostdagData{}
	if err := hashserialization.ReadElement(r, &data.BlueScore); err != nil {
		return nil, err
	}
	var blueWorkLen uint64
	if err := hashserialization.ReadElement(r, &blueWorkLen); err != nil {
		return nil, err
	}
	blueWorkBytes := make([]byte, blueWorkLen)
	if _, err := r.Read(blueWorkBytes); err != nil && blueWorkLen != 0 {
		return nil, err
	}
	data.BlueWork = new(big.Int).SetBytes(blueWorkBytes)

	selectedParent, err := readOptionalHash(r)
	if err != nil {
		return nil, err
	}
	data.SelectedParent = selectedParent

	if data.MergeSetBlues, err = readHashes(r); err != nil {
		return nil, err
	}
	if data.MergeSetReds, err = readHashes(r); err != nil {
		return nil, err
	}

	var anticoneCount uint64
	if err := hashserialization.ReadElement(r, &anticoneCount); err != nil {
		return nil, err
	}
	data.BluesAnticoneSizes = make(map[externalapi.DomainHash]externalapi.KType, anticoneCount)
	for i := uint64(0); i < anticoneCount; i++ {
		hash := externalapi.DomainHash{}
		if err := hashserialization.ReadElement(r, &hash); err != nil {
			return nil, err
		}
		var size uint16
		if err := hashserialization.ReadElement(r, &size); err != nil {
			return nil, err
		}
		data.BluesAnticoneSizes[hash] = externalapi.KType(size)
	}

	if data.MergeSetNonDAA, err = readHashes(r); err != nil {
		return nil, err
	}
	if err := hashserialization.ReadElement(r, &data.DAAScore); err != nil {
		return nil, err
	}
	return data, nil
}

func writeOptionalHash(w *bytes.Buffer, hash *externalapi.DomainHash) error {
	if hash == nil {
		return hashserialization.WriteElement(w, byte(0))
	}
	if err := hashserialization.WriteElement(w, byte(1)); err != nil {
		return err
	}
	return hashserialization.WriteElement(w, hash)
}

func readOptionalHash(r *bytes.Reader) (*externalapi.DomainHash, error) {
	var present byte
	if err := hashserialization.ReadElement(r, &present); err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	hash := &externalapi.DomainHash{}
	if err := hashserialization.ReadElement(r, hash); err != nil {
		return nil, err
	}
	return hash, nil
}

func writeHashes(w *bytes.Buffer, hashes []*externalapi.DomainHash) error {
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

func readHashes(r *bytes.Reader) ([]*externalapi.DomainHash, error) {
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
