package contractstore

import (
	"bytes"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/versionedstore"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("contracts"))

type stagedEntry struct {
	contract   *externalapi.Contract
	topoheight uint64
}

type contractStoreShard struct {
	staged map[[32]byte][]stagedEntry
}

func newShard() interface{} {
	return &contractStoreShard{staged: make(map[[32]byte][]stagedEntry)}
}

// contractStore is the versioned (contract_address, topoheight) ->
// Contract store holding deployed bytecode and key/value storage slots
// (spec.md §3, §6.2).
type contractStore struct {
	db model.DBManager
}

// New instantiates a new ContractStore.
func New(db model.DBManager) model.ContractStore {
	return &contractStore{db: db}
}

func (s *contractStore) shard(stagingArea *model.StagingArea) *contractStoreShard {
	return stagingArea.ShardFor(s, newShard).(*contractStoreShard)
}

func (s *contractStore) Stage(stagingArea *model.StagingArea, contractAddress [32]byte, topoheight uint64, contract *externalapi.Contract) {
	shard := s.shard(stagingArea)
	shard.staged[contractAddress] = append(shard.staged[contractAddress], stagedEntry{contract: contract.Clone(), topoheight: topoheight})
}

func (s *contractStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(s.shard(stagingArea).staged) != 0
}

func (s *contractStore) Contract(dbContext model.DBReader, stagingArea *model.StagingArea, contractAddress [32]byte, atTopoheight uint64) (*externalapi.Contract, bool, error) {
	shard := s.shard(stagingArea)
	var best *externalapi.Contract
	bestTopoheight := uint64(0)
	found := false
	for _, entry := range shard.staged[contractAddress] {
		if entry.topoheight <= atTopoheight && (!found || entry.topoheight >= bestTopoheight) {
			best = entry.contract
			bestTopoheight = entry.topoheight
			found = true
		}
	}
	if found {
		return best.Clone(), true, nil
	}

	valueBytes, found, err := versionedstore.GetLatest(dbContext, ownerKey(contractAddress), atTopoheight)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	contract, err := deserializeContract(valueBytes)
	if err != nil {
		return nil, false, err
	}
	return contract, true, nil
}

func (s *contractStore) DeleteFrom(stagingArea *model.StagingArea, topoheightExclusive uint64) error {
	return versionedstore.DeleteFrom(s.db, bucket.Path(), topoheightExclusive)
}

func (s *contractStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := s.shard(stagingArea)
	for contractAddress, entries := range shard.staged {
		for _, entry := range entries {
			valueBytes, err := serializeContract(entry.contract)
			if err != nil {
				return err
			}
			key := versionedstore.EncodeKey(ownerKey(contractAddress), entry.topoheight)
			if err := dbTx.Put(key, valueBytes); err != nil {
				return err
			}
		}
	}
	return nil
}

func ownerKey(contractAddress [32]byte) []byte {
	return bucket.Key(contractAddress[:])
}

func serializeContract(contract *externalapi.Contract) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.WriteVarBytes(&buf, contract.ModuleBytecode); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(contract.Storage))); err != nil {
		return nil, err
	}
	for key, value := range contract.Storage {
		if err := hashserialization.WriteVarBytes(&buf, []byte(key)); err != nil {
			return nil, err
		}
		if err := hashserialization.WriteVarBytes(&buf, value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func deserializeContract(valueBytes []byte) (*externalapi.Contract, error) {
	r := bytes.NewReader(valueBytes)
	bytecode, err := hashserialization.ReadVarBytes(r)
	if err != nil {
		return nil, err
	}
	var count uint64
	if err := hashserialization.ReadElement(r, &count); err != nil {
		return nil, err
	}
	storage := make(map[string][]byte, count)
	for i := uint64(0); i < count; i++ {
		key, err := hashserialization.ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		value, err := hashserialization.ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		storage[string(key)] = value
	}
	return &externalapi.Contract{ModuleBytecode: bytecode, Storage: storage}, nil
}
