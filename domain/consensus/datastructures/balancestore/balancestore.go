package balancestore

import (
	"bytes"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/versionedstore"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("balances"))

type stagedEntry struct {
	balance    *externalapi.Balance
	topoheight uint64
}

type balanceStoreShard struct {
	staged map[[64]byte][]stagedEntry
}

func newShard() interface{} {
	return &balanceStoreShard{staged: make(map[[64]byte][]stagedEntry)}
}

// balanceStore is the versioned (public_key, asset, topoheight) -> Balance
// store backing both plain and ElGamal-encrypted balances (spec.md §3, §5).
type balanceStore struct {
	db model.DBManager
}

// New instantiates a new BalanceStore.
func New(db model.DBManager) model.BalanceStore {
	return &balanceStore{db: db}
}

func (s *balanceStore) shard(stagingArea *model.StagingArea) *balanceStoreShard {
	return stagingArea.ShardFor(s, newShard).(*balanceStoreShard)
}

func (s *balanceStore) Stage(stagingArea *model.StagingArea, publicKey [32]byte, asset *externalapi.DomainHash, topoheight uint64, balance *externalapi.Balance) {
	shard := s.shard(stagingArea)
	owner := ownerCacheKey(publicKey, asset)
	shard.staged[owner] = append(shard.staged[owner], stagedEntry{balance: balance.Clone(), topoheight: topoheight})
}

func (s *balanceStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(s.shard(stagingArea).staged) != 0
}

func (s *balanceStore) Balance(dbContext model.DBReader, stagingArea *model.StagingArea, publicKey [32]byte, asset *externalapi.DomainHash, atTopoheight uint64) (*externalapi.Balance, bool, error) {
	shard := s.shard(stagingArea)
	owner := ownerCacheKey(publicKey, asset)
	var best *externalapi.Balance
	bestTopoheight := uint64(0)
	found := false
	for _, entry := range shard.staged[owner] {
		if entry.topoheight <= atTopoheight && (!found || entry.topoheight >= bestTopoheight) {
			best = entry.balance
			bestTopoheight = entry.topoheight
			found = true
		}
	}
	if found {
		return best.Clone(), true, nil
	}

	valueBytes, found, err := versionedstore.GetLatest(dbContext, ownerKey(publicKey, asset), atTopoheight)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	balance, err := deserializeBalance(valueBytes)
	if err != nil {
		return nil, false, err
	}
	return balance, true, nil
}

func (s *balanceStore) DeleteFrom(stagingArea *model.StagingArea, topoheightExclusive uint64) error {
	return versionedstore.DeleteFrom(s.db, bucket.Path(), topoheightExclusive)
}

func (s *balanceStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := s.shard(stagingArea)
	for owner, entries := range shard.staged {
		publicKey, asset := splitCacheKey(owner)
		for _, entry := range entries {
			valueBytes, err := serializeBalance(entry.balance)
			if err != nil {
				return err
			}
			key := versionedstore.EncodeKey(ownerKey(publicKey, asset), entry.topoheight)
			if err := dbTx.Put(key, valueBytes); err != nil {
				return err
			}
		}
	}
	return nil
}

func ownerKey(publicKey [32]byte, asset *externalapi.DomainHash) []byte {
	suffix := make([]byte, 0, 64)
	suffix = append(suffix, publicKey[:]...)
	suffix = append(suffix, asset.ByteSlice()...)
	return bucket.Key(suffix)
}

func ownerCacheKey(publicKey [32]byte, asset *externalapi.DomainHash) [64]byte {
	var key [64]byte
	copy(key[:32], publicKey[:])
	copy(key[32:], asset.ByteSlice())
	return key
}

func splitCacheKey(key [64]byte) ([32]byte, *externalapi.DomainHash) {
	var publicKey [32]byte
	copy(publicKey[:], key[:32])
	asset := externalapi.DomainHash{}
	copy(asset[:], key[32:])
	return publicKey, &asset
}

func serializeBalance(balance *externalapi.Balance) ([]byte, error) {
	var buf bytes.Buffer
	isPrivate := byte(0)
	if balance.IsPrivate {
		isPrivate = 1
	}
	if err := hashserialization.WriteElement(&buf, isPrivate); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, balance.PlainAmount); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteVarBytes(&buf, balance.Ciphertext); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeBalance(valueBytes []byte) (*externalapi.Balance, error) {
	r := bytes.NewReader(valueBytes)
	balance := &externalapi.Balance{}
	var isPrivate byte
	if err := hashserialization.ReadElement(r, &isPrivate); err != nil {
		return nil, err
	}
	balance.IsPrivate = isPrivate != 0
	if err := hashserialization.ReadElement(r, &balance.PlainAmount); err != nil {
		return nil, err
	}
	ciphertext, err := hashserialization.ReadVarBytes(r)
	if err != nil {
		return nil, err
	}
	balance.Ciphertext = ciphertext
	return balance, nil
}
