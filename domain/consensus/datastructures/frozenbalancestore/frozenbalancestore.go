package frozenbalancestore

import (
	"bytes"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/versionedstore"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("frozen-balances"))

type stagedEntry struct {
	frozen     *externalapi.FrozenBalance
	topoheight uint64
}

type frozenBalanceStoreShard struct {
	staged map[[32]byte][]stagedEntry
}

func newShard() interface{} {
	return &frozenBalanceStoreShard{staged: make(map[[32]byte][]stagedEntry)}
}

// frozenBalanceStore is the versioned (public_key, topoheight) ->
// FrozenBalance store backing energy staking and its unfreeze queue
// (spec.md §3, §6.4).
type frozenBalanceStore struct {
	db model.DBManager
}

// New instantiates a new FrozenBalanceStore.
func New(db model.DBManager) model.FrozenBalanceStore {
	return &frozenBalanceStore{db: db}
}

func (s *frozenBalanceStore) shard(stagingArea *model.StagingArea) *frozenBalanceStoreShard {
	return stagingArea.ShardFor(s, newShard).(*frozenBalanceStoreShard)
}

func (s *frozenBalanceStore) Stage(stagingArea *model.StagingArea, publicKey [32]byte, topoheight uint64, frozen *externalapi.FrozenBalance) {
	shard := s.shard(stagingArea)
	shard.staged[publicKey] = append(shard.staged[publicKey], stagedEntry{frozen: frozen.Clone(), topoheight: topoheight})
}

func (s *frozenBalanceStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(s.shard(stagingArea).staged) != 0
}

func (s *frozenBalanceStore) FrozenBalance(dbContext model.DBReader, stagingArea *model.StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.FrozenBalance, bool, error) {
	shard := s.shard(stagingArea)
	var best *externalapi.FrozenBalance
	bestTopoheight := uint64(0)
	found := false
	for _, entry := range shard.staged[publicKey] {
		if entry.topoheight <= atTopoheight && (!found || entry.topoheight >= bestTopoheight) {
			best = entry.frozen
			bestTopoheight = entry.topoheight
			found = true
		}
	}
	if found {
		return best.Clone(), true, nil
	}

	valueBytes, found, err := versionedstore.GetLatest(dbContext, ownerKey(publicKey), atTopoheight)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	frozen, err := deserializeFrozenBalance(valueBytes)
	if err != nil {
		return nil, false, err
	}
	return frozen, true, nil
}

func (s *frozenBalanceStore) DeleteFrom(stagingArea *model.StagingArea, topoheightExclusive uint64) error {
	return versionedstore.DeleteFrom(s.db, bucket.Path(), topoheightExclusive)
}

func (s *frozenBalanceStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := s.shard(stagingArea)
	for publicKey, entries := range shard.staged {
		for _, entry := range entries {
			valueBytes, err := serializeFrozenBalance(entry.frozen)
			if err != nil {
				return err
			}
			key := versionedstore.EncodeKey(ownerKey(publicKey), entry.topoheight)
			if err := dbTx.Put(key, valueBytes); err != nil {
				return err
			}
		}
	}
	return nil
}

func ownerKey(publicKey [32]byte) []byte {
	return bucket.Key(publicKey[:])
}

func serializeFrozenBalance(frozen *externalapi.FrozenBalance) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.WriteElement(&buf, frozen.Frozen); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(frozen.UnfreezeQueue))); err != nil {
		return nil, err
	}
	for _, entry := range frozen.UnfreezeQueue {
		if err := hashserialization.WriteElement(&buf, entry.Amount); err != nil {
			return nil, err
		}
		if err := hashserialization.WriteElement(&buf, entry.MatureTimestampMs); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func deserializeFrozenBalance(valueBytes []byte) (*externalapi.FrozenBalance, error) {
	r := bytes.NewReader(valueBytes)
	frozen := &externalapi.FrozenBalance{}
	if err := hashserialization.ReadElement(r, &frozen.Frozen); err != nil {
		return nil, err
	}
	var count uint64
	if err := hashserialization.ReadElement(r, &count); err != nil {
		return nil, err
	}
	frozen.UnfreezeQueue = make([]externalapi.UnfreezeEntry, count)
	for i := range frozen.UnfreezeQueue {
		if err := hashserialization.ReadElement(r, &frozen.UnfreezeQueue[i].Amount); err != nil {
			return nil, err
		}
		if err := hashserialization.ReadElement(r, &frozen.UnfreezeQueue[i].MatureTimestampMs); err != nil {
			return nil, err
		}
	}
	return frozen, nil
}
