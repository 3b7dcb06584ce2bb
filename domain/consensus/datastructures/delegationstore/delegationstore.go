package delegationstore

import (
	"bytes"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/versionedstore"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("delegations"))

type stagedEntry struct {
	delegations *externalapi.Delegations
	topoheight  uint64
}

type delegationStoreShard struct {
	staged map[[32]byte][]stagedEntry
}

func newShard() interface{} {
	return &delegationStoreShard{staged: make(map[[32]byte][]stagedEntry)}
}

// delegationStore is the versioned (public_key, topoheight) ->
// Delegations store tracking energy delegation edges (spec.md §3, §6.4).
type delegationStore struct {
	db model.DBManager
}

// New instantiates a new DelegationStore.
func New(db model.DBManager) model.DelegationStore {
	return &delegationStore{db: db}
}

func (s *delegationStore) shard(stagingArea *model.StagingArea) *delegationStoreShard {
	return stagingArea.ShardFor(s, newShard).(*delegationStoreShard)
}

func (s *delegationStore) Stage(stagingArea *model.StagingArea, publicKey [32]byte, topoheight uint64, delegations *externalapi.Delegations) {
	shard := s.shard(stagingArea)
	shard.staged[publicKey] = append(shard.staged[publicKey], stagedEntry{delegations: delegations.Clone(), topoheight: topoheight})
}

func (s *delegationStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(s.shard(stagingArea).staged) != 0
}

func (s *delegationStore) Delegations(dbContext model.DBReader, stagingArea *model.StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.Delegations, bool, error) {
	shard := s.shard(stagingArea)
	var best *externalapi.Delegations
	bestTopoheight := uint64(0)
	found := false
	for _, entry := range shard.staged[publicKey] {
		if entry.topoheight <= atTopoheight && (!found || entry.topoheight >= bestTopoheight) {
			best = entry.delegations
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
	delegations, err := deserializeDelegations(valueBytes)
	if err != nil {
		return nil, false, err
	}
	return delegations, true, nil
}

func (s *delegationStore) DeleteFrom(stagingArea *model.StagingArea, topoheightExclusive uint64) error {
	return versionedstore.DeleteFrom(s.db, bucket.Path(), topoheightExclusive)
}

func (s *delegationStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := s.shard(stagingArea)
	for publicKey, entries := range shard.staged {
		for _, entry := range entries {
			valueBytes, err := serializeDelegations(entry.delegations)
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

func serializeDelegations(delegations *externalapi.Delegations) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDelegationSlice(&buf, delegations.Out); err != nil {
		return nil, err
	}
	if err := writeDelegationSlice(&buf, delegations.In); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeDelegations(valueBytes []byte) (*externalapi.Delegations, error) {
	r := bytes.NewReader(valueBytes)
	out, err := readDelegationSlice(r)
	if err != nil {
		return nil, err
	}
	in, err := readDelegationSlice(r)
	if err != nil {
		return nil, err
	}
	return &externalapi.Delegations{Out: out, In: in}, nil
}

func writeDelegationSlice(w *bytes.Buffer, delegations []externalapi.Delegation) error {
	if err := hashserialization.WriteElement(w, uint64(len(delegations))); err != nil {
		return err
	}
	for _, d := range delegations {
		if err := hashserialization.WriteElement(w, d.Counterparty); err != nil {
			return err
		}
		if err := hashserialization.WriteElement(w, d.Amount); err != nil {
			return err
		}
		if err := hashserialization.WriteElement(w, d.LockedUntilMs); err != nil {
			return err
		}
	}
	return nil
}

func readDelegationSlice(r *bytes.Reader) ([]externalapi.Delegation, error) {
	var count uint64
	if err := hashserialization.ReadElement(r, &count); err != nil {
		return nil, err
	}
	delegations := make([]externalapi.Delegation, count)
	for i := range delegations {
		if err := hashserialization.ReadElement(r, &delegations[i].Counterparty); err != nil {
			return nil, err
		}
		if err := hashserialization.ReadElement(r, &delegations[i].Amount); err != nil {
			return nil, err
		}
		if err := hashserialization.ReadElement(r, &delegations[i].LockedUntilMs); err != nil {
			return nil, err
		}
	}
	return delegations, nil
}
