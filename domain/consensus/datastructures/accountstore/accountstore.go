package accountstore

import (
	"bytes"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/versionedstore"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

var bucket = dbaccess.MakeBucket([]byte("accounts"))

type stagedEntry struct {
	account    *externalapi.Account
	topoheight uint64
}

type accountStoreShard struct {
	staged map[[32]byte][]stagedEntry
}

func newShard() interface{} {
	return &accountStoreShard{staged: make(map[[32]byte][]stagedEntry)}
}

// accountStore is the versioned (public_key, topoheight) -> Account store
// (spec.md §3 "Versioned world state").
type accountStore struct {
	db model.DBManager
}

// New instantiates a new AccountStore.
func New(db model.DBManager) model.AccountStore {
	return &accountStore{db: db}
}

func (s *accountStore) shard(stagingArea *model.StagingArea) *accountStoreShard {
	return stagingArea.ShardFor(s, newShard).(*accountStoreShard)
}

func (s *accountStore) Stage(stagingArea *model.StagingArea, publicKey [32]byte, topoheight uint64, account *externalapi.Account) {
	shard := s.shard(stagingArea)
	shard.staged[publicKey] = append(shard.staged[publicKey], stagedEntry{account: account.Clone(), topoheight: topoheight})
}

func (s *accountStore) IsStaged(stagingArea *model.StagingArea) bool {
	return len(s.shard(stagingArea).staged) != 0
}

func (s *accountStore) Account(dbContext model.DBReader, stagingArea *model.StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.Account, bool, error) {
	shard := s.shard(stagingArea)
	var best *externalapi.Account
	bestTopoheight := uint64(0)
	found := false
	for _, entry := range shard.staged[publicKey] {
		if entry.topoheight <= atTopoheight && (!found || entry.topoheight >= bestTopoheight) {
			best = entry.account
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
	account, err := deserializeAccount(valueBytes)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (s *accountStore) DeleteFrom(stagingArea *model.StagingArea, topoheightExclusive uint64) error {
	return versionedstore.DeleteFrom(s.db, bucket.Path(), topoheightExclusive)
}

func (s *accountStore) Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error {
	shard := s.shard(stagingArea)
	for publicKey, entries := range shard.staged {
		for _, entry := range entries {
			valueBytes, err := serializeAccount(entry.account)
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

func serializeAccount(account *externalapi.Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := hashserialization.WriteElement(&buf, account.PublicKey); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, account.Nonce); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, account.RegistrationTopoheight); err != nil {
		return nil, err
	}
	if account.Multisig == nil {
		if err := hashserialization.WriteElement(&buf, byte(0)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := hashserialization.WriteElement(&buf, byte(1)); err != nil {
		return nil, err
	}
	if err := hashserialization.WriteElement(&buf, uint64(len(account.Multisig.Members))); err != nil {
		return nil, err
	}
	for _, member := range account.Multisig.Members {
		if err := hashserialization.WriteElement(&buf, member); err != nil {
			return nil, err
		}
	}
	if err := hashserialization.WriteElement(&buf, account.Multisig.Threshold); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserializeAccount(valueBytes []byte) (*externalapi.Account, error) {
	r := bytes.NewReader(valueBytes)
	account := &externalapi.Account{}
	if err := hashserialization.ReadElement(r, &account.PublicKey); err != nil {
		return nil, err
	}
	if err := hashserialization.ReadElement(r, &account.Nonce); err != nil {
		return nil, err
	}
	if err := hashserialization.ReadElement(r, &account.RegistrationTopoheight); err != nil {
		return nil, err
	}
	var hasMultisig byte
	if err := hashserialization.ReadElement(r, &hasMultisig); err != nil {
		return nil, err
	}
	if hasMultisig == 0 {
		return account, nil
	}
	var memberCount uint64
	if err := hashserialization.ReadElement(r, &memberCount); err != nil {
		return nil, err
	}
	multisig := &externalapi.MultisigDescriptor{Members: make([][32]byte, memberCount)}
	for i := range multisig.Members {
		if err := hashserialization.ReadElement(r, &multisig.Members[i]); err != nil {
			return nil, err
		}
	}
	if err := hashserialization.ReadElement(r, &multisig.Threshold); err != nil {
		return nil, err
	}
	account.Multisig = multisig
	return account, nil
}
