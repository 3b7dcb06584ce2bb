// Package versionedstore implements the (key, topoheight) -> value key
// encoding shared by every account-domain store (spec.md §3 "Versioned
// world state"): accounts, balances, frozen balances, delegations and
// contracts all key their entries as ownerPrefix || topoheightBigEndian
// so that a forward cursor scan over an owner's prefix visits versions in
// ascending topoheight order.
package versionedstore

import (
	"encoding/binary"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
)

// EncodeKey appends the big-endian topoheight suffix to ownerPrefix so
// lexicographic key order matches numeric topoheight order.
func EncodeKey(ownerPrefix []byte, topoheight uint64) []byte {
	key := make([]byte, len(ownerPrefix)+8)
	copy(key, ownerPrefix)
	binary.BigEndian.PutUint64(key[len(ownerPrefix):], topoheight)
	return key
}

// DecodeTopoheight reads the trailing 8-byte big-endian topoheight suffix
// written by EncodeKey.
func DecodeTopoheight(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// GetLatest scans the entries keyed under ownerPrefix and returns the
// value with the greatest topoheight <= atTopoheight, or found=false if
// none qualifies.
func GetLatest(dbContext model.DBReader, ownerPrefix []byte, atTopoheight uint64) (value []byte, found bool, err error) {
	cursor, err := dbContext.Cursor(ownerPrefix)
	if err != nil {
		return nil, false, err
	}
	defer cursor.Close()

	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, false, err
		}
		topoheight := DecodeTopoheight(key)
		if topoheight > atTopoheight {
			break
		}
		value, err = cursor.Value()
		if err != nil {
			return nil, false, err
		}
		found = true
	}
	return value, found, nil
}

// DeleteFrom deletes every entry in the bucket (across all owners) whose
// encoded topoheight is >= topoheightExclusive. Used to roll back a
// versioned store's world state to a common ancestor during a reorg
// (spec.md §4.7 step 3).
func DeleteFrom(db model.DBManager, bucketPrefix []byte, topoheightExclusive uint64) error {
	cursor, err := db.Cursor(bucketPrefix)
	if err != nil {
		return err
	}
	defer cursor.Close()

	var toDelete [][]byte
	for cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		if DecodeTopoheight(key) >= topoheightExclusive {
			keyCopy := make([]byte, len(key))
			copy(keyCopy, key)
			toDelete = append(toDelete, keyCopy)
		}
	}
	for _, key := range toDelete {
		if err := db.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
