// Package governance derives the pseudo-contract storage layout that
// named committees (spec.md §3 "Governance ops") are persisted under in
// contractStore, so the write side (consensusstatemanager's execution of
// a committee update) and the read side (transactionvalidator's approval
// check) agree on the same address and field encoding.
package governance

import (
	"strconv"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
)

const thresholdKey = "threshold"

// StorageAddress derives the pseudo-contract address a named committee's
// membership/threshold state is stored under.
func StorageAddress(committee string) [32]byte {
	var address [32]byte
	h := hashserialization.TransactionID(&externalapi.DomainTransaction{
		Payload: &externalapi.ContractDeployPayload{ModuleBytecode: []byte("committee:" + committee)},
	})
	copy(address[:], h[:])
	return address
}

func memberKey(i int) string {
	return "member:" + strconv.Itoa(i)
}

// EncodeUint32 and DecodeUint32 round-trip a threshold through the
// byte-slice values a Contract's Storage map holds.
func EncodeUint32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func DecodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Storage builds the Storage map written for a committee's registered
// threshold and member set, in the order the members are given.
func Storage(threshold uint32, members [][32]byte) map[string][]byte {
	storage := map[string][]byte{thresholdKey: EncodeUint32(threshold)}
	for i, member := range members {
		storage[memberKey(i)] = append([]byte(nil), member[:]...)
	}
	return storage
}

// Members extracts the registered threshold and member set from a
// committee's stored contract. Members are read back in storage-key
// order (member:0, member:1, ...) until a gap is hit.
func Members(contract *externalapi.Contract) (members [][32]byte, threshold uint32) {
	threshold = DecodeUint32(contract.Storage[thresholdKey])
	for i := 0; ; i++ {
		raw, ok := contract.Storage[memberKey(i)]
		if !ok {
			break
		}
		var member [32]byte
		copy(member[:], raw)
		members = append(members, member)
	}
	return members, threshold
}
