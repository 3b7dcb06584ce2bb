package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// ContractHost is the storage/account surface a contract invocation runs
// against (spec.md §6.2). The VM that interprets a deployed module's
// bytecode against this surface is out of scope for the consensus core;
// only the host interface it would call into is specified here.
type ContractHost interface {
	StorageRead(contract [32]byte, key string) ([]byte, bool, error)
	StorageWrite(contract [32]byte, key string, value []byte) error
	GetBalance(account [32]byte, asset *externalapi.DomainHash) (uint64, error)
	Transfer(from, to [32]byte, asset *externalapi.DomainHash, amount uint64) error
	Log(contract [32]byte, topics []string, data []byte)
	GetCaller() [32]byte
	GetBlockTime() int64
	Meter() ComputeMeter
}

// ComputeMeter charges gas-denominated compute units against an
// invocation's budget, failing once the budget is exhausted.
type ComputeMeter interface {
	Charge(units uint64) error
}
