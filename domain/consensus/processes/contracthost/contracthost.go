// Package contracthost implements model.ContractHost (spec.md §6.2): the
// storage/account surface a contract invocation runs against. It backs
// every operation directly against the versioned account-domain stores;
// interpreting a deployed module's bytecode against that surface is a
// VM's job, out of scope here. A Host is created fresh per invocation
// and charges its ComputeMeter against the invocation's declared gas
// budget; reentrancy across contract-to-contract calls is bounded by a
// per-contract call-depth guard, seeded here for whichever interpreter
// eventually drives it.
package contracthost

import (
	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/model/ruleerror"
)

// maxCallDepth bounds contract-to-contract reentrancy. No interpreter
// yet performs inter-contract calls, but the guard is part of the host
// surface one would call into via Enter/Exit.
const maxCallDepth = 8

// meter is the reference ComputeMeter: a fixed compute-unit budget that
// depletes monotonically and traps once exhausted.
type meter struct {
	remaining uint64
}

func newMeter(budget uint64) *meter {
	return &meter{remaining: budget}
}

func (m *meter) Charge(units uint64) error {
	if units > m.remaining {
		return &ruleerror.ContractTrap{Reason: "compute budget exhausted"}
	}
	m.remaining -= units
	return nil
}

// Host is the reference model.ContractHost.
type Host struct {
	databaseContext model.DBReader
	stagingArea     *model.StagingArea
	balanceStore    model.BalanceStore
	contractStore   model.ContractStore

	caller       [32]byte
	blockTimeMs  int64
	atTopoheight uint64
	meter        *meter

	reentrancyGuard map[externalapi.DomainHash]int
}

// New builds a Host scoped to a single transaction's invocation: caller
// is the invoking account, blockTimeMs the block's timestamp, gasBudget
// the invocation's compute budget.
func New(
	databaseContext model.DBReader, stagingArea *model.StagingArea,
	balanceStore model.BalanceStore, contractStore model.ContractStore,
	caller [32]byte, blockTimeMs int64, atTopoheight uint64, gasBudget uint64,
) *Host {
	return &Host{
		databaseContext: databaseContext,
		stagingArea:     stagingArea,
		balanceStore:    balanceStore,
		contractStore:   contractStore,
		caller:          caller,
		blockTimeMs:     blockTimeMs,
		atTopoheight:    atTopoheight,
		meter:           newMeter(gasBudget),
		reentrancyGuard: make(map[externalapi.DomainHash]int),
	}
}

func (h *Host) StorageRead(contract [32]byte, key string) ([]byte, bool, error) {
	record, exists, err := h.contractStore.Contract(h.databaseContext, h.stagingArea, contract, h.atTopoheight)
	if err != nil || !exists {
		return nil, false, err
	}
	value, ok := record.Storage[key]
	return value, ok, nil
}

func (h *Host) StorageWrite(contract [32]byte, key string, value []byte) error {
	record, exists, err := h.contractStore.Contract(h.databaseContext, h.stagingArea, contract, h.atTopoheight)
	if err != nil {
		return err
	}
	if !exists {
		return &ruleerror.PolicyViolation{Reason: "storage write targets an undeployed contract"}
	}
	clone := record.Clone()
	clone.Storage[key] = append([]byte(nil), value...)
	h.contractStore.Stage(h.stagingArea, contract, h.atTopoheight, clone)
	return nil
}

func (h *Host) GetBalance(account [32]byte, asset *externalapi.DomainHash) (uint64, error) {
	balance, exists, err := h.balanceStore.Balance(h.databaseContext, h.stagingArea, account, asset, h.atTopoheight)
	if err != nil || !exists || balance.IsPrivate {
		return 0, err
	}
	return balance.PlainAmount, nil
}

func (h *Host) Transfer(from, to [32]byte, asset *externalapi.DomainHash, amount uint64) error {
	fromBalance, exists, err := h.balanceStore.Balance(h.databaseContext, h.stagingArea, from, asset, h.atTopoheight)
	if err != nil {
		return err
	}
	newFrom := &externalapi.Balance{}
	if exists {
		newFrom = fromBalance.Clone()
	}
	if newFrom.IsPrivate {
		return errors.Errorf("cannot transfer from a private balance through the contract host")
	}
	if newFrom.PlainAmount < amount {
		return &ruleerror.InsufficientBalance{Asset: asset, Needed: amount, Have: newFrom.PlainAmount}
	}
	newFrom.PlainAmount -= amount
	h.balanceStore.Stage(h.stagingArea, from, asset, h.atTopoheight, newFrom)

	toBalance, exists, err := h.balanceStore.Balance(h.databaseContext, h.stagingArea, to, asset, h.atTopoheight)
	if err != nil {
		return err
	}
	newTo := &externalapi.Balance{}
	if exists {
		newTo = toBalance.Clone()
	}
	if newTo.IsPrivate {
		return errors.Errorf("cannot transfer into a private balance through the contract host")
	}
	newTo.PlainAmount += amount
	h.balanceStore.Stage(h.stagingArea, to, asset, h.atTopoheight, newTo)
	return nil
}

// Log has no event-log store to persist against yet; recording it is
// left to whichever caller wires one in.
func (h *Host) Log(contract [32]byte, topics []string, data []byte) {}

func (h *Host) GetCaller() [32]byte { return h.caller }

func (h *Host) GetBlockTime() int64 { return h.blockTimeMs }

func (h *Host) Meter() model.ComputeMeter { return h.meter }

// Enter records a contract invocation's call depth, rejecting reentrancy
// past maxCallDepth. Exit must be called once the invocation returns.
func (h *Host) Enter(contract externalapi.DomainHash) error {
	depth := h.reentrancyGuard[contract]
	if depth >= maxCallDepth {
		return &ruleerror.ContractTrap{Reason: "call depth exceeded"}
	}
	h.reentrancyGuard[contract] = depth + 1
	return nil
}

// Exit releases one level of call depth recorded by Enter.
func (h *Host) Exit(contract externalapi.DomainHash) {
	if h.reentrancyGuard[contract] > 0 {
		h.reentrancyGuard[contract]--
	}
}
