// Package transactionvalidator implements the per-transaction validation
// checklist of spec.md §4.4: structural checks, signature verification,
// nonce sequencing, reference staleness, balance/fee sufficiency, and
// payload-specific rules (privacy proofs, energy bounds, contract gas
// budgets, governance committee approvals). Grounded on the teacher's
// dependency-injected struct shape (sig cache, stores, `New(...)`
// constructor) in transactionvalidator.go, generalized from the UTXO/
// script model to the account/payload model of SPEC_FULL.md.
package transactionvalidator

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
)

// maxReferenceDepth bounds how far behind atTopoheight a transaction's
// reference topoheight may sit before it is considered stale replay
// bait (spec.md §4.4 check 4).
const maxReferenceDepth = 128

// maxGasPerTx bounds a single contract invocation or deployment's gas
// budget (spec.md §4.4 check 6 "Contract invoke").
const maxGasPerTx = 10_000_000

type transactionValidator struct {
	databaseContext model.DBReader

	dagTopologyManager model.DAGTopologyManager

	accountStore        model.AccountStore
	balanceStore        model.BalanceStore
	frozenBalanceStore  model.FrozenBalanceStore
	delegationStore     model.DelegationStore
	contractStore       model.ContractStore

	maxUnfreezeQueue  int
	maxLockPeriodDays uint32
}

// New instantiates a new TransactionValidator.
func New(
	databaseContext model.DBReader,
	dagTopologyManager model.DAGTopologyManager,
	accountStore model.AccountStore,
	balanceStore model.BalanceStore,
	frozenBalanceStore model.FrozenBalanceStore,
	delegationStore model.DelegationStore,
	contractStore model.ContractStore,
	params *dagconfig.Params,
) model.TransactionValidator {
	return &transactionValidator{
		databaseContext:    databaseContext,
		dagTopologyManager: dagTopologyManager,
		accountStore:       accountStore,
		balanceStore:       balanceStore,
		frozenBalanceStore: frozenBalanceStore,
		delegationStore:    delegationStore,
		contractStore:      contractStore,
		maxUnfreezeQueue:   params.MaxUnfreezeQueue,
		maxLockPeriodDays:  params.MaxLockPeriodDays,
	}
}
