// Package consensusstatemanager implements the execution engine (spec.md
// §4.5) and the reorg/chain validator (spec.md §4.7): it walks a block's
// GHOSTDAG-ordered mergeset, applies every transaction to the versioned
// world state, and swaps to a heavier alternate chain when one is
// proven out. Grounded on the teacher's dependency-injected struct shape
// (every store/manager wired through New(...)) from
// consensusstatemanager.go, generalized from the UTXO diff-then-commit
// pattern in update_pruning_utxo_set.go/verify_and_build_utxo.go to an
// account-state diff applied through the versioned stores.
package consensusstatemanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
)

type consensusStateManager struct {
	databaseContext model.DBReader
	genesisHash     *externalapi.DomainHash
	finalityDepth   uint64

	ghostdagManager       model.GHOSTDAGManager
	dagTopologyManager    model.DAGTopologyManager
	dagTraversalManager   model.DAGTraversalManager
	pruningManager        model.PruningManager
	transactionValidator  model.TransactionValidator

	blockStore          model.BlockStore
	blockStatusStore    model.BlockStatusStore
	blockRelationStore  model.BlockRelationStore
	ghostdagDataStore   model.GHOSTDAGDataStore
	consensusStateStore model.ConsensusStateStore
	topoheightStore     model.TopoheightStore
	pruningStore        model.PruningStore
	pruneSafetyLimit    uint64

	accountStore       model.AccountStore
	balanceStore       model.BalanceStore
	frozenBalanceStore model.FrozenBalanceStore
	delegationStore    model.DelegationStore
	contractStore      model.ContractStore
}

// New instantiates a new ConsensusStateManager.
func New(
	databaseContext model.DBReader,
	params *dagconfig.Params,
	genesisHash *externalapi.DomainHash,
	ghostdagManager model.GHOSTDAGManager,
	dagTopologyManager model.DAGTopologyManager,
	dagTraversalManager model.DAGTraversalManager,
	pruningManager model.PruningManager,
	transactionValidator model.TransactionValidator,
	blockStore model.BlockStore,
	blockStatusStore model.BlockStatusStore,
	blockRelationStore model.BlockRelationStore,
	ghostdagDataStore model.GHOSTDAGDataStore,
	consensusStateStore model.ConsensusStateStore,
	topoheightStore model.TopoheightStore,
	pruningStore model.PruningStore,
	accountStore model.AccountStore,
	balanceStore model.BalanceStore,
	frozenBalanceStore model.FrozenBalanceStore,
	delegationStore model.DelegationStore,
	contractStore model.ContractStore,
) model.ConsensusStateManager {
	return &consensusStateManager{
		databaseContext:      databaseContext,
		genesisHash:          genesisHash,
		finalityDepth:        params.StableLimit,
		ghostdagManager:      ghostdagManager,
		dagTopologyManager:   dagTopologyManager,
		dagTraversalManager:  dagTraversalManager,
		pruningManager:       pruningManager,
		transactionValidator: transactionValidator,
		blockStore:           blockStore,
		blockStatusStore:     blockStatusStore,
		blockRelationStore:   blockRelationStore,
		ghostdagDataStore:    ghostdagDataStore,
		consensusStateStore:  consensusStateStore,
		topoheightStore:      topoheightStore,
		pruningStore:         pruningStore,
		pruneSafetyLimit:     params.PruneSafetyLimit,
		accountStore:         accountStore,
		balanceStore:         balanceStore,
		frozenBalanceStore:   frozenBalanceStore,
		delegationStore:      delegationStore,
		contractStore:        contractStore,
	}
}

// AccountNonce returns the account's nonce as of atTopoheight, or 0 for
// an account that has never transacted.
func (csm *consensusStateManager) AccountNonce(dbContext model.DBReader, publicKey [32]byte, atTopoheight uint64) (uint64, error) {
	stagingArea := model.NewStagingArea()
	account, exists, err := csm.accountStore.Account(dbContext, stagingArea, publicKey, atTopoheight)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	return account.Nonce, nil
}

// AccountBalance returns the account's balance in asset as of
// atTopoheight, or a zero plain balance for an account/asset pair that
// has never been touched.
func (csm *consensusStateManager) AccountBalance(dbContext model.DBReader, publicKey [32]byte, asset *externalapi.DomainHash, atTopoheight uint64) (*externalapi.Balance, error) {
	stagingArea := model.NewStagingArea()
	balance, exists, err := csm.balanceStore.Balance(dbContext, stagingArea, publicKey, asset, atTopoheight)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &externalapi.Balance{}, nil
	}
	return balance, nil
}
