// Package consensus exposes the node's single externally-visible facade
// over every process and store wired by Factory: block template
// assembly, block acceptance, mempool admission, and account-state
// queries. Grounded on the teacher's `consensus.go` facade shape
// (a thin struct delegating to its injected managers) generalized from
// UTXO/appmessage types to this model's externalapi types.
package consensus

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// Consensus is the core state of a single network's node.
type Consensus interface {
	// BuildBlock assembles an unmined block template over the current
	// tip set (spec.md §4.8).
	BuildBlock(minerPublicKey [32]byte, extraData []byte, transactionSelector model.TransactionSelector) (*externalapi.DomainBlock, error)

	// ValidateAndInsertBlock runs the full acceptance pipeline on block
	// and, on success, evicts its transactions from the mempool and
	// re-admits whatever a reorg displaced.
	ValidateAndInsertBlock(block *externalapi.DomainBlock) (*model.BlockInsertionResult, error)

	// ValidateAndInsertTransaction admits transaction to the mempool
	// (spec.md §4.6).
	ValidateAndInsertTransaction(transaction *externalapi.DomainTransaction) error
	GetTransaction(transactionID *externalapi.DomainHash) (*externalapi.DomainTransaction, bool)

	// Tips returns the current DAG tip set.
	Tips() ([]*externalapi.DomainHash, error)

	// AccountNonce and AccountBalance answer against the heaviest tip's
	// topoheight, the chain's present view of account state.
	AccountNonce(publicKey [32]byte) (uint64, error)
	AccountBalance(publicKey [32]byte, asset *externalapi.DomainHash) (*externalapi.Balance, error)
}

type consensus struct {
	databaseContext model.DBReader

	blockProcessor        model.BlockProcessor
	blockBuilder          model.BlockBuilder
	consensusStateManager model.ConsensusStateManager
	dagTopologyManager    model.DAGTopologyManager
	mempool               model.Mempool

	blockStore        model.BlockStore
	ghostdagDataStore model.GHOSTDAGDataStore
	topoheightStore   model.TopoheightStore
}

func (c *consensus) BuildBlock(
	minerPublicKey [32]byte, extraData []byte, transactionSelector model.TransactionSelector,
) (*externalapi.DomainBlock, error) {
	return c.blockBuilder.BuildBlock(minerPublicKey, extraData, transactionSelector)
}

func (c *consensus) ValidateAndInsertBlock(block *externalapi.DomainBlock) (*model.BlockInsertionResult, error) {
	result, err := c.blockProcessor.ValidateAndInsertBlock(block)
	if err != nil {
		return nil, err
	}

	if err := c.mempool.HandleNewBlockTransactions(block); err != nil {
		return nil, err
	}

	if len(result.SelectedParentChainChanges.Removed) > 0 {
		stagingArea := model.NewStagingArea()
		removedBlocks := make([]*externalapi.DomainBlock, 0, len(result.SelectedParentChainChanges.Removed))
		for _, hash := range result.SelectedParentChainChanges.Removed {
			removedBlock, err := c.blockStore.Block(c.databaseContext, stagingArea, hash)
			if err != nil {
				return nil, err
			}
			removedBlocks = append(removedBlocks, removedBlock)
		}
		if err := c.mempool.RevalidateAfterReorg(removedBlocks); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (c *consensus) ValidateAndInsertTransaction(transaction *externalapi.DomainTransaction) error {
	return c.mempool.ValidateAndInsertTransaction(transaction)
}

func (c *consensus) GetTransaction(transactionID *externalapi.DomainHash) (*externalapi.DomainTransaction, bool) {
	return c.mempool.GetTransaction(transactionID)
}

func (c *consensus) Tips() ([]*externalapi.DomainHash, error) {
	return c.dagTopologyManager.Tips(model.NewStagingArea())
}

func (c *consensus) AccountNonce(publicKey [32]byte) (uint64, error) {
	topoheight, err := c.headTopoheight()
	if err != nil {
		return 0, err
	}
	return c.consensusStateManager.AccountNonce(c.databaseContext, publicKey, topoheight)
}

func (c *consensus) AccountBalance(publicKey [32]byte, asset *externalapi.DomainHash) (*externalapi.Balance, error) {
	topoheight, err := c.headTopoheight()
	if err != nil {
		return nil, err
	}
	return c.consensusStateManager.AccountBalance(c.databaseContext, publicKey, asset, topoheight)
}

// headTopoheight returns the topoheight of the heaviest current tip,
// mirroring pruningManager's and mempool's own copy of this same lookup
// (each package owns its read rather than sharing a helper, consistent
// with how the rest of this tree is wired).
func (c *consensus) headTopoheight() (uint64, error) {
	stagingArea := model.NewStagingArea()
	tips, err := c.dagTopologyManager.Tips(stagingArea)
	if err != nil {
		return 0, err
	}
	var best *externalapi.DomainHash
	var bestBlueScore uint64
	for _, tip := range tips {
		data, err := c.ghostdagDataStore.Get(c.databaseContext, stagingArea, tip)
		if err != nil {
			return 0, err
		}
		if best == nil || data.BlueScore > bestBlueScore {
			best = tip
			bestBlueScore = data.BlueScore
		}
	}
	if best == nil {
		return 0, nil
	}
	topoheight, _, err := c.topoheightStore.Topoheight(c.databaseContext, stagingArea, best)
	return topoheight, err
}
