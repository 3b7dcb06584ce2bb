package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// ConsensusStateManager owns the execution engine (spec.md §4.5) and the
// reorg/chain validator (spec.md §4.7): it applies a block's ordered
// mergeset to the versioned world state and, when a heavier alternate
// chain arrives, replays and swaps to it atomically.
type ConsensusStateManager interface {
	// AddBlock topologically orders blockHash's mergeset (selected
	// parent's ordering, then this block's own mergeset_blues, then
	// mergeset_reds) and applies every transaction, staging the
	// resulting account/energy/contract state diff.
	AddBlock(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*SelectedParentChainChanges, error)

	// ValidateAndApplyBlockTransactions validates and applies the given
	// block's own transactions against the state as of
	// atTopoheight, returning the set of transactions that were
	// rejected (and therefore contributed no state change) without
	// aborting the rest of the block.
	ValidateAndApplyBlockTransactions(stagingArea *StagingArea, block *externalapi.DomainBlock,
		atTopoheight uint64) (rejected map[externalapi.DomainHash]error, err error)

	// Reorg replays the alternate branch from the fork point and, if it
	// validates and its accumulated blue work exceeds the current
	// chain's, swaps to it atomically (spec.md §4.7).
	Reorg(stagingArea *StagingArea, newTip *externalapi.DomainHash) (*SelectedParentChainChanges, error)

	AccountNonce(dbContext DBReader, publicKey [32]byte, atTopoheight uint64) (uint64, error)
	AccountBalance(dbContext DBReader, publicKey [32]byte, asset *externalapi.DomainHash, atTopoheight uint64) (*externalapi.Balance, error)
}
