package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// DAGTraversalManager walks the selected-parent chain and blue
// anticones, backing the DAA window and reorg fork-point search.
type DAGTraversalManager interface {
	HighestChainBlockBelowBlueScore(stagingArea *StagingArea, highHash *externalapi.DomainHash, blueScore uint64) (*externalapi.DomainHash, error)
	SelectedParentIterator(stagingArea *StagingArea, highHash *externalapi.DomainHash) (SelectedParentIterator, error)

	// BlueWindow returns the blockWindowSize most recent blocks, by blue
	// work, in highHash's selected-parent-chain blue past — the window
	// the DAA and hashrate estimators fold over (spec.md §4.2).
	BlueWindow(stagingArea *StagingArea, highHash *externalapi.DomainHash, windowSize uint64) ([]*externalapi.DomainHash, error)

	// LowestCommonAncestor returns the fork point of two chain tips —
	// the deepest block that is an ancestor of both (spec.md §4.7).
	LowestCommonAncestor(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (*externalapi.DomainHash, error)
}
