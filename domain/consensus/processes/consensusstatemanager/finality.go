package consensusstatemanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// finalityPoint returns the highest chain block whose blue score is
// strictly below tip's blue score minus finalityDepth — blocks at or below it are
// considered immutable, bounding how deep a Reorg may reach (spec.md
// §4.7, Glossary "Finality depth" STABLE_LIMIT).
func (csm *consensusStateManager) finalityPoint(stagingArea *model.StagingArea, tip *externalapi.DomainHash) (*externalapi.DomainHash, error) {
	tipGhostdagData, err := csm.ghostdagDataStore.Get(csm.databaseContext, stagingArea, tip)
	if err != nil {
		return nil, err
	}

	var blueScore uint64
	if tipGhostdagData.BlueScore >= csm.finalityDepth {
		blueScore = tipGhostdagData.BlueScore - csm.finalityDepth
	}

	return csm.dagTraversalManager.HighestChainBlockBelowBlueScore(stagingArea, tip, blueScore)
}

// violatesFinality reports whether blockHash lies outside tip's
// finality point's selected-parent chain — i.e. accepting blockHash
// would require reorganizing past an already-finalized block.
func (csm *consensusStateManager) violatesFinality(stagingArea *model.StagingArea, tip, blockHash *externalapi.DomainHash) (bool, error) {
	if blockHash.Equal(csm.genesisHash) {
		return false, nil
	}

	finalityPoint, err := csm.finalityPoint(stagingArea, tip)
	if err != nil {
		return false, err
	}

	isInChain, err := csm.dagTopologyManager.IsInSelectedParentChainOf(stagingArea, finalityPoint, blockHash)
	if err != nil {
		return false, err
	}
	return !isInChain, nil
}
