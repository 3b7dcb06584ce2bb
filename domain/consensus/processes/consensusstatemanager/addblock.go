package consensusstatemanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// AddBlock assigns blockHash its topoheight and applies every
// transaction newly brought into view by its acceptance: first any
// blocks in its mergeset (MergeSetBlues in GHOSTDAG order, then
// MergeSetReds) that have not already been credited a topoheight by an
// earlier merge, then blockHash's own transactions (spec.md §4.5). A
// block can appear in more than one descendant's mergeset before one of
// them finally earns it a topoheight; the topoheightStore lookup makes
// that idempotent.
func (csm *consensusStateManager) AddBlock(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (*model.SelectedParentChainChanges, error) {
	ghostdagData, err := csm.ghostdagDataStore.Get(csm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return nil, err
	}

	var topoheight uint64
	if ghostdagData.IsGenesis() {
		topoheight = 0
	} else {
		selectedParentTopoheight, exists, err := csm.topoheightStore.Topoheight(csm.databaseContext, stagingArea, ghostdagData.SelectedParent)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errUnknownSelectedParentTopoheight(ghostdagData.SelectedParent)
		}
		topoheight = selectedParentTopoheight + 1

		// MergeSetBlues[0] is always the selected parent itself
		// (GhostdagData.New seeds it there); its transactions were
		// already applied when it was assigned its own topoheight.
		for _, mergedHash := range ghostdagData.MergeSetBlues[1:] {
			if err := csm.applyMergedBlockIfNew(stagingArea, mergedHash, topoheight); err != nil {
				return nil, err
			}
		}
		for _, mergedHash := range ghostdagData.MergeSetReds {
			if err := csm.applyMergedBlockIfNew(stagingArea, mergedHash, topoheight); err != nil {
				return nil, err
			}
		}
	}

	block, err := csm.blockStore.Block(csm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	if _, err := csm.ValidateAndApplyBlockTransactions(stagingArea, block, topoheight); err != nil {
		return nil, err
	}

	csm.topoheightStore.Stage(stagingArea, blockHash, topoheight)
	csm.blockStatusStore.Stage(stagingArea, blockHash, externalapi.StatusValid)

	return &model.SelectedParentChainChanges{Added: []*externalapi.DomainHash{blockHash}}, nil
}

// applyMergedBlockIfNew applies mergedHash's own transactions at
// topoheight unless an earlier merge has already done so.
func (csm *consensusStateManager) applyMergedBlockIfNew(stagingArea *model.StagingArea, mergedHash *externalapi.DomainHash, topoheight uint64) error {
	if _, exists, err := csm.topoheightStore.Topoheight(csm.databaseContext, stagingArea, mergedHash); err != nil {
		return err
	} else if exists {
		return nil
	}

	mergedBlock, err := csm.blockStore.Block(csm.databaseContext, stagingArea, mergedHash)
	if err != nil {
		return err
	}
	if _, err := csm.ValidateAndApplyBlockTransactions(stagingArea, mergedBlock, topoheight); err != nil {
		return err
	}
	csm.topoheightStore.Stage(stagingArea, mergedHash, topoheight)
	csm.blockStatusStore.Stage(stagingArea, mergedHash, externalapi.StatusValid)
	return nil
}

func errUnknownSelectedParentTopoheight(selectedParent *externalapi.DomainHash) error {
	return &unknownTopoheightError{blockHash: selectedParent}
}

type unknownTopoheightError struct {
	blockHash *externalapi.DomainHash
}

func (e *unknownTopoheightError) Error() string {
	return "selected parent " + e.blockHash.String() + " has no assigned topoheight"
}
