package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// TopoheightStore maps a block hash to its position on the selected
// parent chain (its topoheight), the linear index spec.md §3's versioned
// world state is keyed by. Chain blocks get their own topoheight; a
// merged blue/red block is recorded at the topoheight of the chain block
// that first applied it, so several blocks can share one topoheight.
type TopoheightStore interface {
	Stage(stagingArea *StagingArea, blockHash *externalapi.DomainHash, topoheight uint64)
	IsStaged(stagingArea *StagingArea) bool
	Topoheight(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (uint64, bool, error)
	// Delete removes blockHash's topoheight assignment. Used by reorgs
	// to un-assign blocks that leave the selected parent chain.
	Delete(stagingArea *StagingArea, blockHash *externalapi.DomainHash)
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
