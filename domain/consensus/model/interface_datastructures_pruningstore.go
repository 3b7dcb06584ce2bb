package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// PruningStore tracks the current pruning point — the earliest
// topoheight below which blocks and versioned state may be discarded
// (spec.md Glossary "Pruning point"; reorgs cannot cross it).
type PruningStore interface {
	StagePruningPoint(stagingArea *StagingArea, pruningPointHash *externalapi.DomainHash, topoheight uint64)
	IsStaged(stagingArea *StagingArea) bool
	PruningPoint(dbContext DBReader, stagingArea *StagingArea) (*externalapi.DomainHash, error)
	PruningPointTopoheight(dbContext DBReader, stagingArea *StagingArea) (uint64, error)
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
