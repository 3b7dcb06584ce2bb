package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// BlockStatusStore tracks each block's position in the acceptance
// pipeline (spec.md §2).
type BlockStatusStore interface {
	Stage(stagingArea *StagingArea, blockHash *externalapi.DomainHash, status externalapi.BlockStatus)
	IsStaged(stagingArea *StagingArea) bool
	Exists(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
	Get(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (externalapi.BlockStatus, error)
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
