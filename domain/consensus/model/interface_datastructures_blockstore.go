package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// BlockStore stores full block bodies (header already lives in
// BlockHeaderStore) keyed by hash.
type BlockStore interface {
	Stage(stagingArea *StagingArea, blockHash *externalapi.DomainHash, block *externalapi.DomainBlock)
	IsStaged(stagingArea *StagingArea) bool
	Block(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*externalapi.DomainBlock, error)
	HasBlock(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
	Delete(stagingArea *StagingArea, blockHash *externalapi.DomainHash)
	Count(stagingArea *StagingArea) uint64
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
