package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// BlockRelations holds a block's parent and child hashes, as currently
// known (children accumulate as later blocks cite this one as a parent).
type BlockRelations struct {
	Parents  []*externalapi.DomainHash
	Children []*externalapi.DomainHash
}

// Clone returns a deep copy of the relations.
func (r *BlockRelations) Clone() *BlockRelations {
	if r == nil {
		return nil
	}
	return &BlockRelations{
		Parents:  externalapi.CloneHashes(r.Parents),
		Children: externalapi.CloneHashes(r.Children),
	}
}

// BlockRelationStore represents a store of BlockRelations
type BlockRelationStore interface {
	StageRelation(stagingArea *StagingArea, blockHash *externalapi.DomainHash, relations *BlockRelations)
	IsStaged(stagingArea *StagingArea) bool
	Get(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*BlockRelations, error)
	Has(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
