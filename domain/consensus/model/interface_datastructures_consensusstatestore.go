package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// ConsensusStateStore tracks the DAG's current tip set — the piece of
// "virtual" state that isn't versioned per-account data. No selected tip
// is stored; callers derive it from the tips.
type ConsensusStateStore interface {
	StageTips(stagingArea *StagingArea, tips []*externalapi.DomainHash)
	IsStaged(stagingArea *StagingArea) bool
	Tips(dbContext DBReader, stagingArea *StagingArea) ([]*externalapi.DomainHash, error)
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
