package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// GHOSTDAGManager computes and stages the GhostdagData of a candidate
// block given its parent set (spec.md §4.2).
type GHOSTDAGManager interface {
	// GHOSTDAG computes the blue set, blue score, blue work and mergeset
	// ordering for blockHash and stages the result. blockHash's parents
	// must already have staged or committed GhostdagData; a missing
	// parent is the "unknown parent" fatal failure mode.
	GHOSTDAG(stagingArea *StagingArea, blockHash *externalapi.DomainHash) error

	// ChooseSelectedParent picks, among the given candidates, the one
	// with the greater blue work (lexicographically greater hash on a
	// tie). Variadic since GHOSTDAG must be able to compare an entire
	// parent set, not just a pair.
	ChooseSelectedParent(stagingArea *StagingArea,
		blockHashes ...*externalapi.DomainHash) (*externalapi.DomainHash, error)
}

// GHOSTDAGDataStore stores the GhostdagData of every accepted block,
// staged per block and keyed by hash (spec.md §9: "shared access ... is
// via hash-keyed cache lookup").
type GHOSTDAGDataStore interface {
	Stage(stagingArea *StagingArea, blockHash *externalapi.DomainHash, data *externalapi.GhostdagData)
	Get(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*externalapi.GhostdagData, error)
	IsStaged(stagingArea *StagingArea) bool
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
