package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// ReachabilityManager answers ancestry queries over the block DAG in
// O(log n) via the interval-tree reachability structure of spec.md §4.1,
// and maintains that structure as new blocks and reorgs arrive.
type ReachabilityManager interface {
	Init(stagingArea *StagingArea) error
	AddBlock(stagingArea *StagingArea, blockHash *externalapi.DomainHash) error
	IsReachabilityTreeAncestorOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsDAGAncestorOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	UpdateReindexRoot(stagingArea *StagingArea, selectedTip *externalapi.DomainHash) error
}
