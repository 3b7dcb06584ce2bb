package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// ReachabilityData is a single block's interval-tree node: its
// allotted [interval.Start, interval.End) range, its tree children (in
// reachability-tree insertion order), and any future-covering-set blocks
// reachable via a DAG edge that isn't a tree edge (spec.md §4.1).
type ReachabilityData struct {
	TreeParent             *externalapi.DomainHash
	TreeChildren           []*externalapi.DomainHash
	Interval               *ReachabilityInterval
	FutureCoveringTreeNodes []*externalapi.DomainHash
}

// Clone returns a deep copy.
func (rd *ReachabilityData) Clone() *ReachabilityData {
	children := make([]*externalapi.DomainHash, len(rd.TreeChildren))
	copy(children, rd.TreeChildren)
	fcts := make([]*externalapi.DomainHash, len(rd.FutureCoveringTreeNodes))
	copy(fcts, rd.FutureCoveringTreeNodes)
	intervalClone := *rd.Interval
	return &ReachabilityData{
		TreeParent:              rd.TreeParent,
		TreeChildren:            children,
		Interval:                &intervalClone,
		FutureCoveringTreeNodes: fcts,
	}
}

// ReachabilityInterval is a half-open range [Start, End) allotted to a
// block within its ancestors' intervals; containment of child in parent
// answers ancestry queries in O(1) without walking the tree.
type ReachabilityInterval struct {
	Start uint64
	End   uint64
}

// ReachabilityDataStore persists each block's ReachabilityData.
type ReachabilityDataStore interface {
	StageReachabilityData(stagingArea *StagingArea, blockHash *externalapi.DomainHash, data *ReachabilityData)
	StageReindexRoot(stagingArea *StagingArea, root *externalapi.DomainHash)
	IsStaged(stagingArea *StagingArea) bool
	ReachabilityData(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (*ReachabilityData, error)
	HasReachabilityData(dbContext DBReader, stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
	ReindexRoot(dbContext DBReader, stagingArea *StagingArea) (*externalapi.DomainHash, error)
	Commit(dbTx DBTransaction, stagingArea *StagingArea) error
}
