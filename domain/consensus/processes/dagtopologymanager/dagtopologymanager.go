// Package dagtopologymanager answers direct and transitive DAG
// relationship queries, and tracks the live tip set.
package dagtopologymanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// dagTopologyManager exposes methods for querying relationships
// between blocks in the DAG.
type dagTopologyManager struct {
	databaseContext     model.DBReader
	reachabilityManager model.ReachabilityManager
	blockRelationStore  model.BlockRelationStore
	consensusStateStore model.ConsensusStateStore
}

// New instantiates a new DAGTopologyManager.
func New(
	databaseContext model.DBReader,
	reachabilityManager model.ReachabilityManager,
	blockRelationStore model.BlockRelationStore,
	consensusStateStore model.ConsensusStateStore,
) model.DAGTopologyManager {
	return &dagTopologyManager{
		databaseContext:     databaseContext,
		reachabilityManager: reachabilityManager,
		blockRelationStore:  blockRelationStore,
		consensusStateStore: consensusStateStore,
	}
}

// Parents returns the DAG parents of the given blockHash.
func (dtm *dagTopologyManager) Parents(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	blockRelations, err := dtm.blockRelationStore.Get(dtm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return blockRelations.Parents, nil
}

// Children returns the DAG children of the given blockHash.
func (dtm *dagTopologyManager) Children(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	blockRelations, err := dtm.blockRelationStore.Get(dtm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	return blockRelations.Children, nil
}

// IsParentOf returns true if blockHashA is a direct DAG parent of blockHashB.
func (dtm *dagTopologyManager) IsParentOf(stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	blockRelations, err := dtm.blockRelationStore.Get(dtm.databaseContext, stagingArea, blockHashB)
	if err != nil {
		return false, err
	}
	return isHashInSlice(blockHashA, blockRelations.Parents), nil
}

// IsChildOf returns true if blockHashA is a direct DAG child of blockHashB.
func (dtm *dagTopologyManager) IsChildOf(stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	blockRelations, err := dtm.blockRelationStore.Get(dtm.databaseContext, stagingArea, blockHashB)
	if err != nil {
		return false, err
	}
	return isHashInSlice(blockHashA, blockRelations.Children), nil
}

// IsAncestorOf returns true if blockHashA is a DAG ancestor of blockHashB.
func (dtm *dagTopologyManager) IsAncestorOf(stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	return dtm.reachabilityManager.IsDAGAncestorOf(stagingArea, blockHashA, blockHashB)
}

// IsDescendantOf returns true if blockHashA is a DAG descendant of blockHashB.
func (dtm *dagTopologyManager) IsDescendantOf(stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	return dtm.reachabilityManager.IsDAGAncestorOf(stagingArea, blockHashB, blockHashA)
}

// IsAncestorOfAny returns true if blockHash is an ancestor of at least one of potentialDescendants.
func (dtm *dagTopologyManager) IsAncestorOfAny(
	stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, potentialDescendants []*externalapi.DomainHash,
) (bool, error) {
	for _, descendant := range potentialDescendants {
		isAncestor, err := dtm.IsAncestorOf(stagingArea, blockHash, descendant)
		if err != nil {
			return false, err
		}
		if isAncestor {
			return true, nil
		}
	}
	return false, nil
}

// IsInSelectedParentChainOf returns true if blockHashA is in the
// selected-parent chain of blockHashB. The reachability tree IS the
// selected-parent tree (AddBlock only ever attaches a block under its
// GHOSTDAG selected parent), so tree ancestry is exactly
// selected-parent-chain membership.
func (dtm *dagTopologyManager) IsInSelectedParentChainOf(stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	return dtm.reachabilityManager.IsReachabilityTreeAncestorOf(stagingArea, blockHashA, blockHashB)
}

// Tips returns the DAG's current tip set.
func (dtm *dagTopologyManager) Tips(stagingArea *model.StagingArea) ([]*externalapi.DomainHash, error) {
	return dtm.consensusStateStore.Tips(dtm.databaseContext, stagingArea)
}

// AddTip adds tipHash to the tip set, removing any of its parents that
// were previously tips.
func (dtm *dagTopologyManager) AddTip(stagingArea *model.StagingArea, tipHash *externalapi.DomainHash) error {
	tips, err := dtm.consensusStateStore.Tips(dtm.databaseContext, stagingArea)
	if err != nil {
		return err
	}

	parents, err := dtm.Parents(stagingArea, tipHash)
	if err != nil {
		return err
	}
	parentSet := make(map[externalapi.DomainHash]bool, len(parents))
	for _, parent := range parents {
		parentSet[*parent] = true
	}

	newTips := make([]*externalapi.DomainHash, 0, len(tips)+1)
	for _, tip := range tips {
		if !parentSet[*tip] {
			newTips = append(newTips, tip)
		}
	}
	newTips = append(newTips, tipHash)

	dtm.consensusStateStore.StageTips(stagingArea, newTips)
	return nil
}

func isHashInSlice(hash *externalapi.DomainHash, hashes []*externalapi.DomainHash) bool {
	for _, h := range hashes {
		if h.Equal(hash) {
			return true
		}
	}
	return false
}
