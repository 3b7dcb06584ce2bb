// Package dagtraversalmanager walks the selected-parent chain and blue
// anticones: the selected-parent iterator, the DAA/hashrate blue
// window, and reorg fork-point search (spec.md §4.2, §4.3, §4.7).
package dagtraversalmanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// dagTraversalManager exposes methods for traversing blocks in the DAG.
type dagTraversalManager struct {
	databaseContext      model.DBReader
	dagTopologyManager   model.DAGTopologyManager
	ghostdagManager      model.GHOSTDAGManager
	ghostdagDataStore    model.GHOSTDAGDataStore
	consensusStateStore  model.ConsensusStateStore
}

// New instantiates a new DAGTraversalManager.
func New(
	databaseContext model.DBReader,
	dagTopologyManager model.DAGTopologyManager,
	ghostdagManager model.GHOSTDAGManager,
	ghostdagDataStore model.GHOSTDAGDataStore,
	consensusStateStore model.ConsensusStateStore,
) model.DAGTraversalManager {
	return &dagTraversalManager{
		databaseContext:     databaseContext,
		dagTopologyManager:  dagTopologyManager,
		ghostdagManager:     ghostdagManager,
		ghostdagDataStore:   ghostdagDataStore,
		consensusStateStore: consensusStateStore,
	}
}

// HighestChainBlockBelowBlueScore returns the hash of the highest block
// with a blue score lower than the given blueScore in highHash's
// selected-parent chain.
func (dtm *dagTraversalManager) HighestChainBlockBelowBlueScore(
	stagingArea *model.StagingArea, highHash *externalapi.DomainHash, blueScore uint64,
) (*externalapi.DomainHash, error) {
	iterator, err := dtm.SelectedParentIterator(stagingArea, highHash)
	if err != nil {
		return nil, err
	}
	for iterator.Next() {
		current, err := iterator.Get()
		if err != nil {
			return nil, err
		}
		data, err := dtm.ghostdagDataStore.Get(dtm.databaseContext, stagingArea, current)
		if err != nil {
			return nil, err
		}
		if data.BlueScore < blueScore {
			return current, nil
		}
	}
	return nil, nil
}

// BlueWindow returns up to windowSize of the most recent blocks, by
// selected-parent-chain depth, in highHash's blue past: the selected
// parent chain itself plus each chain block's mergeset blues, taken in
// descending blue-score order until windowSize blocks are collected or
// genesis is reached.
func (dtm *dagTraversalManager) BlueWindow(
	stagingArea *model.StagingArea, highHash *externalapi.DomainHash, windowSize uint64,
) ([]*externalapi.DomainHash, error) {
	window := make([]*externalapi.DomainHash, 0, windowSize)

	current := highHash
	for current != nil && uint64(len(window)) < windowSize {
		data, err := dtm.ghostdagDataStore.Get(dtm.databaseContext, stagingArea, current)
		if err != nil {
			return nil, err
		}

		window = append(window, current)
		for _, blue := range data.MergeSetBlues {
			if blue.Equal(data.SelectedParent) {
				continue
			}
			if uint64(len(window)) >= windowSize {
				break
			}
			window = append(window, blue)
		}

		current = data.SelectedParent
	}

	return window, nil
}

// LowestCommonAncestor returns the deepest block that is an ancestor of
// both blockHashA and blockHashB, found by walking blockHashB's
// selected-parent chain until a tree ancestor of blockHashA is found.
func (dtm *dagTraversalManager) LowestCommonAncestor(
	stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash,
) (*externalapi.DomainHash, error) {
	iterator, err := dtm.SelectedParentIterator(stagingArea, blockHashA)
	if err != nil {
		return nil, err
	}
	ancestorsOfA := make(map[externalapi.DomainHash]bool)
	for iterator.Next() {
		current, err := iterator.Get()
		if err != nil {
			return nil, err
		}
		ancestorsOfA[*current] = true
	}

	iterator, err = dtm.SelectedParentIterator(stagingArea, blockHashB)
	if err != nil {
		return nil, err
	}
	for iterator.Next() {
		current, err := iterator.Get()
		if err != nil {
			return nil, err
		}
		if ancestorsOfA[*current] {
			return current, nil
		}
	}
	return nil, nil
}
