// Package reachabilitymanager implements the interval-tree reachability
// structure of spec.md §4.1: every block owns a half-open interval within
// its tree parent's interval, so "is A an ancestor of B" reduces to an
// O(1) range-containment check for tree edges, falling back to a binary
// search over each node's future-covering set for DAG edges that aren't
// tree edges.
//
// No teacher source in the retrieval pack carries a complete
// construction/reindex algorithm for this structure (only its storage
// shape survives, in reachabilitydatastore); the allocation and reindex
// scheme below is authored from the algorithmic description in
// spec.md §4.1, grounded on the interval and future-covering-set shapes
// the teacher's reachability store already commits to.
package reachabilitymanager

import (
	"sort"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.REAC)

// defaultReindexWindow is the interval size handed to a fresh subtree
// root on an initial allocation or a reindex. It must comfortably
// outlast the expected number of descendants added before the next
// reindex; when a subtree does exhaust it, reindexing just widens the
// window again rather than failing.
const defaultReindexWindow = uint64(1) << 40

// reindexRootChainLength is how many tree-parent steps the reindex root
// trails behind the selected tip. The root is recorded only:
// reindexSubtree does not consult it, so a reindex re-lays out the whole
// subtree of the node being reindexed wherever that node sits.
const reindexRootChainLength = 64

type reachabilityManager struct {
	databaseContext        model.DBReader
	reachabilityDataStore  model.ReachabilityDataStore
	ghostdagDataStore      model.GHOSTDAGDataStore
	genesisHash            *externalapi.DomainHash
}

// New instantiates a new ReachabilityManager.
func New(
	databaseContext model.DBReader,
	ghostdagDataStore model.GHOSTDAGDataStore,
	reachabilityDataStore model.ReachabilityDataStore,
	genesisHash *externalapi.DomainHash,
) model.ReachabilityManager {
	return &reachabilityManager{
		databaseContext:       databaseContext,
		reachabilityDataStore: reachabilityDataStore,
		ghostdagDataStore:     ghostdagDataStore,
		genesisHash:           genesisHash,
	}
}

// Init stages the genesis block's reachability data: a tree root with no
// parent, the full default window, and an empty future-covering set.
func (rm *reachabilityManager) Init(stagingArea *model.StagingArea) error {
	hasData, err := rm.reachabilityDataStore.HasReachabilityData(rm.databaseContext, stagingArea, rm.genesisHash)
	if err != nil {
		return err
	}
	if hasData {
		return nil
	}
	genesisData := &model.ReachabilityData{
		TreeParent:              nil,
		TreeChildren:            []*externalapi.DomainHash{},
		Interval:                &model.ReachabilityInterval{Start: 0, End: defaultReindexWindow},
		FutureCoveringTreeNodes: []*externalapi.DomainHash{},
	}
	rm.reachabilityDataStore.StageReachabilityData(stagingArea, rm.genesisHash, genesisData)
	rm.reachabilityDataStore.StageReindexRoot(stagingArea, rm.genesisHash)
	return nil
}

// AddBlock allots blockHash an interval under its GHOSTDAG selected
// parent's tree-interval, reindexing the parent's subtree first if no
// room remains for another child.
func (rm *reachabilityManager) AddBlock(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) error {
	ghostdagData, err := rm.ghostdagDataStore.Get(rm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return err
	}
	if ghostdagData.IsGenesis() {
		return rm.Init(stagingArea)
	}
	selectedParent := ghostdagData.SelectedParent

	parentData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, selectedParent)
	if err != nil {
		return err
	}

	childInterval, err := rm.allocateChildInterval(stagingArea, selectedParent, parentData)
	if err != nil {
		return err
	}

	blockData := &model.ReachabilityData{
		TreeParent:              selectedParent,
		TreeChildren:            []*externalapi.DomainHash{},
		Interval:                childInterval,
		FutureCoveringTreeNodes: []*externalapi.DomainHash{},
	}
	rm.reachabilityDataStore.StageReachabilityData(stagingArea, blockHash, blockData)

	parentData.TreeChildren = append(parentData.TreeChildren, blockHash)
	rm.reachabilityDataStore.StageReachabilityData(stagingArea, selectedParent, parentData)

	return rm.addToFutureCoveringSets(stagingArea, blockHash, ghostdagData)
}

// allocateChildInterval returns the interval a new child of parentHash
// should receive, reindexing parentHash's subtree first if its current
// interval has no room left after its existing children.
func (rm *reachabilityManager) allocateChildInterval(
	stagingArea *model.StagingArea, parentHash *externalapi.DomainHash, parentData *model.ReachabilityData,
) (*model.ReachabilityInterval, error) {

	frontier := parentData.Interval.Start
	for _, childHash := range parentData.TreeChildren {
		childData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, childHash)
		if err != nil {
			return nil, err
		}
		if childData.Interval.End > frontier {
			frontier = childData.Interval.End
		}
	}

	const minAllocation = uint64(2)
	remaining := uint64(0)
	if parentData.Interval.End > frontier {
		remaining = parentData.Interval.End - frontier
	}
	if remaining < minAllocation {
		if err := rm.reindexSubtree(stagingArea, parentHash); err != nil {
			return nil, err
		}
		parentData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, parentHash)
		if err != nil {
			return nil, err
		}
		return rm.allocateChildInterval(stagingArea, parentHash, parentData)
	}

	// Hand the child half of what's left, leaving the other half as
	// slack for future siblings under the same parent.
	size := remaining / 2
	if size == 0 {
		size = 1
	}
	return &model.ReachabilityInterval{Start: frontier, End: frontier + size}, nil
}

// reindexSubtree widens nodeHash's interval back to defaultReindexWindow
// and re-lays out its descendants proportionally to their current
// subtree size within it. Containment relationships are preserved
// exactly (every descendant's new interval still nests inside its
// parent's new interval), so no previously true or false ancestry
// verdict changes — only the numeric ranges are renumbered.
func (rm *reachabilityManager) reindexSubtree(stagingArea *model.StagingArea, nodeHash *externalapi.DomainHash) error {
	nodeData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, nodeHash)
	if err != nil {
		return err
	}
	newInterval := &model.ReachabilityInterval{Start: nodeData.Interval.Start, End: nodeData.Interval.Start + defaultReindexWindow}
	log.Tracef("Reindexing reachability subtree rooted at %s", nodeHash)
	return rm.relayoutSubtree(stagingArea, nodeHash, newInterval)
}

// relayoutSubtree assigns nodeHash the given interval and recursively
// re-partitions it among nodeHash's tree children weighted by each
// child's current subtree size, reserving half the range as slack for
// future children.
func (rm *reachabilityManager) relayoutSubtree(
	stagingArea *model.StagingArea, nodeHash *externalapi.DomainHash, interval *model.ReachabilityInterval,
) error {
	nodeData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, nodeHash)
	if err != nil {
		return err
	}
	nodeData.Interval = interval
	rm.reachabilityDataStore.StageReachabilityData(stagingArea, nodeHash, nodeData)

	if len(nodeData.TreeChildren) == 0 {
		return nil
	}

	sizes := make([]uint64, len(nodeData.TreeChildren))
	total := uint64(0)
	for i, childHash := range nodeData.TreeChildren {
		size, err := rm.countSubtreeSize(stagingArea, childHash)
		if err != nil {
			return err
		}
		sizes[i] = size
		total += size
	}

	fullRange := interval.End - interval.Start
	allocatable := fullRange / 2 // the other half stays slack for future siblings
	if allocatable < uint64(len(nodeData.TreeChildren)) {
		allocatable = uint64(len(nodeData.TreeChildren))
	}

	offset := interval.Start
	for i, childHash := range nodeData.TreeChildren {
		share := allocatable * sizes[i] / total
		if share == 0 {
			share = 1
		}
		childInterval := &model.ReachabilityInterval{Start: offset, End: offset + share}
		if err := rm.relayoutSubtree(stagingArea, childHash, childInterval); err != nil {
			return err
		}
		offset = childInterval.End
	}
	return nil
}

// countSubtreeSize returns 1 plus the number of tree-descendants of
// blockHash, used to weight reindex allocations.
func (rm *reachabilityManager) countSubtreeSize(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (uint64, error) {
	data, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return 0, err
	}
	size := uint64(1)
	for _, childHash := range data.TreeChildren {
		childSize, err := rm.countSubtreeSize(stagingArea, childHash)
		if err != nil {
			return 0, err
		}
		size += childSize
	}
	return size, nil
}

// addToFutureCoveringSets records blockHash in the future-covering set of
// every block in its mergeset, blue or red, except the selected parent
// and any block that is already a tree ancestor of blockHash (those
// already contain blockHash in their own tree interval).
func (rm *reachabilityManager) addToFutureCoveringSets(
	stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, ghostdagData *externalapi.GhostdagData,
) error {
	for _, mergeSetHash := range append(append([]*externalapi.DomainHash{}, ghostdagData.MergeSetBlues...), ghostdagData.MergeSetReds...) {
		if mergeSetHash.Equal(ghostdagData.SelectedParent) {
			continue
		}
		isTreeAncestor, err := rm.IsReachabilityTreeAncestorOf(stagingArea, mergeSetHash, blockHash)
		if err != nil {
			return err
		}
		if isTreeAncestor {
			continue
		}
		data, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, mergeSetHash)
		if err != nil {
			return err
		}
		data.FutureCoveringTreeNodes = insertSortedByInterval(stagingArea, rm, data.FutureCoveringTreeNodes, blockHash)
		rm.reachabilityDataStore.StageReachabilityData(stagingArea, mergeSetHash, data)
	}
	return nil
}

func insertSortedByInterval(
	stagingArea *model.StagingArea, rm *reachabilityManager, set []*externalapi.DomainHash, blockHash *externalapi.DomainHash,
) []*externalapi.DomainHash {
	blockData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return append(set, blockHash)
	}
	index := sort.Search(len(set), func(i int) bool {
		data, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, set[i])
		if err != nil {
			return false
		}
		return data.Interval.Start > blockData.Interval.Start
	})
	set = append(set, nil)
	copy(set[index+1:], set[index:])
	set[index] = blockHash
	return set
}

// IsReachabilityTreeAncestorOf reports whether blockHashA's interval
// contains blockHashB's interval — true exactly when A is an ancestor of
// B (or A == B) along the selected-parent tree.
func (rm *reachabilityManager) IsReachabilityTreeAncestorOf(
	stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash,
) (bool, error) {
	dataA, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, blockHashA)
	if err != nil {
		return false, err
	}
	dataB, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, blockHashB)
	if err != nil {
		return false, err
	}
	return dataA.Interval.Start <= dataB.Interval.Start && dataB.Interval.End <= dataA.Interval.End, nil
}

// IsDAGAncestorOf reports whether blockHashA is a DAG ancestor of
// blockHashB: either a tree ancestor, or present (or a tree-ancestor of
// something present) in blockHashB's future-covering set.
func (rm *reachabilityManager) IsDAGAncestorOf(
	stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash,
) (bool, error) {
	if blockHashA.Equal(blockHashB) {
		return true, nil
	}
	isTreeAncestor, err := rm.IsReachabilityTreeAncestorOf(stagingArea, blockHashA, blockHashB)
	if err != nil {
		return false, err
	}
	if isTreeAncestor {
		return true, nil
	}

	dataA, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, blockHashA)
	if err != nil {
		return false, err
	}
	// The future-covering set is sorted by interval start; binary
	// search for a member whose interval contains blockHashB's, since
	// any such member's tree-descendants (blockHashB included) were
	// merged past by blockHashA at some point in its DAG future.
	dataB, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, blockHashB)
	if err != nil {
		return false, err
	}
	set := dataA.FutureCoveringTreeNodes
	index := sort.Search(len(set), func(i int) bool {
		candidateData, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, set[i])
		if err != nil {
			return true
		}
		return candidateData.Interval.Start > dataB.Interval.Start
	})
	if index == 0 {
		return false, nil
	}
	candidate := set[index-1]
	return rm.IsReachabilityTreeAncestorOf(stagingArea, candidate, blockHashB)
}

// UpdateReindexRoot stages as the reindex root the block
// reindexRootChainLength tree-parent steps behind selectedTip (or genesis,
// if the chain is shorter). Reindexing does not read the recorded root.
func (rm *reachabilityManager) UpdateReindexRoot(stagingArea *model.StagingArea, selectedTip *externalapi.DomainHash) error {
	current := selectedTip
	for i := 0; i < reindexRootChainLength; i++ {
		data, err := rm.reachabilityDataStore.ReachabilityData(rm.databaseContext, stagingArea, current)
		if err != nil {
			return err
		}
		if data.TreeParent == nil {
			break
		}
		current = data.TreeParent
	}
	rm.reachabilityDataStore.StageReindexRoot(stagingArea, current)
	return nil
}
