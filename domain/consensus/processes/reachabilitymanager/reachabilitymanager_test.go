package reachabilitymanager

import (
	"testing"

	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/ghostdagdatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

// testTree wires a ReachabilityManager plus its two dependent stores
// over an in-memory database, and stages GhostdagData directly (rather
// than running a real GHOSTDAGManager) since the manager only reads
// SelectedParent/MergeSetBlues/MergeSetReds off it.
type testTree struct {
	t                 *testing.T
	stagingArea       *model.StagingArea
	ghostdagDataStore model.GHOSTDAGDataStore
	reachDataStore    model.ReachabilityDataStore
	manager           model.ReachabilityManager
	genesisHash       *externalapi.DomainHash
}

func newTestTree(t *testing.T) *testTree {
	db := dbaccess.NewMemoryDatabase()
	ghostdagDataStore, err := ghostdagdatastore.New(100)
	if err != nil {
		t.Fatalf("ghostdagdatastore.New failed: %v", err)
	}
	reachDataStore, err := reachabilitydatastore.New(100)
	if err != nil {
		t.Fatalf("reachabilitydatastore.New failed: %v", err)
	}

	genesisHash := &externalapi.DomainHash{0xff}
	tree := &testTree{
		t:                 t,
		stagingArea:       model.NewStagingArea(),
		ghostdagDataStore: ghostdagDataStore,
		reachDataStore:    reachDataStore,
		manager:           New(db, ghostdagDataStore, reachDataStore, genesisHash),
		genesisHash:       genesisHash,
	}
	tree.ghostdagDataStore.Stage(tree.stagingArea, genesisHash, externalapi.New(nil))
	if err := tree.manager.Init(tree.stagingArea); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return tree
}

// addBlock stages blockHash's GhostdagData (selected parent plus any
// extra merge-set members, as blues unless listed in reds) and runs
// AddBlock on it.
func (tree *testTree) addBlock(blockHash, selectedParent *externalapi.DomainHash, extraBlues, reds []*externalapi.DomainHash) {
	data := externalapi.New(selectedParent)
	data.MergeSetBlues = append(data.MergeSetBlues, extraBlues...)
	data.MergeSetReds = append(data.MergeSetReds, reds...)
	tree.ghostdagDataStore.Stage(tree.stagingArea, blockHash, data)
	if err := tree.manager.AddBlock(tree.stagingArea, blockHash); err != nil {
		tree.t.Fatalf("AddBlock(%s) failed: %v", blockHash, err)
	}
}

func (tree *testTree) reachData(hash *externalapi.DomainHash) *model.ReachabilityData {
	data, err := tree.reachDataStore.ReachabilityData(nil, tree.stagingArea, hash)
	if err != nil {
		tree.t.Fatalf("ReachabilityData(%s) failed: %v", hash, err)
	}
	return data
}

func TestInitStagesGenesisWithFullWindowAndNoParent(t *testing.T) {
	tree := newTestTree(t)
	data := tree.reachData(tree.genesisHash)
	if data.TreeParent != nil {
		t.Errorf("genesis TreeParent = %s, want nil", data.TreeParent)
	}
	if data.Interval.Start != 0 || data.Interval.End != defaultReindexWindow {
		t.Errorf("genesis Interval = [%d, %d), want [0, %d)", data.Interval.Start, data.Interval.End, defaultReindexWindow)
	}
	if len(data.FutureCoveringTreeNodes) != 0 {
		t.Errorf("genesis FutureCoveringTreeNodes = %v, want empty", data.FutureCoveringTreeNodes)
	}

	root, err := tree.reachDataStore.ReindexRoot(nil, tree.stagingArea)
	if err != nil {
		t.Fatalf("ReindexRoot failed: %v", err)
	}
	if !root.Equal(tree.genesisHash) {
		t.Errorf("ReindexRoot = %s, want genesis", root)
	}
}

func TestInitIsIdempotentWhenGenesisAlreadyHasData(t *testing.T) {
	tree := newTestTree(t)
	before := tree.reachData(tree.genesisHash)
	if err := tree.manager.Init(tree.stagingArea); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	after := tree.reachData(tree.genesisHash)
	if before.Interval.Start != after.Interval.Start || before.Interval.End != after.Interval.End {
		t.Errorf("second Init changed genesis's interval: before %+v, after %+v", before.Interval, after.Interval)
	}
}

func TestAddBlockNestsChildIntervalInsideParent(t *testing.T) {
	tree := newTestTree(t)
	a := &externalapi.DomainHash{1}
	tree.addBlock(a, tree.genesisHash, nil, nil)

	parentData := tree.reachData(tree.genesisHash)
	childData := tree.reachData(a)

	if !childData.TreeParent.Equal(tree.genesisHash) {
		t.Errorf("A.TreeParent = %s, want genesis", childData.TreeParent)
	}
	if childData.Interval.Start < parentData.Interval.Start || childData.Interval.End > parentData.Interval.End {
		t.Errorf("A.Interval = [%d, %d) is not nested inside genesis.Interval = [%d, %d)",
			childData.Interval.Start, childData.Interval.End, parentData.Interval.Start, parentData.Interval.End)
	}
	if len(parentData.TreeChildren) != 1 || !parentData.TreeChildren[0].Equal(a) {
		t.Errorf("genesis.TreeChildren = %v, want [A]", parentData.TreeChildren)
	}
}

func TestIsReachabilityTreeAncestorOfAlongChain(t *testing.T) {
	tree := newTestTree(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	tree.addBlock(a, tree.genesisHash, nil, nil)
	tree.addBlock(b, a, nil, nil)

	cases := []struct {
		name     string
		from, to *externalapi.DomainHash
		want     bool
	}{
		{"genesis ancestor of B", tree.genesisHash, b, true},
		{"A ancestor of B", a, b, true},
		{"B not ancestor of genesis", b, tree.genesisHash, false},
		{"B not ancestor of A", b, a, false},
		{"A is its own ancestor", a, a, true},
	}
	for _, c := range cases {
		got, err := tree.manager.IsReachabilityTreeAncestorOf(tree.stagingArea, c.from, c.to)
		if err != nil {
			t.Fatalf("%s: IsReachabilityTreeAncestorOf failed: %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("%s: IsReachabilityTreeAncestorOf = %v, want %v", c.name, got, c.want)
		}
	}
}

// A diamond (G -> A, G -> B, {A,B} -> C with C's selected parent B) must
// record C in A's future-covering set, since A is a merged-past block
// that is not a tree ancestor of C.
func TestIsDAGAncestorOfViaFutureCoveringSet(t *testing.T) {
	tree := newTestTree(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	c := &externalapi.DomainHash{3}
	tree.addBlock(a, tree.genesisHash, nil, nil)
	tree.addBlock(b, tree.genesisHash, nil, nil)
	tree.addBlock(c, b, []*externalapi.DomainHash{a}, nil)

	isTreeAncestor, err := tree.manager.IsReachabilityTreeAncestorOf(tree.stagingArea, a, c)
	if err != nil {
		t.Fatalf("IsReachabilityTreeAncestorOf failed: %v", err)
	}
	if isTreeAncestor {
		t.Fatalf("A should not be a tree ancestor of C (C's tree parent is B)")
	}

	isDAGAncestor, err := tree.manager.IsDAGAncestorOf(tree.stagingArea, a, c)
	if err != nil {
		t.Fatalf("IsDAGAncestorOf failed: %v", err)
	}
	if !isDAGAncestor {
		t.Errorf("A should be a DAG ancestor of C via the future-covering set, merged past in C's mergeset")
	}

	aData := tree.reachData(a)
	if len(aData.FutureCoveringTreeNodes) != 1 || !aData.FutureCoveringTreeNodes[0].Equal(c) {
		t.Errorf("A.FutureCoveringTreeNodes = %v, want [C]", aData.FutureCoveringTreeNodes)
	}
}

func TestIsDAGAncestorOfIsFalseForUnrelatedBlocks(t *testing.T) {
	tree := newTestTree(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	tree.addBlock(a, tree.genesisHash, nil, nil)
	tree.addBlock(b, tree.genesisHash, nil, nil)

	isDAGAncestor, err := tree.manager.IsDAGAncestorOf(tree.stagingArea, a, b)
	if err != nil {
		t.Fatalf("IsDAGAncestorOf failed: %v", err)
	}
	if isDAGAncestor {
		t.Errorf("two siblings with no merge relationship should not be DAG ancestors of each other")
	}
}

// Forcing a parent's interval down to its minimum allocation before
// adding a second child exercises the reindexSubtree path: the second
// child must still receive a valid, non-overlapping interval nested
// inside the (re-widened) parent interval.
func TestAllocateChildIntervalReindexesWhenExhausted(t *testing.T) {
	tree := newTestTree(t)
	a := &externalapi.DomainHash{1}
	tree.addBlock(a, tree.genesisHash, nil, nil)

	// Shrink A's interval down to the bare minimum (2), leaving no room
	// for a second child without a reindex.
	aData := tree.reachData(a)
	aData.Interval = &model.ReachabilityInterval{Start: aData.Interval.Start, End: aData.Interval.Start + 2}
	tree.reachDataStore.StageReachabilityData(tree.stagingArea, a, aData)

	b := &externalapi.DomainHash{2}
	c := &externalapi.DomainHash{3}
	tree.addBlock(b, a, nil, nil)
	tree.addBlock(c, a, nil, nil)

	newAData := tree.reachData(a)
	if newAData.Interval.End-newAData.Interval.Start < defaultReindexWindow {
		t.Errorf("A's interval should have been widened back out by a reindex, got width %d", newAData.Interval.End-newAData.Interval.Start)
	}

	bData := tree.reachData(b)
	cData := tree.reachData(c)
	if bData.Interval.Start < newAData.Interval.Start || bData.Interval.End > newAData.Interval.End {
		t.Errorf("B.Interval = [%d, %d) is not nested inside A's reindexed interval [%d, %d)",
			bData.Interval.Start, bData.Interval.End, newAData.Interval.Start, newAData.Interval.End)
	}
	if cData.Interval.Start < newAData.Interval.Start || cData.Interval.End > newAData.Interval.End {
		t.Errorf("C.Interval = [%d, %d) is not nested inside A's reindexed interval [%d, %d)",
			cData.Interval.Start, cData.Interval.End, newAData.Interval.Start, newAData.Interval.End)
	}
	if bData.Interval.Start == cData.Interval.Start && bData.Interval.End == cData.Interval.End {
		t.Errorf("B and C received the same interval after reindexing: [%d, %d)", bData.Interval.Start, bData.Interval.End)
	}
}

func TestUpdateReindexRootWalksToGenesisWhenChainIsShort(t *testing.T) {
	tree := newTestTree(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	tree.addBlock(a, tree.genesisHash, nil, nil)
	tree.addBlock(b, a, nil, nil)

	if err := tree.manager.UpdateReindexRoot(tree.stagingArea, b); err != nil {
		t.Fatalf("UpdateReindexRoot failed: %v", err)
	}
	root, err := tree.reachDataStore.ReindexRoot(nil, tree.stagingArea)
	if err != nil {
		t.Fatalf("ReindexRoot failed: %v", err)
	}
	if !root.Equal(tree.genesisHash) {
		t.Errorf("ReindexRoot = %s, want genesis (chain shorter than reindexRootChainLength)", root)
	}
}
