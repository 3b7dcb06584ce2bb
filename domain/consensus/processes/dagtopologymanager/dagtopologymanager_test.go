package dagtopologymanager

import (
	"testing"

	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockrelationstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/consensusstatestore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/ghostdagdatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/reachabilitymanager"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

type testTopology struct {
	t                   *testing.T
	stagingArea         *model.StagingArea
	relationStore       model.BlockRelationStore
	ghostdagDataStore   model.GHOSTDAGDataStore
	consensusStateStore model.ConsensusStateStore
	reachability        model.ReachabilityManager
	topology            model.DAGTopologyManager
	genesisHash         *externalapi.DomainHash
}

func newTestTopology(t *testing.T) *testTopology {
	db := dbaccess.NewMemoryDatabase()
	relationStore, err := blockrelationstore.New(100)
	if err != nil {
		t.Fatalf("blockrelationstore.New failed: %v", err)
	}
	ghostdagDataStore, err := ghostdagdatastore.New(100)
	if err != nil {
		t.Fatalf("ghostdagdatastore.New failed: %v", err)
	}
	reachabilityDataStore, err := reachabilitydatastore.New(100)
	if err != nil {
		t.Fatalf("reachabilitydatastore.New failed: %v", err)
	}
	consensusStateStore, err := consensusstatestore.New(db)
	if err != nil {
		t.Fatalf("consensusstatestore.New failed: %v", err)
	}

	genesisHash := &externalapi.DomainHash{0xff}
	reachability := reachabilitymanager.New(db, ghostdagDataStore, reachabilityDataStore, genesisHash)
	topo := &testTopology{
		t:                   t,
		stagingArea:         model.NewStagingArea(),
		relationStore:       relationStore,
		ghostdagDataStore:   ghostdagDataStore,
		consensusStateStore: consensusStateStore,
		reachability:        reachability,
		topology:            New(db, reachability, relationStore, consensusStateStore),
		genesisHash:         genesisHash,
	}

	relationStore.StageRelation(topo.stagingArea, genesisHash, &model.BlockRelations{
		Parents: []*externalapi.DomainHash{}, Children: []*externalapi.DomainHash{},
	})
	ghostdagDataStore.Stage(topo.stagingArea, genesisHash, externalapi.New(nil))
	if err := reachability.Init(topo.stagingArea); err != nil {
		t.Fatalf("reachability.Init failed: %v", err)
	}
	return topo
}

// addBlock stages relations and GhostdagData for a block with a single
// selected parent and runs it through the reachability tree, mirroring
// a pure linear-chain DAG.
func (topo *testTopology) addBlock(blockHash, parent *externalapi.DomainHash) {
	existingParentRelations, err := topo.relationStore.Get(nil, topo.stagingArea, parent)
	if err != nil {
		topo.t.Fatalf("Get(%s) failed: %v", parent, err)
	}
	existingParentRelations.Children = append(existingParentRelations.Children, blockHash)
	topo.relationStore.StageRelation(topo.stagingArea, parent, existingParentRelations)

	topo.relationStore.StageRelation(topo.stagingArea, blockHash, &model.BlockRelations{
		Parents: []*externalapi.DomainHash{parent}, Children: []*externalapi.DomainHash{},
	})
	topo.ghostdagDataStore.Stage(topo.stagingArea, blockHash, externalapi.New(parent))
	if err := topo.reachability.AddBlock(topo.stagingArea, blockHash); err != nil {
		topo.t.Fatalf("reachability.AddBlock(%s) failed: %v", blockHash, err)
	}
}

func TestParentsAndChildren(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	topo.addBlock(a, topo.genesisHash)

	parents, err := topo.topology.Parents(topo.stagingArea, a)
	if err != nil {
		t.Fatalf("Parents failed: %v", err)
	}
	if len(parents) != 1 || !parents[0].Equal(topo.genesisHash) {
		t.Errorf("Parents(A) = %v, want [genesis]", parents)
	}

	children, err := topo.topology.Children(topo.stagingArea, topo.genesisHash)
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 1 || !children[0].Equal(a) {
		t.Errorf("Children(genesis) = %v, want [A]", children)
	}
}

func TestIsParentOfAndIsChildOf(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	topo.addBlock(a, topo.genesisHash)
	topo.addBlock(b, a)

	isParent, err := topo.topology.IsParentOf(topo.stagingArea, topo.genesisHash, a)
	if err != nil {
		t.Fatalf("IsParentOf failed: %v", err)
	}
	if !isParent {
		t.Errorf("genesis should be a direct parent of A")
	}

	isParent, err = topo.topology.IsParentOf(topo.stagingArea, topo.genesisHash, b)
	if err != nil {
		t.Fatalf("IsParentOf failed: %v", err)
	}
	if isParent {
		t.Errorf("genesis should not be a direct parent of B (A is in between)")
	}

	isChild, err := topo.topology.IsChildOf(topo.stagingArea, a, topo.genesisHash)
	if err != nil {
		t.Fatalf("IsChildOf failed: %v", err)
	}
	if !isChild {
		t.Errorf("A should be a direct child of genesis")
	}
}

func TestIsAncestorOfAndIsDescendantOf(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	topo.addBlock(a, topo.genesisHash)
	topo.addBlock(b, a)

	isAncestor, err := topo.topology.IsAncestorOf(topo.stagingArea, topo.genesisHash, b)
	if err != nil {
		t.Fatalf("IsAncestorOf failed: %v", err)
	}
	if !isAncestor {
		t.Errorf("genesis should be an ancestor of B (transitively)")
	}

	isDescendant, err := topo.topology.IsDescendantOf(topo.stagingArea, b, topo.genesisHash)
	if err != nil {
		t.Fatalf("IsDescendantOf failed: %v", err)
	}
	if !isDescendant {
		t.Errorf("B should be a descendant of genesis")
	}

	isDescendant, err = topo.topology.IsDescendantOf(topo.stagingArea, topo.genesisHash, b)
	if err != nil {
		t.Fatalf("IsDescendantOf failed: %v", err)
	}
	if isDescendant {
		t.Errorf("genesis should not be a descendant of B")
	}
}

func TestIsAncestorOfAnyReturnsTrueIfAnyMatches(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	unrelated := &externalapi.DomainHash{3}
	topo.addBlock(a, topo.genesisHash)
	topo.addBlock(b, topo.genesisHash)
	topo.addBlock(unrelated, topo.genesisHash)

	isAncestor, err := topo.topology.IsAncestorOfAny(topo.stagingArea, a, []*externalapi.DomainHash{unrelated, b, a})
	if err != nil {
		t.Fatalf("IsAncestorOfAny failed: %v", err)
	}
	if !isAncestor {
		t.Errorf("A should be considered an ancestor of the set since it is reflexively its own ancestor")
	}
}

func TestIsAncestorOfAnyReturnsFalseWhenNoneMatch(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	c := &externalapi.DomainHash{3}
	topo.addBlock(a, topo.genesisHash)
	topo.addBlock(b, topo.genesisHash)
	topo.addBlock(c, topo.genesisHash)

	isAncestor, err := topo.topology.IsAncestorOfAny(topo.stagingArea, b, []*externalapi.DomainHash{a, c})
	if err != nil {
		t.Fatalf("IsAncestorOfAny failed: %v", err)
	}
	if isAncestor {
		t.Errorf("B is a sibling of A and C, not an ancestor of either")
	}
}

func TestIsInSelectedParentChainOf(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	topo.addBlock(a, topo.genesisHash)
	topo.addBlock(b, a)

	isInChain, err := topo.topology.IsInSelectedParentChainOf(topo.stagingArea, topo.genesisHash, b)
	if err != nil {
		t.Fatalf("IsInSelectedParentChainOf failed: %v", err)
	}
	if !isInChain {
		t.Errorf("genesis should be in B's selected-parent chain")
	}
}

func TestAddTipReplacesParentTipsWithNewTip(t *testing.T) {
	topo := newTestTopology(t)
	a := &externalapi.DomainHash{1}
	b := &externalapi.DomainHash{2}
	topo.addBlock(a, topo.genesisHash)
	topo.addBlock(b, topo.genesisHash)

	if err := topo.topology.AddTip(topo.stagingArea, a); err != nil {
		t.Fatalf("AddTip(A) failed: %v", err)
	}
	if err := topo.topology.AddTip(topo.stagingArea, b); err != nil {
		t.Fatalf("AddTip(B) failed: %v", err)
	}

	tips, err := topo.topology.Tips(topo.stagingArea)
	if err != nil {
		t.Fatalf("Tips failed: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("Tips = %v, want 2 entries (A and B)", tips)
	}

	c := &externalapi.DomainHash{3}
	topo.addBlock(c, a)
	if err := topo.topology.AddTip(topo.stagingArea, c); err != nil {
		t.Fatalf("AddTip(C) failed: %v", err)
	}

	tips, err = topo.topology.Tips(topo.stagingArea)
	if err != nil {
		t.Fatalf("Tips failed: %v", err)
	}
	if len(tips) != 2 {
		t.Fatalf("Tips = %v, want 2 entries (B and C, A superseded)", tips)
	}
	foundB, foundC := false, false
	for _, tip := range tips {
		if tip.Equal(b) {
			foundB = true
		}
		if tip.Equal(c) {
			foundC = true
		}
		if tip.Equal(a) {
			t.Errorf("A should no longer be a tip after its child C was added")
		}
	}
	if !foundB || !foundC {
		t.Errorf("Tips = %v, want to contain both B and C", tips)
	}
}
