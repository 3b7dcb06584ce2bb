package ghostdagmanager

import (
	"testing"

	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockheaderstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockrelationstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/ghostdagdatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/dagtopologymanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/reachabilitymanager"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

func headerHash(header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	return hashserialization.HeaderHash(header)
}

// testDAG wires a minimal GHOSTDAGManager plus the handful of stores and
// managers it depends on, backed by an in-memory database and a single
// shared staging area, so a test can build a small DAG by hand and
// inspect the staged GhostdagData without ever hitting real storage.
type testDAG struct {
	t                 *testing.T
	stagingArea       *model.StagingArea
	headerStore       model.BlockHeaderStore
	relationStore     model.BlockRelationStore
	ghostdagDataStore model.GHOSTDAGDataStore
	topology          model.DAGTopologyManager
	reachability      model.ReachabilityManager
	manager           model.GHOSTDAGManager
	genesisHash       *externalapi.DomainHash
	nextExtraNonce    uint64
}

func newTestDAG(t *testing.T, k externalapi.KType) *testDAG {
	db := dbaccess.NewMemoryDatabase()
	headerStore, err := blockheaderstore.New(db, 100)
	if err != nil {
		t.Fatalf("blockheaderstore.New failed: %v", err)
	}
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

	dag := &testDAG{
		t:                 t,
		stagingArea:       model.NewStagingArea(),
		headerStore:       headerStore,
		relationStore:     relationStore,
		ghostdagDataStore: ghostdagDataStore,
	}

	genesisHeader := &externalapi.DomainBlockHeader{
		Parents:               []*externalapi.DomainHash{},
		TransactionMerkleRoot: &externalapi.DomainHash{},
		AcceptedIDMerkleRoot:  &externalapi.DomainHash{},
		StateCommitment:       &externalapi.DomainHash{},
		Bits:                  0x207fffff,
		PruningPoint:          &externalapi.DomainHash{},
	}
	genesisHash := headerHash(genesisHeader)
	dag.genesisHash = genesisHash

	dag.reachability = reachabilitymanager.New(db, ghostdagDataStore, reachabilityDataStore, genesisHash)
	dag.topology = dagtopologymanager.New(db, dag.reachability, relationStore, nil)
	dag.manager = New(db, dag.topology, ghostdagDataStore, headerStore, k)

	headerStore.Stage(dag.stagingArea, genesisHash, genesisHeader)
	relationStore.StageRelation(dag.stagingArea, genesisHash, &model.BlockRelations{
		Parents: []*externalapi.DomainHash{}, Children: []*externalapi.DomainHash{},
	})
	if err := dag.manager.GHOSTDAG(dag.stagingArea, genesisHash); err != nil {
		t.Fatalf("GHOSTDAG(genesis) failed: %v", err)
	}
	if err := dag.reachability.AddBlock(dag.stagingArea, genesisHash); err != nil {
		t.Fatalf("reachability.AddBlock(genesis) failed: %v", err)
	}
	return dag
}

// addBlock creates a new block with the given parents and distinct
// work (bits), stages its header and relations, runs GHOSTDAG on it,
// and attaches it to the reachability tree, mirroring the order
// blockprocessor's AddBlock uses in production.
func (dag *testDAG) addBlock(parents []*externalapi.DomainHash, bits uint32) *externalapi.DomainHash {
	dag.nextExtraNonce++
	header := &externalapi.DomainBlockHeader{
		Parents:               parents,
		ExtraNonce:            dag.nextExtraNonce,
		TransactionMerkleRoot: &externalapi.DomainHash{},
		AcceptedIDMerkleRoot:  &externalapi.DomainHash{},
		StateCommitment:       &externalapi.DomainHash{},
		Bits:                  bits,
		PruningPoint:          &externalapi.DomainHash{},
	}
	hash := headerHash(header)

	dag.headerStore.Stage(dag.stagingArea, hash, header)
	dag.relationStore.StageRelation(dag.stagingArea, hash, &model.BlockRelations{
		Parents: parents, Children: []*externalapi.DomainHash{},
	})
	if err := dag.manager.GHOSTDAG(dag.stagingArea, hash); err != nil {
		dag.t.Fatalf("GHOSTDAG(%s) failed: %v", hash, err)
	}
	if err := dag.reachability.AddBlock(dag.stagingArea, hash); err != nil {
		dag.t.Fatalf("reachability.AddBlock(%s) failed: %v", hash, err)
	}
	return hash
}

func (dag *testDAG) ghostdagData(hash *externalapi.DomainHash) *externalapi.GhostdagData {
	data, err := dag.ghostdagDataStore.Get(nil, dag.stagingArea, hash)
	if err != nil {
		dag.t.Fatalf("ghostdagDataStore.Get(%s) failed: %v", hash, err)
	}
	return data
}

func TestGHOSTDAGGenesisHasZeroBlueScoreAndNoSelectedParent(t *testing.T) {
	dag := newTestDAG(t, 18)
	data := dag.ghostdagData(dag.genesisHash)
	if data.BlueScore != 0 {
		t.Errorf("genesis BlueScore = %d, want 0", data.BlueScore)
	}
	if data.SelectedParent != nil {
		t.Errorf("genesis SelectedParent = %s, want nil", data.SelectedParent)
	}
}

func TestGHOSTDAGSingleParentChainIncrementsBlueScoreByOne(t *testing.T) {
	dag := newTestDAG(t, 18)
	a := dag.addBlock([]*externalapi.DomainHash{dag.genesisHash}, 0x207fffff)
	b := dag.addBlock([]*externalapi.DomainHash{a}, 0x207fffff)

	dataA := dag.ghostdagData(a)
	if dataA.BlueScore != 1 {
		t.Errorf("A.BlueScore = %d, want 1", dataA.BlueScore)
	}
	if !dataA.SelectedParent.Equal(dag.genesisHash) {
		t.Errorf("A.SelectedParent = %s, want genesis", dataA.SelectedParent)
	}

	dataB := dag.ghostdagData(b)
	if dataB.BlueScore != 2 {
		t.Errorf("B.BlueScore = %d, want 2", dataB.BlueScore)
	}
}

// A diamond (G -> A, G -> B, {A,B} -> C) with a generous K must classify
// both A and B as blue in C's merge set: their mutual anticone (just
// each other) is far smaller than K.
func TestGHOSTDAGDiamondClassifiesBothSiblingsBlue(t *testing.T) {
	dag := newTestDAG(t, 18)
	a := dag.addBlock([]*externalapi.DomainHash{dag.genesisHash}, 0x207fffff)
	b := dag.addBlock([]*externalapi.DomainHash{dag.genesisHash}, 0x1e7fffff) // harder target, more work
	c := dag.addBlock([]*externalapi.DomainHash{a, b}, 0x207fffff)

	dataC := dag.ghostdagData(c)
	if len(dataC.MergeSetReds) != 0 {
		t.Errorf("C.MergeSetReds = %v, want empty for a generous K", dataC.MergeSetReds)
	}
	if len(dataC.MergeSetBlues) != 2 {
		t.Fatalf("C.MergeSetBlues has %d entries, want 2 (A and B)", len(dataC.MergeSetBlues))
	}

	// B has strictly more individual work (harder bits), so it is chosen
	// as the selected parent over A.
	if !dataC.SelectedParent.Equal(b) {
		t.Errorf("C.SelectedParent = %s, want B (the heavier sibling)", dataC.SelectedParent)
	}

	dataB := dag.ghostdagData(b)
	wantBlueScore := dataB.BlueScore + uint64(len(dataC.MergeSetBlues))
	if dataC.BlueScore != wantBlueScore {
		t.Errorf("C.BlueScore = %d, want %d (selected parent's blue score + mergeset size)", dataC.BlueScore, wantBlueScore)
	}
}

func TestChooseSelectedParentPrefersGreaterBlueWork(t *testing.T) {
	dag := newTestDAG(t, 18)
	easy := dag.addBlock([]*externalapi.DomainHash{dag.genesisHash}, 0x207fffff)
	hard := dag.addBlock([]*externalapi.DomainHash{dag.genesisHash}, 0x1e7fffff)

	chosen, err := dag.manager.ChooseSelectedParent(dag.stagingArea, easy, hard)
	if err != nil {
		t.Fatalf("ChooseSelectedParent failed: %v", err)
	}
	if !chosen.Equal(hard) {
		t.Errorf("ChooseSelectedParent(easy, hard) = %s, want the harder (more work) block", chosen)
	}
}
