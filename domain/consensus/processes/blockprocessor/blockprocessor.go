// Package blockprocessor drives the full acceptance pipeline for an
// incoming block (spec.md §2 "Data flow for an accepted block"): header
// structural checks, GHOSTDAG, DAA, reachability, per-transaction
// validation/application, and tip/topoheight finalization.
package blockprocessor

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/model/ruleerror"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/merkle"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
	"github.com/tos-network/tos-sub010/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.BLKP)

// committer is the shape every store in this package shares: stage
// mutations against a *model.StagingArea, then flush them inside a
// caller-supplied transaction. ValidateAndInsertBlock's single
// stagingArea spans every manager it calls (GHOSTDAG data, reachability,
// block relations, and — via consensusStateManager — topoheight and the
// account-domain stores), so blockProcessor is the one place that knows
// when it is safe to flush all of them together.
type committer interface {
	Commit(dbTx model.DBTransaction, stagingArea *model.StagingArea) error
}

type blockProcessor struct {
	dagParams       *dagconfig.Params
	databaseContext model.DBManager
	genesisHash     *externalapi.DomainHash

	consensusStateManager model.ConsensusStateManager
	pruningManager         model.PruningManager
	ghostdagManager        model.GHOSTDAGManager
	dagTopologyManager     model.DAGTopologyManager
	reachabilityManager    model.ReachabilityManager
	difficultyManager      model.DifficultyManager

	blockStore          model.BlockStore
	blockHeaderStore    model.BlockHeaderStore
	blockStatusStore    model.BlockStatusStore
	blockRelationStore  model.BlockRelationStore
	ghostdagDataStore   model.GHOSTDAGDataStore
	consensusStateStore model.ConsensusStateStore

	stores []committer
}

// New instantiates a new BlockProcessor.
func New(
	dagParams *dagconfig.Params,
	databaseContext model.DBManager,
	genesisHash *externalapi.DomainHash,
	consensusStateManager model.ConsensusStateManager,
	pruningManager model.PruningManager,
	ghostdagManager model.GHOSTDAGManager,
	dagTopologyManager model.DAGTopologyManager,
	reachabilityManager model.ReachabilityManager,
	difficultyManager model.DifficultyManager,
	blockStore model.BlockStore,
	blockHeaderStore model.BlockHeaderStore,
	blockStatusStore model.BlockStatusStore,
	blockRelationStore model.BlockRelationStore,
	ghostdagDataStore model.GHOSTDAGDataStore,
	consensusStateStore model.ConsensusStateStore,
	topoheightStore model.TopoheightStore,
	pruningStore model.PruningStore,
	reachabilityDataStore model.ReachabilityDataStore,
	accountStore model.AccountStore,
	balanceStore model.BalanceStore,
	frozenBalanceStore model.FrozenBalanceStore,
	delegationStore model.DelegationStore,
	contractStore model.ContractStore,
) model.BlockProcessor {
	return &blockProcessor{
		dagParams:             dagParams,
		databaseContext:       databaseContext,
		genesisHash:           genesisHash,
		consensusStateManager: consensusStateManager,
		pruningManager:        pruningManager,
		ghostdagManager:       ghostdagManager,
		dagTopologyManager:    dagTopologyManager,
		reachabilityManager:   reachabilityManager,
		difficultyManager:     difficultyManager,
		blockStore:            blockStore,
		blockHeaderStore:      blockHeaderStore,
		blockStatusStore:      blockStatusStore,
		blockRelationStore:    blockRelationStore,
		ghostdagDataStore:     ghostdagDataStore,
		consensusStateStore:   consensusStateStore,
		stores: []committer{
			blockStore, blockHeaderStore, blockStatusStore, blockRelationStore,
			ghostdagDataStore, consensusStateStore, topoheightStore, pruningStore,
			reachabilityDataStore,
			accountStore, balanceStore, frozenBalanceStore, delegationStore, contractStore,
		},
	}
}

// commit flushes every store dirtied by stagingArea inside a single
// database transaction.
func (bp *blockProcessor) commit(stagingArea *model.StagingArea) error {
	dbTx, err := bp.databaseContext.Begin()
	if err != nil {
		return err
	}
	for _, store := range bp.stores {
		if err := store.Commit(dbTx, stagingArea); err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

// ValidateAndInsertBlock runs the full acceptance pipeline on block and,
// if every stage passes, stages its resulting state (header relations,
// GHOSTDAG data, applied transactions, tip set, pruning point) and
// commits it atomically.
func (bp *blockProcessor) ValidateAndInsertBlock(block *externalapi.DomainBlock) (*model.BlockInsertionResult, error) {
	blockHash := hashserialization.HeaderHash(block.Header)
	isGenesis := blockHash.Equal(bp.genesisHash)

	stagingArea := model.NewStagingArea()

	if err := bp.validateHeaderStructure(block.Header, isGenesis); err != nil {
		return nil, err
	}
	if err := bp.validateBodyAgainstHeader(block); err != nil {
		return nil, err
	}

	alreadyExists, err := bp.blockStatusStore.Exists(bp.databaseContext, stagingArea, blockHash)
	if err != nil {
		return nil, err
	}
	if alreadyExists {
		return nil, &ruleerror.StructuralError{Reason: "block already known"}
	}

	for _, parent := range block.Header.Parents {
		hasParent, err := bp.blockStatusStore.Exists(bp.databaseContext, stagingArea, parent)
		if err != nil {
			return nil, err
		}
		if !hasParent {
			return nil, &ruleerror.StructuralError{Reason: "unknown parent " + parent.String()}
		}
	}

	oldTips, err := bp.dagTopologyManager.Tips(stagingArea)
	if err != nil {
		return nil, err
	}

	if err := bp.stageRelations(stagingArea, blockHash, block.Header.Parents); err != nil {
		return nil, err
	}

	if err := bp.ghostdagManager.GHOSTDAG(stagingArea, blockHash); err != nil {
		return nil, err
	}

	if err := bp.reachabilityManager.AddBlock(stagingArea, blockHash); err != nil {
		return nil, err
	}

	if err := bp.validatePoW(stagingArea, block.Header, blockHash); err != nil {
		return nil, err
	}

	bp.blockHeaderStore.Stage(stagingArea, blockHash, block.Header)
	bp.blockStore.Stage(stagingArea, blockHash, block)
	bp.blockStatusStore.Stage(stagingArea, blockHash, externalapi.StatusStatePendingVerification)

	newTips := tipsAfterNewBlock(oldTips, block.Header.Parents, blockHash)
	bp.consensusStateStore.StageTips(stagingArea, newTips)
	if err := bp.dagTopologyManager.AddTip(stagingArea, blockHash); err != nil {
		return nil, err
	}

	var selectedParentChainChanges *model.SelectedParentChainChanges
	if isGenesis {
		// The very first block has no heavier predecessor to reorg
		// away from; AddBlock runs directly to give it topoheight 0
		// and apply its transactions.
		selectedParentChainChanges, err = bp.consensusStateManager.AddBlock(stagingArea, blockHash)
	} else {
		selectedParentChainChanges, err = bp.consensusStateManager.Reorg(stagingArea, blockHash)
	}
	if err != nil {
		return nil, err
	}
	if len(selectedParentChainChanges.Removed) > 0 {
		log.Infof("Block %s triggered a reorg: %d blocks removed, %d added to the selected parent chain",
			blockHash, len(selectedParentChainChanges.Removed), len(selectedParentChainChanges.Added))
	} else {
		log.Debugf("Accepted block %s", blockHash)
	}

	if err := bp.reachabilityManager.UpdateReindexRoot(stagingArea, blockHash); err != nil {
		return nil, err
	}

	if err := bp.pruningManager.UpdatePruningPointByVirtual(stagingArea); err != nil {
		return nil, err
	}

	if err := bp.commit(stagingArea); err != nil {
		return nil, err
	}

	newTipsSet, err := bp.dagTopologyManager.Tips(stagingArea)
	if err != nil {
		return nil, err
	}

	return &model.BlockInsertionResult{
		SelectedParentChainChanges: selectedParentChainChanges,
		VirtualChangeSet: &model.VirtualChangeSet{
			NewTips: newTipsSet,
			OldTips: oldTips,
		},
	}, nil
}

// stageRelations records blockHash's parent set and adds blockHash as a
// child of each of them.
func (bp *blockProcessor) stageRelations(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash, parents []*externalapi.DomainHash) error {
	bp.blockRelationStore.StageRelation(stagingArea, blockHash, &model.BlockRelations{
		Parents: externalapi.CloneHashes(parents),
	})
	for _, parent := range parents {
		parentRelations, err := bp.blockRelationStore.Get(bp.databaseContext, stagingArea, parent)
		if err != nil {
			return err
		}
		parentRelations = parentRelations.Clone()
		parentRelations.Children = append(parentRelations.Children, blockHash)
		bp.blockRelationStore.StageRelation(stagingArea, parent, parentRelations)
	}
	return nil
}

// tipsAfterNewBlock drops blockHash's parents from the tip set (they now
// have a child) and adds blockHash.
func tipsAfterNewBlock(oldTips []*externalapi.DomainHash, parents []*externalapi.DomainHash, blockHash *externalapi.DomainHash) []*externalapi.DomainHash {
	isParent := make(map[externalapi.DomainHash]bool, len(parents))
	for _, parent := range parents {
		isParent[*parent] = true
	}
	newTips := make([]*externalapi.DomainHash, 0, len(oldTips)+1)
	for _, tip := range oldTips {
		if !isParent[*tip] {
			newTips = append(newTips, tip)
		}
	}
	newTips = append(newTips, blockHash)
	return newTips
}

func (bp *blockProcessor) validateHeaderStructure(header *externalapi.DomainBlockHeader, isGenesis bool) error {
	if len(header.Parents) == 0 && !isGenesis {
		return &ruleerror.StructuralError{Reason: "block has no parents"}
	}
	if len(header.Parents) > bp.dagParams.TipsLimit {
		return &ruleerror.StructuralError{Reason: "too many parents"}
	}
	return nil
}

func (bp *blockProcessor) validateBodyAgainstHeader(block *externalapi.DomainBlock) error {
	hashMerkleRoot := merkle.CalculateHashMerkleRoot(block.Transactions)
	if !hashMerkleRoot.Equal(block.Header.TransactionMerkleRoot) {
		return &ruleerror.StructuralError{Reason: "transaction merkle root mismatch"}
	}
	return nil
}

func (bp *blockProcessor) validatePoW(stagingArea *model.StagingArea, header *externalapi.DomainBlockHeader, blockHash *externalapi.DomainHash) error {
	requiredBits, err := bp.difficultyManager.RequiredDifficulty(stagingArea, blockHash)
	if err != nil {
		return err
	}
	if header.Bits != requiredBits {
		return &ruleerror.StructuralError{Reason: "block bits does not match required difficulty"}
	}
	return nil
}
