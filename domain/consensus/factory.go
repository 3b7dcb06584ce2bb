package consensus

import (
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/accountstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/balancestore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockheaderstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockrelationstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockstatusstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/blockstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/consensusstatestore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/contractstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/delegationstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/frozenbalancestore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/ghostdagdatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/pruningstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/reachabilitydatastore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/topoheightstore"
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/blockbuilder"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/blockprocessor"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/consensusstatemanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/dagtopologymanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/dagtraversalmanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/difficultymanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/ghostdagmanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/pruningmanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/reachabilitymanager"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/transactionvalidator"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
	"github.com/tos-network/tos-sub010/domain/miningmanager/mempool"
)

// defaultCacheSize bounds the in-memory LRU layer every cached store
// keeps in front of the database (spec.md has no opinion on this; it is
// purely a working-set/memory tradeoff).
const defaultCacheSize = 10_000

// defaultMempoolSize bounds how many not-yet-accepted transactions the
// mempool holds at once (spec.md mempool section, MAX_MEMPOOL).
const defaultMempoolSize = 10_000

// Factory instantiates new Consensuses.
type Factory interface {
	NewConsensus(dagParams *dagconfig.Params, databaseContext model.DBManager) (Consensus, error)
}

type factory struct{}

// NewConsensus wires every datastructure and process in this order:
// stores, then reachability, then DAG topology, then GHOSTDAG, then DAG
// traversal, then DAA, then transaction validation, then pruning, then
// consensus state, then block processing/building, then mempool.
func (f *factory) NewConsensus(dagParams *dagconfig.Params, databaseContext model.DBManager) (Consensus, error) {
	genesisHash := dagParams.GenesisHash

	// Data structures.
	blockHeaderStore, err := blockheaderstore.New(databaseContext, defaultCacheSize)
	if err != nil {
		return nil, err
	}
	blockRelationStore, err := blockrelationstore.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	blockStatusStore, err := blockstatusstore.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	blockStore, err := blockstore.New(databaseContext, defaultCacheSize)
	if err != nil {
		return nil, err
	}
	consensusStateStore, err := consensusstatestore.New(databaseContext)
	if err != nil {
		return nil, err
	}
	ghostdagDataStore, err := ghostdagdatastore.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	pruningStore, err := pruningstore.New(databaseContext)
	if err != nil {
		return nil, err
	}
	reachabilityDataStore, err := reachabilitydatastore.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	topoheightStore, err := topoheightstore.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	accountStore := accountstore.New(databaseContext)
	balanceStore := balancestore.New(databaseContext)
	frozenBalanceStore := frozenbalancestore.New(databaseContext)
	delegationStore := delegationstore.New(databaseContext)
	contractStore := contractstore.New(databaseContext)

	// Processes.
	reachabilityManager := reachabilitymanager.New(
		databaseContext,
		ghostdagDataStore,
		reachabilityDataStore,
		genesisHash)
	dagTopologyManager := dagtopologymanager.New(
		databaseContext,
		reachabilityManager,
		blockRelationStore,
		consensusStateStore)
	ghostdagManager := ghostdagmanager.New(
		databaseContext,
		dagTopologyManager,
		ghostdagDataStore,
		blockHeaderStore,
		externalapi.KType(dagParams.K))
	dagTraversalManager := dagtraversalmanager.New(
		databaseContext,
		dagTopologyManager,
		ghostdagManager,
		ghostdagDataStore,
		consensusStateStore)
	difficultyManager := difficultymanager.New(
		databaseContext,
		ghostdagDataStore,
		blockHeaderStore,
		dagParams,
		dagParams.GenesisBlock.Header.Bits)
	transactionValidator := transactionvalidator.New(
		databaseContext,
		dagTopologyManager,
		accountStore,
		balanceStore,
		frozenBalanceStore,
		delegationStore,
		contractStore,
		dagParams)
	pruningManager := pruningmanager.New(
		databaseContext,
		dagTraversalManager,
		dagTopologyManager,
		ghostdagDataStore,
		consensusStateStore,
		pruningStore,
		topoheightStore,
		accountStore,
		balanceStore,
		frozenBalanceStore,
		delegationStore,
		contractStore,
		genesisHash,
		dagParams.PruneSafetyLimit)
	consensusStateManager := consensusstatemanager.New(
		databaseContext,
		dagParams,
		genesisHash,
		ghostdagManager,
		dagTopologyManager,
		dagTraversalManager,
		pruningManager,
		transactionValidator,
		blockStore,
		blockStatusStore,
		blockRelationStore,
		ghostdagDataStore,
		consensusStateStore,
		topoheightStore,
		pruningStore,
		accountStore,
		balanceStore,
		frozenBalanceStore,
		delegationStore,
		contractStore)
	blockProcessor := blockprocessor.New(
		dagParams,
		databaseContext,
		genesisHash,
		consensusStateManager,
		pruningManager,
		ghostdagManager,
		dagTopologyManager,
		reachabilityManager,
		difficultyManager,
		blockStore,
		blockHeaderStore,
		blockStatusStore,
		blockRelationStore,
		ghostdagDataStore,
		consensusStateStore,
		topoheightStore,
		pruningStore,
		reachabilityDataStore,
		accountStore,
		balanceStore,
		frozenBalanceStore,
		delegationStore,
		contractStore)
	blockBuilder := blockbuilder.New(
		databaseContext,
		dagParams,
		dagTopologyManager,
		ghostdagDataStore,
		blockHeaderStore,
		blockRelationStore,
		ghostdagManager,
		difficultyManager)
	mempoolInstance := mempool.New(
		databaseContext,
		transactionValidator,
		consensusStateStore,
		ghostdagDataStore,
		topoheightStore,
		defaultMempoolSize)

	return &consensus{
		databaseContext:       databaseContext,
		blockProcessor:        blockProcessor,
		blockBuilder:          blockBuilder,
		consensusStateManager: consensusStateManager,
		dagTopologyManager:    dagTopologyManager,
		mempool:               mempoolInstance,
		blockStore:            blockStore,
		ghostdagDataStore:     ghostdagDataStore,
		topoheightStore:       topoheightStore,
	}, nil
}

// NewFactory creates a new Consensus factory.
func NewFactory() Factory {
	return &factory{}
}
