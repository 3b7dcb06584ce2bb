// Package pruningmanager advances the pruning point as the selected
// parent chain grows (spec.md Glossary "Pruning point"): once a chain
// tip is more than PruneSafetyLimit blue-score deep past the current
// pruning point, the point moves forward. The versioned account-domain
// stores are held here for the eventual PruneBelow follow-up described
// below, not yet exercised for space reclamation.
package pruningmanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

type pruningManager struct {
	databaseContext model.DBReader

	dagTraversalManager model.DAGTraversalManager
	dagTopologyManager  model.DAGTopologyManager
	ghostdagDataStore   model.GHOSTDAGDataStore
	consensusStateStore model.ConsensusStateStore
	pruningStore        model.PruningStore
	topoheightStore     model.TopoheightStore

	accountStore       model.AccountStore
	balanceStore       model.BalanceStore
	frozenBalanceStore model.FrozenBalanceStore
	delegationStore    model.DelegationStore
	contractStore      model.ContractStore

	genesisHash      *externalapi.DomainHash
	pruneSafetyLimit uint64
}

// New instantiates a new PruningManager.
func New(
	databaseContext model.DBReader,
	dagTraversalManager model.DAGTraversalManager,
	dagTopologyManager model.DAGTopologyManager,
	ghostdagDataStore model.GHOSTDAGDataStore,
	consensusStateStore model.ConsensusStateStore,
	pruningStore model.PruningStore,
	topoheightStore model.TopoheightStore,
	accountStore model.AccountStore,
	balanceStore model.BalanceStore,
	frozenBalanceStore model.FrozenBalanceStore,
	delegationStore model.DelegationStore,
	contractStore model.ContractStore,
	genesisHash *externalapi.DomainHash,
	pruneSafetyLimit uint64,
) model.PruningManager {
	return &pruningManager{
		databaseContext:      databaseContext,
		dagTraversalManager:  dagTraversalManager,
		dagTopologyManager:   dagTopologyManager,
		ghostdagDataStore:    ghostdagDataStore,
		consensusStateStore:  consensusStateStore,
		pruningStore:         pruningStore,
		topoheightStore:      topoheightStore,
		accountStore:         accountStore,
		balanceStore:         balanceStore,
		frozenBalanceStore:   frozenBalanceStore,
		delegationStore:      delegationStore,
		contractStore:        contractStore,
		genesisHash:          genesisHash,
		pruneSafetyLimit:     pruneSafetyLimit,
	}
}

// UpdatePruningPointByVirtual recomputes the pruning point from the
// DAG's current heaviest tip and, if it moved forward, stages the new
// pruning point and its topoheight. The versioned world-state stores are
// not truncated: their history below the pruning point is kept.
func (pm *pruningManager) UpdatePruningPointByVirtual(stagingArea *model.StagingArea) error {
	tips, err := pm.consensusStateStore.Tips(pm.databaseContext, stagingArea)
	if err != nil {
		return err
	}
	if len(tips) == 0 {
		return nil
	}

	tip, tipTopoheight, err := pm.heaviestTipWithTopoheight(stagingArea, tips)
	if err != nil {
		return err
	}
	if tip == nil {
		return nil
	}

	tipGhostdagData, err := pm.ghostdagDataStore.Get(pm.databaseContext, stagingArea, tip)
	if err != nil {
		return err
	}
	if tipGhostdagData.BlueScore < pm.pruneSafetyLimit {
		return nil
	}

	newPruningPoint, err := pm.dagTraversalManager.HighestChainBlockBelowBlueScore(
		stagingArea, tip, tipGhostdagData.BlueScore-pm.pruneSafetyLimit)
	if err != nil {
		return err
	}

	currentPruningPoint, err := pm.pruningStore.PruningPoint(pm.databaseContext, stagingArea)
	if err == nil && currentPruningPoint != nil && currentPruningPoint.Equal(newPruningPoint) {
		return nil
	}

	newPruningTopoheight, exists, err := pm.topoheightStore.Topoheight(pm.databaseContext, stagingArea, newPruningPoint)
	if err != nil {
		return err
	}
	if !exists {
		// newPruningPoint hasn't been applied yet (still header-only);
		// defer advancing until its own AddBlock assigns it a topoheight.
		return nil
	}
	_ = tipTopoheight

	// The account-domain stores' DeleteFrom only truncates the *top* of
	// a store's history (topoheight >= X, for reorg rollback); reclaiming
	// the *tail* below a new pruning point needs the reverse range and
	// is left as follow-up work (model.AccountStore and its siblings
	// would need a PruneBelow alongside DeleteFrom). Advancing the
	// recorded pruning point is itself safe without it: old versions
	// simply stay on disk, reachable only via GetLatest's backward scan,
	// until that follow-up lands.
	pm.pruningStore.StagePruningPoint(stagingArea, newPruningPoint, newPruningTopoheight)
	return nil
}

// IsValidPruningPoint reports whether blockHash could be accepted as a
// pruning point: it must lie on the heaviest tip's selected parent
// chain, at or behind the depth PruneSafetyLimit enforces.
func (pm *pruningManager) IsValidPruningPoint(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (bool, error) {
	if blockHash.Equal(pm.genesisHash) {
		return true, nil
	}

	tips, err := pm.consensusStateStore.Tips(pm.databaseContext, stagingArea)
	if err != nil {
		return false, err
	}
	tip, _, err := pm.heaviestTipWithTopoheight(stagingArea, tips)
	if err != nil {
		return false, err
	}
	if tip == nil {
		return false, nil
	}

	isInChain, err := pm.dagTopologyManager.IsInSelectedParentChainOf(stagingArea, blockHash, tip)
	if err != nil {
		return false, err
	}
	if !isInChain {
		return false, nil
	}

	tipGhostdagData, err := pm.ghostdagDataStore.Get(pm.databaseContext, stagingArea, tip)
	if err != nil {
		return false, err
	}
	candidateGhostdagData, err := pm.ghostdagDataStore.Get(pm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return false, err
	}
	return candidateGhostdagData.BlueScore+pm.pruneSafetyLimit <= tipGhostdagData.BlueScore, nil
}

func (pm *pruningManager) heaviestTipWithTopoheight(stagingArea *model.StagingArea, tips []*externalapi.DomainHash) (*externalapi.DomainHash, uint64, error) {
	var best *externalapi.DomainHash
	var bestBlueScore uint64
	for _, tip := range tips {
		data, err := pm.ghostdagDataStore.Get(pm.databaseContext, stagingArea, tip)
		if err != nil {
			return nil, 0, err
		}
		if best == nil || data.BlueScore > bestBlueScore {
			best = tip
			bestBlueScore = data.BlueScore
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	topoheight, _, err := pm.topoheightStore.Topoheight(pm.databaseContext, stagingArea, best)
	if err != nil {
		return nil, 0, err
	}
	return best, topoheight, nil
}
