package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// PruningManager advances the pruning point as the selected-parent
// chain grows past PRUNE_SAFETY_LIMIT (spec.md Glossary "Pruning
// point"). It records the new pruning point and its topoheight only;
// block bodies and versioned-state entries below it are not deleted.
type PruningManager interface {
	UpdatePruningPointByVirtual(stagingArea *StagingArea) error
	IsValidPruningPoint(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (bool, error)
}
