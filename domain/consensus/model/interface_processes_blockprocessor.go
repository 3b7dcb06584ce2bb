package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// BlockInsertionResult summarizes the observable effect of accepting a
// block: whether it changed the selected-parent chain, and the
// mergeset it was given credit for ordering.
type BlockInsertionResult struct {
	SelectedParentChainChanges *SelectedParentChainChanges
	VirtualChangeSet           *VirtualChangeSet
}

// SelectedParentChainChanges lists the blocks removed from and added to
// the selected-parent chain by a block's acceptance (non-empty only on a
// reorg, spec.md §4.7).
type SelectedParentChainChanges struct {
	Removed []*externalapi.DomainHash
	Added   []*externalapi.DomainHash
}

// VirtualChangeSet reports which blocks the tip set gained/lost.
type VirtualChangeSet struct {
	NewTips []*externalapi.DomainHash
	OldTips []*externalapi.DomainHash
}

// BlockProcessor drives the full acceptance pipeline for an incoming
// block (spec.md §2 "Data flow for an accepted block"): header
// validation, GHOSTDAG, DAA, mergeset ordering, per-tx validation and
// application, and tip/topoheight finalization.
type BlockProcessor interface {
	ValidateAndInsertBlock(block *externalapi.DomainBlock) (*BlockInsertionResult, error)
}
