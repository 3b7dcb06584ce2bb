package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// DAGTopologyManager exposes relationship queries over the block DAG
// (parent/child, ancestry, selected-parent-chain membership) and
// maintains the live tip set.
type DAGTopologyManager interface {
	Parents(stagingArea *StagingArea, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	Children(stagingArea *StagingArea, blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
	IsParentOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsChildOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsAncestorOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsDescendantOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)
	IsAncestorOfAny(stagingArea *StagingArea, blockHash *externalapi.DomainHash, potentialDescendants []*externalapi.DomainHash) (bool, error)
	IsInSelectedParentChainOf(stagingArea *StagingArea, blockHashA, blockHashB *externalapi.DomainHash) (bool, error)

	Tips(stagingArea *StagingArea) ([]*externalapi.DomainHash, error)
	AddTip(stagingArea *StagingArea, tipHash *externalapi.DomainHash) error
}
