package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// SelectedParentIterator walks up a selected-parent chain one block at a
// time, from some starting block towards the genesis.
type SelectedParentIterator interface {
	Next() bool
	Get() (*externalapi.DomainHash, error)
}
