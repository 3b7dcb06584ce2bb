package dagtraversalmanager

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// selectedParentChainIterator implements model.SelectedParentIterator by
// walking the GHOSTDAG selected-parent chain one block per Next() call;
// the first Next()/Get() pair yields highHash itself.
type selectedParentChainIterator struct {
	databaseContext   model.DBReader
	ghostdagDataStore model.GHOSTDAGDataStore
	stagingArea       *model.StagingArea
	current           *externalapi.DomainHash
	started           bool
}

func (it *selectedParentChainIterator) Next() bool {
	if !it.started {
		it.started = true
		return it.current != nil
	}
	if it.current == nil {
		return false
	}
	data, err := it.ghostdagDataStore.Get(it.databaseContext, it.stagingArea, it.current)
	if err != nil {
		it.current = nil
		return false
	}
	it.current = data.SelectedParent
	return it.current != nil
}

func (it *selectedParentChainIterator) Get() (*externalapi.DomainHash, error) {
	return it.current, nil
}

// SelectedParentIterator creates an iterator over the selected-parent
// chain of the given highHash.
func (dtm *dagTraversalManager) SelectedParentIterator(stagingArea *model.StagingArea, highHash *externalapi.DomainHash) (model.SelectedParentIterator, error) {
	return &selectedParentChainIterator{
		databaseContext:   dtm.databaseContext,
		ghostdagDataStore: dtm.ghostdagDataStore,
		stagingArea:       stagingArea,
		current:           highHash,
	}, nil
}
