// Package ghostdagmanager computes the GHOSTDAG blue set, blue score,
// blue work and mergeset ordering for newly accepted blocks (spec.md
// §4.2), grounded line-for-line on the teacher's k-cluster classification
// algorithm in blockdag/ghostdag.go, generalized from pointer-chasing
// *blockNode values to hash-keyed store lookups against a StagingArea.
package ghostdagmanager

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/pow"
)

type ghostdagManager struct {
	databaseContext    model.DBReader
	dagTopologyManager model.DAGTopologyManager
	ghostdagDataStore  model.GHOSTDAGDataStore
	headerStore        model.BlockHeaderStore
	k                  externalapi.KType
}

// New instantiates a new GHOSTDAGManager.
func New(
	databaseContext model.DBReader,
	dagTopologyManager model.DAGTopologyManager,
	ghostdagDataStore model.GHOSTDAGDataStore,
	headerStore model.BlockHeaderStore,
	k externalapi.KType,
) model.GHOSTDAGManager {
	return &ghostdagManager{
		databaseContext:    databaseContext,
		dagTopologyManager: dagTopologyManager,
		ghostdagDataStore:  ghostdagDataStore,
		headerStore:        headerStore,
		k:                  k,
	}
}

// GHOSTDAG classifies blockHash's mergeset into blues and reds, picks
// its selected parent, and computes its blue score and cumulative blue
// work, staging the result.
func (gm *ghostdagManager) GHOSTDAG(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) error {
	parents, err := gm.dagTopologyManager.Parents(stagingArea, blockHash)
	if err != nil {
		return err
	}
	header, err := gm.headerStore.BlockHeader(gm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return err
	}
	blockWork := pow.CalcWork(header.Bits)

	if len(parents) == 0 {
		data := &externalapi.GhostdagData{
			BlueScore:          0,
			BlueWork:           blockWork,
			SelectedParent:     nil,
			MergeSetBlues:      []*externalapi.DomainHash{},
			MergeSetReds:       []*externalapi.DomainHash{},
			BluesAnticoneSizes: map[externalapi.DomainHash]externalapi.KType{},
			MergeSetNonDAA:     []*externalapi.DomainHash{},
		}
		gm.ghostdagDataStore.Stage(stagingArea, blockHash, data)
		return nil
	}

	selectedParent, err := gm.ChooseSelectedParent(stagingArea, parents...)
	if err != nil {
		return err
	}

	data := externalapi.New(selectedParent)
	data.BluesAnticoneSizes[*selectedParent] = 0

	candidates, err := gm.selectedParentAnticone(stagingArea, blockHash, selectedParent, parents)
	if err != nil {
		return err
	}

	for len(candidates) > 0 {
		blueCandidate := candidates[0]
		candidates = candidates[1:]

		candidateBluesAnticoneSizes := make(map[externalapi.DomainHash]externalapi.KType)
		var candidateAnticoneSize externalapi.KType
		possiblyBlue := true

		chain := blockHash
		for isFirstChainBlock := true; possiblyBlue; {
			if !isFirstChainBlock {
				isAncestorOfCandidate, err := gm.dagTopologyManager.IsAncestorOf(stagingArea, chain, blueCandidate)
				if err != nil {
					return err
				}
				if isAncestorOfCandidate {
					break
				}
			}

			var chainData *externalapi.GhostdagData
			var chainBlues []*externalapi.DomainHash
			if isFirstChainBlock {
				chainBlues = data.MergeSetBlues
			} else {
				var err error
				chainData, err = gm.ghostdagDataStore.Get(gm.databaseContext, stagingArea, chain)
				if err != nil {
					return err
				}
				chainBlues = chainData.MergeSetBlues
			}

			for _, blue := range chainBlues {
				if !blue.Equal(chain) {
					isAncestorOfBlue, err := gm.dagTopologyManager.IsAncestorOf(stagingArea, blue, blueCandidate)
					if err != nil {
						return err
					}
					if isAncestorOfBlue {
						continue
					}
				}

				blueAnticoneSize, err := gm.blueAnticoneSize(stagingArea, blue, selectedParent, data)
				if err != nil {
					return err
				}
				candidateBluesAnticoneSizes[*blue] = blueAnticoneSize
				candidateAnticoneSize++
				if candidateAnticoneSize > gm.k || blueAnticoneSize == gm.k {
					possiblyBlue = false
					break
				}
				if blueAnticoneSize > gm.k {
					return errors.New("found blue anticone size larger than k")
				}
			}

			if !possiblyBlue {
				break
			}
			if isFirstChainBlock {
				if selectedParent == nil {
					break
				}
				chain = selectedParent
				isFirstChainBlock = false
				continue
			}
			if chainData.SelectedParent == nil {
				break
			}
			chain = chainData.SelectedParent
		}

		if possiblyBlue {
			data.MergeSetBlues = append(data.MergeSetBlues, blueCandidate)
			data.BluesAnticoneSizes[*blueCandidate] = candidateAnticoneSize
			for blue, size := range candidateBluesAnticoneSizes {
				data.BluesAnticoneSizes[blue] = size + 1
			}
			if externalapi.KType(len(data.MergeSetBlues)) == gm.k+1 {
				break
			}
		} else {
			data.MergeSetReds = append(data.MergeSetReds, blueCandidate)
		}
	}
	// Any candidate left unclassified because the blue set filled up is red.
	for _, leftover := range candidates {
		data.MergeSetReds = append(data.MergeSetReds, leftover)
	}

	selectedParentData, err := gm.ghostdagDataStore.Get(gm.databaseContext, stagingArea, selectedParent)
	if err != nil {
		return err
	}
	data.BlueScore = selectedParentData.BlueScore + uint64(len(data.MergeSetBlues))

	// Cumulative blue work is the selected parent's own blue work (which
	// already folds in everything in its blue past) plus this block's
	// own work plus every other mergeset blue's individual work.
	blueWork := new(big.Int).Set(selectedParentData.BlueWork)
	blueWork.Add(blueWork, blockWork)
	for _, blue := range data.MergeSetBlues {
		if blue.Equal(selectedParent) {
			continue
		}
		blueHeader, err := gm.headerStore.BlockHeader(gm.databaseContext, stagingArea, blue)
		if err != nil {
			return err
		}
		blueWork.Add(blueWork, pow.CalcWork(blueHeader.Bits))
	}
	data.BlueWork = blueWork

	gm.ghostdagDataStore.Stage(stagingArea, blockHash, data)
	return nil
}

// selectedParentAnticone returns blockHash's parents' anticone relative
// to the selected parent (every parent other than the selected parent,
// plus their ancestors not already in the selected parent's past),
// sorted by descending blue work so the most-likely-blue candidates are
// classified first.
func (gm *ghostdagManager) selectedParentAnticone(
	stagingArea *model.StagingArea, blockHash, selectedParent *externalapi.DomainHash, parents []*externalapi.DomainHash,
) ([]*externalapi.DomainHash, error) {
	anticoneSet := make(map[externalapi.DomainHash]bool)
	selectedParentPast := make(map[externalapi.DomainHash]bool)
	var anticone []*externalapi.DomainHash
	var queue []*externalapi.DomainHash

	for _, parent := range parents {
		if parent.Equal(selectedParent) {
			continue
		}
		anticoneSet[*parent] = true
		anticone = append(anticone, parent)
		queue = append(queue, parent)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		currentParents, err := gm.dagTopologyManager.Parents(stagingArea, current)
		if err != nil {
			return nil, err
		}
		for _, parent := range currentParents {
			if anticoneSet[*parent] || selectedParentPast[*parent] {
				continue
			}
			isAncestorOfSelectedParent, err := gm.dagTopologyManager.IsAncestorOf(stagingArea, parent, selectedParent)
			if err != nil {
				return nil, err
			}
			if isAncestorOfSelectedParent {
				selectedParentPast[*parent] = true
				continue
			}
			anticoneSet[*parent] = true
			anticone = append(anticone, parent)
			queue = append(queue, parent)
		}
	}

	sort.Slice(anticone, func(i, j int) bool {
		return gm.lessReversed(stagingArea, anticone[i], anticone[j])
	})
	return anticone, nil
}

func (gm *ghostdagManager) lessReversed(stagingArea *model.StagingArea, blockHashA, blockHashB *externalapi.DomainHash) bool {
	greater, err := gm.ChooseSelectedParent(stagingArea, blockHashA, blockHashB)
	if err != nil {
		return false
	}
	return greater.Equal(blockHashA)
}

// blueAnticoneSize returns the anticone size of block as recorded by
// the first ancestor along context's chain (walking via selected
// parent) whose mergeset includes it as a blue.
func (gm *ghostdagManager) blueAnticoneSize(
	stagingArea *model.StagingArea, block, contextChainStart *externalapi.DomainHash, newBlockData *externalapi.GhostdagData,
) (externalapi.KType, error) {
	if size, ok := newBlockData.BluesAnticoneSizes[*block]; ok {
		return size, nil
	}
	for current := contextChainStart; current != nil; {
		currentData, err := gm.ghostdagDataStore.Get(gm.databaseContext, stagingArea, current)
		if err != nil {
			return 0, err
		}
		if size, ok := currentData.BluesAnticoneSizes[*block]; ok {
			return size, nil
		}
		current = currentData.SelectedParent
	}
	return 0, errors.Errorf("block %s is not in blue-set of its context", block)
}

// ChooseSelectedParent picks, among the given block hashes, the one
// with the greatest blue work, breaking ties with the lexicographically
// greater hash.
func (gm *ghostdagManager) ChooseSelectedParent(
	stagingArea *model.StagingArea, blockHashes ...*externalapi.DomainHash,
) (*externalapi.DomainHash, error) {
	selectedParent := blockHashes[0]
	selectedParentData, err := gm.ghostdagDataStore.Get(gm.databaseContext, stagingArea, selectedParent)
	if err != nil {
		return nil, err
	}
	for _, blockHash := range blockHashes[1:] {
		blockData, err := gm.ghostdagDataStore.Get(gm.databaseContext, stagingArea, blockHash)
		if err != nil {
			return nil, err
		}
		if isLess(selectedParent, selectedParentData, blockHash, blockData) {
			selectedParent = blockHash
			selectedParentData = blockData
		}
	}
	return selectedParent, nil
}

func isLess(blockHashA *externalapi.DomainHash, dataA *externalapi.GhostdagData, blockHashB *externalapi.DomainHash, dataB *externalapi.GhostdagData) bool {
	switch dataA.BlueWork.Cmp(dataB.BlueWork) {
	case -1:
		return true
	case 1:
		return false
	default:
		return blockHashA.Less(blockHashB)
	}
}
