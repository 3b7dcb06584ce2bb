// Package difficultymanager implements the DAA (spec.md §4.3): the
// required "bits" target for a new block is derived from the
// outlier-trimmed, genesis-padded window of its selected-parent chain's
// blue past, clamped to bound how fast difficulty can swing block to
// block. Grounded on blockdag/blockwindow.go's blueBlockWindow/
// averageTarget/medianTimestamp shapes; the retarget formula itself has
// no surviving teacher definition (requiredDifficulty is referenced from
// blockdag/validate.go but not defined anywhere in this retrieval pack)
// and is authored from the window statistics above plus spec.md §4.3's
// stated clamp bounds.
package difficultymanager

import (
	"math/big"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/pow"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
	"github.com/tos-network/tos-sub010/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.DIFF)

type difficultyManager struct {
	databaseContext   model.DBReader
	ghostdagDataStore model.GHOSTDAGDataStore
	headerStore       model.BlockHeaderStore
	windowSize        uint64
	targetTimePerBlockMs int64
	timestampDeviationTolerance uint64
	minBits           uint32
}

// New instantiates a new DifficultyManager.
func New(
	databaseContext model.DBReader,
	ghostdagDataStore model.GHOSTDAGDataStore,
	headerStore model.BlockHeaderStore,
	params *dagconfig.Params,
	minBits uint32,
) model.DifficultyManager {
	return &difficultyManager{
		databaseContext:             databaseContext,
		ghostdagDataStore:           ghostdagDataStore,
		headerStore:                 headerStore,
		windowSize:                  params.DifficultyAdjustmentWindowSize,
		targetTimePerBlockMs:        params.TargetTimePerBlock.Milliseconds(),
		timestampDeviationTolerance: params.TimestampDeviationTolerance,
		minBits:                     minBits,
	}
}

// minRatio and maxRatio bound how far a single retarget can move the
// target from the window average, in either direction (spec.md §4.3).
const (
	minRatioNumerator   = 1
	minRatioDenominator = 4
	maxRatioNumerator   = 4
	maxRatioDenominator = 1
)

// RequiredDifficulty returns the compact "bits" target required of
// blockHash given its selected-parent chain's DAA window.
func (dm *difficultyManager) RequiredDifficulty(stagingArea *model.StagingArea, blockHash *externalapi.DomainHash) (uint32, error) {
	data, err := dm.ghostdagDataStore.Get(dm.databaseContext, stagingArea, blockHash)
	if err != nil {
		return 0, err
	}
	if data.IsGenesis() {
		return dm.minBits, nil
	}

	window, err := dm.blockWindow(stagingArea, blockHash, dm.windowSize)
	if err != nil {
		return 0, err
	}
	if uint64(len(window)) < 2 {
		return dm.minBits, nil
	}

	minTimestamp, maxTimestamp := trimmedMinMaxTimestamps(window, dm.timestampDeviationTolerance)
	actualTimespanMs := maxTimestamp - minTimestamp
	if actualTimespanMs <= 0 {
		actualTimespanMs = 1
	}
	expectedTimespanMs := dm.targetTimePerBlockMs * int64(len(window)-1)
	if expectedTimespanMs <= 0 {
		expectedTimespanMs = 1
	}

	newTarget := averageTarget(window)
	newTarget.Mul(newTarget, big.NewInt(actualTimespanMs))
	newTarget.Div(newTarget, big.NewInt(expectedTimespanMs))

	avg := averageTarget(window)
	minTarget := new(big.Int).Mul(avg, big.NewInt(minRatioNumerator))
	minTarget.Div(minTarget, big.NewInt(minRatioDenominator))
	maxTarget := new(big.Int).Mul(avg, big.NewInt(maxRatioNumerator))
	maxTarget.Div(maxTarget, big.NewInt(maxRatioDenominator))

	if newTarget.Cmp(minTarget) < 0 {
		newTarget = minTarget
	} else if newTarget.Cmp(maxTarget) > 0 {
		newTarget = maxTarget
	}

	powLimit := pow.CompactToBig(dm.minBits)
	if newTarget.Cmp(powLimit) > 0 {
		newTarget = powLimit
	}

	newBits := pow.BigToCompact(newTarget)
	// BigToCompact truncates the mantissa, which can leave the encoded
	// target just under minTarget; step it up by one mantissa unit.
	if encoded := pow.CompactToBig(newBits); encoded.Cmp(minTarget) < 0 && encoded.Cmp(powLimit) < 0 {
		if newBits&0x007fffff == 0x007fffff {
			newBits = (newBits&0xff000000 + 1<<24) | 0x00008000
		} else {
			newBits++
		}
	}
	log.Tracef("Required difficulty for %s: bits=%08x over a %d-block window", blockHash, newBits, len(window))
	return newBits, nil
}
