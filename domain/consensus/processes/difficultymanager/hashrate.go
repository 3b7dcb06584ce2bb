package difficultymanager

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// EstimateNetworkHashesPerSecond averages blue work over the given
// window ending at startHash: the more work the network found in the
// window's timespan, the higher its estimated hashrate.
func (dm *difficultyManager) EstimateNetworkHashesPerSecond(
	stagingArea *model.StagingArea, startHash *externalapi.DomainHash, windowSize uint64,
) (uint64, error) {
	window, err := dm.blockWindow(stagingArea, startHash, windowSize)
	if err != nil {
		return 0, err
	}
	if len(window) == 0 {
		return 0, nil
	}

	minWindowTimestamp, maxWindowTimestamp := minMaxTimestamps(window)
	if minWindowTimestamp >= maxWindowTimestamp {
		return 0, errors.Errorf("min window timestamp is equal to or greater than the max window timestamp")
	}

	firstBlockData, err := dm.ghostdagDataStore.Get(dm.databaseContext, stagingArea, window[0].hash)
	if err != nil {
		return 0, err
	}
	minWindowBlueWork := firstBlockData.BlueWork
	maxWindowBlueWork := firstBlockData.BlueWork
	for _, entry := range window[1:] {
		blockData, err := dm.ghostdagDataStore.Get(dm.databaseContext, stagingArea, entry.hash)
		if err != nil {
			return 0, err
		}
		if blockData.BlueWork.Cmp(minWindowBlueWork) < 0 {
			minWindowBlueWork = blockData.BlueWork
		}
		if blockData.BlueWork.Cmp(maxWindowBlueWork) > 0 {
			maxWindowBlueWork = blockData.BlueWork
		}
	}

	numerator := new(big.Int).Sub(maxWindowBlueWork, minWindowBlueWork)
	denominatorMs := big.NewInt(maxWindowTimestamp - minWindowTimestamp)
	denominator := denominatorMs.Div(denominatorMs, big.NewInt(1000))
	if denominator.Sign() == 0 {
		denominator = big.NewInt(1)
	}
	networkHashesPerSecond := new(big.Int).Div(numerator, denominator)
	return networkHashesPerSecond.Uint64(), nil
}
