package difficultymanager

import (
	"math"
	"math/big"
	"sort"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/pow"
)

// blockWindowEntry pairs a window member's hash with its header bits
// and timestamp, so the window's statistics can be computed without
// re-fetching headers.
type blockWindowEntry struct {
	hash        *externalapi.DomainHash
	bits        uint32
	timestampMs int64
}

// blockWindow builds the blueBlockWindow of the given size ending at
// startingHash: the blues in the selected-parent-chain past of
// startingHash, in GHOSTDAG mergeset order, padded with genesis once
// the past is exhausted (spec.md §4.3 "genesis-padding").
func (dm *difficultyManager) blockWindow(
	stagingArea *model.StagingArea, startingHash *externalapi.DomainHash, windowSize uint64,
) ([]blockWindowEntry, error) {
	window := make([]blockWindowEntry, 0, windowSize)

	current := startingHash
	for uint64(len(window)) < windowSize && current != nil {
		data, err := dm.ghostdagDataStore.Get(dm.databaseContext, stagingArea, current)
		if err != nil {
			return nil, err
		}
		if data.IsGenesis() {
			break
		}
		for _, blue := range data.MergeSetBlues {
			entry, err := dm.windowEntry(stagingArea, blue)
			if err != nil {
				return nil, err
			}
			window = append(window, entry)
			if uint64(len(window)) == windowSize {
				break
			}
		}
		current = data.SelectedParent
	}

	if uint64(len(window)) < windowSize && current != nil {
		genesisEntry, err := dm.windowEntry(stagingArea, current)
		if err != nil {
			return nil, err
		}
		for uint64(len(window)) < windowSize {
			window = append(window, genesisEntry)
		}
	}

	return window, nil
}

func (dm *difficultyManager) windowEntry(stagingArea *model.StagingArea, hash *externalapi.DomainHash) (blockWindowEntry, error) {
	header, err := dm.headerStore.BlockHeader(dm.databaseContext, stagingArea, hash)
	if err != nil {
		return blockWindowEntry{}, err
	}
	return blockWindowEntry{hash: hash, bits: header.Bits, timestampMs: header.TimestampMs}, nil
}

func minMaxTimestamps(window []blockWindowEntry) (min, max int64) {
	min = math.MaxInt64
	max = 0
	for _, entry := range window {
		if entry.timestampMs < min {
			min = entry.timestampMs
		}
		if entry.timestampMs > max {
			max = entry.timestampMs
		}
	}
	return min, max
}

// trimmedMinMaxTimestamps returns the window's min and max timestamp
// after trimming the timestampDeviationTolerance outliers from each
// tail, so a single wildly misdated block can't skew the DAA's actual
// timespan (spec.md §4.3).
func trimmedMinMaxTimestamps(window []blockWindowEntry, tolerance uint64) (min, max int64) {
	timestamps := make([]int64, len(window))
	for i, entry := range window {
		timestamps[i] = entry.timestampMs
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	trim := int(tolerance)
	if trim*2 >= len(timestamps) {
		trim = 0
	}
	trimmed := timestamps[trim : len(timestamps)-trim]
	return trimmed[0], trimmed[len(trimmed)-1]
}

// averageTarget returns the arithmetic mean of the window's per-block
// compact targets.
func averageTarget(window []blockWindowEntry) *big.Int {
	sum := big.NewInt(0)
	for _, entry := range window {
		sum.Add(sum, pow.CompactToBig(entry.bits))
	}
	sum.Div(sum, big.NewInt(int64(len(window))))
	return sum
}
