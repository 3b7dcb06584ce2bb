package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// DifficultyManager implements the DAA (spec.md §4.2): it resolves the
// required `bits` target for a new block from the outlier-trimmed,
// genesis-padded timestamp window of its selected-parent chain.
type DifficultyManager interface {
	RequiredDifficulty(stagingArea *StagingArea, blockHash *externalapi.DomainHash) (uint32, error)

	// EstimateNetworkHashesPerSecond averages blue work over the given
	// window size ending at startHash, for diagnostics/RPC surfaces.
	EstimateNetworkHashesPerSecond(stagingArea *StagingArea, startHash *externalapi.DomainHash, windowSize uint64) (uint64, error)
}
