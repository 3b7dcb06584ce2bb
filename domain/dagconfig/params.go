// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dagconfig

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// Consensus-critical constants (spec.md §6.4). K is devnet's GHOSTDAG K;
// individual Params may override it for other networks.
const (
	ghostdagK                      = 18
	difficultyAdjustmentWindowSize = 2016
	timestampDeviationTolerance    = 132
	targetTimePerBlock             = 1000 * time.Millisecond
	stableLimit                    = 24
	pruneSafetyLimit               = 10 * stableLimit
	tipsLimit                      = 3
	maxItemsPerPage                = 1024
	maxUnfreezeQueue               = 32
	maxLockPeriodDays              = 365
)

// KType defines the size of the GHOSTDAG consensus algorithm's K parameter.
type KType uint8

// NetworkID identifies one of the default networks.
type NetworkID uint8

// The default networks.
const (
	Mainnet NetworkID = iota
	Testnet
	Simnet
	Devnet
)

// Params defines a TOS network by its consensus parameters. Networking,
// address encoding, and other peer-to-peer concerns are out of scope for
// this module (spec.md §1) and are not represented here.
type Params struct {
	// K is the GHOSTDAG K parameter (spec.md §4.2).
	K KType

	// Name is a human-readable identifier for the network.
	Name string

	// Net identifies the network for registration purposes.
	Net NetworkID

	// TargetTimePerBlock is the desired amount of time to generate each
	// block (spec.md §4.3).
	TargetTimePerBlock time.Duration

	// StableLimit is the blue-score depth beyond which a block is no
	// longer at risk of being reorganized out in practice (spec.md §3
	// "Lifecycle").
	StableLimit uint64

	// PruneSafetyLimit is the minimum distance, in topoheight, a reorg's
	// fork point must stay above the pruned topoheight (spec.md §4.7).
	PruneSafetyLimit uint64

	// TipsLimit caps both a header's parent-set size and the number of
	// tips a block template may reference (spec.md §3, §4.8).
	TipsLimit int

	// DifficultyAdjustmentWindowSize is the number of in-DAA ancestors
	// inspected to retarget difficulty (spec.md §4.3).
	DifficultyAdjustmentWindowSize uint64

	// TimestampDeviationTolerance scales the outlier-trimming fraction
	// applied to a DAA window before computing min/max timestamps.
	TimestampDeviationTolerance uint64

	// MaxItemsPerPage bounds any paginated sync response (spec.md §8 P9).
	MaxItemsPerPage uint64

	// MaxUnfreezeQueue bounds the number of pending entries in an
	// account's energy unfreeze queue (spec.md §6.4).
	MaxUnfreezeQueue int

	// MaxLockPeriodDays bounds an energy delegation's lock period
	// (spec.md §6.4).
	MaxLockPeriodDays uint32

	// GenesisBlock is the network's first block: no parents, empty
	// transaction set. Set in genesis.go.
	GenesisBlock *externalapi.DomainBlock

	// GenesisHash is HeaderHash(GenesisBlock.Header), cached since every
	// manager that needs to special-case genesis compares against it.
	GenesisHash *externalapi.DomainHash
}

// MainnetParams defines the network parameters for the main TOS network.
var MainnetParams = Params{
	K:                              ghostdagK,
	Name:                           "tos-mainnet",
	Net:                            Mainnet,
	TargetTimePerBlock:             targetTimePerBlock,
	StableLimit:                    stableLimit,
	PruneSafetyLimit:               pruneSafetyLimit,
	TipsLimit:                      tipsLimit,
	DifficultyAdjustmentWindowSize: difficultyAdjustmentWindowSize,
	TimestampDeviationTolerance:    timestampDeviationTolerance,
	MaxItemsPerPage:                maxItemsPerPage,
	MaxUnfreezeQueue:               maxUnfreezeQueue,
	MaxLockPeriodDays:              maxLockPeriodDays,
}

// TestnetParams defines the network parameters for the test TOS network.
var TestnetParams = Params{
	K:                              ghostdagK,
	Name:                           "tos-testnet",
	Net:                            Testnet,
	TargetTimePerBlock:             targetTimePerBlock,
	StableLimit:                    stableLimit,
	PruneSafetyLimit:               pruneSafetyLimit,
	TipsLimit:                      tipsLimit,
	DifficultyAdjustmentWindowSize: difficultyAdjustmentWindowSize,
	TimestampDeviationTolerance:    timestampDeviationTolerance,
	MaxItemsPerPage:                maxItemsPerPage,
	MaxUnfreezeQueue:               maxUnfreezeQueue,
	MaxLockPeriodDays:              maxLockPeriodDays,
}

// SimnetParams defines the network parameters for the simulation test
// network, intended for private use within a group doing simulation
// testing rather than public discovery.
var SimnetParams = Params{
	K:                              ghostdagK,
	Name:                           "tos-simnet",
	Net:                            Simnet,
	TargetTimePerBlock:             time.Millisecond,
	StableLimit:                    stableLimit,
	PruneSafetyLimit:               pruneSafetyLimit,
	TipsLimit:                      tipsLimit,
	DifficultyAdjustmentWindowSize: difficultyAdjustmentWindowSize,
	TimestampDeviationTolerance:    timestampDeviationTolerance,
	MaxItemsPerPage:                maxItemsPerPage,
	MaxUnfreezeQueue:               maxUnfreezeQueue,
	MaxLockPeriodDays:              maxLockPeriodDays,
}

// DevnetParams defines the network parameters for the development TOS
// network.
var DevnetParams = Params{
	K:                              ghostdagK,
	Name:                           "tos-devnet",
	Net:                            Devnet,
	TargetTimePerBlock:             targetTimePerBlock,
	StableLimit:                    stableLimit,
	PruneSafetyLimit:               pruneSafetyLimit,
	TipsLimit:                      tipsLimit,
	DifficultyAdjustmentWindowSize: difficultyAdjustmentWindowSize,
	TimestampDeviationTolerance:    timestampDeviationTolerance,
	MaxItemsPerPage:                maxItemsPerPage,
	MaxUnfreezeQueue:               maxUnfreezeQueue,
	MaxLockPeriodDays:              maxLockPeriodDays,
}

// ErrDuplicateNet describes an error where the parameters for a TOS
// network could not be set due to the network already being a standard
// network or previously-registered into this package.
var ErrDuplicateNet = errors.New("duplicate TOS network")

var registeredNets = make(map[NetworkID]struct{})

// Register registers the network parameters for a TOS network. This may
// error with ErrDuplicateNet if the network is already registered (either
// due to a previous Register call, or the network being one of the
// default networks).
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = struct{}{}
	return nil
}

func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

func init() {
	mustRegister(&MainnetParams)
	mustRegister(&TestnetParams)
	mustRegister(&SimnetParams)
	mustRegister(&DevnetParams)
}
