package externalapi

import "math/big"

// KType is the GHOSTDAG K-cluster parameter type (max anticone size of a
// blue block).
type KType uint16

// GhostdagData is the GHOSTDAG-derived data attached to every accepted
// block (spec.md §3). BlueWork is a *big.Int rather than a fixed uint64
// because cumulative proof-of-work outgrows 64 bits quickly; it is never
// mutated in place, only replaced, so sharing a *GhostdagData across
// readers is safe (spec.md §9 "Arc of vector" note).
type GhostdagData struct {
	BlueScore      uint64
	BlueWork       *big.Int
	SelectedParent *DomainHash

	// MergeSetBlues is ordered: selected parent first, then the
	// remaining blues in the deterministic (blue_work DESC, hash ASC)
	// order established during classification.
	MergeSetBlues []*DomainHash
	MergeSetReds  []*DomainHash

	// BluesAnticoneSizes maps each blue in MergeSetBlues to its
	// anticone-intersection size with the blue set being constructed.
	// Invariant: every value <= K.
	BluesAnticoneSizes map[DomainHash]KType

	// MergeSetNonDAA holds the blues that fall outside the DAA window.
	MergeSetNonDAA []*DomainHash
	DAAScore       uint64
}

// New returns a fresh, independently-owned GhostdagData with the given
// selected parent and zeroed accumulators, ready for ghostdagmanager to
// populate by appending to MergeSetBlues/MergeSetReds directly.
func New(selectedParent *DomainHash) *GhostdagData {
	return &GhostdagData{
		BlueWork:           big.NewInt(0),
		SelectedParent:     selectedParent,
		MergeSetBlues:      []*DomainHash{selectedParent},
		MergeSetReds:       []*DomainHash{},
		BluesAnticoneSizes: make(map[DomainHash]KType),
		MergeSetNonDAA:     []*DomainHash{},
	}
}

// Clone returns a deep copy. GhostdagData is otherwise treated as
// immutable once stored — callers that need to mutate it clone first.
func (gd *GhostdagData) Clone() *GhostdagData {
	if gd == nil {
		return nil
	}
	sizes := make(map[DomainHash]KType, len(gd.BluesAnticoneSizes))
	for k, v := range gd.BluesAnticoneSizes {
		sizes[k] = v
	}
	var blueWork *big.Int
	if gd.BlueWork != nil {
		blueWork = new(big.Int).Set(gd.BlueWork)
	}
	return &GhostdagData{
		BlueScore:          gd.BlueScore,
		BlueWork:           blueWork,
		SelectedParent:     gd.SelectedParent.Clone(),
		MergeSetBlues:      CloneHashes(gd.MergeSetBlues),
		MergeSetReds:       CloneHashes(gd.MergeSetReds),
		BluesAnticoneSizes: sizes,
		MergeSetNonDAA:     CloneHashes(gd.MergeSetNonDAA),
		DAAScore:           gd.DAAScore,
	}
}

// IsGenesis returns whether this data describes the genesis block: no
// selected parent, empty mergeset.
func (gd *GhostdagData) IsGenesis() bool {
	return gd.SelectedParent == nil
}
