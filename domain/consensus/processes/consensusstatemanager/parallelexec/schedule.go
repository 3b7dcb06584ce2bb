package parallelexec

// BuildWaves assigns each transaction index to the earliest wave whose
// members' access sets are all disjoint from its own (spec.md §4.5 step
// 2: "builds a conflict graph; computes a topologically valid parallel
// schedule"). Two transactions from the same sender always collide (both
// write the sender's account), so same-sender transactions are pushed
// into successive waves in their original block-order position -
// preserving per-sender nonce ordering exactly as sequential execution
// would.
func BuildWaves(sets []*AccessSet) [][]int {
	waves := make([][]int, 0)
	waveSets := make([][]*AccessSet, 0)

	for i, set := range sets {
		placed := false
		for w := range waves {
			if conflictsWithWave(set, waveSets[w]) {
				continue
			}
			waves[w] = append(waves[w], i)
			waveSets[w] = append(waveSets[w], set)
			placed = true
			break
		}
		if !placed {
			waves = append(waves, []int{i})
			waveSets = append(waveSets, []*AccessSet{set})
		}
	}
	return waves
}

func conflictsWithWave(set *AccessSet, wave []*AccessSet) bool {
	for _, other := range wave {
		if set.conflicts(other) {
			return true
		}
	}
	return false
}
