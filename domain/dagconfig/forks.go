package dagconfig

import "sync/atomic"

// ForkCondition is the activation trigger for a ForkRule: either a
// topoheight or a timestamp threshold (spec.md §9 "hard-fork globals").
type ForkCondition struct {
	AtTopoheight uint64
	AtTimestampMs int64
	byTimestamp  bool
}

// AtBlock returns a ForkCondition that activates once topoheight is
// reached.
func AtBlock(topoheight uint64) ForkCondition {
	return ForkCondition{AtTopoheight: topoheight}
}

// AtTimestamp returns a ForkCondition that activates once the DAG's
// selected tip timestamp reaches timestampMs.
func AtTimestamp(timestampMs int64) ForkCondition {
	return ForkCondition{AtTimestampMs: timestampMs, byTimestamp: true}
}

// IsActive reports whether the condition holds given the current
// topoheight and selected-tip timestamp.
func (c ForkCondition) IsActive(topoheight uint64, timestampMs int64) bool {
	if c.byTimestamp {
		return timestampMs >= c.AtTimestampMs
	}
	return topoheight >= c.AtTopoheight
}

// ForkRule describes a single consensus-rule change, grounded on the
// teacher's network-parameter-table pattern (Params per network) but
// scoped to one rule change rather than a whole network identity.
type ForkRule struct {
	Name            string
	Condition       ForkCondition
	Version         uint16
	Changelog       string
	MinNodeVersion  string
}

// activeForks is a read-mostly atomic reference: readers never lock, and
// a new table can be swapped in wholesale (e.g. in tests) rather than
// mutated in place (spec.md §9 "Globals" note).
var activeForks atomic.Pointer[[]ForkRule]

func init() {
	forks := []ForkRule{}
	activeForks.Store(&forks)
}

// ActiveForks returns the currently registered fork table.
func ActiveForks() []ForkRule {
	return *activeForks.Load()
}

// SetActiveForks replaces the fork table wholesale.
func SetActiveForks(forks []ForkRule) {
	activeForks.Store(&forks)
}

// IsForkActive reports whether the named fork rule is active at the given
// topoheight/timestamp. A fork not present in the table is never active.
func IsForkActive(name string, topoheight uint64, timestampMs int64) bool {
	for _, rule := range ActiveForks() {
		if rule.Name == name {
			return rule.Condition.IsActive(topoheight, timestampMs)
		}
	}
	return false
}
