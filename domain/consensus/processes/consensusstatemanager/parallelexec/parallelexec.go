package parallelexec

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

// Apply applies transaction at index i against the shared staging area
// and returns the error the consensus rules reject it with, if any. A
// non-nil error never aborts the rest of the block (spec.md §4.5
// "Atomicity"): the scheduler records it against the transaction and
// moves on.
type Apply func(ctx context.Context, index int) error

// Run executes transactions through apply, one wave at a time (spec.md
// §4.5 steps 3-5). Within a wave, every transaction's access set is
// disjoint from every other's by construction (BuildWaves), so the
// order those goroutines observe state in is irrelevant to the
// post-state hash - but apply is still invoked under a single mutex
// (see package doc) since the underlying StagingArea shards are plain,
// unsynchronized maps. Waves themselves run strictly in order, so a
// later wave always observes every earlier wave's writes, matching the
// block-order position fallback (step 4) exactly: a transaction never
// sees a result other than the one sequential execution would produce.
//
// Run returns a map from transaction index to the error apply returned
// for it, if non-nil. It returns a non-nil error itself only if ctx is
// canceled.
func Run(ctx context.Context, transactions []*externalapi.DomainTransaction, apply Apply) (map[int]error, error) {
	sets := make([]*AccessSet, len(transactions))
	for i, tx := range transactions {
		sets[i] = ExtractAccessSet(tx)
	}
	waves := BuildWaves(sets)

	rejected := make(map[int]error)
	var rejectedMu sync.Mutex
	var applyMu sync.Mutex

	for _, wave := range waves {
		if err := ctx.Err(); err != nil {
			return rejected, err
		}
		group, groupCtx := errgroup.WithContext(ctx)
		for _, index := range wave {
			index := index
			group.Go(func() error {
				applyMu.Lock()
				err := apply(groupCtx, index)
				applyMu.Unlock()
				if err != nil {
					rejectedMu.Lock()
					rejected[index] = err
					rejectedMu.Unlock()
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return rejected, err
		}
	}
	return rejected, nil
}
