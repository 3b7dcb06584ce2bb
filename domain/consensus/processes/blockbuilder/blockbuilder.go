// Package blockbuilder assembles an unmined block template over the
// current tip set (spec.md §4.8): tip filtering/ordering, header
// construction, and greedy fee-rate transaction packing within compute
// budgets. Grounded on the `model.BlockBuilder` constructor shape
// implied by the teacher's `block_builder_test.go` (no concrete
// `blockbuilder.go` survives in the retrieval pack — the teacher's
// top-level `blockdag/mining.go` tip-selection logic is generalized
// here to the 91%-difficulty / 10-blue-score staleness filters and
// `TipsLimit` cap spec.md §4.8 names).
package blockbuilder

import (
	"math/big"
	"sort"
	"time"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/merkle"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/pow"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
)

// tipStalenessBlueScore bounds how far behind the heaviest tip another
// tip's blue score may trail before it is dropped from the template's
// parent set (spec.md §4.8 "more than 10 blocks behind").
const tipStalenessBlueScore = 10

// tipDifficultyRatioNumerator/Denominator bound how much easier than
// the heaviest tip another tip's target may be before it is dropped
// (spec.md §4.8: "less than 91% of the heaviest tip").
const (
	tipDifficultyRatioNumerator   = 91
	tipDifficultyRatioDenominator = 100
)

// Per-transaction and per-block compute budgets. No teacher analogue
// exists (the UTXO model has no comparable notion of "compute units");
// this assigns every transaction a base verification cost plus a
// payload-specific surcharge for the heavier operations (ZK proof
// verification, contract execution), scaled against maxBlockComputeUnits
// so a block never packs an unbounded amount of expensive work.
const (
	baseComputeUnits           = 1_000
	privacyProofComputeUnits   = 20_000
	contractBaseComputeUnits   = 5_000
	maxTxComputeUnits          = 2_000_000
	maxBlockComputeUnits       = 20_000_000
)

type blockBuilder struct {
	databaseContext model.DBReader
	dagParams       *dagconfig.Params

	dagTopologyManager model.DAGTopologyManager
	ghostdagDataStore  model.GHOSTDAGDataStore
	blockHeaderStore   model.BlockHeaderStore
	blockRelationStore model.BlockRelationStore
	ghostdagManager    model.GHOSTDAGManager
	difficultyManager  model.DifficultyManager
}

// New instantiates a new BlockBuilder.
func New(
	databaseContext model.DBReader,
	dagParams *dagconfig.Params,
	dagTopologyManager model.DAGTopologyManager,
	ghostdagDataStore model.GHOSTDAGDataStore,
	blockHeaderStore model.BlockHeaderStore,
	blockRelationStore model.BlockRelationStore,
	ghostdagManager model.GHOSTDAGManager,
	difficultyManager model.DifficultyManager,
) model.BlockBuilder {
	return &blockBuilder{
		databaseContext:    databaseContext,
		dagParams:          dagParams,
		dagTopologyManager: dagTopologyManager,
		ghostdagDataStore:  ghostdagDataStore,
		blockHeaderStore:   blockHeaderStore,
		blockRelationStore: blockRelationStore,
		ghostdagManager:    ghostdagManager,
		difficultyManager:  difficultyManager,
	}
}

// BuildBlock assembles a candidate block over the current tip set: it
// does not mine (find a valid nonce) or commit anything — the returned
// block's Bits is the difficulty the caller must satisfy before
// submitting it to ValidateAndInsertBlock.
func (bb *blockBuilder) BuildBlock(
	minerPublicKey [32]byte, extraData []byte, transactionSelector model.TransactionSelector,
) (*externalapi.DomainBlock, error) {
	stagingArea := model.NewStagingArea()

	tips, err := bb.dagTopologyManager.Tips(stagingArea)
	if err != nil {
		return nil, err
	}

	parents, timestampMs, err := bb.selectParents(stagingArea, tips)
	if err != nil {
		return nil, err
	}

	bits, err := bb.requiredBitsForTemplate(stagingArea, parents)
	if err != nil {
		return nil, err
	}

	transactions := packTransactions(transactionSelector)

	header := &externalapi.DomainBlockHeader{
		Version:               0,
		Parents:                parents,
		MinerPublicKey:         minerPublicKey,
		TimestampMs:            timestampMs,
		ExtraNonce:             0,
		VRFOutput:              extraData,
		TransactionMerkleRoot:  merkle.CalculateHashMerkleRoot(transactions),
		AcceptedIDMerkleRoot:   merkle.CalculateIDMerkleRoot(transactions),
		// StateCommitment is left zeroed: this model applies transaction
		// effects at acceptance time (consensusStateManager.AddBlock/
		// Reorg), not speculatively against a template, so no root is
		// available yet to commit to here.
		StateCommitment: &externalapi.DomainHash{},
		Bits:            bits,
		PruningPoint:    &externalapi.DomainHash{},
	}

	return &externalapi.DomainBlock{
		Header:       header,
		Transactions: transactions,
	}, nil
}

// selectParents filters the stale/low-difficulty tips out, orders what
// remains by descending blue work, and caps the result to TipsLimit. It
// also returns the template timestamp: max(now, max(tip.timestamp)).
func (bb *blockBuilder) selectParents(
	stagingArea *model.StagingArea, tips []*externalapi.DomainHash,
) ([]*externalapi.DomainHash, int64, error) {
	type candidate struct {
		hash        *externalapi.DomainHash
		blueScore   uint64
		blueWork    *big.Int
		target      *big.Int
		timestampMs int64
	}

	candidates := make([]candidate, 0, len(tips))
	var heaviestBlueScore uint64
	var heaviestTarget *big.Int
	first := true

	for _, tip := range tips {
		data, err := bb.ghostdagDataStore.Get(bb.databaseContext, stagingArea, tip)
		if err != nil {
			return nil, 0, err
		}
		header, err := bb.blockHeaderStore.BlockHeader(bb.databaseContext, stagingArea, tip)
		if err != nil {
			return nil, 0, err
		}
		target := pow.CompactToBig(header.Bits)
		candidates = append(candidates, candidate{
			hash:        tip,
			blueScore:   data.BlueScore,
			blueWork:    data.BlueWork,
			target:      target,
			timestampMs: header.TimestampMs,
		})
		if first || data.BlueScore > heaviestBlueScore {
			heaviestBlueScore = data.BlueScore
			first = false
		}
		if heaviestTarget == nil || target.Cmp(heaviestTarget) < 0 {
			heaviestTarget = target
		}
	}

	filtered := make([]candidate, 0, len(candidates))
	var maxTimestampMs int64
	for _, c := range candidates {
		if heaviestBlueScore-c.blueScore > tipStalenessBlueScore {
			continue
		}
		// Keep iff target*91 <= heaviestTarget*100 (equivalent to
		// difficulty(c) >= 0.91*difficulty(heaviest) without floats).
		lhs := new(big.Int).Mul(c.target, big.NewInt(tipDifficultyRatioNumerator))
		rhs := new(big.Int).Mul(heaviestTarget, big.NewInt(tipDifficultyRatioDenominator))
		if lhs.Cmp(rhs) > 0 {
			continue
		}
		filtered = append(filtered, c)
		if c.timestampMs > maxTimestampMs {
			maxTimestampMs = c.timestampMs
		}
	}
	if len(filtered) == 0 {
		// Every tip failed the filter (can happen only pathologically,
		// e.g. right after a difficulty cliff); fall back to the full
		// tip set rather than building a parentless non-genesis block.
		filtered = candidates
		for _, c := range candidates {
			if c.timestampMs > maxTimestampMs {
				maxTimestampMs = c.timestampMs
			}
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].blueWork.Cmp(filtered[j].blueWork) > 0
	})
	if len(filtered) > bb.dagParams.TipsLimit {
		filtered = filtered[:bb.dagParams.TipsLimit]
	}

	parents := make([]*externalapi.DomainHash, len(filtered))
	for i, c := range filtered {
		parents[i] = c.hash
	}

	nowMs := time.Now().UnixMilli()
	timestampMs := nowMs
	if maxTimestampMs > timestampMs {
		timestampMs = maxTimestampMs
	}

	return parents, timestampMs, nil
}

// requiredBitsForTemplate computes the Bits a block with this parent
// set must satisfy: it tentatively runs GHOSTDAG for a scratch
// placeholder hash (never committed — stagingArea is discarded once
// this function returns) to obtain the DAA window the real block would
// see, then asks difficultyManager for the retarget.
func (bb *blockBuilder) requiredBitsForTemplate(
	stagingArea *model.StagingArea, parents []*externalapi.DomainHash,
) (uint32, error) {
	scratchHeader := &externalapi.DomainBlockHeader{
		Version: 0,
		Parents: parents,
		Bits:    0x207fffff,
	}
	scratchHash := hashserialization.HeaderHash(scratchHeader)

	bb.blockHeaderStore.Stage(stagingArea, scratchHash, scratchHeader)
	bb.blockRelationStore.StageRelation(stagingArea, scratchHash, &model.BlockRelations{
		Parents: externalapi.CloneHashes(parents),
	})

	if err := bb.ghostdagManager.GHOSTDAG(stagingArea, scratchHash); err != nil {
		return 0, err
	}
	return bb.difficultyManager.RequiredDifficulty(stagingArea, scratchHash)
}

// packTransactions greedily pulls transactions from selector in the
// priority order it yields them, accepting each one that fits under
// both the per-tx and remaining per-block compute budget and rejecting
// (not discarding) anything that doesn't, so the caller's pool is free
// to offer it again in a future template.
func packTransactions(selector model.TransactionSelector) []*externalapi.DomainTransaction {
	var transactions []*externalapi.DomainTransaction
	var usedComputeUnits uint64

	for {
		tx := selector.SelectNext()
		if tx == nil {
			break
		}
		units := transactionComputeUnits(tx)
		if units > maxTxComputeUnits || usedComputeUnits+units > maxBlockComputeUnits {
			selector.Reject(tx)
			continue
		}
		transactions = append(transactions, tx)
		usedComputeUnits += units
	}
	return transactions
}

// transactionComputeUnits estimates the verification/execution cost of
// tx for block-packing purposes: a flat base cost plus a surcharge for
// the payload kinds that carry ZK proof verification or contract
// execution, the two operations spec.md §5 singles out as the expensive
// ones to offload to a worker pool.
func transactionComputeUnits(tx *externalapi.DomainTransaction) uint64 {
	units := uint64(baseComputeUnits)
	switch payload := tx.Payload.(type) {
	case *externalapi.PrivacyTransferPayload:
		units += privacyProofComputeUnits * uint64(len(payload.Transfers))
	case *externalapi.ShieldPayload:
		units += privacyProofComputeUnits
	case *externalapi.UnshieldPayload:
		units += privacyProofComputeUnits
	case *externalapi.ContractDeployPayload:
		units += contractBaseComputeUnits + payload.GasBudget
	case *externalapi.ContractInvokePayload:
		units += contractBaseComputeUnits + payload.GasBudget
	}
	return units
}
