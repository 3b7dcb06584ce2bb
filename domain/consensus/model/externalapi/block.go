package externalapi

// DomainBlockHeader houses the consensus-critical fields carried by every
// block. The header's hash (computed by hashserialization over these
// fields) is the block's canonical identifier.
type DomainBlockHeader struct {
	Version uint16

	// Parents is the block's parent set. Must satisfy
	// 1 <= len(Parents) <= dagconfig.TipsLimit.
	Parents []*DomainHash

	MinerPublicKey [32]byte

	TimestampMs int64

	ExtraNonce uint64

	// VRFOutput is nil unless the VRF hard fork is active at this
	// block's version.
	VRFOutput []byte

	TransactionMerkleRoot *DomainHash
	AcceptedIDMerkleRoot  *DomainHash

	// StateCommitment roots the world-state (balances, nonces, energy,
	// contract storage) at the topoheight this block occupies. Named
	// UTXOCommitment in the teacher; kept here as StateCommitment since
	// this model has no UTXO set.
	StateCommitment *DomainHash

	Bits uint32

	PruningPoint *DomainHash
}

// Clone returns a deep copy of the header.
func (h *DomainBlockHeader) Clone() *DomainBlockHeader {
	if h == nil {
		return nil
	}
	vrf := make([]byte, len(h.VRFOutput))
	copy(vrf, h.VRFOutput)
	return &DomainBlockHeader{
		Version:               h.Version,
		Parents:               CloneHashes(h.Parents),
		MinerPublicKey:        h.MinerPublicKey,
		TimestampMs:           h.TimestampMs,
		ExtraNonce:            h.ExtraNonce,
		VRFOutput:             vrf,
		TransactionMerkleRoot: h.TransactionMerkleRoot.Clone(),
		AcceptedIDMerkleRoot:  h.AcceptedIDMerkleRoot.Clone(),
		StateCommitment:       h.StateCommitment.Clone(),
		Bits:                  h.Bits,
		PruningPoint:          h.PruningPoint.Clone(),
	}
}

// DirectParents returns the header's parent hashes.
func (h *DomainBlockHeader) DirectParents() []*DomainHash {
	return h.Parents
}

// DomainBlock is a header plus its ordered transactions. A transaction's
// index within Transactions carries no ordering semantics of its own: the
// consensus total order is imposed by GHOSTDAG at the mergeset level
// (see GhostdagData.MergeSetBlues / MergeSetReds).
type DomainBlock struct {
	Header       *DomainBlockHeader
	Transactions []*DomainTransaction
}

// Clone returns a deep copy of the block.
func (b *DomainBlock) Clone() *DomainBlock {
	if b == nil {
		return nil
	}
	txs := make([]*DomainTransaction, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.Clone()
	}
	return &DomainBlock{
		Header:       b.Header.Clone(),
		Transactions: txs,
	}
}
