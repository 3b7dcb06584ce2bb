package dagconfig

import (
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/merkle"
)

// genesisTimestampMs is 2025-01-01T00:00:00Z in milliseconds.
const genesisTimestampMs = 1735689600000

// newGenesisBlock builds the empty first block of a network: no parents,
// no transactions, minimum difficulty. Every network uses the same
// shape; only the timestamp distinguishes them so their hashes (and
// therefore genesisHash) differ.
func newGenesisBlock(timestampMs int64) *externalapi.DomainBlock {
	block := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:               0,
			Parents:               []*externalapi.DomainHash{},
			TransactionMerkleRoot: merkle.CalculateHashMerkleRoot(nil),
			AcceptedIDMerkleRoot:  merkle.CalculateIDMerkleRoot(nil),
			StateCommitment:       &externalapi.DomainHash{},
			TimestampMs:           timestampMs,
			Bits:                  0x207fffff,
			PruningPoint:          &externalapi.DomainHash{},
		},
		Transactions: []*externalapi.DomainTransaction{},
	}
	return block
}

var (
	mainnetGenesisBlock = newGenesisBlock(genesisTimestampMs)
	testnetGenesisBlock = newGenesisBlock(genesisTimestampMs + 1)
	simnetGenesisBlock  = newGenesisBlock(genesisTimestampMs + 2)
	devnetGenesisBlock  = newGenesisBlock(genesisTimestampMs + 3)
)

func init() {
	MainnetParams.GenesisBlock = mainnetGenesisBlock
	MainnetParams.GenesisHash = hashserialization.HeaderHash(mainnetGenesisBlock.Header)

	TestnetParams.GenesisBlock = testnetGenesisBlock
	TestnetParams.GenesisHash = hashserialization.HeaderHash(testnetGenesisBlock.Header)

	SimnetParams.GenesisBlock = simnetGenesisBlock
	SimnetParams.GenesisHash = hashserialization.HeaderHash(simnetGenesisBlock.Header)

	DevnetParams.GenesisBlock = devnetGenesisBlock
	DevnetParams.GenesisHash = hashserialization.HeaderHash(devnetGenesisBlock.Header)
}
