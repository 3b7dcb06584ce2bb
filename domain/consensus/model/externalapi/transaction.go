package externalapi

// FeeAsset discriminates which asset a transaction's fee is paid in.
type FeeAsset uint8

const (
	// FeeAssetNative pays the fee in the native token.
	FeeAssetNative FeeAsset = iota
	// FeeAssetEnergy pays the fee out of the sender's energy allowance.
	FeeAssetEnergy
)

// TransactionReference anchors a transaction to a recent block, for
// replay protection (spec.md §4.4 check 4).
type TransactionReference struct {
	Topoheight uint64
	Hash       *DomainHash
}

// PayloadKind tags which TransactionPayload variant a transaction carries.
type PayloadKind uint8

const (
	PayloadKindTransfer PayloadKind = iota
	PayloadKindPrivacyTransfer
	PayloadKindShield
	PayloadKindUnshield
	PayloadKindEnergyFreeze
	PayloadKindEnergyUnfreeze
	PayloadKindEnergyWithdrawExpired
	PayloadKindEnergyCancelAllUnfreeze
	PayloadKindEnergyDelegate
	PayloadKindEnergyUndelegate
	PayloadKindContractDeploy
	PayloadKindContractInvoke
	PayloadKindGovernanceCommitteeUpdate
	PayloadKindGovernanceKYCTransfer
)

// TransactionPayload is implemented by every payload variant in spec.md §3.
type TransactionPayload interface {
	Kind() PayloadKind
	Clone() TransactionPayload
}

// DomainTransaction is the consensus-level transaction representation.
type DomainTransaction struct {
	Version        uint16
	SourcePublicKey [32]byte
	Nonce          uint64
	Fee            uint64
	FeeAsset       FeeAsset
	Reference      TransactionReference
	Payload        TransactionPayload
	Signature      [64]byte

	// idCache holds the ID once hashserialization has computed it; it is
	// not part of the consensus-critical payload.
	idCache *DomainHash
}

// Clone returns a deep copy of the transaction.
func (tx *DomainTransaction) Clone() *DomainTransaction {
	if tx == nil {
		return nil
	}
	clone := *tx
	clone.Reference.Hash = tx.Reference.Hash.Clone()
	if tx.Payload != nil {
		clone.Payload = tx.Payload.Clone()
	}
	clone.idCache = nil
	return &clone
}

// SetCachedID caches the transaction's hash, computed once by the caller
// (hashserialization) and reused thereafter.
func (tx *DomainTransaction) SetCachedID(hash *DomainHash) {
	tx.idCache = hash
}

// CachedID returns the cached transaction hash, or nil if not yet computed.
func (tx *DomainTransaction) CachedID() *DomainHash {
	return tx.idCache
}

// TransferEntry is one (asset, destination, amount) leg of a plain
// transfer payload.
type TransferEntry struct {
	Asset       *DomainHash
	Destination [32]byte
	Amount      uint64
	Memo        []byte
}

// TransferPayload is the plain-transfer payload variant.
type TransferPayload struct {
	Transfers []TransferEntry
}

func (p *TransferPayload) Kind() PayloadKind { return PayloadKindTransfer }
func (p *TransferPayload) Clone() TransactionPayload {
	clone := &TransferPayload{Transfers: make([]TransferEntry, len(p.Transfers))}
	copy(clone.Transfers, p.Transfers)
	return clone
}

// PrivacyTransferEntry is one leg of a UNO privacy transfer: the amount is
// hidden behind a Pedersen commitment plus decrypt handles for sender and
// receiver, with a ciphertext-validity ZK proof.
type PrivacyTransferEntry struct {
	Asset               *DomainHash
	Destination         [32]byte
	Commitment          []byte // compressed Pedersen commitment
	SenderHandle        []byte // compressed decrypt handle D_s = r*P_sender
	ReceiverHandle      []byte // compressed decrypt handle D_r = r*P_receiver
	CiphertextValidity  []byte // serialized CiphertextValidityProof
	Memo                []byte
}

// PrivacyTransferPayload is the UNO payload variant. SourceCommitment
// binds the source ciphertext to the sender's claimed balance via an
// equality proof.
type PrivacyTransferPayload struct {
	Transfers          []PrivacyTransferEntry
	SourceCommitment   []byte // compressed Pedersen commitment to the sender's new balance
	SourceEqualityProof []byte // serialized EqualityProof
}

func (p *PrivacyTransferPayload) Kind() PayloadKind { return PayloadKindPrivacyTransfer }
func (p *PrivacyTransferPayload) Clone() TransactionPayload {
	clone := &PrivacyTransferPayload{
		Transfers:           make([]PrivacyTransferEntry, len(p.Transfers)),
		SourceCommitment:    append([]byte(nil), p.SourceCommitment...),
		SourceEqualityProof: append([]byte(nil), p.SourceEqualityProof...),
	}
	copy(clone.Transfers, p.Transfers)
	return clone
}

// ShieldPayload converts a plain balance into a private (UNO) balance.
type ShieldPayload struct {
	Asset           *DomainHash
	Amount          uint64
	Commitment      []byte
	ReceiverHandle  []byte
	ShieldProof     []byte // serialized ShieldCommitmentProof
}

func (p *ShieldPayload) Kind() PayloadKind { return PayloadKindShield }
func (p *ShieldPayload) Clone() TransactionPayload {
	clone := *p
	clone.Commitment = append([]byte(nil), p.Commitment...)
	clone.ReceiverHandle = append([]byte(nil), p.ReceiverHandle...)
	clone.ShieldProof = append([]byte(nil), p.ShieldProof...)
	return &clone
}

// UnshieldPayload converts a private (UNO) balance back to plain, with
// the amount revealed on exit.
type UnshieldPayload struct {
	Asset              *DomainHash
	Amount             uint64
	Commitment         []byte
	SenderHandle       []byte
	CiphertextValidity []byte // binds the revealed amount to the burned encrypted input
}

func (p *UnshieldPayload) Kind() PayloadKind { return PayloadKindUnshield }
func (p *UnshieldPayload) Clone() TransactionPayload {
	clone := *p
	clone.Commitment = append([]byte(nil), p.Commitment...)
	clone.SenderHandle = append([]byte(nil), p.SenderHandle...)
	clone.CiphertextValidity = append([]byte(nil), p.CiphertextValidity...)
	return &clone
}

// EnergyFreezePayload locks native tokens to gain proportional energy.
type EnergyFreezePayload struct {
	Amount uint64
}

func (p *EnergyFreezePayload) Kind() PayloadKind        { return PayloadKindEnergyFreeze }
func (p *EnergyFreezePayload) Clone() TransactionPayload { c := *p; return &c }

// EnergyUnfreezePayload begins the 14-day unfreeze queue for Amount.
type EnergyUnfreezePayload struct {
	Amount uint64
}

func (p *EnergyUnfreezePayload) Kind() PayloadKind        { return PayloadKindEnergyUnfreeze }
func (p *EnergyUnfreezePayload) Clone() TransactionPayload { c := *p; return &c }

// EnergyWithdrawExpiredPayload withdraws all matured unfreeze-queue
// entries back to the plain balance.
type EnergyWithdrawExpiredPayload struct{}

func (p *EnergyWithdrawExpiredPayload) Kind() PayloadKind        { return PayloadKindEnergyWithdrawExpired }
func (p *EnergyWithdrawExpiredPayload) Clone() TransactionPayload { return &EnergyWithdrawExpiredPayload{} }

// EnergyCancelAllUnfreezePayload cancels every pending unfreeze-queue
// entry, returning matured amounts to balance and the rest to frozen.
type EnergyCancelAllUnfreezePayload struct{}

func (p *EnergyCancelAllUnfreezePayload) Kind() PayloadKind { return PayloadKindEnergyCancelAllUnfreeze }
func (p *EnergyCancelAllUnfreezePayload) Clone() TransactionPayload {
	return &EnergyCancelAllUnfreezePayload{}
}

// EnergyDelegatePayload delegates frozen energy to another account,
// optionally locked for LockPeriodDays.
type EnergyDelegatePayload struct {
	Receiver      [32]byte
	Amount        uint64
	Locked        bool
	LockPeriodDays uint32
}

func (p *EnergyDelegatePayload) Kind() PayloadKind        { return PayloadKindEnergyDelegate }
func (p *EnergyDelegatePayload) Clone() TransactionPayload { c := *p; return &c }

// EnergyUndelegatePayload reclaims previously delegated energy.
type EnergyUndelegatePayload struct {
	Receiver [32]byte
	Amount   uint64
}

func (p *EnergyUndelegatePayload) Kind() PayloadKind        { return PayloadKindEnergyUndelegate }
func (p *EnergyUndelegatePayload) Clone() TransactionPayload { c := *p; return &c }

// ContractDeployPayload deploys a new contract module.
type ContractDeployPayload struct {
	ModuleBytecode []byte
	GasBudget      uint64
}

func (p *ContractDeployPayload) Kind() PayloadKind { return PayloadKindContractDeploy }
func (p *ContractDeployPayload) Clone() TransactionPayload {
	return &ContractDeployPayload{
		ModuleBytecode: append([]byte(nil), p.ModuleBytecode...),
		GasBudget:      p.GasBudget,
	}
}

// ContractInvokePayload invokes an existing contract.
type ContractInvokePayload struct {
	Contract  *DomainHash
	Entrypoint string
	Args      []byte
	GasBudget uint64
}

func (p *ContractInvokePayload) Kind() PayloadKind { return PayloadKindContractInvoke }
func (p *ContractInvokePayload) Clone() TransactionPayload {
	return &ContractInvokePayload{
		Contract:   p.Contract.Clone(),
		Entrypoint: p.Entrypoint,
		Args:       append([]byte(nil), p.Args...),
		GasBudget:  p.GasBudget,
	}
}

// CommitteeApproval is one multi-signature approval over a governance
// action, from a named committee member.
type CommitteeApproval struct {
	Committee string
	Member    [32]byte
	Signature [64]byte
}

// GovernanceCommitteeUpdatePayload updates committee membership.
type GovernanceCommitteeUpdatePayload struct {
	Committee  string
	NewMembers [][32]byte
	Threshold  uint32
	Approvals  []CommitteeApproval
}

func (p *GovernanceCommitteeUpdatePayload) Kind() PayloadKind {
	return PayloadKindGovernanceCommitteeUpdate
}
func (p *GovernanceCommitteeUpdatePayload) Clone() TransactionPayload {
	clone := &GovernanceCommitteeUpdatePayload{
		Committee:  p.Committee,
		NewMembers: append([][32]byte(nil), p.NewMembers...),
		Threshold:  p.Threshold,
		Approvals:  append([]CommitteeApproval(nil), p.Approvals...),
	}
	return clone
}

// GovernanceKYCTransferPayload is a transfer requiring multi-signature
// approvals from two named committees (spec.md §3 governance ops).
type GovernanceKYCTransferPayload struct {
	Asset          *DomainHash
	Destination    [32]byte
	Amount         uint64
	SourceApprovals [] CommitteeApproval
	DestApprovals   []CommitteeApproval
}

func (p *GovernanceKYCTransferPayload) Kind() PayloadKind { return PayloadKindGovernanceKYCTransfer }
func (p *GovernanceKYCTransferPayload) Clone() TransactionPayload {
	return &GovernanceKYCTransferPayload{
		Asset:           p.Asset.Clone(),
		Destination:     p.Destination,
		Amount:          p.Amount,
		SourceApprovals: append([]CommitteeApproval(nil), p.SourceApprovals...),
		DestApprovals:   append([]CommitteeApproval(nil), p.DestApprovals...),
	}
}
