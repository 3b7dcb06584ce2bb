package transactionvalidator

import (
	"context"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/gtank/ristretto255"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/model/ruleerror"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/governance"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/proofs"
)

const currentVersion = 1

// ValidateTransactionInIsolation runs the checks that don't depend on
// chain state (spec.md §4.4 checks 1-2).
func (v *transactionValidator) ValidateTransactionInIsolation(transaction *externalapi.DomainTransaction) error {
	if err := validateStructure(transaction); err != nil {
		return err
	}
	return validateSignature(transaction)
}

func validateStructure(transaction *externalapi.DomainTransaction) error {
	if transaction.Version != currentVersion {
		return &ruleerror.StructuralError{Reason: "unknown transaction version"}
	}
	if transaction.Payload == nil {
		return &ruleerror.StructuralError{Reason: "missing payload"}
	}
	switch p := transaction.Payload.(type) {
	case *externalapi.TransferPayload:
		if len(p.Transfers) == 0 {
			return &ruleerror.StructuralError{Reason: "transfer payload has no transfers"}
		}
	case *externalapi.PrivacyTransferPayload:
		if len(p.Transfers) == 0 {
			return &ruleerror.StructuralError{Reason: "privacy transfer payload has no transfers"}
		}
	case *externalapi.ShieldPayload, *externalapi.UnshieldPayload,
		*externalapi.EnergyFreezePayload, *externalapi.EnergyUnfreezePayload,
		*externalapi.EnergyWithdrawExpiredPayload, *externalapi.EnergyCancelAllUnfreezePayload,
		*externalapi.EnergyDelegatePayload, *externalapi.EnergyUndelegatePayload,
		*externalapi.ContractDeployPayload, *externalapi.ContractInvokePayload,
		*externalapi.GovernanceCommitteeUpdatePayload, *externalapi.GovernanceKYCTransferPayload:
		// Shape is already enforced by the concrete Go type; nothing
		// further to check structurally.
	default:
		return &ruleerror.StructuralError{Reason: "unrecognized payload variant"}
	}
	return nil
}

func validateSignature(transaction *externalapi.DomainTransaction) error {
	pubKey, err := schnorr.ParsePubKey(transaction.SourcePublicKey[:])
	if err != nil {
		return &ruleerror.BadSignature{}
	}
	sig, err := schnorr.ParseSignature(transaction.Signature[:])
	if err != nil {
		return &ruleerror.BadSignature{}
	}
	bodyHash := hashserialization.TransactionID(transaction)
	if !sig.Verify(bodyHash.ByteSlice(), pubKey) {
		return &ruleerror.BadSignature{}
	}
	return nil
}

// ValidateTransactionInContext runs the checks that need chain state as
// of atTopoheight (spec.md §4.4 checks 3-6).
func (v *transactionValidator) ValidateTransactionInContext(
	stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, atTopoheight uint64,
) error {
	account, exists, err := v.accountStore.Account(v.databaseContext, stagingArea, transaction.SourcePublicKey, atTopoheight)
	if err != nil {
		return err
	}
	var currentNonce uint64
	if exists {
		currentNonce = account.Nonce
	}
	if transaction.Nonce != currentNonce {
		return &ruleerror.NonceMismatch{Expected: currentNonce, Got: transaction.Nonce}
	}

	if err := v.validateReference(transaction, atTopoheight); err != nil {
		return err
	}

	isEnergyOp := isFeeFreePayload(transaction.Payload)
	if !isEnergyOp {
		if err := v.validateBalanceAndFee(stagingArea, transaction, atTopoheight); err != nil {
			return err
		}
	}

	return v.validatePayload(stagingArea, transaction, atTopoheight)
}

func (v *transactionValidator) validateReference(transaction *externalapi.DomainTransaction, atTopoheight uint64) error {
	if transaction.Reference.Topoheight > atTopoheight {
		return &ruleerror.ReferenceStale{}
	}
	if atTopoheight-transaction.Reference.Topoheight > maxReferenceDepth {
		return &ruleerror.ReferenceStale{}
	}
	return nil
}

// isFeeFreePayload reports whether a payload kind is exempt from the
// fee/balance check (spec.md §4.4 check 6 "energy operations are
// fee-free").
func isFeeFreePayload(payload externalapi.TransactionPayload) bool {
	switch payload.Kind() {
	case externalapi.PayloadKindEnergyFreeze, externalapi.PayloadKindEnergyUnfreeze,
		externalapi.PayloadKindEnergyWithdrawExpired, externalapi.PayloadKindEnergyCancelAllUnfreeze,
		externalapi.PayloadKindEnergyDelegate, externalapi.PayloadKindEnergyUndelegate:
		return true
	default:
		return false
	}
}

func (v *transactionValidator) validateBalanceAndFee(
	stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, atTopoheight uint64,
) error {
	needed := map[externalapi.DomainHash]uint64{}
	if transaction.FeeAsset == externalapi.FeeAssetNative {
		needed[*externalapi.NativeAssetHash] += transaction.Fee
	}

	switch p := transaction.Payload.(type) {
	case *externalapi.TransferPayload:
		for _, t := range p.Transfers {
			needed[*t.Asset] += t.Amount
		}
	case *externalapi.ShieldPayload:
		needed[*p.Asset] += p.Amount
	case *externalapi.GovernanceKYCTransferPayload:
		needed[*p.Asset] += p.Amount
	}

	for assetValue, amount := range needed {
		asset := assetValue
		balance, exists, err := v.balanceStore.Balance(v.databaseContext, stagingArea, transaction.SourcePublicKey, &asset, atTopoheight)
		if err != nil {
			return err
		}
		var have uint64
		if exists && !balance.IsPrivate {
			have = balance.PlainAmount
		}
		if have < amount {
			return &ruleerror.InsufficientBalance{Asset: &asset, Needed: amount, Have: have}
		}
	}
	return nil
}

func (v *transactionValidator) validatePayload(
	stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, atTopoheight uint64,
) error {
	switch p := transaction.Payload.(type) {
	case *externalapi.PrivacyTransferPayload:
		return v.validatePrivacyTransfer(stagingArea, transaction, p, atTopoheight)
	case *externalapi.ShieldPayload:
		return v.validateShield(transaction, p)
	case *externalapi.UnshieldPayload:
		return v.validateUnshield(transaction, p)
	case *externalapi.EnergyFreezePayload, *externalapi.EnergyUnfreezePayload,
		*externalapi.EnergyWithdrawExpiredPayload, *externalapi.EnergyCancelAllUnfreezePayload:
		return v.validateEnergyOp(stagingArea, transaction, atTopoheight)
	case *externalapi.EnergyDelegatePayload:
		return v.validateEnergyDelegate(stagingArea, transaction, p, atTopoheight)
	case *externalapi.EnergyUndelegatePayload:
		return nil
	case *externalapi.ContractDeployPayload:
		if p.GasBudget == 0 || p.GasBudget > maxGasPerTx {
			return &ruleerror.PolicyViolation{Reason: "gas budget out of range"}
		}
		return nil
	case *externalapi.ContractInvokePayload:
		if p.GasBudget == 0 || p.GasBudget > maxGasPerTx {
			return &ruleerror.PolicyViolation{Reason: "gas budget out of range"}
		}
		return nil
	case *externalapi.GovernanceCommitteeUpdatePayload:
		return v.validateCommitteeUpdate(stagingArea, p, atTopoheight)
	case *externalapi.GovernanceKYCTransferPayload:
		if err := v.validateNamedCommitteeApprovals(stagingArea, p.SourceApprovals, atTopoheight); err != nil {
			return err
		}
		return v.validateNamedCommitteeApprovals(stagingArea, p.DestApprovals, atTopoheight)
	}
	return nil
}

func (v *transactionValidator) validatePrivacyTransfer(
	stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, p *externalapi.PrivacyTransferPayload, atTopoheight uint64,
) error {
	sender, err := decodeRistrettoKey(transaction.SourcePublicKey)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "privacy-transfer"}
	}

	batch := proofs.NewBatchVerifier()
	for _, transfer := range p.Transfers {
		commitment, senderHandle, receiverHandle, err := decodeTransferElements(transfer)
		if err != nil {
			return &ruleerror.ProofInvalid{Kind: "privacy-transfer"}
		}
		receiver, err := decodeRistrettoKey(transfer.Destination)
		if err != nil {
			return &ruleerror.ProofInvalid{Kind: "privacy-transfer"}
		}
		proof, err := proofs.DecodeCiphertextValidityProof(transfer.CiphertextValidity)
		if err != nil {
			return &ruleerror.ProofInvalid{Kind: "privacy-transfer"}
		}
		proof.AddToBatch(batch, commitment, senderHandle, receiverHandle, sender, receiver)
	}

	// SourceCommitment binds the sender's asserted new balance to the
	// ciphertext already on record for them, so a replayed transfer
	// can't be re-applied against a stale pre-transfer balance.
	if len(p.SourceCommitment) > 0 && len(p.SourceEqualityProof) > 0 && len(p.Transfers) > 0 {
		asset := *p.Transfers[0].Asset
		existingBalance, exists, err := v.balanceStore.Balance(v.databaseContext, stagingArea, transaction.SourcePublicKey, &asset, atTopoheight)
		if err != nil {
			return err
		}
		if exists && existingBalance.IsPrivate {
			existingCommitment, err := decodeRistrettoElement(existingBalance.Ciphertext)
			if err != nil {
				return &ruleerror.ProofInvalid{Kind: "privacy-transfer-source"}
			}
			sourceCommitment, err := decodeRistrettoElement(p.SourceCommitment)
			if err != nil {
				return &ruleerror.ProofInvalid{Kind: "privacy-transfer-source"}
			}
			eqProof, err := proofs.DecodeEqualityProof(p.SourceEqualityProof)
			if err != nil {
				return &ruleerror.ProofInvalid{Kind: "privacy-transfer-source"}
			}
			eqProof.AddToBatch(batch, sourceCommitment, existingCommitment)
		}
	}

	if err := batch.Discharge(context.Background()); err != nil {
		return &ruleerror.ProofInvalid{Kind: "privacy-transfer"}
	}
	return nil
}

func (v *transactionValidator) validateShield(transaction *externalapi.DomainTransaction, p *externalapi.ShieldPayload) error {
	pubKey, err := decodeRistrettoKey(transaction.SourcePublicKey)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "shield"}
	}
	commitment, err := decodeRistrettoElement(p.Commitment)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "shield"}
	}
	handle, err := decodeRistrettoElement(p.ReceiverHandle)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "shield"}
	}
	proof, err := proofs.DecodeShieldCommitmentProof(p.ShieldProof)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "shield"}
	}
	if err := proof.Verify(commitment, handle, pubKey, p.Amount); err != nil {
		return &ruleerror.ProofInvalid{Kind: "shield"}
	}
	return nil
}

func (v *transactionValidator) validateUnshield(transaction *externalapi.DomainTransaction, p *externalapi.UnshieldPayload) error {
	pubKey, err := decodeRistrettoKey(transaction.SourcePublicKey)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "unshield"}
	}
	commitment, err := decodeRistrettoElement(p.Commitment)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "unshield"}
	}
	handle, err := decodeRistrettoElement(p.SenderHandle)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "unshield"}
	}
	proof, err := proofs.DecodeShieldCommitmentProof(p.CiphertextValidity)
	if err != nil {
		return &ruleerror.ProofInvalid{Kind: "unshield"}
	}
	if err := proof.Verify(commitment, handle, pubKey, p.Amount); err != nil {
		return &ruleerror.ProofInvalid{Kind: "unshield"}
	}
	return nil
}

func (v *transactionValidator) validateEnergyOp(stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, atTopoheight uint64) error {
	frozen, exists, err := v.frozenBalanceStore.FrozenBalance(v.databaseContext, stagingArea, transaction.SourcePublicKey, atTopoheight)
	if err != nil {
		return err
	}
	queueLen := 0
	if exists {
		queueLen = len(frozen.UnfreezeQueue)
	}

	switch p := transaction.Payload.(type) {
	case *externalapi.EnergyUnfreezePayload:
		if queueLen >= v.maxUnfreezeQueue {
			return &ruleerror.QueueFull{}
		}
		var have uint64
		if exists {
			have = frozen.Frozen
		}
		if p.Amount == 0 || p.Amount > have {
			return &ruleerror.PolicyViolation{Reason: "unfreeze amount exceeds frozen balance"}
		}
	case *externalapi.EnergyFreezePayload:
		if p.Amount == 0 {
			return &ruleerror.PolicyViolation{Reason: "freeze amount must be positive"}
		}
	}
	return nil
}

func (v *transactionValidator) validateEnergyDelegate(
	stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, p *externalapi.EnergyDelegatePayload, atTopoheight uint64,
) error {
	if p.Amount == 0 {
		return &ruleerror.PolicyViolation{Reason: "delegation amount must be positive"}
	}
	if p.Locked && p.LockPeriodDays > v.maxLockPeriodDays {
		return &ruleerror.PolicyViolation{Reason: "lock period exceeds maximum"}
	}
	frozen, exists, err := v.frozenBalanceStore.FrozenBalance(v.databaseContext, stagingArea, transaction.SourcePublicKey, atTopoheight)
	if err != nil {
		return err
	}
	delegations, delExists, err := v.delegationStore.Delegations(v.databaseContext, stagingArea, transaction.SourcePublicKey, atTopoheight)
	if err != nil {
		return err
	}
	var alreadyDelegated uint64
	if delExists {
		for _, out := range delegations.Out {
			alreadyDelegated += out.Amount
		}
	}
	var frozenAmount uint64
	if exists {
		frozenAmount = frozen.Frozen
	}
	if alreadyDelegated+p.Amount > frozenAmount {
		return &ruleerror.PolicyViolation{Reason: "delegation exceeds frozen balance"}
	}
	return nil
}

// validateCommitteeUpdate checks a GovernanceCommitteeUpdatePayload's
// approvals against the committee's own currently registered members
// and threshold, never against the payload's own proposed NewMembers -
// otherwise an attacker could self-approve a takeover by naming
// themselves as NewMembers with Threshold=1 and signing one approval.
// The single exception is bootstrap: a committee name with nothing yet
// registered under it has no prior membership to defer to, so the
// proposal must instead satisfy itself.
func (v *transactionValidator) validateCommitteeUpdate(
	stagingArea *model.StagingArea, p *externalapi.GovernanceCommitteeUpdatePayload, atTopoheight uint64,
) error {
	members, threshold, found, err := v.lookupCommittee(stagingArea, p.Committee, atTopoheight)
	if err != nil {
		return err
	}
	if !found {
		return verifyCommitteeApprovals(p.Committee, p.Threshold, p.NewMembers, p.Approvals)
	}
	return verifyCommitteeApprovals(p.Committee, threshold, members, p.Approvals)
}

// validateNamedCommitteeApprovals validates a governance KYC transfer's
// approval list. The committee being approved against is named inside
// each CommitteeApproval itself (not on the payload), so every approval
// in the list must agree on the same committee name, and that committee
// must already be registered - an unregistered name, or threshold=0
// with no registered members, approves nothing.
func (v *transactionValidator) validateNamedCommitteeApprovals(
	stagingArea *model.StagingArea, approvals []externalapi.CommitteeApproval, atTopoheight uint64,
) error {
	if len(approvals) == 0 {
		return &ruleerror.PolicyViolation{Reason: "missing committee approvals"}
	}
	committee := approvals[0].Committee
	for _, approval := range approvals {
		if approval.Committee != committee {
			return &ruleerror.PolicyViolation{Reason: "committee approvals name different committees"}
		}
	}
	members, threshold, found, err := v.lookupCommittee(stagingArea, committee, atTopoheight)
	if err != nil {
		return err
	}
	if !found {
		return &ruleerror.PolicyViolation{Reason: "committee not registered"}
	}
	return verifyCommitteeApprovals(committee, threshold, members, approvals)
}

// lookupCommittee reads back a named committee's registered members and
// threshold as staged by applyGovernanceCommitteeUpdate
// (consensusstatemanager/apply.go), via the same address/encoding
// governance.StorageAddress defines.
func (v *transactionValidator) lookupCommittee(
	stagingArea *model.StagingArea, committee string, atTopoheight uint64,
) (members [][32]byte, threshold uint32, found bool, err error) {
	address := governance.StorageAddress(committee)
	contract, exists, err := v.contractStore.Contract(v.databaseContext, stagingArea, address, atTopoheight)
	if err != nil || !exists {
		return nil, 0, false, err
	}
	members, threshold = governance.Members(contract)
	return members, threshold, true, nil
}

func verifyCommitteeApprovals(committee string, threshold uint32, members [][32]byte, approvals []externalapi.CommitteeApproval) error {
	if threshold == 0 {
		threshold = 1
	}
	seen := make(map[[32]byte]bool, len(approvals))
	valid := 0
	for _, approval := range approvals {
		if approval.Committee != committee {
			continue
		}
		if seen[approval.Member] {
			continue
		}
		seen[approval.Member] = true
		if !memberAllowed(members, approval.Member) {
			continue
		}
		if !verifyApprovalSignature(approval) {
			continue
		}
		valid++
	}
	if uint32(valid) < threshold {
		return &ruleerror.PolicyViolation{Reason: "insufficient distinct committee approvals"}
	}
	return nil
}

func memberAllowed(members [][32]byte, member [32]byte) bool {
	for _, m := range members {
		if m == member {
			return true
		}
	}
	return false
}

func verifyApprovalSignature(approval externalapi.CommitteeApproval) bool {
	pubKey, err := schnorr.ParsePubKey(approval.Member[:])
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(approval.Signature[:])
	if err != nil {
		return false
	}
	digest := approvalDigest(approval)
	return sig.Verify(digest, pubKey)
}

func approvalDigest(approval externalapi.CommitteeApproval) []byte {
	digest := make([]byte, 0, len(approval.Committee)+32)
	digest = append(digest, approval.Committee...)
	digest = append(digest, approval.Member[:]...)
	return digest
}

func decodeRistrettoKey(key [32]byte) (*ristretto255.Element, error) {
	return decodeRistrettoElement(key[:])
}

func decodeRistrettoElement(b []byte) (*ristretto255.Element, error) {
	e := ristretto255.NewElement()
	if err := e.Decode(b); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeTransferElements(transfer externalapi.PrivacyTransferEntry) (commitment, senderHandle, receiverHandle *ristretto255.Element, err error) {
	commitment, err = decodeRistrettoElement(transfer.Commitment)
	if err != nil {
		return nil, nil, nil, err
	}
	senderHandle, err = decodeRistrettoElement(transfer.SenderHandle)
	if err != nil {
		return nil, nil, nil, err
	}
	receiverHandle, err = decodeRistrettoElement(transfer.ReceiverHandle)
	if err != nil {
		return nil, nil, nil, err
	}
	return commitment, senderHandle, receiverHandle, nil
}
