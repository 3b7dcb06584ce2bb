package transactionvalidator

import (
	"crypto/rand"
	"crypto/sha512"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/gtank/ristretto255"

	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/accountstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/balancestore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/contractstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/delegationstore"
	"github.com/tos-network/tos-sub010/domain/consensus/datastructures/frozenbalancestore"
	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/model/ruleerror"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/governance"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/proofs"
	"github.com/tos-network/tos-sub010/domain/dagconfig"
	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

type testValidator struct {
	t                  *testing.T
	stagingArea        *model.StagingArea
	accountStore       model.AccountStore
	balanceStore       model.BalanceStore
	frozenBalanceStore model.FrozenBalanceStore
	delegationStore    model.DelegationStore
	contractStore      model.ContractStore
	validator          model.TransactionValidator
}

func newTestValidator(t *testing.T, maxUnfreezeQueue int, maxLockPeriodDays uint32) *testValidator {
	db := dbaccess.NewMemoryDatabase()
	tv := &testValidator{
		t:                  t,
		stagingArea:        model.NewStagingArea(),
		accountStore:       accountstore.New(db),
		balanceStore:       balancestore.New(db),
		frozenBalanceStore: frozenbalancestore.New(db),
		delegationStore:    delegationstore.New(db),
		contractStore:      contractstore.New(db),
	}
	params := &dagconfig.Params{MaxUnfreezeQueue: maxUnfreezeQueue, MaxLockPeriodDays: maxLockPeriodDays}
	tv.validator = New(db, nil, tv.accountStore, tv.balanceStore, tv.frozenBalanceStore, tv.delegationStore,
		tv.contractStore, params)
	return tv
}

// stageCommittee registers a committee's members/threshold the same way
// consensusstatemanager's applyGovernanceCommitteeUpdate would, so tests
// can assert governance approvals validate against a previously
// registered committee rather than the payload's own fields.
func (tv *testValidator) stageCommittee(committee string, threshold uint32, members [][32]byte) {
	address := governance.StorageAddress(committee)
	tv.contractStore.Stage(tv.stagingArea, address, 0, &externalapi.Contract{Storage: governance.Storage(threshold, members)})
}

func (tv *testValidator) stageAccount(publicKey [32]byte, nonce uint64) {
	tv.accountStore.Stage(tv.stagingArea, publicKey, 0, &externalapi.Account{PublicKey: publicKey, Nonce: nonce})
}

func (tv *testValidator) stagePlainBalance(publicKey [32]byte, asset *externalapi.DomainHash, amount uint64) {
	tv.balanceStore.Stage(tv.stagingArea, publicKey, asset, 0, &externalapi.Balance{PlainAmount: amount})
}

func (tv *testValidator) stageFrozenBalance(publicKey [32]byte, frozen uint64, queue []externalapi.UnfreezeEntry) {
	tv.frozenBalanceStore.Stage(tv.stagingArea, publicKey, 0, &externalapi.FrozenBalance{Frozen: frozen, UnfreezeQueue: queue})
}

func (tv *testValidator) stageDelegationsOut(publicKey [32]byte, out []externalapi.Delegation) {
	tv.delegationStore.Stage(tv.stagingArea, publicKey, 0, &externalapi.Delegations{Out: out})
}

// newSignedTransaction builds a transaction with a genuine schnorr key
// pair and signs its consensus-critical serialization, so both
// ValidateTransactionInIsolation's signature check and downstream
// context checks can run against the same well-formed transaction.
func newSignedTransaction(t *testing.T, payload externalapi.TransactionPayload, nonce, fee uint64, refTopoheight uint64) *externalapi.DomainTransaction {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey failed: %v", err)
	}
	tx := &externalapi.DomainTransaction{
		Version:  1,
		Nonce:    nonce,
		Fee:      fee,
		FeeAsset: externalapi.FeeAssetNative,
		Reference: externalapi.TransactionReference{
			Topoheight: refTopoheight,
			Hash:       &externalapi.DomainHash{1, 2, 3},
		},
		Payload: payload,
	}
	copy(tx.SourcePublicKey[:], schnorr.SerializePubKey(privKey.PubKey()))
	signTransaction(t, tx, privKey)
	return tx
}

func signTransaction(t *testing.T, tx *externalapi.DomainTransaction, privKey *secp256k1.PrivateKey) {
	tx.SetCachedID(nil)
	bodyHash := hashserialization.TransactionID(tx)
	sig, err := schnorr.Sign(privKey, bodyHash.ByteSlice())
	if err != nil {
		t.Fatalf("schnorr.Sign failed: %v", err)
	}
	copy(tx.Signature[:], sig.Serialize())
	tx.SetCachedID(nil)
}

func simpleTransferPayload(asset *externalapi.DomainHash, amount uint64) *externalapi.TransferPayload {
	return &externalapi.TransferPayload{
		Transfers: []externalapi.TransferEntry{{Asset: asset, Destination: [32]byte{9}, Amount: amount}},
	}
}

func TestValidateStructureRejectsUnknownVersion(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 0)
	tx.Version = 2
	err := tv.validator.ValidateTransactionInIsolation(tx)
	if _, ok := err.(*ruleerror.StructuralError); !ok {
		t.Errorf("ValidateTransactionInIsolation(bad version) = %v, want *ruleerror.StructuralError", err)
	}
}

func TestValidateStructureRejectsEmptyTransferPayload(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.TransferPayload{}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInIsolation(tx)
	if _, ok := err.(*ruleerror.StructuralError); !ok {
		t.Errorf("ValidateTransactionInIsolation(empty transfers) = %v, want *ruleerror.StructuralError", err)
	}
}

// unrecognizedPayload implements externalapi.TransactionPayload but is
// not one of the variants validateStructure's switch recognizes.
type unrecognizedPayload struct{}

func (unrecognizedPayload) Kind() externalapi.PayloadKind           { return externalapi.PayloadKind(255) }
func (unrecognizedPayload) Clone() externalapi.TransactionPayload   { return unrecognizedPayload{} }

func TestValidateStructureRejectsUnrecognizedPayload(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, unrecognizedPayload{}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInIsolation(tx)
	if _, ok := err.(*ruleerror.StructuralError); !ok {
		t.Errorf("ValidateTransactionInIsolation(unrecognized payload) = %v, want *ruleerror.StructuralError", err)
	}
}

func TestValidateSignatureAcceptsGenuineSignature(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 0)
	if err := tv.validator.ValidateTransactionInIsolation(tx); err != nil {
		t.Errorf("ValidateTransactionInIsolation(valid signature) failed: %v", err)
	}
}

func TestValidateSignatureRejectsTamperedSignature(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 0)
	tx.Signature[0] ^= 0xff
	err := tv.validator.ValidateTransactionInIsolation(tx)
	if _, ok := err.(*ruleerror.BadSignature); !ok {
		t.Errorf("ValidateTransactionInIsolation(tampered signature) = %v, want *ruleerror.BadSignature", err)
	}
}

func TestValidateSignatureRejectsTamperedBody(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 0)
	tx.Fee = 999 // body changed after signing, signature no longer covers it
	err := tv.validator.ValidateTransactionInIsolation(tx)
	if _, ok := err.(*ruleerror.BadSignature); !ok {
		t.Errorf("ValidateTransactionInIsolation(tampered body) = %v, want *ruleerror.BadSignature", err)
	}
}

func TestValidateTransactionInContextRejectsNonceMismatch(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 0)
	tv.stageAccount(tx.SourcePublicKey, 5)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.NonceMismatch); !ok {
		t.Errorf("ValidateTransactionInContext(nonce 0 vs account nonce 5) = %v, want *ruleerror.NonceMismatch", err)
	}
}

func TestValidateTransactionInContextRejectsFutureReference(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 50)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 10)
	if _, ok := err.(*ruleerror.ReferenceStale); !ok {
		t.Errorf("ValidateTransactionInContext(reference ahead of atTopoheight) = %v, want *ruleerror.ReferenceStale", err)
	}
}

func TestValidateTransactionInContextRejectsTooStaleReference(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 1), 0, 0, 0)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, maxReferenceDepth+1)
	if _, ok := err.(*ruleerror.ReferenceStale); !ok {
		t.Errorf("ValidateTransactionInContext(reference beyond maxReferenceDepth) = %v, want *ruleerror.ReferenceStale", err)
	}
}

func TestValidateTransactionInContextRejectsInsufficientBalance(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 100), 0, 5, 0)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 50)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.InsufficientBalance); !ok {
		t.Errorf("ValidateTransactionInContext(insufficient balance) = %v, want *ruleerror.InsufficientBalance", err)
	}
}

// A private balance must not be treated as spendable plain balance, even
// when its hidden amount would otherwise cover the transfer.
func TestValidateTransactionInContextPrivateBalanceDoesNotCoverPlainTransfer(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 10), 0, 0, 0)
	tv.balanceStore.Stage(tv.stagingArea, tx.SourcePublicKey, externalapi.NativeAssetHash, 0,
		&externalapi.Balance{IsPrivate: true, Ciphertext: []byte{1, 2, 3}})
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.InsufficientBalance); !ok {
		t.Errorf("ValidateTransactionInContext(private balance only) = %v, want *ruleerror.InsufficientBalance", err)
	}
}

func TestValidateTransactionInContextAcceptsSufficientBalance(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, simpleTransferPayload(externalapi.NativeAssetHash, 40), 0, 5, 0)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 100)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(sufficient balance) failed: %v", err)
	}
}

// Energy operations are exempt from the fee/balance check (spec.md §4.4
// check 6): a freeze with zero plain balance on record must still pass
// the balance gate, though the payload's own amount-must-be-positive
// rule still applies.
func TestValidateTransactionInContextEnergyFreezeIsFeeFreeDespiteZeroBalance(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyFreezePayload{Amount: 10}, 0, 100, 0)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(energy freeze, no balance staged) failed: %v", err)
	}
}

func TestValidateEnergyOpRejectsZeroFreezeAmount(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyFreezePayload{Amount: 0}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(zero freeze amount) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateEnergyOpRejectsUnfreezeQueueFull(t *testing.T) {
	tv := newTestValidator(t, 2, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyUnfreezePayload{Amount: 5}, 0, 0, 0)
	tv.stageFrozenBalance(tx.SourcePublicKey, 100, []externalapi.UnfreezeEntry{{Amount: 1}, {Amount: 2}})
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.QueueFull); !ok {
		t.Errorf("ValidateTransactionInContext(unfreeze queue at max) = %v, want *ruleerror.QueueFull", err)
	}
}

func TestValidateEnergyOpRejectsUnfreezeAmountExceedingFrozen(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyUnfreezePayload{Amount: 500}, 0, 0, 0)
	tv.stageFrozenBalance(tx.SourcePublicKey, 100, nil)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(unfreeze exceeds frozen) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateEnergyOpAcceptsUnfreezeWithinFrozenAndQueue(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyUnfreezePayload{Amount: 50}, 0, 0, 0)
	tv.stageFrozenBalance(tx.SourcePublicKey, 100, nil)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(valid unfreeze) failed: %v", err)
	}
}

func TestValidateEnergyDelegateRejectsLockPeriodBeyondMaximum(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyDelegatePayload{
		Receiver: [32]byte{7}, Amount: 10, Locked: true, LockPeriodDays: 31,
	}, 0, 0, 0)
	tv.stageFrozenBalance(tx.SourcePublicKey, 100, nil)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(lock period over max) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateEnergyDelegateRejectsAmountExceedingFrozenBalance(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyDelegatePayload{Receiver: [32]byte{7}, Amount: 80}, 0, 0, 0)
	tv.stageFrozenBalance(tx.SourcePublicKey, 100, nil)
	tv.stageDelegationsOut(tx.SourcePublicKey, []externalapi.Delegation{{Counterparty: [32]byte{1}, Amount: 30}})
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(30 already delegated + 80 > 100 frozen) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateEnergyDelegateAcceptsWithinFrozenBalance(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.EnergyDelegatePayload{
		Receiver: [32]byte{7}, Amount: 40, Locked: true, LockPeriodDays: 10,
	}, 0, 0, 0)
	tv.stageFrozenBalance(tx.SourcePublicKey, 100, nil)
	tv.stageDelegationsOut(tx.SourcePublicKey, []externalapi.Delegation{{Counterparty: [32]byte{1}, Amount: 30}})
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(30+40 <= 100 frozen) failed: %v", err)
	}
}

func TestValidatePayloadRejectsContractDeployGasBudgetOutOfRange(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	for _, gas := range []uint64{0, maxGasPerTx + 1} {
		tx := newSignedTransaction(t, &externalapi.ContractDeployPayload{ModuleBytecode: []byte{0x00}, GasBudget: gas}, 0, 0, 0)
		tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1000)
		err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
		if _, ok := err.(*ruleerror.PolicyViolation); !ok {
			t.Errorf("ValidateTransactionInContext(gas budget %d) = %v, want *ruleerror.PolicyViolation", gas, err)
		}
	}
}

func TestValidatePayloadAcceptsContractInvokeGasBudgetInRange(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	tx := newSignedTransaction(t, &externalapi.ContractInvokePayload{
		Contract: &externalapi.DomainHash{1}, Entrypoint: "run", GasBudget: 1000,
	}, 0, 0, 0)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1000)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(valid gas budget) failed: %v", err)
	}
}

// newCommitteeApproval returns an approval for committee from a fresh
// member (its 32-byte schnorr-compatible identity) plus that member's
// private key.
func newCommitteeApproval(t *testing.T, committee string) (externalapi.CommitteeApproval, *secp256k1.PrivateKey) {
	privKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey failed: %v", err)
	}
	approval := externalapi.CommitteeApproval{Committee: committee}
	copy(approval.Member[:], schnorr.SerializePubKey(privKey.PubKey()))
	digest := approvalDigest(approval)
	sig, err := schnorr.Sign(privKey, digest)
	if err != nil {
		t.Fatalf("schnorr.Sign failed: %v", err)
	}
	copy(approval.Signature[:], sig.Serialize())
	return approval, privKey
}

func TestValidateCommitteeApprovalsRejectsBelowThreshold(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	approval, _ := newCommitteeApproval(t, "governance")
	tv.stageCommittee("governance", 2, [][32]byte{approval.Member, {0xbb}})
	tx := newSignedTransaction(t, &externalapi.GovernanceCommitteeUpdatePayload{
		Committee: "governance", NewMembers: [][32]byte{{1}}, Threshold: 2,
		Approvals: []externalapi.CommitteeApproval{approval},
	}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(1 approval, registered threshold 2) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateCommitteeApprovalsRejectsDuplicateApprover(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	approval, _ := newCommitteeApproval(t, "governance")
	tv.stageCommittee("governance", 2, [][32]byte{approval.Member, {0xbb}})
	tx := newSignedTransaction(t, &externalapi.GovernanceCommitteeUpdatePayload{
		Committee: "governance", Threshold: 2,
		Approvals: []externalapi.CommitteeApproval{approval, approval}, // same member twice
	}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(duplicate approver) = %v, want *ruleerror.PolicyViolation (dedup must not double-count)", err)
	}
}

func TestValidateCommitteeApprovalsRejectsApproverNotAllowListed(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	approval, _ := newCommitteeApproval(t, "governance")
	registered := [32]byte{0xaa}
	tv.stageCommittee("governance", 1, [][32]byte{registered})
	tx := newSignedTransaction(t, &externalapi.GovernanceCommitteeUpdatePayload{
		Committee: "governance", NewMembers: [][32]byte{registered}, Threshold: 1,
		Approvals: []externalapi.CommitteeApproval{approval},
	}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(approver outside registered committee) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateCommitteeApprovalsAcceptsMeetingThreshold(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	a1, _ := newCommitteeApproval(t, "governance")
	a2, _ := newCommitteeApproval(t, "governance")
	tv.stageCommittee("governance", 2, [][32]byte{a1.Member, a2.Member})
	tx := newSignedTransaction(t, &externalapi.GovernanceCommitteeUpdatePayload{
		Committee:  "governance",
		NewMembers: [][32]byte{a1.Member, a2.Member},
		Threshold:  2,
		Approvals:  []externalapi.CommitteeApproval{a1, a2},
	}, 0, 0, 0)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(2 distinct registered-committee approvals, threshold 2) failed: %v", err)
	}
}

// TestValidateCommitteeUpdateRejectsDisjointSelfSignedApprovals is the
// direct regression test for the self-approval/takeover bypass: once a
// committee is registered, a proposal naming a disjoint, self-signed
// set of NewMembers must be validated against the REGISTERED members,
// not against its own NewMembers/Approvals.
func TestValidateCommitteeUpdateRejectsDisjointSelfSignedApprovals(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	legit, _ := newCommitteeApproval(t, "governance")
	tv.stageCommittee("governance", 1, [][32]byte{legit.Member})

	attacker, _ := newCommitteeApproval(t, "governance")
	tx := newSignedTransaction(t, &externalapi.GovernanceCommitteeUpdatePayload{
		Committee:  "governance",
		NewMembers: [][32]byte{attacker.Member},
		Threshold:  1,
		Approvals:  []externalapi.CommitteeApproval{attacker},
	}, 0, 0, 0)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(self-signed takeover of a registered committee) = %v, want *ruleerror.PolicyViolation", err)
	}
}

// TestValidateCommitteeUpdateBootstrapAcceptsSelfConsistentProposal
// covers the one legitimate case a proposal is checked against itself:
// a committee name with nothing registered under it yet.
func TestValidateCommitteeUpdateBootstrapAcceptsSelfConsistentProposal(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	approval, _ := newCommitteeApproval(t, "governance")
	tx := newSignedTransaction(t, &externalapi.GovernanceCommitteeUpdatePayload{
		Committee:  "governance",
		NewMembers: [][32]byte{approval.Member},
		Threshold:  1,
		Approvals:  []externalapi.CommitteeApproval{approval},
	}, 0, 0, 0)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(first-ever registration of \"governance\") failed: %v", err)
	}
}

func TestValidateNamedCommitteeApprovalsRejectsUnregisteredCommittee(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	sourceApproval, _ := newCommitteeApproval(t, "kyc-source")
	destApproval, _ := newCommitteeApproval(t, "kyc-dest")
	tx := newSignedTransaction(t, &externalapi.GovernanceKYCTransferPayload{
		Asset: externalapi.NativeAssetHash, Destination: [32]byte{7}, Amount: 10,
		SourceApprovals: []externalapi.CommitteeApproval{sourceApproval},
		DestApprovals:   []externalapi.CommitteeApproval{destApproval},
	}, 0, 5, 0)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1000)
	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.PolicyViolation); !ok {
		t.Errorf("ValidateTransactionInContext(KYC transfer against unregistered committees) = %v, want *ruleerror.PolicyViolation", err)
	}
}

func TestValidateNamedCommitteeApprovalsAcceptsRegisteredCommittees(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	sourceApproval, _ := newCommitteeApproval(t, "kyc-source")
	destApproval, _ := newCommitteeApproval(t, "kyc-dest")
	tv.stageCommittee("kyc-source", 1, [][32]byte{sourceApproval.Member})
	tv.stageCommittee("kyc-dest", 1, [][32]byte{destApproval.Member})
	tx := newSignedTransaction(t, &externalapi.GovernanceKYCTransferPayload{
		Asset: externalapi.NativeAssetHash, Destination: [32]byte{7}, Amount: 10,
		SourceApprovals: []externalapi.CommitteeApproval{sourceApproval},
		DestApprovals:   []externalapi.CommitteeApproval{destApproval},
	}, 0, 5, 0)
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1000)
	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(registered KYC committees) failed: %v", err)
	}
}

// --- privacy/shield/unshield: real ristretto255 proof construction,
// grounded on the same prove-then-verify pattern as
// utils/proofs/equality_test.go. ---

func randomRistrettoScalar(t *testing.T) *ristretto255.Scalar {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		t.Fatalf("rand.Read failed: %v", err)
	}
	return ristretto255.NewScalar().FromUniformBytes(buf[:])
}

func ristrettoScalarFromUint64(t *testing.T, v uint64) *ristretto255.Scalar {
	var buf [32]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(buf[:]); err != nil {
		t.Fatalf("scalar decode failed: %v", err)
	}
	return s
}

func randomRistrettoElement(t *testing.T) (*ristretto255.Element, *ristretto255.Scalar) {
	scalar := randomRistrettoScalar(t)
	return ristretto255.NewElement().ScalarBaseMult(scalar), scalar
}

func TestValidateShieldAcceptsGenuineProof(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	publicKey, _ := randomRistrettoElement(t)
	amountScalar := ristrettoScalarFromUint64(t, 42)
	r := randomRistrettoScalar(t)

	commitment := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(amountScalar),
		ristretto255.NewElement().ScalarMult(r, ristretto255.NewElement().FromUniformBytes(sha512DomainHash("tos/proofs/generator-H"))),
	)
	handle := ristretto255.NewElement().ScalarMult(r, publicKey)
	proof := proofs.ProveShieldCommitment(r, publicKey)

	tx := newSignedTransaction(t, &externalapi.ShieldPayload{
		Asset: externalapi.NativeAssetHash, Amount: 42,
		Commitment:     commitment.Encode(nil),
		ReceiverHandle: handle.Encode(nil),
		ShieldProof:    proof.Encode(),
	}, 0, 0, 0)
	copy(tx.SourcePublicKey[:], publicKey.Encode(nil))
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1000)

	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if err != nil {
		t.Errorf("ValidateTransactionInContext(genuine shield proof) failed: %v", err)
	}
}

func TestValidateShieldRejectsWrongAmount(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	publicKey, _ := randomRistrettoElement(t)
	amountScalar := ristrettoScalarFromUint64(t, 42)
	r := randomRistrettoScalar(t)

	commitment := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(amountScalar),
		ristretto255.NewElement().ScalarMult(r, ristretto255.NewElement().FromUniformBytes(sha512DomainHash("tos/proofs/generator-H"))),
	)
	handle := ristretto255.NewElement().ScalarMult(r, publicKey)
	proof := proofs.ProveShieldCommitment(r, publicKey)

	tx := newSignedTransaction(t, &externalapi.ShieldPayload{
		Asset: externalapi.NativeAssetHash, Amount: 43, // proof was made for 42
		Commitment:     commitment.Encode(nil),
		ReceiverHandle: handle.Encode(nil),
		ShieldProof:    proof.Encode(),
	}, 0, 0, 0)
	copy(tx.SourcePublicKey[:], publicKey.Encode(nil))
	tv.stagePlainBalance(tx.SourcePublicKey, externalapi.NativeAssetHash, 1000)

	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.ProofInvalid); !ok {
		t.Errorf("ValidateTransactionInContext(shield proof amount mismatch) = %v, want *ruleerror.ProofInvalid", err)
	}
}

func TestValidatePrivacyTransferAcceptsGenuineProof(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	senderPublicKey, _ := randomRistrettoElement(t)
	receiverPublicKey, _ := randomRistrettoElement(t)
	amount := ristrettoScalarFromUint64(t, 7)
	r := randomRistrettoScalar(t)
	basepointH := ristretto255.NewElement().FromUniformBytes(sha512DomainHash("tos/proofs/generator-H"))

	commitment := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(amount),
		ristretto255.NewElement().ScalarMult(r, basepointH),
	)
	senderHandle := ristretto255.NewElement().ScalarMult(r, senderPublicKey)
	receiverHandle := ristretto255.NewElement().ScalarMult(r, receiverPublicKey)
	proof := proofs.ProveCiphertextValidity(amount, r, senderPublicKey, receiverPublicKey)

	var destination [32]byte
	copy(destination[:], receiverPublicKey.Encode(nil))
	tx := newSignedTransaction(t, &externalapi.PrivacyTransferPayload{
		Transfers: []externalapi.PrivacyTransferEntry{{
			Asset: externalapi.NativeAssetHash, Destination: destination,
			Commitment:         commitment.Encode(nil),
			SenderHandle:       senderHandle.Encode(nil),
			ReceiverHandle:     receiverHandle.Encode(nil),
			CiphertextValidity: proof.Encode(),
		}},
	}, 0, 0, 0)
	copy(tx.SourcePublicKey[:], senderPublicKey.Encode(nil))

	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(genuine privacy transfer proof) failed: %v", err)
	}
}

func TestValidatePrivacyTransferRejectsForgedHandle(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	senderPublicKey, _ := randomRistrettoElement(t)
	receiverPublicKey, _ := randomRistrettoElement(t)
	amount := ristrettoScalarFromUint64(t, 7)
	r := randomRistrettoScalar(t)
	basepointH := ristretto255.NewElement().FromUniformBytes(sha512DomainHash("tos/proofs/generator-H"))

	commitment := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(amount),
		ristretto255.NewElement().ScalarMult(r, basepointH),
	)
	forgedSenderHandle, _ := randomRistrettoElement(t) // unrelated to r
	receiverHandle := ristretto255.NewElement().ScalarMult(r, receiverPublicKey)
	proof := proofs.ProveCiphertextValidity(amount, r, senderPublicKey, receiverPublicKey)

	var destination [32]byte
	copy(destination[:], receiverPublicKey.Encode(nil))
	tx := newSignedTransaction(t, &externalapi.PrivacyTransferPayload{
		Transfers: []externalapi.PrivacyTransferEntry{{
			Asset: externalapi.NativeAssetHash, Destination: destination,
			Commitment:         commitment.Encode(nil),
			SenderHandle:       forgedSenderHandle.Encode(nil),
			ReceiverHandle:     receiverHandle.Encode(nil),
			CiphertextValidity: proof.Encode(),
		}},
	}, 0, 0, 0)
	copy(tx.SourcePublicKey[:], senderPublicKey.Encode(nil))

	err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0)
	if _, ok := err.(*ruleerror.ProofInvalid); !ok {
		t.Errorf("ValidateTransactionInContext(forged sender handle) = %v, want *ruleerror.ProofInvalid", err)
	}
}

func TestValidateUnshieldAcceptsGenuineProof(t *testing.T) {
	tv := newTestValidator(t, 10, 30)
	publicKey, _ := randomRistrettoElement(t)
	amountScalar := ristrettoScalarFromUint64(t, 15)
	r := randomRistrettoScalar(t)
	basepointH := ristretto255.NewElement().FromUniformBytes(sha512DomainHash("tos/proofs/generator-H"))

	commitment := ristretto255.NewElement().Add(
		ristretto255.NewElement().ScalarBaseMult(amountScalar),
		ristretto255.NewElement().ScalarMult(r, basepointH),
	)
	handle := ristretto255.NewElement().ScalarMult(r, publicKey)
	proof := proofs.ProveShieldCommitment(r, publicKey)

	tx := newSignedTransaction(t, &externalapi.UnshieldPayload{
		Asset: externalapi.NativeAssetHash, Amount: 15,
		Commitment:         commitment.Encode(nil),
		SenderHandle:       handle.Encode(nil),
		CiphertextValidity: proof.Encode(),
	}, 0, 0, 0)
	copy(tx.SourcePublicKey[:], publicKey.Encode(nil))

	if err := tv.validator.ValidateTransactionInContext(tv.stagingArea, tx, 0); err != nil {
		t.Errorf("ValidateTransactionInContext(genuine unshield proof) failed: %v", err)
	}
}

// sha512DomainHash mirrors utils/proofs' unexported domainHash helper so
// tests can reconstruct the same basepointH without exporting it from
// the production package purely for test use.
func sha512DomainHash(label string) []byte {
	sum := sha512.Sum512([]byte(label))
	return sum[:]
}
