package consensusstatemanager

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model"
	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
	"github.com/tos-network/tos-sub010/domain/consensus/model/ruleerror"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/consensusstatemanager/parallelexec"
	"github.com/tos-network/tos-sub010/domain/consensus/processes/contracthost"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/contractabi"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/governance"
	"github.com/tos-network/tos-sub010/domain/consensus/utils/hashserialization"
)

// contractInvokeBaseGas is the fixed compute-unit cost of dispatching an
// invocation through a ContractHost, charged before any future
// interpreter's own metering would run.
const contractInvokeBaseGas = 1

// unfreezeMatureDelayMs is the energy unfreeze queue's lock period
// (spec.md §3 "frozen balance & unfreeze queue", 14 days).
const unfreezeMatureDelayMs = 14 * 24 * 60 * 60 * 1000

const dayMs = 24 * 60 * 60 * 1000

// ValidateAndApplyBlockTransactions validates and applies block's own
// transactions against the world state as of atTopoheight, in the order
// they appear in the block. A transaction that fails validation is
// recorded in the returned rejected map and contributes no state change;
// it does not abort the rest of the block (spec.md §4.4/§4.5).
func (csm *consensusStateManager) ValidateAndApplyBlockTransactions(
	stagingArea *model.StagingArea, block *externalapi.DomainBlock, atTopoheight uint64,
) (map[externalapi.DomainHash]error, error) {

	txIDs := make([]*externalapi.DomainHash, len(block.Transactions))
	for i, transaction := range block.Transactions {
		txIDs[i] = hashserialization.TransactionID(transaction)
	}

	byIndex, err := parallelexec.Run(context.Background(), block.Transactions, func(ctx context.Context, i int) error {
		transaction := block.Transactions[i]
		if err := csm.transactionValidator.ValidateTransactionInIsolation(transaction); err != nil {
			return err
		}
		if err := csm.transactionValidator.ValidateTransactionInContext(stagingArea, transaction, atTopoheight); err != nil {
			return err
		}
		return csm.applyTransaction(stagingArea, transaction, txIDs[i], atTopoheight, block.Header.TimestampMs)
	})
	if err != nil {
		return nil, err
	}

	rejected := make(map[externalapi.DomainHash]error, len(byIndex))
	for i, txErr := range byIndex {
		rejected[*txIDs[i]] = txErr
	}
	return rejected, nil
}

// applyTransaction mutates the versioned account/balance/energy/contract
// stores for a single already-validated transaction. Every write lands
// at atTopoheight: the versioned stores keep the prior topoheight's
// value retrievable, giving every other open topoheight a consistent
// view (spec.md §3).
func (csm *consensusStateManager) applyTransaction(
	stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction,
	txID *externalapi.DomainHash, atTopoheight uint64, blockTimestampMs int64,
) error {
	sourceAccount, exists, err := csm.accountStore.Account(csm.databaseContext, stagingArea, transaction.SourcePublicKey, atTopoheight)
	if err != nil {
		return err
	}
	if !exists {
		sourceAccount = &externalapi.Account{PublicKey: transaction.SourcePublicKey, RegistrationTopoheight: atTopoheight}
	} else {
		sourceAccount = sourceAccount.Clone()
	}
	sourceAccount.Nonce = transaction.Nonce + 1

	if transaction.Fee > 0 {
		if err := csm.debitFee(stagingArea, transaction, atTopoheight); err != nil {
			return err
		}
	}

	switch payload := transaction.Payload.(type) {
	case *externalapi.TransferPayload:
		err = csm.applyTransfer(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.PrivacyTransferPayload:
		err = csm.applyPrivacyTransfer(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.ShieldPayload:
		err = csm.applyShield(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.UnshieldPayload:
		err = csm.applyUnshield(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.EnergyFreezePayload:
		err = csm.applyEnergyFreeze(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.EnergyUnfreezePayload:
		err = csm.applyEnergyUnfreeze(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.EnergyWithdrawExpiredPayload:
		err = csm.applyEnergyWithdrawExpired(stagingArea, transaction.SourcePublicKey, atTopoheight)
	case *externalapi.EnergyCancelAllUnfreezePayload:
		err = csm.applyEnergyCancelAllUnfreeze(stagingArea, transaction.SourcePublicKey, atTopoheight)
	case *externalapi.EnergyDelegatePayload:
		err = csm.applyEnergyDelegate(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.EnergyUndelegatePayload:
		err = csm.applyEnergyUndelegate(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	case *externalapi.ContractDeployPayload:
		err = csm.applyContractDeploy(stagingArea, txID, payload, atTopoheight)
	case *externalapi.ContractInvokePayload:
		err = csm.applyContractInvoke(stagingArea, transaction.SourcePublicKey, payload, atTopoheight, blockTimestampMs)
	case *externalapi.GovernanceCommitteeUpdatePayload:
		// Membership/threshold bookkeeping lives entirely in the
		// contract store under a reserved address keyed by committee
		// name, since no dedicated committee store exists.
		err = csm.applyGovernanceCommitteeUpdate(stagingArea, payload, atTopoheight)
	case *externalapi.GovernanceKYCTransferPayload:
		err = csm.applyGovernanceKYCTransfer(stagingArea, transaction.SourcePublicKey, payload, atTopoheight)
	default:
		err = errors.Errorf("unknown payload kind %T", payload)
	}
	if err != nil {
		return err
	}

	csm.accountStore.Stage(stagingArea, transaction.SourcePublicKey, atTopoheight, sourceAccount)
	return nil
}

func (csm *consensusStateManager) debitFee(stagingArea *model.StagingArea, transaction *externalapi.DomainTransaction, atTopoheight uint64) error {
	if transaction.FeeAsset == externalapi.FeeAssetEnergy {
		// Energy-denominated fees are accounted for as part of the
		// derived EnergyState; no frozen-balance or plain-balance
		// mutation is required to "spend" energy.
		return nil
	}
	return csm.debitPlainBalance(stagingArea, transaction.SourcePublicKey, externalapi.NativeAssetHash, transaction.Fee, atTopoheight)
}

func (csm *consensusStateManager) debitPlainBalance(stagingArea *model.StagingArea, publicKey [32]byte, asset *externalapi.DomainHash, amount uint64, atTopoheight uint64) error {
	balance, exists, err := csm.balanceStore.Balance(csm.databaseContext, stagingArea, publicKey, asset, atTopoheight)
	if err != nil {
		return err
	}
	var newBalance *externalapi.Balance
	if !exists {
		newBalance = &externalapi.Balance{}
	} else {
		newBalance = balance.Clone()
	}
	if newBalance.IsPrivate {
		return errors.Errorf("cannot debit a private balance as plain")
	}
	if newBalance.PlainAmount < amount {
		return &ruleerror.InsufficientBalance{Asset: asset, Needed: amount, Have: newBalance.PlainAmount}
	}
	newBalance.PlainAmount -= amount
	csm.balanceStore.Stage(stagingArea, publicKey, asset, atTopoheight, newBalance)
	return nil
}

func (csm *consensusStateManager) creditPlainBalance(stagingArea *model.StagingArea, publicKey [32]byte, asset *externalapi.DomainHash, amount uint64, atTopoheight uint64) error {
	balance, exists, err := csm.balanceStore.Balance(csm.databaseContext, stagingArea, publicKey, asset, atTopoheight)
	if err != nil {
		return err
	}
	var newBalance *externalapi.Balance
	if !exists {
		newBalance = &externalapi.Balance{}
	} else {
		newBalance = balance.Clone()
	}
	if newBalance.IsPrivate {
		return errors.Errorf("cannot credit a private balance as plain")
	}
	newBalance.PlainAmount += amount
	csm.balanceStore.Stage(stagingArea, publicKey, asset, atTopoheight, newBalance)
	return nil
}

func (csm *consensusStateManager) applyTransfer(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.TransferPayload, atTopoheight uint64) error {
	for _, transfer := range payload.Transfers {
		if err := csm.debitPlainBalance(stagingArea, source, transfer.Asset, transfer.Amount, atTopoheight); err != nil {
			return err
		}
		if err := csm.creditPlainBalance(stagingArea, transfer.Destination, transfer.Asset, transfer.Amount, atTopoheight); err != nil {
			return err
		}
	}
	return nil
}

// applyPrivacyTransfer stages the sender's new private-balance
// ciphertext (SourceCommitment, already proven consistent by
// transactionvalidator) and each receiver's updated ciphertext. The
// consensus layer never learns plaintext amounts; it only ever replaces
// one proven ciphertext with another.
func (csm *consensusStateManager) applyPrivacyTransfer(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.PrivacyTransferPayload, atTopoheight uint64) error {
	if len(payload.SourceCommitment) > 0 {
		csm.balanceStore.Stage(stagingArea, source, payload.Transfers[0].Asset, atTopoheight, &externalapi.Balance{
			IsPrivate:  true,
			Ciphertext: payload.SourceCommitment,
		})
	}
	for _, transfer := range payload.Transfers {
		csm.balanceStore.Stage(stagingArea, transfer.Destination, transfer.Asset, atTopoheight, &externalapi.Balance{
			IsPrivate:  true,
			Ciphertext: transfer.Commitment,
		})
	}
	return nil
}

func (csm *consensusStateManager) applyShield(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.ShieldPayload, atTopoheight uint64) error {
	if err := csm.debitPlainBalance(stagingArea, source, payload.Asset, payload.Amount, atTopoheight); err != nil {
		return err
	}
	csm.balanceStore.Stage(stagingArea, source, payload.Asset, atTopoheight, &externalapi.Balance{
		IsPrivate:  true,
		Ciphertext: payload.Commitment,
	})
	return nil
}

func (csm *consensusStateManager) applyUnshield(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.UnshieldPayload, atTopoheight uint64) error {
	csm.balanceStore.Stage(stagingArea, source, payload.Asset, atTopoheight, &externalapi.Balance{
		IsPrivate:  true,
		Ciphertext: payload.Commitment,
	})
	return csm.creditPlainBalance(stagingArea, source, payload.Asset, payload.Amount, atTopoheight)
}

func (csm *consensusStateManager) loadFrozenBalance(stagingArea *model.StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.FrozenBalance, error) {
	frozen, exists, err := csm.frozenBalanceStore.FrozenBalance(csm.databaseContext, stagingArea, publicKey, atTopoheight)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &externalapi.FrozenBalance{}, nil
	}
	return frozen.Clone(), nil
}

func (csm *consensusStateManager) applyEnergyFreeze(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.EnergyFreezePayload, atTopoheight uint64) error {
	if err := csm.debitPlainBalance(stagingArea, source, externalapi.NativeAssetHash, payload.Amount, atTopoheight); err != nil {
		return err
	}
	frozen, err := csm.loadFrozenBalance(stagingArea, source, atTopoheight)
	if err != nil {
		return err
	}
	frozen.Frozen += payload.Amount
	csm.frozenBalanceStore.Stage(stagingArea, source, atTopoheight, frozen)
	return nil
}

func (csm *consensusStateManager) applyEnergyUnfreeze(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.EnergyUnfreezePayload, atTopoheight uint64) error {
	frozen, err := csm.loadFrozenBalance(stagingArea, source, atTopoheight)
	if err != nil {
		return err
	}
	if payload.Amount > frozen.Frozen {
		return &ruleerror.InsufficientBalance{Asset: externalapi.NativeAssetHash, Needed: payload.Amount, Have: frozen.Frozen}
	}
	frozen.Frozen -= payload.Amount
	frozen.UnfreezeQueue = append(frozen.UnfreezeQueue, externalapi.UnfreezeEntry{
		Amount:            payload.Amount,
		MatureTimestampMs: csm.approximateTimestampMs(atTopoheight) + unfreezeMatureDelayMs,
	})
	csm.frozenBalanceStore.Stage(stagingArea, source, atTopoheight, frozen)
	return nil
}

func (csm *consensusStateManager) applyEnergyWithdrawExpired(stagingArea *model.StagingArea, source [32]byte, atTopoheight uint64) error {
	frozen, err := csm.loadFrozenBalance(stagingArea, source, atTopoheight)
	if err != nil {
		return err
	}
	now := csm.approximateTimestampMs(atTopoheight)
	remaining := frozen.UnfreezeQueue[:0]
	var matured uint64
	for _, entry := range frozen.UnfreezeQueue {
		if entry.MatureTimestampMs <= now {
			matured += entry.Amount
		} else {
			remaining = append(remaining, entry)
		}
	}
	frozen.UnfreezeQueue = remaining
	csm.frozenBalanceStore.Stage(stagingArea, source, atTopoheight, frozen)
	if matured > 0 {
		return csm.creditPlainBalance(stagingArea, source, externalapi.NativeAssetHash, matured, atTopoheight)
	}
	return nil
}

func (csm *consensusStateManager) applyEnergyCancelAllUnfreeze(stagingArea *model.StagingArea, source [32]byte, atTopoheight uint64) error {
	frozen, err := csm.loadFrozenBalance(stagingArea, source, atTopoheight)
	if err != nil {
		return err
	}
	now := csm.approximateTimestampMs(atTopoheight)
	var matured, stillPending uint64
	for _, entry := range frozen.UnfreezeQueue {
		if entry.MatureTimestampMs <= now {
			matured += entry.Amount
		} else {
			stillPending += entry.Amount
		}
	}
	frozen.UnfreezeQueue = nil
	frozen.Frozen += stillPending
	csm.frozenBalanceStore.Stage(stagingArea, source, atTopoheight, frozen)
	if matured > 0 {
		return csm.creditPlainBalance(stagingArea, source, externalapi.NativeAssetHash, matured, atTopoheight)
	}
	return nil
}

func (csm *consensusStateManager) loadDelegations(stagingArea *model.StagingArea, publicKey [32]byte, atTopoheight uint64) (*externalapi.Delegations, error) {
	delegations, exists, err := csm.delegationStore.Delegations(csm.databaseContext, stagingArea, publicKey, atTopoheight)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &externalapi.Delegations{}, nil
	}
	return delegations.Clone(), nil
}

func (csm *consensusStateManager) applyEnergyDelegate(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.EnergyDelegatePayload, atTopoheight uint64) error {
	outbound, err := csm.loadDelegations(stagingArea, source, atTopoheight)
	if err != nil {
		return err
	}
	var lockedUntil int64
	if payload.Locked {
		lockedUntil = csm.approximateTimestampMs(atTopoheight) + int64(payload.LockPeriodDays)*dayMs
	}
	outbound.Out = append(outbound.Out, externalapi.Delegation{
		Counterparty:  payload.Receiver,
		Amount:        payload.Amount,
		LockedUntilMs: lockedUntil,
	})
	csm.delegationStore.Stage(stagingArea, source, atTopoheight, outbound)

	inbound, err := csm.loadDelegations(stagingArea, payload.Receiver, atTopoheight)
	if err != nil {
		return err
	}
	inbound.In = append(inbound.In, externalapi.Delegation{
		Counterparty:  source,
		Amount:        payload.Amount,
		LockedUntilMs: lockedUntil,
	})
	csm.delegationStore.Stage(stagingArea, payload.Receiver, atTopoheight, inbound)
	return nil
}

func (csm *consensusStateManager) applyEnergyUndelegate(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.EnergyUndelegatePayload, atTopoheight uint64) error {
	outbound, err := csm.loadDelegations(stagingArea, source, atTopoheight)
	if err != nil {
		return err
	}
	now := csm.approximateTimestampMs(atTopoheight)
	removed := false
	filtered := outbound.Out[:0]
	for _, delegation := range outbound.Out {
		if !removed && delegation.Counterparty == payload.Receiver && delegation.Amount == payload.Amount {
			if delegation.LockedUntilMs > now {
				return &ruleerror.PolicyViolation{Reason: "delegation still locked"}
			}
			removed = true
			continue
		}
		filtered = append(filtered, delegation)
	}
	if !removed {
		return &ruleerror.PolicyViolation{Reason: "no matching delegation to undelegate"}
	}
	outbound.Out = filtered
	csm.delegationStore.Stage(stagingArea, source, atTopoheight, outbound)

	inbound, err := csm.loadDelegations(stagingArea, payload.Receiver, atTopoheight)
	if err != nil {
		return err
	}
	infiltered := inbound.In[:0]
	for _, delegation := range inbound.In {
		if delegation.Counterparty == source && delegation.Amount == payload.Amount {
			continue
		}
		infiltered = append(infiltered, delegation)
	}
	inbound.In = infiltered
	csm.delegationStore.Stage(stagingArea, payload.Receiver, atTopoheight, inbound)
	return nil
}

func (csm *consensusStateManager) applyContractDeploy(stagingArea *model.StagingArea, txID *externalapi.DomainHash, payload *externalapi.ContractDeployPayload, atTopoheight uint64) error {
	if err := contractabi.ValidateModule(payload.ModuleBytecode); err != nil {
		return &ruleerror.PolicyViolation{Reason: "contract module failed format validation: " + err.Error()}
	}
	address := [32]byte(*txID)
	csm.contractStore.Stage(stagingArea, address, atTopoheight, &externalapi.Contract{
		ModuleBytecode: payload.ModuleBytecode,
		Storage:        make(map[string][]byte),
	})
	return nil
}

func (csm *consensusStateManager) applyContractInvoke(
	stagingArea *model.StagingArea, caller [32]byte, payload *externalapi.ContractInvokePayload,
	atTopoheight uint64, blockTimestampMs int64,
) error {
	address := [32]byte(*payload.Contract)
	_, exists, err := csm.contractStore.Contract(csm.databaseContext, stagingArea, address, atTopoheight)
	if err != nil {
		return err
	}
	if !exists {
		return &ruleerror.PolicyViolation{Reason: "invoke targets an undeployed contract"}
	}
	// Bytecode interpretation is a VM's job, out of scope here (spec.md
	// §6.2); what the host surface can already enforce - the invocation's
	// gas budget and reentrancy bookkeeping - runs for real, so any
	// storage/balance writes a future interpreter performs through this
	// same Host land in the ContractStore the way applyTransfer's direct
	// writes do.
	host := contracthost.New(csm.databaseContext, stagingArea, csm.balanceStore, csm.contractStore,
		caller, blockTimestampMs, atTopoheight, payload.GasBudget)
	if err := host.Enter(*payload.Contract); err != nil {
		return err
	}
	defer host.Exit(*payload.Contract)
	if err := host.Meter().Charge(contractInvokeBaseGas); err != nil {
		return err
	}
	contract, exists, err := csm.contractStore.Contract(csm.databaseContext, stagingArea, address, atTopoheight)
	if err != nil {
		return err
	}
	if !exists {
		return &ruleerror.PolicyViolation{Reason: "invoke targets an undeployed contract"}
	}
	csm.contractStore.Stage(stagingArea, address, atTopoheight, contract.Clone())
	return nil
}

func (csm *consensusStateManager) applyGovernanceCommitteeUpdate(stagingArea *model.StagingArea, payload *externalapi.GovernanceCommitteeUpdatePayload, atTopoheight uint64) error {
	address := governance.StorageAddress(payload.Committee)
	storage := governance.Storage(payload.Threshold, payload.NewMembers)
	csm.contractStore.Stage(stagingArea, address, atTopoheight, &externalapi.Contract{Storage: storage})
	return nil
}

func (csm *consensusStateManager) applyGovernanceKYCTransfer(stagingArea *model.StagingArea, source [32]byte, payload *externalapi.GovernanceKYCTransferPayload, atTopoheight uint64) error {
	if err := csm.debitPlainBalance(stagingArea, source, payload.Asset, payload.Amount, atTopoheight); err != nil {
		return err
	}
	return csm.creditPlainBalance(stagingArea, payload.Destination, payload.Asset, payload.Amount, atTopoheight)
}

// approximateTimestampMs derives a coarse wall-clock reading for
// topoheight-keyed maturity arithmetic (unfreeze queues, lock periods)
// from the target block time, since the versioned stores are keyed by
// topoheight rather than timestamp.
func (csm *consensusStateManager) approximateTimestampMs(atTopoheight uint64) int64 {
	return int64(atTopoheight) * 1000
}

