package hashserialization

import (
	"io"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"
)

func WriteVarBytes(w io.Writer, b []byte) error {
	return writeElements(w, uint64(len(b)), b)
}

func WriteHash(w io.Writer, hash *externalapi.DomainHash) error {
	if hash == nil {
		var zero externalapi.DomainHash
		return WriteElement(w, zero)
	}
	return WriteElement(w, *hash)
}

// SerializeTransaction writes transaction's consensus-critical fields,
// in hashing order, to w. The signature itself is excluded: signing
// covers this same serialization, so including the signature would be
// circular.
func SerializeTransaction(w io.Writer, transaction *externalapi.DomainTransaction) error {
	if err := writeElements(w, transaction.Version, transaction.SourcePublicKey, transaction.Nonce,
		transaction.Fee, byte(transaction.FeeAsset)); err != nil {
		return err
	}
	if err := writeElements(w, transaction.Reference.Topoheight); err != nil {
		return err
	}
	if err := WriteHash(w, transaction.Reference.Hash); err != nil {
		return err
	}
	if err := WriteElement(w, byte(transaction.Payload.Kind())); err != nil {
		return err
	}
	return serializePayload(w, transaction.Payload)
}

func serializePayload(w io.Writer, payload externalapi.TransactionPayload) error {
	switch p := payload.(type) {
	case *externalapi.TransferPayload:
		if err := writeElements(w, uint64(len(p.Transfers))); err != nil {
			return err
		}
		for _, t := range p.Transfers {
			if err := WriteHash(w, t.Asset); err != nil {
				return err
			}
			if err := writeElements(w, t.Destination, t.Amount); err != nil {
				return err
			}
			if err := WriteVarBytes(w, t.Memo); err != nil {
				return err
			}
		}
		return nil

	case *externalapi.PrivacyTransferPayload:
		if err := writeElements(w, uint64(len(p.Transfers))); err != nil {
			return err
		}
		for _, t := range p.Transfers {
			if err := WriteHash(w, t.Asset); err != nil {
				return err
			}
			if err := writeElements(w, t.Destination); err != nil {
				return err
			}
			for _, field := range [][]byte{t.Commitment, t.SenderHandle, t.ReceiverHandle, t.CiphertextValidity, t.Memo} {
				if err := WriteVarBytes(w, field); err != nil {
					return err
				}
			}
		}
		return writeElements(w, uint64(len(p.SourceCommitment)), p.SourceCommitment,
			uint64(len(p.SourceEqualityProof)), p.SourceEqualityProof)

	case *externalapi.ShieldPayload:
		if err := WriteHash(w, p.Asset); err != nil {
			return err
		}
		return writeElements(w, p.Amount, uint64(len(p.Commitment)), p.Commitment,
			uint64(len(p.ReceiverHandle)), p.ReceiverHandle, uint64(len(p.ShieldProof)), p.ShieldProof)

	case *externalapi.UnshieldPayload:
		if err := WriteHash(w, p.Asset); err != nil {
			return err
		}
		return writeElements(w, p.Amount, uint64(len(p.Commitment)), p.Commitment,
			uint64(len(p.SenderHandle)), p.SenderHandle, uint64(len(p.CiphertextValidity)), p.CiphertextValidity)

	case *externalapi.EnergyFreezePayload:
		return writeElements(w, p.Amount)

	case *externalapi.EnergyUnfreezePayload:
		return writeElements(w, p.Amount)

	case *externalapi.EnergyWithdrawExpiredPayload:
		return nil

	case *externalapi.EnergyCancelAllUnfreezePayload:
		return nil

	case *externalapi.EnergyDelegatePayload:
		locked := byte(0)
		if p.Locked {
			locked = 1
		}
		return writeElements(w, p.Receiver, p.Amount, locked, p.LockPeriodDays)

	case *externalapi.EnergyUndelegatePayload:
		return writeElements(w, p.Receiver, p.Amount)

	case *externalapi.ContractDeployPayload:
		return WriteVarBytes(w, p.ModuleBytecode)

	case *externalapi.ContractInvokePayload:
		if err := WriteHash(w, p.Contract); err != nil {
			return err
		}
		if err := WriteVarBytes(w, []byte(p.Entrypoint)); err != nil {
			return err
		}
		return WriteVarBytes(w, p.Args)

	case *externalapi.GovernanceCommitteeUpdatePayload:
		if err := WriteVarBytes(w, []byte(p.Committee)); err != nil {
			return err
		}
		if err := writeElements(w, uint64(len(p.NewMembers))); err != nil {
			return err
		}
		for _, member := range p.NewMembers {
			if err := WriteElement(w, member); err != nil {
				return err
			}
		}
		return writeElements(w, p.Threshold)

	case *externalapi.GovernanceKYCTransferPayload:
		if err := WriteHash(w, p.Asset); err != nil {
			return err
		}
		return writeElements(w, p.Destination, p.Amount)

	default:
		return errors.Errorf("unknown transaction payload type %T", payload)
	}
}

func ReadVarBytes(r io.Reader) ([]byte, error) {
	var length uint64
	if err := ReadElement(r, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func ReadHash(r io.Reader) (*externalapi.DomainHash, error) {
	hash := &externalapi.DomainHash{}
	if err := ReadElement(r, hash); err != nil {
		return nil, err
	}
	return hash, nil
}

// DeserializeTransaction reads back a transaction written by
// SerializeTransaction. The signature is not part of the wire payload
// read here; callers populate it separately from the outer transaction
// envelope.
func DeserializeTransaction(r io.Reader) (*externalapi.DomainTransaction, error) {
	tx := &externalapi.DomainTransaction{}
	var feeAsset byte
	if err := readElements(r, &tx.Version, &tx.SourcePublicKey, &tx.Nonce, &tx.Fee, &feeAsset); err != nil {
		return nil, err
	}
	tx.FeeAsset = externalapi.FeeAsset(feeAsset)
	if err := readElements(r, &tx.Reference.Topoheight); err != nil {
		return nil, err
	}
	referenceHash, err := ReadHash(r)
	if err != nil {
		return nil, err
	}
	tx.Reference.Hash = referenceHash

	var kind byte
	if err := ReadElement(r, &kind); err != nil {
		return nil, err
	}
	payload, err := deserializePayload(r, externalapi.PayloadKind(kind))
	if err != nil {
		return nil, err
	}
	tx.Payload = payload
	return tx, nil
}

func deserializePayload(r io.Reader, kind externalapi.PayloadKind) (externalapi.TransactionPayload, error) {
	switch kind {
	case externalapi.PayloadKindTransfer:
		var count uint64
		if err := ReadElement(r, &count); err != nil {
			return nil, err
		}
		transfers := make([]externalapi.TransferEntry, count)
		for i := range transfers {
			asset, err := ReadHash(r)
			if err != nil {
				return nil, err
			}
			var destination [32]byte
			var amount uint64
			if err := readElements(r, &destination, &amount); err != nil {
				return nil, err
			}
			memo, err := ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			transfers[i] = externalapi.TransferEntry{Asset: asset, Destination: destination, Amount: amount, Memo: memo}
		}
		return &externalapi.TransferPayload{Transfers: transfers}, nil

	case externalapi.PayloadKindPrivacyTransfer:
		var count uint64
		if err := ReadElement(r, &count); err != nil {
			return nil, err
		}
		transfers := make([]externalapi.PrivacyTransferEntry, count)
		for i := range transfers {
			asset, err := ReadHash(r)
			if err != nil {
				return nil, err
			}
			var destination [32]byte
			if err := ReadElement(r, &destination); err != nil {
				return nil, err
			}
			commitment, err := ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			senderHandle, err := ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			receiverHandle, err := ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			ciphertextValidity, err := ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			memo, err := ReadVarBytes(r)
			if err != nil {
				return nil, err
			}
			transfers[i] = externalapi.PrivacyTransferEntry{
				Asset: asset, Destination: destination, Commitment: commitment,
				SenderHandle: senderHandle, ReceiverHandle: receiverHandle,
				CiphertextValidity: ciphertextValidity, Memo: memo,
			}
		}
		sourceCommitment, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		sourceEqualityProof, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.PrivacyTransferPayload{
			Transfers: transfers, SourceCommitment: sourceCommitment, SourceEqualityProof: sourceEqualityProof,
		}, nil

	case externalapi.PayloadKindShield:
		asset, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		var amount uint64
		if err := ReadElement(r, &amount); err != nil {
			return nil, err
		}
		commitment, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		receiverHandle, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		shieldProof, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.ShieldPayload{Asset: asset, Amount: amount, Commitment: commitment,
			ReceiverHandle: receiverHandle, ShieldProof: shieldProof}, nil

	case externalapi.PayloadKindUnshield:
		asset, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		var amount uint64
		if err := ReadElement(r, &amount); err != nil {
			return nil, err
		}
		commitment, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		senderHandle, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		ciphertextValidity, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.UnshieldPayload{Asset: asset, Amount: amount, Commitment: commitment,
			SenderHandle: senderHandle, CiphertextValidity: ciphertextValidity}, nil

	case externalapi.PayloadKindEnergyFreeze:
		var amount uint64
		if err := ReadElement(r, &amount); err != nil {
			return nil, err
		}
		return &externalapi.EnergyFreezePayload{Amount: amount}, nil

	case externalapi.PayloadKindEnergyUnfreeze:
		var amount uint64
		if err := ReadElement(r, &amount); err != nil {
			return nil, err
		}
		return &externalapi.EnergyUnfreezePayload{Amount: amount}, nil

	case externalapi.PayloadKindEnergyWithdrawExpired:
		return &externalapi.EnergyWithdrawExpiredPayload{}, nil

	case externalapi.PayloadKindEnergyCancelAllUnfreeze:
		return &externalapi.EnergyCancelAllUnfreezePayload{}, nil

	case externalapi.PayloadKindEnergyDelegate:
		var receiver [32]byte
		var amount uint64
		var locked byte
		var lockPeriodDays uint32
		if err := readElements(r, &receiver, &amount, &locked, &lockPeriodDays); err != nil {
			return nil, err
		}
		return &externalapi.EnergyDelegatePayload{Receiver: receiver, Amount: amount,
			Locked: locked != 0, LockPeriodDays: lockPeriodDays}, nil

	case externalapi.PayloadKindEnergyUndelegate:
		var receiver [32]byte
		var amount uint64
		if err := readElements(r, &receiver, &amount); err != nil {
			return nil, err
		}
		return &externalapi.EnergyUndelegatePayload{Receiver: receiver, Amount: amount}, nil

	case externalapi.PayloadKindContractDeploy:
		bytecode, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.ContractDeployPayload{ModuleBytecode: bytecode}, nil

	case externalapi.PayloadKindContractInvoke:
		contract, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		entrypoint, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		args, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		return &externalapi.ContractInvokePayload{Contract: contract, Entrypoint: string(entrypoint), Args: args}, nil

	case externalapi.PayloadKindGovernanceCommitteeUpdate:
		committee, err := ReadVarBytes(r)
		if err != nil {
			return nil, err
		}
		var count uint64
		if err := ReadElement(r, &count); err != nil {
			return nil, err
		}
		members := make([][32]byte, count)
		for i := range members {
			if err := ReadElement(r, &members[i]); err != nil {
				return nil, err
			}
		}
		var threshold uint32
		if err := ReadElement(r, &threshold); err != nil {
			return nil, err
		}
		return &externalapi.GovernanceCommitteeUpdatePayload{Committee: string(committee), NewMembers: members, Threshold: threshold}, nil

	case externalapi.PayloadKindGovernanceKYCTransfer:
		asset, err := ReadHash(r)
		if err != nil {
			return nil, err
		}
		var destination [32]byte
		var amount uint64
		if err := readElements(r, &destination, &amount); err != nil {
			return nil, err
		}
		return &externalapi.GovernanceKYCTransferPayload{Asset: asset, Destination: destination, Amount: amount}, nil

	default:
		return nil, errors.Errorf("unknown transaction payload kind %d", kind)
	}
}

// TransactionID returns the double-SHA256 hash of the transaction's
// consensus-critical serialization, used as its reference ID.
func TransactionID(transaction *externalapi.DomainTransaction) *externalapi.DomainHash {
	if cached := transaction.CachedID(); cached != nil {
		return cached
	}
	writer := NewHashWriter()
	if err := SerializeTransaction(writer, transaction); err != nil {
		panic(errors.Wrap(err, "TransactionID failed, this should never happen"))
	}
	id := writer.Finalize()
	transaction.SetCachedID(&id)
	return &id
}

// TransactionHash returns the double-SHA256 hash of the transaction
// including its signature, the leaf hashed into a block's
// TransactionMerkleRoot. Unlike TransactionID it is not reused as a
// signing digest, so including the signature is not circular.
func TransactionHash(transaction *externalapi.DomainTransaction) *externalapi.DomainHash {
	writer := NewHashWriter()
	if err := SerializeTransaction(writer, transaction); err != nil {
		panic(errors.Wrap(err, "TransactionHash failed, this should never happen"))
	}
	if err := WriteElement(writer, transaction.Signature); err != nil {
		panic(errors.Wrap(err, "TransactionHash failed, this should never happen"))
	}
	hash := writer.Finalize()
	return &hash
}
