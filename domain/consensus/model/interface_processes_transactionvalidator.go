package model

import "github.com/tos-network/tos-sub010/domain/consensus/model/externalapi"

// TransactionValidator implements the per-transaction validation
// checklist of spec.md §4.4: structural checks, signature verification,
// nonce sequencing, balance/fee sufficiency, and payload-specific
// (privacy-proof, energy, contract, governance) rules.
type TransactionValidator interface {
	// ValidateTransactionInIsolation runs the checks that don't need
	// chain state: structural well-formedness and signature validity.
	ValidateTransactionInIsolation(transaction *externalapi.DomainTransaction) error

	// ValidateTransactionInContext runs the checks that need the
	// account/balance/energy state as of atTopoheight: nonce sequencing,
	// balance sufficiency, proof verification, payload-specific rules.
	ValidateTransactionInContext(stagingArea *StagingArea, transaction *externalapi.DomainTransaction, atTopoheight uint64) error
}
