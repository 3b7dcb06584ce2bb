package externalapi

// MultisigDescriptor describes an optional multisig policy attached to an
// account (used by governance KYC transfers and committee updates).
type MultisigDescriptor struct {
	Members   [][32]byte
	Threshold uint32
}

// Account is the (public_key) -> nonce/registration world-state entity
// from spec.md §3.
type Account struct {
	PublicKey            [32]byte
	Nonce                uint64
	RegistrationTopoheight uint64
	Multisig             *MultisigDescriptor
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Multisig != nil {
		ms := *a.Multisig
		ms.Members = append([][32]byte(nil), a.Multisig.Members...)
		clone.Multisig = &ms
	}
	return &clone
}

// Balance is a single (public_key, asset, topoheight) entry. Exactly one
// of PlainAmount/Ciphertext is meaningful, selected by IsPrivate.
type Balance struct {
	IsPrivate  bool
	PlainAmount uint64
	Ciphertext []byte // compressed ElGamal ciphertext, only when IsPrivate
}

// Clone returns a deep copy of the balance.
func (b *Balance) Clone() *Balance {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Ciphertext = append([]byte(nil), b.Ciphertext...)
	return &clone
}

// UnfreezeEntry is a single pending entry in an account's 14-day unfreeze
// queue (max MaxUnfreezeQueue entries, spec.md §3/§6.4).
type UnfreezeEntry struct {
	Amount           uint64
	MatureTimestampMs int64
}

// FrozenBalance is the (public_key) -> frozen/unfreeze-queue world-state
// entity.
type FrozenBalance struct {
	Frozen         uint64
	UnfreezeQueue  []UnfreezeEntry
}

// Clone returns a deep copy of the frozen balance.
func (f *FrozenBalance) Clone() *FrozenBalance {
	if f == nil {
		return nil
	}
	clone := &FrozenBalance{
		Frozen:        f.Frozen,
		UnfreezeQueue: make([]UnfreezeEntry, len(f.UnfreezeQueue)),
	}
	copy(clone.UnfreezeQueue, f.UnfreezeQueue)
	return clone
}

// Delegation is one outbound or inbound delegation edge, optionally
// locked until LockedUntilMs (0 if unlocked).
type Delegation struct {
	Counterparty  [32]byte
	Amount        uint64
	LockedUntilMs int64
}

// Delegations is the (public_key) -> {out, in} delegation-edge mapping.
type Delegations struct {
	Out []Delegation
	In  []Delegation
}

// Clone returns a deep copy of the delegation set.
func (d *Delegations) Clone() *Delegations {
	if d == nil {
		return nil
	}
	clone := &Delegations{
		Out: make([]Delegation, len(d.Out)),
		In:  make([]Delegation, len(d.In)),
	}
	copy(clone.Out, d.Out)
	copy(clone.In, d.In)
	return clone
}

// EnergyState is the derived (limit, used, available) view computed from
// frozen balance, delegations, and 24h linear decay (spec.md Glossary
// "Energy").
type EnergyState struct {
	Limit     uint64
	Used      uint64
	Available uint64
}

// Contract is the (hash, topoheight) -> bytecode/storage world-state
// entity. Storage is addressed by opaque keys; only bytes are kept here,
// the VM's interpretation of them is out of scope (spec.md §6.2).
type Contract struct {
	ModuleBytecode []byte
	Storage        map[string][]byte
}

// Clone returns a deep copy of the contract.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := &Contract{
		ModuleBytecode: append([]byte(nil), c.ModuleBytecode...),
		Storage:        make(map[string][]byte, len(c.Storage)),
	}
	for k, v := range c.Storage {
		clone.Storage[k] = append([]byte(nil), v...)
	}
	return clone
}
