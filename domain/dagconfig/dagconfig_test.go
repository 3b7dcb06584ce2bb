package dagconfig

import "testing"

func TestGenesisBlocksAreDistinctAcrossNetworks(t *testing.T) {
	hashes := map[string]*Params{
		MainnetParams.GenesisHash.String(): &MainnetParams,
		TestnetParams.GenesisHash.String(): &TestnetParams,
		SimnetParams.GenesisHash.String():  &SimnetParams,
		DevnetParams.GenesisHash.String():  &DevnetParams,
	}
	if len(hashes) != 4 {
		t.Errorf("expected 4 distinct genesis hashes across networks, got %d", len(hashes))
	}
}

func TestGenesisBlockHasNoParentsOrTransactions(t *testing.T) {
	block := MainnetParams.GenesisBlock
	if len(block.Header.Parents) != 0 {
		t.Errorf("genesis block should have no parents, got %d", len(block.Header.Parents))
	}
	if len(block.Transactions) != 0 {
		t.Errorf("genesis block should have no transactions, got %d", len(block.Transactions))
	}
}

func TestRegisterRejectsDuplicateNetwork(t *testing.T) {
	if err := Register(&MainnetParams); err != ErrDuplicateNet {
		t.Errorf("Register(MainnetParams) = %v, want ErrDuplicateNet", err)
	}
}

func TestRegisterAcceptsNewNetwork(t *testing.T) {
	custom := Params{Net: NetworkID(200), Name: "tos-custom"}
	if err := Register(&custom); err != nil {
		t.Errorf("Register(custom) failed: %v", err)
	}
	if err := Register(&custom); err != ErrDuplicateNet {
		t.Errorf("re-registering the same network should fail with ErrDuplicateNet, got %v", err)
	}
}

func TestForkConditionAtBlock(t *testing.T) {
	condition := AtBlock(100)
	if condition.IsActive(99, 0) {
		t.Errorf("fork activating at topoheight 100 should not be active at 99")
	}
	if !condition.IsActive(100, 0) {
		t.Errorf("fork activating at topoheight 100 should be active at 100")
	}
	if !condition.IsActive(101, 0) {
		t.Errorf("fork activating at topoheight 100 should remain active at 101")
	}
}

func TestForkConditionAtTimestamp(t *testing.T) {
	condition := AtTimestamp(1000)
	if condition.IsActive(0, 999) {
		t.Errorf("fork activating at timestamp 1000 should not be active at 999")
	}
	if !condition.IsActive(0, 1000) {
		t.Errorf("fork activating at timestamp 1000 should be active at 1000")
	}
}

func TestIsForkActiveUnknownRuleIsNeverActive(t *testing.T) {
	if IsForkActive("no-such-fork", 1<<40, 1<<40) {
		t.Errorf("an unregistered fork name should never report active")
	}
}

func TestSetActiveForksAndIsForkActive(t *testing.T) {
	original := ActiveForks()
	defer SetActiveForks(original)

	SetActiveForks([]ForkRule{
		{Name: "test-fork", Condition: AtBlock(50)},
	})

	if IsForkActive("test-fork", 49, 0) {
		t.Errorf("test-fork should not be active before topoheight 50")
	}
	if !IsForkActive("test-fork", 50, 0) {
		t.Errorf("test-fork should be active at topoheight 50")
	}
}
