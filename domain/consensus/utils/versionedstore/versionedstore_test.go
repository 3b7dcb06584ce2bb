package versionedstore

import (
	"testing"

	"github.com/tos-network/tos-sub010/infrastructure/db/dbaccess"
)

func TestEncodeKeyPreservesOwnerPrefixAndOrder(t *testing.T) {
	owner := []byte("account:abc")
	key10 := EncodeKey(owner, 10)
	key2 := EncodeKey(owner, 2)

	if string(key10[:len(owner)]) != string(owner) {
		t.Errorf("EncodeKey did not preserve the owner prefix")
	}
	if !(string(key2) < string(key10)) {
		t.Errorf("lexicographic key order should match numeric topoheight order: key(2)=%x should sort before key(10)=%x", key2, key10)
	}
}

func TestDecodeTopoheightRoundTrip(t *testing.T) {
	owner := []byte("balance:xyz")
	for _, topoheight := range []uint64{0, 1, 255, 65536, 1 << 40} {
		key := EncodeKey(owner, topoheight)
		if got := DecodeTopoheight(key); got != topoheight {
			t.Errorf("DecodeTopoheight(EncodeKey(owner, %d)) = %d", topoheight, got)
		}
	}
}

func TestGetLatestReturnsHighestVersionAtOrBelowTarget(t *testing.T) {
	db := dbaccess.NewMemoryDatabase()
	owner := []byte("account:p1")

	for _, entry := range []struct {
		topoheight uint64
		value      string
	}{
		{5, "v5"},
		{10, "v10"},
		{20, "v20"},
	} {
		if err := db.Put(EncodeKey(owner, entry.topoheight), []byte(entry.value)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	tests := []struct {
		atTopoheight uint64
		wantFound    bool
		wantValue    string
	}{
		{0, false, ""},
		{4, false, ""},
		{5, true, "v5"},
		{9, true, "v5"},
		{10, true, "v10"},
		{19, true, "v10"},
		{20, true, "v20"},
		{1000, true, "v20"},
	}
	for _, test := range tests {
		value, found, err := GetLatest(db, owner, test.atTopoheight)
		if err != nil {
			t.Fatalf("GetLatest(atTopoheight=%d) error: %v", test.atTopoheight, err)
		}
		if found != test.wantFound {
			t.Errorf("GetLatest(atTopoheight=%d) found = %v, want %v", test.atTopoheight, found, test.wantFound)
			continue
		}
		if found && string(value) != test.wantValue {
			t.Errorf("GetLatest(atTopoheight=%d) = %q, want %q", test.atTopoheight, value, test.wantValue)
		}
	}
}

func TestGetLatestDoesNotLeakBetweenOwners(t *testing.T) {
	db := dbaccess.NewMemoryDatabase()
	ownerA := []byte("account:a")
	ownerB := []byte("account:b")

	if err := db.Put(EncodeKey(ownerA, 1), []byte("a1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Put(EncodeKey(ownerB, 1), []byte("b1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	value, found, err := GetLatest(db, ownerA, 100)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found || string(value) != "a1" {
		t.Errorf("GetLatest(ownerA) = (%q, %v), want (\"a1\", true)", value, found)
	}
}

func TestDeleteFromRemovesEntriesAtOrAboveTopoheight(t *testing.T) {
	db := dbaccess.NewMemoryDatabase()
	owner := []byte("account:p1")

	for _, topoheight := range []uint64{5, 10, 20} {
		if err := db.Put(EncodeKey(owner, topoheight), []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := DeleteFrom(db, owner, 10); err != nil {
		t.Fatalf("DeleteFrom failed: %v", err)
	}

	if _, found, err := GetLatest(db, owner, 100); err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	} else if !found {
		t.Fatalf("expected the topoheight=5 entry to survive DeleteFrom(topoheightExclusive=10)")
	} else if value, _, _ := GetLatest(db, owner, 100); string(value) != "v" {
		t.Errorf("unexpected surviving value")
	}

	if has, err := db.Has(EncodeKey(owner, 5)); err != nil || !has {
		t.Errorf("entry at topoheight=5 should survive DeleteFrom(topoheightExclusive=10), has=%v err=%v", has, err)
	}
	if has, err := db.Has(EncodeKey(owner, 10)); err != nil || has {
		t.Errorf("entry at topoheight=10 should be deleted by DeleteFrom(topoheightExclusive=10), has=%v err=%v", has, err)
	}
	if has, err := db.Has(EncodeKey(owner, 20)); err != nil || has {
		t.Errorf("entry at topoheight=20 should be deleted by DeleteFrom(topoheightExclusive=10), has=%v err=%v", has, err)
	}
}
