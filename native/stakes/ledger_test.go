package stakes

import (
	"math/big"
	"testing"

	"linkstake/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(storage.NewMemDB())
}

func TestAllocateIDMonotonic(t *testing.T) {
	ledger := newTestLedger(t)
	for want := uint64(1); want <= 3; want++ {
		id, err := ledger.AllocateID()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
}

func TestStakeRoundTrip(t *testing.T) {
	ledger := newTestLedger(t)
	stake := validStake()
	if err := ledger.PutStake(stake); err != nil {
		t.Fatalf("put stake: %v", err)
	}
	loaded, ok, err := ledger.GetStake(stake.ID)
	if err != nil || !ok {
		t.Fatalf("get stake: ok=%v err=%v", ok, err)
	}
	if loaded.Staker != stake.Staker || loaded.Amount.Cmp(stake.Amount) != 0 || loaded.Status != stake.Status {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if _, ok, err := ledger.GetStake(99); err != nil || ok {
		t.Fatalf("expected miss for unknown id, ok=%v err=%v", ok, err)
	}
}

func TestPutStakeRejectsUnsanitizable(t *testing.T) {
	ledger := newTestLedger(t)
	stake := validStake()
	stake.Rationale = ""
	if err := ledger.PutStake(stake); err == nil {
		t.Fatal("expected put to fail sanitization")
	}
}

func TestParticipantDefaultsToZeroedRecord(t *testing.T) {
	ledger := newTestLedger(t)
	p, err := ledger.Participant(testAddr(0x42))
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if p.ActiveStaked.Sign() != 0 || p.ClaimableRewards.Sign() != 0 || len(p.OwnedStakeIDs) != 0 {
		t.Fatalf("expected zeroed record, got %+v", p)
	}
	p.ActiveStaked = big.NewInt(77)
	p.OwnedStakeIDs = []uint64{3}
	if err := ledger.PutParticipant(p); err != nil {
		t.Fatalf("put participant: %v", err)
	}
	reloaded, err := ledger.Participant(testAddr(0x42))
	if err != nil {
		t.Fatalf("reload participant: %v", err)
	}
	if reloaded.ActiveStaked.Int64() != 77 || len(reloaded.OwnedStakeIDs) != 1 {
		t.Fatalf("round trip mismatch: %+v", reloaded)
	}
}

func TestReferenceIndexAllowsDuplicates(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.AppendReference("item-a", 1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := ledger.AppendReference("item-a", 1); err != nil {
		t.Fatalf("duplicate append: %v", err)
	}
	if err := ledger.AppendReference("item-a", 2); err != nil {
		t.Fatalf("append: %v", err)
	}
	ids, err := ledger.ReferenceStakeIDs("item-a")
	if err != nil {
		t.Fatalf("reference ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("unexpected id list %v", ids)
	}
}

func TestInitializePreservesExistingState(t *testing.T) {
	ledger := newTestLedger(t)
	first := &Params{MinStake: big.NewInt(1), MaxStake: big.NewInt(10), RewardMultiplierBps: 100, SlashPenaltyBps: 100, LockDuration: 60}
	if err := ledger.Initialize(testAddr(0x01), first); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	changed := &Params{MinStake: big.NewInt(5), MaxStake: big.NewInt(50), RewardMultiplierBps: 200, SlashPenaltyBps: 200, LockDuration: 120}
	if err := ledger.PutParams(changed); err != nil {
		t.Fatalf("put params: %v", err)
	}
	if err := ledger.PutAuthority(&Authority{Owner: testAddr(0x09)}); err != nil {
		t.Fatalf("put authority: %v", err)
	}

	// A restart re-runs Initialize with the boot configuration.
	if err := ledger.Initialize(testAddr(0x01), first); err != nil {
		t.Fatalf("re-initialize: %v", err)
	}
	params, ok, err := ledger.Params()
	if err != nil || !ok {
		t.Fatalf("params: ok=%v err=%v", ok, err)
	}
	if params.LockDuration != 120 {
		t.Fatalf("re-initialize clobbered params: %+v", params)
	}
	authority, ok, err := ledger.Authority()
	if err != nil || !ok {
		t.Fatalf("authority: ok=%v err=%v", ok, err)
	}
	if authority.Owner != testAddr(0x09) {
		t.Fatalf("re-initialize clobbered authority: %+v", authority)
	}
}

func TestPutAuthorityRequiresOwner(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.PutAuthority(&Authority{}); err == nil {
		t.Fatal("expected zero owner to be rejected")
	}
}

func TestCreationPausedFlag(t *testing.T) {
	ledger := newTestLedger(t)
	paused, err := ledger.CreationPaused()
	if err != nil {
		t.Fatalf("paused: %v", err)
	}
	if paused {
		t.Fatal("expected unpaused by default")
	}
	if err := ledger.SetCreationPaused(true); err != nil {
		t.Fatalf("set paused: %v", err)
	}
	paused, err = ledger.CreationPaused()
	if err != nil {
		t.Fatalf("paused: %v", err)
	}
	if !paused {
		t.Fatal("expected paused after set")
	}
}
