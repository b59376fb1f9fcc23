package stakes

import (
	"math/big"
	"testing"
)

func validStake() *Stake {
	return &Stake{
		ID:            1,
		Staker:        testAddr(0x11),
		ReferencedIDs: []string{"a", "b"},
		Amount:        big.NewInt(500),
		Rationale:     "same product",
		CreatedAt:     100,
		Status:        StatusActive,
	}
}

func TestSanitizeStakeRejectsBadRecords(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Stake)
	}{
		{"zero id", func(s *Stake) { s.ID = 0 }},
		{"single reference", func(s *Stake) { s.ReferencedIDs = []string{"a"} }},
		{"blank rationale", func(s *Stake) { s.Rationale = "  " }},
		{"negative amount", func(s *Stake) { s.Amount = big.NewInt(-1) }},
		{"invalid status", func(s *Stake) { s.Status = Status(99) }},
		{"reward on active", func(s *Stake) { s.RewardAmount = big.NewInt(5) }},
		{"slash on active", func(s *Stake) { s.SlashAmount = big.NewInt(5) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validStake()
			tc.mutate(s)
			if _, err := SanitizeStake(s); err == nil {
				t.Fatal("expected sanitize to fail")
			}
		})
	}
}

func TestSanitizeStakeKeepsRewardAfterWithdrawal(t *testing.T) {
	s := validStake()
	s.Status = StatusWithdrawn
	s.RewardAmount = big.NewInt(75)
	if _, err := SanitizeStake(s); err != nil {
		t.Fatalf("withdrawn stake may carry its earned reward: %v", err)
	}
}

func TestSanitizeStakeDoesNotMutateInput(t *testing.T) {
	s := validStake()
	s.RewardAmount = nil
	sanitized, err := SanitizeStake(s)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.RewardAmount == nil || sanitized.RewardAmount.Sign() != 0 {
		t.Fatalf("expected zeroed reward on sanitized copy, got %v", sanitized.RewardAmount)
	}
	if s.RewardAmount != nil {
		t.Fatal("input record must not be mutated")
	}
}

func TestStatusInActiveTotals(t *testing.T) {
	for _, status := range []Status{StatusActive, StatusSuccessful, StatusFailed} {
		if !status.InActiveTotals() {
			t.Fatalf("%s should remain in active totals", status)
		}
	}
	for _, status := range []Status{StatusSlashed, StatusWithdrawn} {
		if status.InActiveTotals() {
			t.Fatalf("%s should leave active totals", status)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	good := &Params{MinStake: big.NewInt(1), MaxStake: big.NewInt(10), RewardMultiplierBps: 10_000, SlashPenaltyBps: 0}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
	cases := []struct {
		name   string
		params *Params
	}{
		{"nil min", &Params{MaxStake: big.NewInt(10)}},
		{"inverted bounds", &Params{MinStake: big.NewInt(10), MaxStake: big.NewInt(1)}},
		{"reward bps too high", &Params{MinStake: big.NewInt(1), MaxStake: big.NewInt(10), RewardMultiplierBps: 10_001}},
		{"slash bps too high", &Params{MinStake: big.NewInt(1), MaxStake: big.NewInt(10), SlashPenaltyBps: 10_001}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.params.Validate(); err == nil {
				t.Fatal("expected validation to fail")
			}
		})
	}
}

func TestApplyBpsFloors(t *testing.T) {
	cases := []struct {
		amount int64
		bps    uint32
		want   int64
	}{
		{1_000, 1_500, 150},
		{1_001, 1_500, 150},
		{1, 1, 0},
		{10_000, 10_000, 10_000},
		{0, 5_000, 0},
	}
	for _, tc := range cases {
		got := applyBps(big.NewInt(tc.amount), tc.bps)
		if got.Int64() != tc.want {
			t.Fatalf("applyBps(%d, %d) = %s, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestAuthoritySlasherSet(t *testing.T) {
	a := &Authority{Owner: testAddr(0x01)}
	if !a.IsAuthorizedToSlash(testAddr(0x01)) {
		t.Fatal("owner must always be authorized")
	}
	if a.IsAuthorizedToSlash(testAddr(0x02)) {
		t.Fatal("unknown principal must not be authorized")
	}
	if !a.AddSlasher(testAddr(0x02)) {
		t.Fatal("expected add to report change")
	}
	if a.AddSlasher(testAddr(0x02)) {
		t.Fatal("duplicate add must be a no-op")
	}
	if a.AddSlasher([20]byte{}) {
		t.Fatal("zero address must be rejected")
	}
	if !a.IsAuthorizedToSlash(testAddr(0x02)) {
		t.Fatal("added slasher must be authorized")
	}
	if !a.RemoveSlasher(testAddr(0x02)) {
		t.Fatal("expected remove to report change")
	}
	if a.RemoveSlasher(testAddr(0x02)) {
		t.Fatal("removing absent entry must be a no-op")
	}
}

func TestAuthoritySlashersStaySorted(t *testing.T) {
	a := &Authority{Owner: testAddr(0x01)}
	a.AddSlasher(testAddr(0x30))
	a.AddSlasher(testAddr(0x10))
	a.AddSlasher(testAddr(0x20))
	for i := 1; i < len(a.Slashers); i++ {
		if lessAddress(a.Slashers[i], a.Slashers[i-1]) {
			t.Fatalf("slashers out of order at %d: %v", i, a.Slashers)
		}
	}
}

func TestCloneIsolation(t *testing.T) {
	s := validStake()
	clone := s.Clone()
	clone.Amount.SetInt64(9_999)
	clone.ReferencedIDs[0] = "mutated"
	if s.Amount.Int64() != 500 || s.ReferencedIDs[0] != "a" {
		t.Fatal("clone mutation leaked into original")
	}

	p := &Participant{Address: testAddr(0x05), ActiveStaked: big.NewInt(10), ClaimableRewards: big.NewInt(2), OwnedStakeIDs: []uint64{1}}
	pc := p.Clone()
	pc.ActiveStaked.SetInt64(0)
	pc.OwnedStakeIDs[0] = 7
	if p.ActiveStaked.Int64() != 10 || p.OwnedStakeIDs[0] != 1 {
		t.Fatal("participant clone mutation leaked into original")
	}
}
