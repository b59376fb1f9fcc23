package stakes

import (
	"fmt"
	"math/big"
	"strings"
)

// Status tracks the terminal-once lifecycle of a stake. Active stakes resolve
// exactly once into successful, failed or slashed; successful and failed
// stakes may additionally be withdrawn after the lock elapses.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusSuccessful
	StatusFailed
	StatusSlashed
	StatusWithdrawn
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuccessful, StatusFailed, StatusSlashed, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// String renders the canonical lowercase status name used in events and RPC
// responses.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuccessful:
		return "successful"
	case StatusFailed:
		return "failed"
	case StatusSlashed:
		return "slashed"
	case StatusWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// InActiveTotals reports whether a stake in this status still counts towards
// the staker's and the global active-staked aggregates. Slashed and withdrawn
// stakes are removed from active accounting; everything else remains.
func (s Status) InActiveTotals() bool {
	return s != StatusSlashed && s != StatusWithdrawn
}

// Stake captures a participant's bonded commitment against the claim that the
// referenced items belong together. Amount, staker, referenced ids and
// rationale are fixed at creation; reward and slash amounts are set exactly
// once by the matching resolution.
type Stake struct {
	ID            uint64   `json:"id"`
	Staker        [20]byte `json:"staker"`
	ReferencedIDs []string `json:"referencedIds"`
	Amount        *big.Int `json:"amount"`
	Rationale     string   `json:"rationale"`
	CreatedAt     int64    `json:"createdAt"`
	Status        Status   `json:"status"`
	RewardAmount  *big.Int `json:"rewardAmount"`
	SlashAmount   *big.Int `json:"slashAmount"`
}

// Clone returns a deep copy of the stake so callers can safely mutate the copy
// without affecting the stored instance.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	clone.ReferencedIDs = append([]string(nil), s.ReferencedIDs...)
	clone.Amount = cloneBigInt(s.Amount)
	clone.RewardAmount = cloneBigInt(s.RewardAmount)
	clone.SlashAmount = cloneBigInt(s.SlashAmount)
	return &clone
}

// SanitizeStake validates and normalises a stake record, returning a cloned
// instance with non-nil amount fields. The original value is not mutated.
func SanitizeStake(s *Stake) (*Stake, error) {
	if s == nil {
		return nil, fmt.Errorf("nil stake")
	}
	clone := s.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("stake id must be positive")
	}
	if len(clone.ReferencedIDs) < minReferencedIDs {
		return nil, fmt.Errorf("stake requires at least %d referenced ids", minReferencedIDs)
	}
	if strings.TrimSpace(clone.Rationale) == "" {
		return nil, fmt.Errorf("stake rationale must not be empty")
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("stake amount must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid stake status: %d", clone.Status)
	}
	if clone.RewardAmount.Sign() != 0 && clone.Status != StatusSuccessful && clone.Status != StatusWithdrawn {
		return nil, fmt.Errorf("reward recorded on unresolved stake %d", clone.ID)
	}
	if clone.SlashAmount.Sign() != 0 && clone.Status != StatusSlashed {
		return nil, fmt.Errorf("slash recorded on unslashed stake %d", clone.ID)
	}
	return clone, nil
}

// Params holds the configurable bounds read by every mutating operation.
// Multipliers and penalties are expressed in basis points, lock duration in
// seconds.
type Params struct {
	MinStake            *big.Int `json:"minStake"`
	MaxStake            *big.Int `json:"maxStake"`
	RewardMultiplierBps uint32   `json:"rewardMultiplierBps"`
	SlashPenaltyBps     uint32   `json:"slashPenaltyBps"`
	LockDuration        uint64   `json:"lockDuration"`
}

// Clone returns a deep copy of the parameter set.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.MinStake = cloneBigInt(p.MinStake)
	clone.MaxStake = cloneBigInt(p.MaxStake)
	return &clone
}

// Validate rejects parameter sets the engine cannot safely operate on. The
// min/max ordering check goes beyond the historical behaviour, which accepted
// inverted bounds and made every creation fail.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	if p.MinStake == nil || p.MinStake.Sign() < 0 {
		return fmt.Errorf("min stake must be non-negative")
	}
	if p.MaxStake == nil || p.MaxStake.Sign() < 0 {
		return fmt.Errorf("max stake must be non-negative")
	}
	if p.MinStake.Cmp(p.MaxStake) > 0 {
		return fmt.Errorf("min stake exceeds max stake")
	}
	if p.RewardMultiplierBps > maxBps {
		return fmt.Errorf("reward multiplier bps out of range: %d", p.RewardMultiplierBps)
	}
	if p.SlashPenaltyBps > maxBps {
		return fmt.Errorf("slash penalty bps out of range: %d", p.SlashPenaltyBps)
	}
	return nil
}

// Participant aggregates a principal's position across all of their stakes.
// OwnedStakeIDs is append-only audit history; entries are never removed even
// after a stake leaves active accounting.
type Participant struct {
	Address          [20]byte `json:"address"`
	ActiveStaked     *big.Int `json:"activeStaked"`
	ClaimableRewards *big.Int `json:"claimableRewards"`
	OwnedStakeIDs    []uint64 `json:"ownedStakeIds"`
}

// Clone returns a deep copy of the participant record.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ActiveStaked = cloneBigInt(p.ActiveStaked)
	clone.ClaimableRewards = cloneBigInt(p.ClaimableRewards)
	clone.OwnedStakeIDs = append([]uint64(nil), p.OwnedStakeIDs...)
	return &clone
}

func ensureParticipant(p *Participant, addr [20]byte) *Participant {
	if p == nil {
		return &Participant{Address: addr, ActiveStaked: big.NewInt(0), ClaimableRewards: big.NewInt(0)}
	}
	if p.ActiveStaked == nil {
		p.ActiveStaked = big.NewInt(0)
	}
	if p.ClaimableRewards == nil {
		p.ClaimableRewards = big.NewInt(0)
	}
	return p
}

// ParticipantStats is the query-surface summary for a principal. The active
// stake count is recomputed by scanning the owned-id list on every call.
type ParticipantStats struct {
	ActiveStaked     *big.Int `json:"activeStaked"`
	ClaimableRewards *big.Int `json:"claimableRewards"`
	ActiveStakeCount int      `json:"activeStakeCount"`
}

// Totals carries the global aggregates maintained alongside the ledger.
// HeldBalance is the value currently custodied by the module: all stakes that
// were never paid back out plus the rewards reserve.
type Totals struct {
	TotalActiveStaked  *big.Int `json:"totalActiveStaked"`
	RewardsReserve     *big.Int `json:"rewardsReserve"`
	RewardsDistributed *big.Int `json:"rewardsDistributed"`
	HeldBalance        *big.Int `json:"heldBalance"`
}

// Clone returns a deep copy of the totals snapshot.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return nil
	}
	return &Totals{
		TotalActiveStaked:  cloneBigInt(t.TotalActiveStaked),
		RewardsReserve:     cloneBigInt(t.RewardsReserve),
		RewardsDistributed: cloneBigInt(t.RewardsDistributed),
		HeldBalance:        cloneBigInt(t.HeldBalance),
	}
}

func ensureTotals(t *Totals) *Totals {
	if t == nil {
		t = &Totals{}
	}
	if t.TotalActiveStaked == nil {
		t.TotalActiveStaked = big.NewInt(0)
	}
	if t.RewardsReserve == nil {
		t.RewardsReserve = big.NewInt(0)
	}
	if t.RewardsDistributed == nil {
		t.RewardsDistributed = big.NewInt(0)
	}
	if t.HeldBalance == nil {
		t.HeldBalance = big.NewInt(0)
	}
	return t
}

// Authority tracks the owning principal and the set of principals allowed to
// slash. The slasher list is kept sorted for deterministic persistence.
type Authority struct {
	Owner    [20]byte   `json:"owner"`
	Slashers [][20]byte `json:"slashers"`
}

// Clone returns a deep copy of the authority record.
func (a *Authority) Clone() *Authority {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Slashers = append([][20]byte(nil), a.Slashers...)
	return &clone
}

// IsAuthorizedToSlash reports whether the principal is the owner or a member
// of the authorized slasher set.
func (a *Authority) IsAuthorizedToSlash(addr [20]byte) bool {
	if a == nil {
		return false
	}
	if addr == a.Owner {
		return true
	}
	for _, slasher := range a.Slashers {
		if slasher == addr {
			return true
		}
	}
	return false
}

// AddSlasher inserts the principal into the authorized set, reporting whether
// the set changed. Adding an existing entry is a no-op.
func (a *Authority) AddSlasher(addr [20]byte) bool {
	if a == nil || addr == ([20]byte{}) {
		return false
	}
	idx := a.slasherIndex(addr)
	if idx >= 0 {
		return false
	}
	a.Slashers = append(a.Slashers, addr)
	sortAddresses(a.Slashers)
	return true
}

// RemoveSlasher deletes the principal from the authorized set, reporting
// whether the set changed. Removing an absent entry is a no-op.
func (a *Authority) RemoveSlasher(addr [20]byte) bool {
	if a == nil {
		return false
	}
	idx := a.slasherIndex(addr)
	if idx < 0 {
		return false
	}
	a.Slashers = append(a.Slashers[:idx], a.Slashers[idx+1:]...)
	return true
}

func (a *Authority) slasherIndex(addr [20]byte) int {
	for i, slasher := range a.Slashers {
		if slasher == addr {
			return i
		}
	}
	return -1
}

func sortAddresses(addrs [][20]byte) {
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && lessAddress(addrs[j], addrs[j-1]); j-- {
			addrs[j], addrs[j-1] = addrs[j-1], addrs[j]
		}
	}
}

func lessAddress(a, b [20]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
