package stakes

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"linkstake/core/events"
	"linkstake/core/types"
)

var (
	errNilLedger   = errors.New("stakes engine: ledger not configured")
	errNilTransfer = errors.New("stakes engine: value transfer not configured")
)

// ValueTransfer is the custody collaborator. Deposit pulls an attached payment
// into module custody, Send pushes custodied value out. Both are synchronous;
// a returned error means no value moved.
type ValueTransfer interface {
	Deposit(from [20]byte, amount *big.Int) error
	Send(to [20]byte, amount *big.Int) error
}

// Engine implements the stake lifecycle: creation, resolution, slashing,
// withdrawal and reward claims, together with the owner's administrative
// surface. A single mutex serializes every operation so the read-modify-write
// sequences over the ledger and participant aggregates appear atomic to all
// callers.
type Engine struct {
	mu       sync.Mutex
	ledger   *Ledger
	transfer ValueTransfer
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine creates a stakes engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine(ledger *Ledger, transfer ValueTransfer) *Engine {
	return &Engine{
		ledger:   ledger,
		transfer: transfer,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(stakeEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.ledger == nil {
		return errNilLedger
	}
	if e.transfer == nil {
		return errNilTransfer
	}
	return nil
}

func (e *Engine) requireOwner(caller [20]byte) (*Authority, error) {
	authority, ok, err := e.ledger.Authority()
	if err != nil {
		return nil, err
	}
	if !ok || caller != authority.Owner {
		return nil, ErrNotAuthorized
	}
	return authority, nil
}

func (e *Engine) params() (*Params, error) {
	params, ok, err := e.ledger.Params()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("stakes engine: parameters not configured")
	}
	return params, nil
}

// Create validates and records a new active stake, taking the attached
// payment into custody. The attached payment must equal the stated amount.
func (e *Engine) Create(staker [20]byte, referencedIDs []string, amount *big.Int, rationale string, attachedPayment *big.Int) (*Stake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	paused, err := e.ledger.CreationPaused()
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, ErrCreationPaused
	}
	if len(referencedIDs) < minReferencedIDs {
		return nil, ErrInsufficientReferences
	}
	if strings.TrimSpace(rationale) == "" {
		return nil, ErrEmptyRationale
	}
	amt := cloneBigInt(amount)
	if attachedPayment == nil || attachedPayment.Cmp(amt) != 0 {
		return nil, ErrPaymentMismatch
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	if amt.Cmp(params.MinStake) < 0 {
		return nil, ErrAmountTooLow
	}
	if amt.Cmp(params.MaxStake) > 0 {
		return nil, ErrAmountTooHigh
	}

	// Pull custody before any ledger write: a failed deposit leaves no state
	// to unwind.
	if err := e.transfer.Deposit(staker, amt); err != nil {
		return nil, transferErr(err)
	}

	id, err := e.ledger.AllocateID()
	if err != nil {
		return nil, err
	}
	stake := &Stake{
		ID:            id,
		Staker:        staker,
		ReferencedIDs: append([]string(nil), referencedIDs...),
		Amount:        amt,
		Rationale:     rationale,
		CreatedAt:     e.now(),
		Status:        StatusActive,
		RewardAmount:  big.NewInt(0),
		SlashAmount:   big.NewInt(0),
	}
	if err := e.ledger.PutStake(stake); err != nil {
		return nil, err
	}
	participant, err := e.ledger.Participant(staker)
	if err != nil {
		return nil, err
	}
	participant.OwnedStakeIDs = append(participant.OwnedStakeIDs, id)
	participant.ActiveStaked = new(big.Int).Add(participant.ActiveStaked, amt)
	if err := e.ledger.PutParticipant(participant); err != nil {
		return nil, err
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	totals.TotalActiveStaked = new(big.Int).Add(totals.TotalActiveStaked, amt)
	totals.HeldBalance = new(big.Int).Add(totals.HeldBalance, amt)
	if err := e.ledger.PutTotals(totals); err != nil {
		return nil, err
	}
	for _, ref := range stake.ReferencedIDs {
		if err := e.ledger.AppendReference(ref, id); err != nil {
			return nil, err
		}
	}
	e.emit(NewCreatedEvent(stake))
	return stake.Clone(), nil
}

func (e *Engine) loadActive(id uint64) (*Stake, error) {
	stake, ok, err := e.ledger.GetStake(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if stake.Status != StatusActive {
		return nil, ErrNotActive
	}
	return stake, nil
}

// ResolveSuccessful settles an active stake in the staker's favour, accruing
// the basis-point reward to their claimable balance. Owner only.
func (e *Engine) ResolveSuccessful(caller [20]byte, id uint64) (*Stake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	stake, err := e.loadActive(id)
	if err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	reward := applyBps(stake.Amount, params.RewardMultiplierBps)
	stake.Status = StatusSuccessful
	stake.RewardAmount = reward
	if err := e.ledger.PutStake(stake); err != nil {
		return nil, err
	}
	if reward.Sign() > 0 {
		participant, err := e.ledger.Participant(stake.Staker)
		if err != nil {
			return nil, err
		}
		participant.ClaimableRewards = new(big.Int).Add(participant.ClaimableRewards, reward)
		if err := e.ledger.PutParticipant(participant); err != nil {
			return nil, err
		}
		totals, err := e.ledger.Totals()
		if err != nil {
			return nil, err
		}
		totals.RewardsDistributed = new(big.Int).Add(totals.RewardsDistributed, reward)
		if err := e.ledger.PutTotals(totals); err != nil {
			return nil, err
		}
	}
	e.emit(NewResolvedEvent(stake, true))
	return stake.Clone(), nil
}

// ResolveFailed settles an active stake against the claim. No balances move;
// the staker may withdraw the principal once the lock elapses. Owner only.
func (e *Engine) ResolveFailed(caller [20]byte, id uint64) (*Stake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	stake, err := e.loadActive(id)
	if err != nil {
		return nil, err
	}
	stake.Status = StatusFailed
	if err := e.ledger.PutStake(stake); err != nil {
		return nil, err
	}
	e.emit(NewResolvedEvent(stake, false))
	return stake.Clone(), nil
}

// Slash forcibly terminates an active stake. The full amount leaves active
// accounting; the recorded slash amount is a derived audit figure only, and
// no refund path exists for slashed stakes. Owner or any authorized slasher.
func (e *Engine) Slash(caller [20]byte, id uint64, reason string) (*Stake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	authority, ok, err := e.ledger.Authority()
	if err != nil {
		return nil, err
	}
	if !ok || !authority.IsAuthorizedToSlash(caller) {
		return nil, ErrNotAuthorized
	}
	stake, err := e.loadActive(id)
	if err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	stake.Status = StatusSlashed
	stake.SlashAmount = applyBps(stake.Amount, params.SlashPenaltyBps)
	if err := e.ledger.PutStake(stake); err != nil {
		return nil, err
	}
	participant, err := e.ledger.Participant(stake.Staker)
	if err != nil {
		return nil, err
	}
	participant.ActiveStaked = new(big.Int).Sub(participant.ActiveStaked, stake.Amount)
	if err := e.ledger.PutParticipant(participant); err != nil {
		return nil, err
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	totals.TotalActiveStaked = new(big.Int).Sub(totals.TotalActiveStaked, stake.Amount)
	if err := e.ledger.PutTotals(totals); err != nil {
		return nil, err
	}
	e.emit(NewSlashedEvent(stake, caller, reason))
	return stake.Clone(), nil
}

// Withdraw pays a resolved stake's principal back to its staker after the
// lock duration. The status flip and aggregate updates are applied before the
// outbound transfer and rolled back in full if the transfer fails.
func (e *Engine) Withdraw(caller [20]byte, id uint64) (*Stake, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stake, ok, err := e.ledger.GetStake(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if caller != stake.Staker {
		return nil, ErrNotOwner
	}
	if stake.Status != StatusSuccessful && stake.Status != StatusFailed {
		return nil, ErrNotResolved
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	if e.now() < stake.CreatedAt+int64(params.LockDuration) {
		return nil, ErrLockNotElapsed
	}
	participant, err := e.ledger.Participant(stake.Staker)
	if err != nil {
		return nil, err
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	prevStake := stake.Clone()
	prevParticipant := participant.Clone()
	prevTotals := totals.Clone()

	stake.Status = StatusWithdrawn
	participant.ActiveStaked = new(big.Int).Sub(participant.ActiveStaked, stake.Amount)
	totals.TotalActiveStaked = new(big.Int).Sub(totals.TotalActiveStaked, stake.Amount)
	totals.HeldBalance = new(big.Int).Sub(totals.HeldBalance, stake.Amount)
	if err := e.ledger.PutStake(stake); err != nil {
		return nil, err
	}
	if err := e.ledger.PutParticipant(participant); err != nil {
		return nil, err
	}
	if err := e.ledger.PutTotals(totals); err != nil {
		return nil, err
	}
	if err := e.transfer.Send(stake.Staker, stake.Amount); err != nil {
		if rbErr := e.rollbackStake(prevStake, prevParticipant, prevTotals); rbErr != nil {
			return nil, rbErr
		}
		return nil, transferErr(err)
	}
	e.emit(NewWithdrawnEvent(stake))
	return stake.Clone(), nil
}

// Claim pays out a participant's entire claimable reward balance. The balance
// is zeroed before the outbound transfer so a reentrant or concurrent claim
// observes nothing left to pay; a failed transfer restores the balance.
func (e *Engine) Claim(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	participant, err := e.ledger.Participant(caller)
	if err != nil {
		return nil, err
	}
	due := cloneBigInt(participant.ClaimableRewards)
	if due.Sign() == 0 {
		return nil, ErrNoRewardsDue
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	if totals.RewardsReserve.Cmp(due) < 0 {
		return nil, ErrInsufficientReserve
	}
	prevParticipant := participant.Clone()
	prevTotals := totals.Clone()

	participant.ClaimableRewards = big.NewInt(0)
	totals.RewardsReserve = new(big.Int).Sub(totals.RewardsReserve, due)
	totals.HeldBalance = new(big.Int).Sub(totals.HeldBalance, due)
	if err := e.ledger.PutParticipant(participant); err != nil {
		return nil, err
	}
	if err := e.ledger.PutTotals(totals); err != nil {
		return nil, err
	}
	if err := e.transfer.Send(caller, due); err != nil {
		if rbErr := e.rollbackStake(nil, prevParticipant, prevTotals); rbErr != nil {
			return nil, rbErr
		}
		return nil, transferErr(err)
	}
	e.emit(NewRewardsClaimedEvent(caller, due.String()))
	return due, nil
}

func (e *Engine) rollbackStake(stake *Stake, participant *Participant, totals *Totals) error {
	if stake != nil {
		if err := e.ledger.PutStake(stake); err != nil {
			return err
		}
	}
	if participant != nil {
		if err := e.ledger.PutParticipant(participant); err != nil {
			return err
		}
	}
	if totals != nil {
		if err := e.ledger.PutTotals(totals); err != nil {
			return err
		}
	}
	return nil
}

// UpdateParams overwrites the global parameter set wholesale. Owner only.
func (e *Engine) UpdateParams(caller [20]byte, params *Params) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if params == nil {
		return ErrValidation
	}
	if err := params.Validate(); err != nil {
		return ErrValidation
	}
	return e.ledger.PutParams(params.Clone())
}

// FundReserve tops up the pool backing reward payouts. The attached payment
// must equal the stated amount. Owner only.
func (e *Engine) FundReserve(caller [20]byte, amount, attachedPayment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrValidation
	}
	if attachedPayment == nil || attachedPayment.Cmp(amt) != 0 {
		return ErrPaymentMismatch
	}
	if err := e.transfer.Deposit(caller, amt); err != nil {
		return transferErr(err)
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return err
	}
	totals.RewardsReserve = new(big.Int).Add(totals.RewardsReserve, amt)
	totals.HeldBalance = new(big.Int).Add(totals.HeldBalance, amt)
	if err := e.ledger.PutTotals(totals); err != nil {
		return err
	}
	e.emit(NewReserveFundedEvent(caller, amt.String(), totals.RewardsReserve.String()))
	return nil
}

// EmergencyWithdraw drains the entire custodied balance to the owner. There is
// deliberately no check for outstanding claimable rewards or pending
// withdrawals; after this call, claims and withdrawals will fail until the
// reserve is refunded. Owner only.
func (e *Engine) EmergencyWithdraw(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	authority, err := e.requireOwner(caller)
	if err != nil {
		return nil, err
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	drained := cloneBigInt(totals.HeldBalance)
	if drained.Sign() == 0 {
		return big.NewInt(0), nil
	}
	prevTotals := totals.Clone()
	totals.HeldBalance = big.NewInt(0)
	totals.RewardsReserve = big.NewInt(0)
	if err := e.ledger.PutTotals(totals); err != nil {
		return nil, err
	}
	if err := e.transfer.Send(authority.Owner, drained); err != nil {
		if rbErr := e.rollbackStake(nil, nil, prevTotals); rbErr != nil {
			return nil, rbErr
		}
		return nil, transferErr(err)
	}
	e.emit(NewEmergencyWithdrawalEvent(authority.Owner, drained.String()))
	return drained, nil
}

// SetCreationPaused toggles whether new stakes may be created. The flag has
// no effect on resolution, slashing, withdrawal or claims. Owner only.
func (e *Engine) SetCreationPaused(caller [20]byte, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	current, err := e.ledger.CreationPaused()
	if err != nil {
		return err
	}
	if current == paused {
		return nil
	}
	if err := e.ledger.SetCreationPaused(paused); err != nil {
		return err
	}
	e.emit(NewCreationPausedEvent(paused))
	return nil
}

// AddSlasher grants a principal the right to slash. Idempotent. Owner only.
func (e *Engine) AddSlasher(caller, slasher [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	authority, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if !authority.AddSlasher(slasher) {
		return nil
	}
	if err := e.ledger.PutAuthority(authority); err != nil {
		return err
	}
	e.emit(NewSlasherAddedEvent(slasher))
	return nil
}

// RemoveSlasher revokes a principal's right to slash. Idempotent. Owner only.
func (e *Engine) RemoveSlasher(caller, slasher [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	authority, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if !authority.RemoveSlasher(slasher) {
		return nil
	}
	if err := e.ledger.PutAuthority(authority); err != nil {
		return err
	}
	e.emit(NewSlasherRemovedEvent(slasher))
	return nil
}

// TransferOwnership hands the owning role to a new principal. Owner only.
func (e *Engine) TransferOwnership(caller, next [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	authority, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return ErrValidation
	}
	previous := authority.Owner
	if previous == next {
		return nil
	}
	authority.Owner = next
	if err := e.ledger.PutAuthority(authority); err != nil {
		return err
	}
	e.emit(NewOwnershipTransferredEvent(previous, next))
	return nil
}

// GetStake returns a copy of the stored stake record.
func (e *Engine) GetStake(id uint64) (*Stake, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	stake, ok, err := e.ledger.GetStake(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return stake.Clone(), nil
}

// StakesForReference returns every stake recorded against a referenced item
// id, in creation order.
func (e *Engine) StakesForReference(ref string) ([]*Stake, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ids, err := e.ledger.ReferenceStakeIDs(ref)
	if err != nil {
		return nil, err
	}
	return e.loadStakes(ids)
}

// StakesForParticipant returns every stake a principal has ever created, in
// creation order.
func (e *Engine) StakesForParticipant(addr [20]byte) ([]*Stake, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	participant, err := e.ledger.Participant(addr)
	if err != nil {
		return nil, err
	}
	return e.loadStakes(participant.OwnedStakeIDs)
}

func (e *Engine) loadStakes(ids []uint64) ([]*Stake, error) {
	out := make([]*Stake, 0, len(ids))
	for _, id := range ids {
		stake, ok, err := e.ledger.GetStake(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, stake.Clone())
		}
	}
	return out, nil
}

// ParticipantStats summarises a principal's position. The active stake count
// is recomputed by scanning the owned-id list, an O(n) walk over every stake
// the principal has ever created.
func (e *Engine) ParticipantStats(addr [20]byte) (*ParticipantStats, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	participant, err := e.ledger.Participant(addr)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, id := range participant.OwnedStakeIDs {
		stake, ok, err := e.ledger.GetStake(id)
		if err != nil {
			return nil, err
		}
		if ok && stake.Status == StatusActive {
			active++
		}
	}
	return &ParticipantStats{
		ActiveStaked:     cloneBigInt(participant.ActiveStaked),
		ClaimableRewards: cloneBigInt(participant.ClaimableRewards),
		ActiveStakeCount: active,
	}, nil
}

// Params returns the configured parameter set.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	params, err := e.params()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}

// Authority returns the ownership and slasher registry.
func (e *Engine) Authority() (*Authority, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	authority, ok, err := e.ledger.Authority()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("stakes engine: authority not configured")
	}
	return authority.Clone(), nil
}

// Totals returns a snapshot of the global aggregates.
func (e *Engine) Totals() (*Totals, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	totals, err := e.ledger.Totals()
	if err != nil {
		return nil, err
	}
	return totals.Clone(), nil
}

// CreationPaused reports whether stake creation is suspended.
func (e *Engine) CreationPaused() (bool, error) {
	if e == nil || e.ledger == nil {
		return false, errNilLedger
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.CreationPaused()
}
