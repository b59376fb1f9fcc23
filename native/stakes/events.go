package stakes

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"linkstake/core/types"
)

const (
	EventTypeStakeCreated         = "stakes.created"
	EventTypeStakeResolved        = "stakes.resolved"
	EventTypeStakeSlashed         = "stakes.slashed"
	EventTypeStakeWithdrawn       = "stakes.withdrawn"
	EventTypeRewardsClaimed       = "stakes.rewardsClaimed"
	EventTypeReserveFunded        = "stakes.reserveFunded"
	EventTypeCreationPaused       = "stakes.creationPaused"
	EventTypeSlasherAdded         = "stakes.slasherAdded"
	EventTypeSlasherRemoved       = "stakes.slasherRemoved"
	EventTypeOwnershipTransferred = "stakes.ownershipTransferred"
	EventTypeEmergencyWithdrawal  = "stakes.emergencyWithdrawal"
)

type stakeEvent struct {
	evt *types.Event
}

func (e stakeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stakeEvent) Event() *types.Event { return e.evt }

func newEvent(eventType string, attrs map[string]string) *types.Event {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	// Unique id per emission so downstream indexers can deduplicate replays.
	attrs["eventId"] = uuid.NewString()
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewCreatedEvent returns the canonical payload for a newly created stake.
func NewCreatedEvent(s *Stake) *types.Event {
	if s == nil {
		return newEvent(EventTypeStakeCreated, nil)
	}
	return newEvent(EventTypeStakeCreated, map[string]string{
		"id":            strconv.FormatUint(s.ID, 10),
		"staker":        hex.EncodeToString(s.Staker[:]),
		"referencedIds": strings.Join(s.ReferencedIDs, ","),
		"amount":        cloneBigInt(s.Amount).String(),
		"rationale":     s.Rationale,
		"createdAt":     strconv.FormatInt(s.CreatedAt, 10),
	})
}

// NewResolvedEvent returns the payload emitted when the resolver settles a
// stake as successful or failed.
func NewResolvedEvent(s *Stake, successful bool) *types.Event {
	if s == nil {
		return newEvent(EventTypeStakeResolved, nil)
	}
	return newEvent(EventTypeStakeResolved, map[string]string{
		"id":           strconv.FormatUint(s.ID, 10),
		"staker":       hex.EncodeToString(s.Staker[:]),
		"successful":   strconv.FormatBool(successful),
		"rewardAmount": cloneBigInt(s.RewardAmount).String(),
	})
}

// NewSlashedEvent returns the payload emitted when a stake is forcibly
// terminated, including the identity of the acting slasher.
func NewSlashedEvent(s *Stake, slasher [20]byte, reason string) *types.Event {
	if s == nil {
		return newEvent(EventTypeStakeSlashed, nil)
	}
	attrs := map[string]string{
		"id":          strconv.FormatUint(s.ID, 10),
		"staker":      hex.EncodeToString(s.Staker[:]),
		"slashAmount": cloneBigInt(s.SlashAmount).String(),
		"slasher":     hex.EncodeToString(slasher[:]),
	}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		attrs["reason"] = trimmed
	}
	return newEvent(EventTypeStakeSlashed, attrs)
}

// NewWithdrawnEvent returns the payload emitted when a resolved stake is paid
// back to its staker.
func NewWithdrawnEvent(s *Stake) *types.Event {
	if s == nil {
		return newEvent(EventTypeStakeWithdrawn, nil)
	}
	return newEvent(EventTypeStakeWithdrawn, map[string]string{
		"id":     strconv.FormatUint(s.ID, 10),
		"staker": hex.EncodeToString(s.Staker[:]),
		"amount": cloneBigInt(s.Amount).String(),
	})
}

// NewRewardsClaimedEvent returns the payload emitted when accrued rewards are
// paid out to a participant.
func NewRewardsClaimedEvent(staker [20]byte, amount string) *types.Event {
	return newEvent(EventTypeRewardsClaimed, map[string]string{
		"staker": hex.EncodeToString(staker[:]),
		"amount": amount,
	})
}

// NewReserveFundedEvent returns the payload emitted when the owner tops up the
// rewards reserve.
func NewReserveFundedEvent(owner [20]byte, amount, reserve string) *types.Event {
	return newEvent(EventTypeReserveFunded, map[string]string{
		"owner":   hex.EncodeToString(owner[:]),
		"amount":  amount,
		"reserve": reserve,
	})
}

// NewCreationPausedEvent returns the payload emitted when creation is
// suspended or resumed.
func NewCreationPausedEvent(paused bool) *types.Event {
	return newEvent(EventTypeCreationPaused, map[string]string{
		"paused": strconv.FormatBool(paused),
	})
}

// NewSlasherAddedEvent returns the payload emitted when a slasher is granted.
func NewSlasherAddedEvent(slasher [20]byte) *types.Event {
	return newEvent(EventTypeSlasherAdded, map[string]string{
		"slasher": hex.EncodeToString(slasher[:]),
	})
}

// NewSlasherRemovedEvent returns the payload emitted when a slasher is
// revoked.
func NewSlasherRemovedEvent(slasher [20]byte) *types.Event {
	return newEvent(EventTypeSlasherRemoved, map[string]string{
		"slasher": hex.EncodeToString(slasher[:]),
	})
}

// NewOwnershipTransferredEvent returns the payload emitted when ownership
// moves to a new principal.
func NewOwnershipTransferredEvent(previous, next [20]byte) *types.Event {
	return newEvent(EventTypeOwnershipTransferred, map[string]string{
		"previousOwner": hex.EncodeToString(previous[:]),
		"newOwner":      hex.EncodeToString(next[:]),
	})
}

// NewEmergencyWithdrawalEvent returns the payload emitted when the owner
// drains the custodied balance.
func NewEmergencyWithdrawalEvent(owner [20]byte, amount string) *types.Event {
	return newEvent(EventTypeEmergencyWithdrawal, map[string]string{
		"owner":  hex.EncodeToString(owner[:]),
		"amount": amount,
	})
}
