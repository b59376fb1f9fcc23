package stakes

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"linkstake/storage"
)

const (
	keyStakePrefix       = "stakes/s/"
	keyParticipantPrefix = "stakes/p/"
	keyReferencePrefix   = "stakes/r/"
	keyNextID            = "stakes/meta/nextid"
	keyParams            = "stakes/meta/params"
	keyAuthority         = "stakes/meta/authority"
	keyTotals            = "stakes/meta/totals"
	keyPaused            = "stakes/meta/paused"
)

// Ledger is the authoritative store for stake records, participant aggregates
// and the reference index, persisted as JSON documents in a key-value backend.
// It performs no locking of its own; the engine serializes access.
type Ledger struct {
	db storage.Database
}

// NewLedger wraps the supplied database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func stakeKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return append([]byte(keyStakePrefix), buf...)
}

func participantKey(addr [20]byte) []byte {
	return []byte(keyParticipantPrefix + hex.EncodeToString(addr[:]))
}

func referenceKey(ref string) []byte {
	return []byte(keyReferencePrefix + ref)
}

func (l *Ledger) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := l.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", string(key), err)
	}
	return true, nil
}

func (l *Ledger) putJSON(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", string(key), err)
	}
	return l.db.Put(key, raw)
}

// AllocateID hands out the next stake id. Ids start at 1, increase
// monotonically and are never reused.
func (l *Ledger) AllocateID() (uint64, error) {
	var next uint64
	ok, err := l.getJSON([]byte(keyNextID), &next)
	if err != nil {
		return 0, err
	}
	if !ok {
		next = 1
	}
	if err := l.putJSON([]byte(keyNextID), next+1); err != nil {
		return 0, err
	}
	return next, nil
}

// PutStake persists a sanitized copy of the stake record.
func (l *Ledger) PutStake(s *Stake) error {
	sanitized, err := SanitizeStake(s)
	if err != nil {
		return err
	}
	return l.putJSON(stakeKey(sanitized.ID), sanitized)
}

// GetStake loads the stake with the given id.
func (l *Ledger) GetStake(id uint64) (*Stake, bool, error) {
	var s Stake
	ok, err := l.getJSON(stakeKey(id), &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return &s, true, nil
}

// Participant loads the aggregate record for a principal, returning a zeroed
// record when the principal has never staked.
func (l *Ledger) Participant(addr [20]byte) (*Participant, error) {
	var p Participant
	ok, err := l.getJSON(participantKey(addr), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ensureParticipant(nil, addr), nil
	}
	return ensureParticipant(&p, addr), nil
}

// PutParticipant persists the aggregate record for a principal.
func (l *Ledger) PutParticipant(p *Participant) error {
	if p == nil {
		return fmt.Errorf("nil participant")
	}
	return l.putJSON(participantKey(p.Address), p)
}

// ReferenceStakeIDs returns the append-only list of stake ids recorded against
// a referenced item id.
func (l *Ledger) ReferenceStakeIDs(ref string) ([]uint64, error) {
	var ids []uint64
	if _, err := l.getJSON(referenceKey(ref), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// AppendReference records a stake id under a referenced item id. Duplicate
// appends for the same stake are allowed; creation passes each entry of the
// stake's reference list through unfiltered.
func (l *Ledger) AppendReference(ref string, id uint64) error {
	ids, err := l.ReferenceStakeIDs(ref)
	if err != nil {
		return err
	}
	return l.putJSON(referenceKey(ref), append(ids, id))
}

// Totals loads the global aggregates, zeroed on first use.
func (l *Ledger) Totals() (*Totals, error) {
	var t Totals
	ok, err := l.getJSON([]byte(keyTotals), &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ensureTotals(nil), nil
	}
	return ensureTotals(&t), nil
}

// PutTotals persists the global aggregates.
func (l *Ledger) PutTotals(t *Totals) error {
	if t == nil {
		return fmt.Errorf("nil totals")
	}
	return l.putJSON([]byte(keyTotals), ensureTotals(t))
}

// Params loads the configured parameter set.
func (l *Ledger) Params() (*Params, bool, error) {
	var p Params
	ok, err := l.getJSON([]byte(keyParams), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &p, true, nil
}

// PutParams persists the parameter set after validation.
func (l *Ledger) PutParams(p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return l.putJSON([]byte(keyParams), p)
}

// Authority loads the ownership and slasher registry.
func (l *Ledger) Authority() (*Authority, bool, error) {
	var a Authority
	ok, err := l.getJSON([]byte(keyAuthority), &a)
	if err != nil || !ok {
		return nil, false, err
	}
	return &a, true, nil
}

// PutAuthority persists the ownership and slasher registry.
func (l *Ledger) PutAuthority(a *Authority) error {
	if a == nil {
		return fmt.Errorf("nil authority")
	}
	if a.Owner == ([20]byte{}) {
		return fmt.Errorf("authority owner must be set")
	}
	return l.putJSON([]byte(keyAuthority), a)
}

// Initialize seeds the authority and parameter records on first boot. Records
// that already exist are left untouched so restarts never clobber state that
// admin operations have since changed.
func (l *Ledger) Initialize(owner [20]byte, params *Params) error {
	_, ok, err := l.Authority()
	if err != nil {
		return err
	}
	if !ok {
		if err := l.PutAuthority(&Authority{Owner: owner}); err != nil {
			return err
		}
	}
	_, ok, err = l.Params()
	if err != nil {
		return err
	}
	if !ok {
		if err := l.PutParams(params); err != nil {
			return err
		}
	}
	return nil
}

// CreationPaused reports whether stake creation is currently suspended. The
// flag gates creation only; resolution, slashing, withdrawal and claims stay
// live while paused.
func (l *Ledger) CreationPaused() (bool, error) {
	var paused bool
	if _, err := l.getJSON([]byte(keyPaused), &paused); err != nil {
		return false, err
	}
	return paused, nil
}

// SetCreationPaused persists the creation suspension flag.
func (l *Ledger) SetCreationPaused(paused bool) error {
	return l.putJSON([]byte(keyPaused), paused)
}
