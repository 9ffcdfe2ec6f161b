package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadySettling indicates a close attempt while a settlement request
	// is already outstanding.
	ErrAlreadySettling = errors.New("a settlement request is already outstanding")
	// ErrNoParticipants indicates a settlement attempt against an empty
	// participant list. Eligibility is checked at request time, so hitting
	// this during fulfillment means the aggregate was corrupted.
	ErrNoParticipants = errors.New("round has no participants to settle")
	// ErrNotSettling indicates a settlement or cancel attempt while the round
	// is not awaiting a fulfillment.
	ErrNotSettling = errors.New("round is not settling")
)

// NotEligibleError reports why a close request was refused, carrying the
// values the caller needs to decide whether to retry later.
type NotEligibleError struct {
	Balance      Amount
	Participants int
	State        State
}

// Error implements the error interface.
func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("round is not eligible for settlement: balance=%d participants=%d state=%s",
		e.Balance, e.Participants, e.State)
}

// UnknownRequestError reports a fulfillment whose request id does not match
// the single outstanding settlement request.
type UnknownRequestError struct {
	RequestID string
}

// Error implements the error interface.
func (e *UnknownRequestError) Error() string {
	return fmt.Sprintf("no outstanding settlement request matches %q", e.RequestID)
}

// PayoutFailedError reports a rejected pool transfer. The round stays in the
// settling state and requires operator intervention.
type PayoutFailedError struct {
	Winner Address
	Payout Amount
	Err    error
}

// Error implements the error interface.
func (e *PayoutFailedError) Error() string {
	return fmt.Sprintf("payout of %d to %s failed: %v", e.Payout, e.Winner, e.Err)
}

// Unwrap returns the underlying transfer error.
func (e *PayoutFailedError) Unwrap() error {
	return e.Err
}

// SettlementRequest correlates one issued randomness request with its
// fulfillment. At most one may be outstanding per round.
type SettlementRequest struct {
	ID       string
	IssuedAt time.Time
}

// WinnerRecord captures the outcome of a settled round. It is overwritten
// each round and used only for external observation.
type WinnerRecord struct {
	RoundNumber int64
	Address     Address
	Payout      Amount
	SettledAt   time.Time
}

// BeginSettlement transitions the round from open to settling. Eligibility
// must be re-checked by the caller immediately before this call.
func (r *Round) BeginSettlement() error {
	switch r.State {
	case StateOpen:
		r.State = StateSettling
		return nil
	case StateSettling:
		return ErrAlreadySettling
	default:
		return &NotEligibleError{Balance: r.Pool, Participants: len(r.Participants), State: r.State}
	}
}

// WinnerIndex selects the winning participant index for the delivered random
// word. Selection is deterministic: any two words congruent modulo the
// participant count pick the same index.
func (r *Round) WinnerIndex(word uint64) (int, error) {
	if len(r.Participants) == 0 {
		return 0, ErrNoParticipants
	}
	return int(word % uint64(len(r.Participants))), nil
}

// Settle selects the winner for the delivered random word, records the
// outcome, and resets the round in place: participants cleared, pool zeroed,
// round number advanced, state back to open. The caller attempts the payout
// transfer after this state reset commits, never before.
func (r *Round) Settle(word uint64, now time.Time) (WinnerRecord, error) {
	if r.State != StateSettling {
		return WinnerRecord{}, ErrNotSettling
	}
	index, err := r.WinnerIndex(word)
	if err != nil {
		return WinnerRecord{}, err
	}
	record := WinnerRecord{
		RoundNumber: r.Number,
		Address:     r.Participants[index],
		Payout:      r.Pool,
		SettledAt:   now.UTC(),
	}
	r.reopen(now)
	return record, nil
}

// CancelSettlement abandons a stuck settling round and reopens a fresh one.
// The abandoned pool is not refunded here; reconciliation is an operator
// concern driven by the settlement journal.
func (r *Round) CancelSettlement(now time.Time) error {
	if r.State != StateSettling {
		return ErrNotSettling
	}
	r.reopen(now)
	return nil
}

func (r *Round) reopen(now time.Time) {
	r.Number++
	r.State = StateOpen
	r.OpenedAt = now.UTC()
	r.Participants = nil
	r.Pool = 0
}
