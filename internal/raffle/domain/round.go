package domain

import (
	"errors"
	"fmt"
	"time"
)

// State describes the lifecycle state of a round.
type State int

const (
	// StateUnspecified represents an invalid round state value.
	StateUnspecified State = iota
	// StateOpen indicates the round accepts entries and may become eligible
	// for settlement.
	StateOpen
	// StateSettling indicates admission is blocked while the round awaits a
	// randomness fulfillment.
	StateSettling
)

// String returns the canonical textual form of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateSettling:
		return "SETTLING"
	case StateUnspecified:
		return "UNSPECIFIED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// ParseState maps a canonical textual form back to a State.
func ParseState(value string) (State, error) {
	switch value {
	case "OPEN":
		return StateOpen, nil
	case "SETTLING":
		return StateSettling, nil
	default:
		return StateUnspecified, fmt.Errorf("unknown round state %q", value)
	}
}

// Address identifies a payable participant account.
type Address string

// Amount is a monetary value in the smallest currency unit.
type Amount int64

var (
	// ErrInsufficientFee indicates an entry amount below the entrance fee.
	ErrInsufficientFee = errors.New("entry amount is below the entrance fee")
	// ErrRoundNotOpen indicates an entry attempted while the round is settling.
	ErrRoundNotOpen = errors.New("round is not open for entries")
	// ErrIndexOutOfRange indicates a participant lookup past the end of the list.
	ErrIndexOutOfRange = errors.New("participant index is out of range")
	// ErrEmptyAddress indicates a missing participant address.
	ErrEmptyAddress = errors.New("participant address is required")
	// ErrInvalidEntranceFee indicates a non-positive entrance fee.
	ErrInvalidEntranceFee = errors.New("entrance fee must be greater than zero")
	// ErrInvalidInterval indicates a non-positive round interval.
	ErrInvalidInterval = errors.New("round interval must be greater than zero")
)

// Round is the single live raffle round. Participants keep insertion order
// and duplicates are allowed; the pool equals the sum of entry amounts while
// the round is open.
type Round struct {
	Number       int64
	EntranceFee  Amount
	Interval     time.Duration
	State        State
	OpenedAt     time.Time
	Participants []Address
	Pool         Amount
}

// NewRound creates an open round with no participants and an empty pool.
func NewRound(number int64, entranceFee Amount, interval time.Duration, now time.Time) (Round, error) {
	if entranceFee <= 0 {
		return Round{}, ErrInvalidEntranceFee
	}
	if interval <= 0 {
		return Round{}, ErrInvalidInterval
	}
	return Round{
		Number:      number,
		EntranceFee: entranceFee,
		Interval:    interval,
		State:       StateOpen,
		OpenedAt:    now.UTC(),
	}, nil
}

// Enter registers payer for the current round and adds amount to the pool.
// The round is left untouched when validation fails.
func (r *Round) Enter(payer Address, amount Amount) error {
	if payer == "" {
		return ErrEmptyAddress
	}
	if amount < r.EntranceFee {
		return ErrInsufficientFee
	}
	switch r.State {
	case StateOpen:
	case StateSettling, StateUnspecified:
		return ErrRoundNotOpen
	default:
		return ErrRoundNotOpen
	}
	r.Participants = append(r.Participants, payer)
	r.Pool += amount
	return nil
}

// ParticipantAt returns the participant at index in insertion order.
func (r *Round) ParticipantAt(index int) (Address, error) {
	if index < 0 || index >= len(r.Participants) {
		return "", ErrIndexOutOfRange
	}
	return r.Participants[index], nil
}

// Eligible reports whether the round can be closed: the interval elapsed
// since it opened, the round is open, and both funds and participants exist.
func (r *Round) Eligible(now time.Time) bool {
	return now.Sub(r.OpenedAt) > r.Interval &&
		r.State == StateOpen &&
		r.Pool > 0 &&
		len(r.Participants) > 0
}

// CheckEligible returns nil when the round can be closed and a
// NotEligibleError carrying the current balance, participant count, and
// state otherwise.
func (r *Round) CheckEligible(now time.Time) error {
	if r.Eligible(now) {
		return nil
	}
	return &NotEligibleError{
		Balance:      r.Pool,
		Participants: len(r.Participants),
		State:        r.State,
	}
}

// Clone returns a deep copy of the round.
func (r Round) Clone() Round {
	clone := r
	if r.Participants != nil {
		clone.Participants = append([]Address(nil), r.Participants...)
	}
	return clone
}
