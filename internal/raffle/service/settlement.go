package service

import (
	"context"
	"fmt"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/journal"
	"github.com/louisbranch/prizewheel/internal/raffle/observability/audit"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
)

// EvaluateEligibility reports whether the live round satisfies every
// settlement condition right now. It never mutates state.
func (r *Raffle) EvaluateEligibility() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.Eligible(r.clock())
}

// RequestClose transitions an eligible round to settling and issues one
// randomness request. It returns the request id the fulfillment will carry.
//
// Eligibility is re-checked here, under the same lock that admits entries,
// so a round that drained between an external eligibility probe and this
// call is rejected rather than settled. A second close attempt while a
// request is outstanding fails with ErrAlreadySettling before any call to
// the randomness source.
func (r *Raffle) RequestClose(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outstanding != nil || r.round.State == domain.StateSettling {
		return "", domain.ErrAlreadySettling
	}
	now := r.clock()
	if err := r.round.CheckEligible(now); err != nil {
		return "", err
	}
	if r.source == nil {
		return "", fmt.Errorf("no randomness source is bound")
	}

	working := r.round.Clone()
	if err := working.BeginSettlement(); err != nil {
		return "", err
	}

	requestID, err := r.source.RequestRandomness(ctx, r.request)
	if err != nil {
		return "", fmt.Errorf("request randomness: %w", err)
	}

	if err := r.persistRound(ctx, working, requestID); err != nil {
		// The request is already in flight; its fulfillment will be
		// rejected as unknown because the transition never commits.
		return "", fmt.Errorf("persist settling round: %w", err)
	}
	r.round = working
	r.outstanding = &domain.SettlementRequest{ID: requestID, IssuedAt: now}

	r.journalAppend(ctx, journal.Entry{
		RequestID:   requestID,
		Kind:        journal.KindIssued,
		RoundNumber: working.Number,
		At:          now.UTC(),
	})
	r.emit(ctx, audit.CloseRequested(working.Number, requestID))
	return requestID, nil
}

// Settle consumes a randomness fulfillment: it picks the winner, resets the
// round for the next cycle, and pays out the pool. It implements
// randomness.Sink.
//
// The outstanding request is consumed even when the payout fails; in that
// case the round is restored to settling with its pool and participants
// intact and stays there until an operator cancels the settlement.
func (r *Raffle) Settle(ctx context.Context, requestID string, words []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outstanding == nil || r.outstanding.ID != requestID {
		return &domain.UnknownRequestError{RequestID: requestID}
	}
	if len(words) == 0 {
		return fmt.Errorf("fulfillment for request %s carries no random words", requestID)
	}

	now := r.clock()
	snapshot := r.round.Clone()
	working := r.round.Clone()
	record, err := working.Settle(words[0], now)
	if err != nil {
		return fmt.Errorf("settle round %d: %w", r.round.Number, err)
	}

	// Commit the reset before touching the treasury so that nothing observed
	// during the transfer can re-enter the settled round.
	r.round = working
	r.outstanding = nil

	if err := r.gateway.Transfer(ctx, record.Address, record.Payout); err != nil {
		r.round = snapshot
		if perr := r.persistRound(ctx, snapshot, ""); perr != nil {
			r.logf("persist stuck round %d: %v", snapshot.Number, perr)
		}
		r.journalAppend(ctx, journal.Entry{
			RequestID:   requestID,
			Kind:        journal.KindPayoutFailed,
			RoundNumber: snapshot.Number,
			Detail:      err.Error(),
			At:          now.UTC(),
		})
		return &domain.PayoutFailedError{Winner: record.Address, Payout: record.Payout, Err: err}
	}

	r.lastWinner = &record
	if r.store != nil {
		if err := r.store.PutWinner(ctx, storage.WinnerRecord(record)); err != nil {
			r.logf("persist winner for round %d: %v", record.RoundNumber, err)
		}
	}
	if err := r.persistRound(ctx, working, ""); err != nil {
		r.logf("persist reopened round %d: %v", working.Number, err)
	}

	r.journalAppend(ctx, journal.Entry{
		RequestID:   requestID,
		Kind:        journal.KindFulfilled,
		RoundNumber: record.RoundNumber,
		At:          now.UTC(),
	})
	r.emit(ctx, audit.WinnerPicked(record))
	return nil
}

// CancelSettlement is an operator escape hatch for a settlement stuck on a
// failed payout or a lost fulfillment. It abandons the outstanding request,
// if any, and opens a fresh round; the abandoned pool is reconciled by the
// operator from the settlement journal.
func (r *Raffle) CancelSettlement(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	cancelled := r.round.Number
	working := r.round.Clone()
	if err := working.CancelSettlement(now); err != nil {
		return err
	}
	if err := r.persistRound(ctx, working, ""); err != nil {
		return fmt.Errorf("persist reopened round: %w", err)
	}

	abandoned := r.requestID()
	r.round = working
	r.outstanding = nil

	if abandoned != "" {
		r.journalAppend(ctx, journal.Entry{
			RequestID:   abandoned,
			Kind:        journal.KindCancelled,
			RoundNumber: cancelled,
			Detail:      reason,
			At:          now.UTC(),
		})
	}
	r.emit(ctx, audit.SettlementCancelled(cancelled, abandoned, reason))
	return nil
}
