package service

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/observability/audit"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
)

// Status is a consistent snapshot of the live round.
type Status struct {
	RoundNumber      int64
	State            domain.State
	EntranceFee      domain.Amount
	Interval         time.Duration
	OpenedAt         time.Time
	ParticipantCount int
	Pool             domain.Amount
}

// Enter admits payer into the live round for amount. The entry is persisted
// before it takes effect; a storage failure rejects the entry.
func (r *Raffle) Enter(ctx context.Context, payer domain.Address, amount domain.Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := r.round.Clone()
	if err := working.Enter(payer, amount); err != nil {
		return err
	}
	if r.store != nil {
		entry := storage.EntryRecord{
			RoundNumber: working.Number,
			Position:    len(working.Participants) - 1,
			Address:     payer,
			Amount:      amount,
			EnteredAt:   r.clock().UTC(),
		}
		if err := r.store.AppendEntry(ctx, entry); err != nil {
			return fmt.Errorf("persist entry: %w", err)
		}
	}
	if err := r.persistRound(ctx, working, r.requestID()); err != nil {
		return fmt.Errorf("persist round: %w", err)
	}
	r.round = working

	r.emit(ctx, audit.Entered(working.Number, payer, amount))
	return nil
}

// CurrentState reports the live round's state.
func (r *Raffle) CurrentState() domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.State
}

// RoundNumber reports the live round's sequence number.
func (r *Raffle) RoundNumber() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.Number
}

// ParticipantCount reports the number of admitted entries in the live round.
func (r *Raffle) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.round.Participants)
}

// PoolBalance reports the pooled entry amount of the live round.
func (r *Raffle) PoolBalance() domain.Amount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.Pool
}

// ParticipantAt returns the participant at the given zero-based admission
// position.
func (r *Raffle) ParticipantAt(index int) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.ParticipantAt(index)
}

// LastRoundOpenedAt reports when the live round opened.
func (r *Raffle) LastRoundOpenedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.round.OpenedAt
}

// LastWinner returns the most recent winner record, or false when no round
// has settled yet.
func (r *Raffle) LastWinner() (domain.WinnerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastWinner == nil {
		return domain.WinnerRecord{}, false
	}
	return *r.lastWinner, true
}

// Snapshot returns a consistent view of the live round taken under one lock
// acquisition.
func (r *Raffle) Snapshot() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		RoundNumber:      r.round.Number,
		State:            r.round.State,
		EntranceFee:      r.round.EntranceFee,
		Interval:         r.round.Interval,
		OpenedAt:         r.round.OpenedAt,
		ParticipantCount: len(r.round.Participants),
		Pool:             r.round.Pool,
	}
}

// requestID reports the outstanding request id, or "" when none is pending.
// Callers must hold the mutex.
func (r *Raffle) requestID() string {
	if r.outstanding == nil {
		return ""
	}
	return r.outstanding.ID
}
