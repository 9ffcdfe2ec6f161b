// Package service coordinates the raffle round lifecycle.
//
// One Raffle instance owns the single live round aggregate and the single
// outstanding settlement request. Operations are serialized by a mutex so
// each call runs to completion before the next is observed, matching the
// sequential, non-reentrant execution model of the round state machine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/journal"
	"github.com/louisbranch/prizewheel/internal/raffle/observability/audit"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
	"github.com/louisbranch/prizewheel/internal/raffle/treasury"
	"github.com/louisbranch/prizewheel/internal/randomness"
)

// SettlementJournal records settlement lifecycle entries.
type SettlementJournal interface {
	Append(ctx context.Context, entry journal.Entry) error
}

// Config assembles the dependencies and round parameters for a Raffle.
type Config struct {
	// EntranceFee is the minimum entry amount for a fresh round.
	EntranceFee domain.Amount
	// Interval is the minimum open duration before a round can close.
	Interval time.Duration
	// Request is the randomness request template submitted on close.
	Request randomness.Request
	// Gateway pays the pooled balance to winners.
	Gateway treasury.Gateway
	// Store persists round snapshots, entries, winners, and audit events.
	// When nil the raffle runs purely in memory.
	Store storage.Store
	// Audit records observability events. Optional.
	Audit *audit.Emitter
	// Journal records the settlement request lifecycle. Optional.
	Journal SettlementJournal
	// Clock overrides time.Now for tests.
	Clock func() time.Time
	// Logf overrides log.Printf for tests.
	Logf func(string, ...any)
}

// Raffle owns the live round and drives it through admission, settlement,
// payout, and reset.
type Raffle struct {
	mu          sync.Mutex
	round       domain.Round
	outstanding *domain.SettlementRequest
	lastWinner  *domain.WinnerRecord

	source  randomness.Source
	request randomness.Request
	gateway treasury.Gateway
	store   storage.Store
	audit   *audit.Emitter
	journal SettlementJournal
	clock   func() time.Time
	logf    func(string, ...any)
}

// New creates a Raffle, restoring the live round from storage when a
// persisted snapshot exists and opening round one otherwise.
func New(ctx context.Context, cfg Config) (*Raffle, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("payout gateway is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}

	raffle := &Raffle{
		request: cfg.Request,
		gateway: cfg.Gateway,
		store:   cfg.Store,
		audit:   cfg.Audit,
		journal: cfg.Journal,
		clock:   clock,
		logf:    logf,
	}

	restored, err := raffle.restore(ctx)
	if err != nil {
		return nil, err
	}
	if !restored {
		round, err := domain.NewRound(1, cfg.EntranceFee, cfg.Interval, clock())
		if err != nil {
			return nil, err
		}
		raffle.round = round
		if err := raffle.persistRound(ctx, round, ""); err != nil {
			return nil, fmt.Errorf("persist opening round: %w", err)
		}
	}
	return raffle, nil
}

// BindSource attaches the randomness source once its sink (this raffle) has
// been constructed. It must be called before the first RequestClose.
func (r *Raffle) BindSource(source randomness.Source) error {
	if source == nil {
		return fmt.Errorf("randomness source is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source != nil {
		return fmt.Errorf("randomness source is already bound")
	}
	r.source = source
	return nil
}

// restore rebuilds the aggregate from the latest persisted snapshot. It
// returns false when no snapshot exists.
func (r *Raffle) restore(ctx context.Context) (bool, error) {
	if r.store == nil {
		return false, nil
	}
	record, err := r.store.GetLatestRound(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("restore round: %w", err)
	}

	round := domain.Round{
		Number:      record.Number,
		EntranceFee: record.EntranceFee,
		Interval:    record.Interval,
		State:       record.State,
		OpenedAt:    record.OpenedAt,
		Pool:        record.Pool,
	}
	entries, err := r.store.ListEntries(ctx, record.Number)
	if err != nil {
		return false, fmt.Errorf("restore entries: %w", err)
	}
	for _, entry := range entries {
		round.Participants = append(round.Participants, entry.Address)
	}
	r.round = round
	if record.State == domain.StateSettling && record.RequestID != "" {
		r.outstanding = &domain.SettlementRequest{ID: record.RequestID, IssuedAt: record.UpdatedAt}
	}

	winner, err := r.store.GetLatestWinner(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("restore winner: %w", err)
		}
	} else {
		record := domain.WinnerRecord(winner)
		r.lastWinner = &record
	}
	return true, nil
}

// persistRound writes one snapshot of the live round. A nil store is a no-op.
func (r *Raffle) persistRound(ctx context.Context, round domain.Round, requestID string) error {
	if r.store == nil {
		return nil
	}
	return r.store.SaveRound(ctx, storage.RoundRecord{
		Number:      round.Number,
		State:       round.State,
		EntranceFee: round.EntranceFee,
		Interval:    round.Interval,
		OpenedAt:    round.OpenedAt,
		Pool:        round.Pool,
		RequestID:   requestID,
		UpdatedAt:   r.clock().UTC(),
	})
}

func (r *Raffle) emit(ctx context.Context, event storage.AuditEvent) {
	if err := r.audit.Emit(ctx, event); err != nil {
		r.logf("emit audit event %s: %v", event.Name, err)
	}
}

func (r *Raffle) journalAppend(ctx context.Context, entry journal.Entry) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Append(ctx, entry); err != nil {
		r.logf("journal %s for request %s: %v", entry.Kind, entry.RequestID, err)
	}
}
