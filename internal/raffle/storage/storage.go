// Package storage defines persistence contracts for raffle state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
)

// RoundRecord stores one persisted snapshot of the live round.
type RoundRecord struct {
	Number      int64
	State       domain.State
	EntranceFee domain.Amount
	Interval    time.Duration
	OpenedAt    time.Time
	Pool        domain.Amount
	// RequestID is the outstanding settlement request id, empty when none.
	RequestID string
	UpdatedAt time.Time
}

// EntryRecord stores one admitted entry in insertion order.
type EntryRecord struct {
	RoundNumber int64
	Position    int
	Address     domain.Address
	Amount      domain.Amount
	EnteredAt   time.Time
}

// WinnerRecord stores the outcome of one settled round.
type WinnerRecord struct {
	RoundNumber int64
	Address     domain.Address
	Payout      domain.Amount
	SettledAt   time.Time
}

// WinnerPage stores one page of winner records, newest first.
type WinnerPage struct {
	Winners       []WinnerRecord
	NextPageToken string
}

// AuditEvent stores one operational observability event.
type AuditEvent struct {
	Name      string
	Severity  string
	Payload   map[string]string
	Timestamp time.Time
}

// RoundStore persists snapshots of the live round.
type RoundStore interface {
	SaveRound(ctx context.Context, record RoundRecord) error
	GetLatestRound(ctx context.Context) (RoundRecord, error)
}

// EntryStore persists admitted entries.
type EntryStore interface {
	AppendEntry(ctx context.Context, record EntryRecord) error
	ListEntries(ctx context.Context, roundNumber int64) ([]EntryRecord, error)
}

// WinnerStore persists settled-round outcomes.
type WinnerStore interface {
	PutWinner(ctx context.Context, record WinnerRecord) error
	GetLatestWinner(ctx context.Context) (WinnerRecord, error)
	ListWinners(ctx context.Context, pageSize int, pageToken string) (WinnerPage, error)
}

// AuditEventStore persists observability events.
type AuditEventStore interface {
	AppendAuditEvent(ctx context.Context, event AuditEvent) error
}

// Store aggregates every persistence contract the raffle service needs.
type Store interface {
	RoundStore
	EntryStore
	WinnerStore
	AuditEventStore
	Close() error
}
