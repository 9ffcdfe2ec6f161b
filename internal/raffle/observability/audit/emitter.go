// Package audit records operational observability events for external
// indexers and tests. Events are emitted after their corresponding state
// mutation commits, never before.
package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
)

// Severity describes the audit severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event names for the raffle lifecycle.
const (
	EventEntered             = "raffle.entered"
	EventCloseRequested      = "raffle.close_requested"
	EventWinnerPicked        = "raffle.winner_picked"
	EventSettlementCancelled = "raffle.settlement_cancelled"
)

// Emitter records operational audit events.
type Emitter struct {
	store storage.AuditEventStore
	clock func() time.Time
}

// NewEmitter creates a new audit event emitter.
func NewEmitter(store storage.AuditEventStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records an audit event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// Entered builds the event emitted after an entry is admitted.
func Entered(roundNumber int64, participant domain.Address, amount domain.Amount) storage.AuditEvent {
	return storage.AuditEvent{
		Name:     EventEntered,
		Severity: string(SeverityInfo),
		Payload: map[string]string{
			"round":       formatInt(roundNumber),
			"participant": string(participant),
			"amount":      formatInt(int64(amount)),
		},
	}
}

// CloseRequested builds the event emitted after a settlement request is
// issued.
func CloseRequested(roundNumber int64, requestID string) storage.AuditEvent {
	return storage.AuditEvent{
		Name:     EventCloseRequested,
		Severity: string(SeverityInfo),
		Payload: map[string]string{
			"round":      formatInt(roundNumber),
			"request_id": requestID,
		},
	}
}

// WinnerPicked builds the event emitted after a successful payout.
func WinnerPicked(record domain.WinnerRecord) storage.AuditEvent {
	return storage.AuditEvent{
		Name:     EventWinnerPicked,
		Severity: string(SeverityInfo),
		Payload: map[string]string{
			"round":  formatInt(record.RoundNumber),
			"winner": string(record.Address),
			"payout": formatInt(int64(record.Payout)),
		},
	}
}

// SettlementCancelled builds the event emitted after an operator cancel.
func SettlementCancelled(roundNumber int64, requestID, reason string) storage.AuditEvent {
	return storage.AuditEvent{
		Name:     EventSettlementCancelled,
		Severity: string(SeverityWarn),
		Payload: map[string]string{
			"round":      formatInt(roundNumber),
			"request_id": requestID,
			"reason":     reason,
		},
	}
}

func formatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}
