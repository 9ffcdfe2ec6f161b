package audit

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/storage"
)

type recordingStore struct {
	events []storage.AuditEvent
}

func (s *recordingStore) AppendAuditEvent(_ context.Context, event storage.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

func TestEmitDefaultsTimestamp(t *testing.T) {
	store := &recordingStore{}
	emitter := NewEmitter(store)
	fixed := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	emitter.clock = func() time.Time { return fixed }

	if err := emitter.Emit(context.Background(), Entered(1, "p0", 100)); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(store.events) != 1 {
		t.Fatalf("events = %d, want 1", len(store.events))
	}
	if !store.events[0].Timestamp.Equal(fixed) {
		t.Fatalf("timestamp = %v, want %v", store.events[0].Timestamp, fixed)
	}
}

func TestEmitNilEmitterAndStoreAreNoops(t *testing.T) {
	var emitter *Emitter
	if err := emitter.Emit(context.Background(), Entered(1, "p0", 100)); err != nil {
		t.Fatalf("nil emitter emit: %v", err)
	}
	if err := NewEmitter(nil).Emit(context.Background(), Entered(1, "p0", 100)); err != nil {
		t.Fatalf("nil store emit: %v", err)
	}
}

func TestEventConstructors(t *testing.T) {
	entered := Entered(3, "p1", 250)
	if entered.Name != EventEntered {
		t.Fatalf("name = %s", entered.Name)
	}
	if entered.Payload["participant"] != "p1" || entered.Payload["amount"] != "250" || entered.Payload["round"] != "3" {
		t.Fatalf("payload = %v", entered.Payload)
	}

	closeRequested := CloseRequested(3, "req-1")
	if closeRequested.Payload["request_id"] != "req-1" {
		t.Fatalf("payload = %v", closeRequested.Payload)
	}

	cancelled := SettlementCancelled(3, "req-1", "beacon outage")
	if cancelled.Severity != string(SeverityWarn) {
		t.Fatalf("severity = %s", cancelled.Severity)
	}
	if cancelled.Payload["reason"] != "beacon outage" {
		t.Fatalf("payload = %v", cancelled.Payload)
	}
}
