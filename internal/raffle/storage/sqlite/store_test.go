package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "raffle.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestSaveGetLatestRoundRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	openedAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	record := storage.RoundRecord{
		Number:      1,
		State:       domain.StateOpen,
		EntranceFee: 100,
		Interval:    30 * time.Second,
		OpenedAt:    openedAt,
		Pool:        300,
		UpdatedAt:   openedAt,
	}
	if err := store.SaveRound(context.Background(), record); err != nil {
		t.Fatalf("save round: %v", err)
	}

	got, err := store.GetLatestRound(context.Background())
	if err != nil {
		t.Fatalf("get latest round: %v", err)
	}
	if got.Number != 1 || got.State != domain.StateOpen {
		t.Fatalf("round = %+v", got)
	}
	if got.EntranceFee != 100 || got.Pool != 300 {
		t.Fatalf("amounts = fee %d pool %d", got.EntranceFee, got.Pool)
	}
	if got.Interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", got.Interval)
	}
	if !got.OpenedAt.Equal(openedAt) {
		t.Fatalf("opened at = %v, want %v", got.OpenedAt, openedAt)
	}
}

func TestSaveRoundUpsertsByNumber(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	openedAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	record := storage.RoundRecord{
		Number:      1,
		State:       domain.StateOpen,
		EntranceFee: 100,
		Interval:    30 * time.Second,
		OpenedAt:    openedAt,
	}
	if err := store.SaveRound(context.Background(), record); err != nil {
		t.Fatalf("save round: %v", err)
	}
	record.State = domain.StateSettling
	record.RequestID = "req-1"
	record.Pool = 200
	if err := store.SaveRound(context.Background(), record); err != nil {
		t.Fatalf("update round: %v", err)
	}

	got, err := store.GetLatestRound(context.Background())
	if err != nil {
		t.Fatalf("get latest round: %v", err)
	}
	if got.State != domain.StateSettling || got.RequestID != "req-1" || got.Pool != 200 {
		t.Fatalf("round = %+v", got)
	}
}

func TestGetLatestRoundPicksHighestNumber(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	openedAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for _, number := range []int64{1, 3, 2} {
		record := storage.RoundRecord{
			Number:      number,
			State:       domain.StateOpen,
			EntranceFee: 100,
			Interval:    time.Minute,
			OpenedAt:    openedAt,
		}
		if err := store.SaveRound(context.Background(), record); err != nil {
			t.Fatalf("save round %d: %v", number, err)
		}
	}

	got, err := store.GetLatestRound(context.Background())
	if err != nil {
		t.Fatalf("get latest round: %v", err)
	}
	if got.Number != 3 {
		t.Fatalf("latest round = %d, want 3", got.Number)
	}
}

func TestGetLatestRoundNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetLatestRound(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendListEntriesPreservesOrder(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	enteredAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	addresses := []domain.Address{"p0", "p1", "p0"}
	for i, address := range addresses {
		record := storage.EntryRecord{
			RoundNumber: 1,
			Position:    i,
			Address:     address,
			Amount:      100,
			EnteredAt:   enteredAt.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendEntry(context.Background(), record); err != nil {
			t.Fatalf("append entry %d: %v", i, err)
		}
	}

	entries, err := store.ListEntries(context.Background(), 1)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != len(addresses) {
		t.Fatalf("entries = %d, want %d", len(entries), len(addresses))
	}
	for i, entry := range entries {
		if entry.Address != addresses[i] {
			t.Fatalf("entry %d = %s, want %s", i, entry.Address, addresses[i])
		}
		if entry.Position != i {
			t.Fatalf("entry %d position = %d", i, entry.Position)
		}
	}

	other, err := store.ListEntries(context.Background(), 2)
	if err != nil {
		t.Fatalf("list entries for other round: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no entries for round 2, got %d", len(other))
	}
}

func TestPutGetLatestWinner(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	settledAt := time.Date(2026, time.March, 1, 12, 1, 0, 0, time.UTC)
	for round := int64(1); round <= 3; round++ {
		record := storage.WinnerRecord{
			RoundNumber: round,
			Address:     domain.Address("winner"),
			Payout:      400,
			SettledAt:   settledAt,
		}
		if err := store.PutWinner(context.Background(), record); err != nil {
			t.Fatalf("put winner %d: %v", round, err)
		}
	}

	got, err := store.GetLatestWinner(context.Background())
	if err != nil {
		t.Fatalf("get latest winner: %v", err)
	}
	if got.RoundNumber != 3 {
		t.Fatalf("latest winner round = %d, want 3", got.RoundNumber)
	}
	if got.Payout != 400 || !got.SettledAt.Equal(settledAt) {
		t.Fatalf("winner = %+v", got)
	}
}

func TestGetLatestWinnerNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetLatestWinner(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListWinnersPaginates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	settledAt := time.Date(2026, time.March, 1, 12, 1, 0, 0, time.UTC)
	for round := int64(1); round <= 5; round++ {
		record := storage.WinnerRecord{
			RoundNumber: round,
			Address:     domain.Address("winner"),
			Payout:      100,
			SettledAt:   settledAt,
		}
		if err := store.PutWinner(context.Background(), record); err != nil {
			t.Fatalf("put winner %d: %v", round, err)
		}
	}

	first, err := store.ListWinners(context.Background(), 2, "")
	if err != nil {
		t.Fatalf("list winners: %v", err)
	}
	if len(first.Winners) != 2 {
		t.Fatalf("first page = %d winners, want 2", len(first.Winners))
	}
	if first.Winners[0].RoundNumber != 5 || first.Winners[1].RoundNumber != 4 {
		t.Fatalf("first page rounds = %d, %d", first.Winners[0].RoundNumber, first.Winners[1].RoundNumber)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected next page token")
	}

	second, err := store.ListWinners(context.Background(), 2, first.NextPageToken)
	if err != nil {
		t.Fatalf("list winners second page: %v", err)
	}
	if len(second.Winners) != 2 {
		t.Fatalf("second page = %d winners, want 2", len(second.Winners))
	}
	if second.Winners[0].RoundNumber != 3 {
		t.Fatalf("second page starts at round %d, want 3", second.Winners[0].RoundNumber)
	}

	if _, err := store.ListWinners(context.Background(), 2, "not-a-token"); err == nil {
		t.Fatal("expected invalid page token error")
	}
}

func TestAppendAuditEventRequiresName(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.AppendAuditEvent(context.Background(), storage.AuditEvent{})
	if err == nil {
		t.Fatal("expected missing name error")
	}
	event := storage.AuditEvent{
		Name:    "entered",
		Payload: map[string]string{"participant": "p0"},
	}
	if err := store.AppendAuditEvent(context.Background(), event); err != nil {
		t.Fatalf("append audit event: %v", err)
	}
}
