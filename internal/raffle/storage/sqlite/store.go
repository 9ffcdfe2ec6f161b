// Package sqlite provides a SQLite-backed raffle storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/prizewheel/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/storage"
	"github.com/louisbranch/prizewheel/internal/raffle/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const (
	defaultListWinnersPageSize = 20
	maxListWinnersPageSize     = 100
)

// Store persists raffle state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite raffle store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveRound upserts one snapshot of the live round keyed by round number.
func (s *Store) SaveRound(ctx context.Context, record storage.RoundRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if record.Number <= 0 {
		return fmt.Errorf("round number must be greater than zero")
	}
	updatedAt := record.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO rounds (number, state, entrance_fee, interval_ms, opened_at, pool, request_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(number) DO UPDATE SET
    state = excluded.state,
    entrance_fee = excluded.entrance_fee,
    interval_ms = excluded.interval_ms,
    opened_at = excluded.opened_at,
    pool = excluded.pool,
    request_id = excluded.request_id,
    updated_at = excluded.updated_at
`,
		record.Number,
		record.State.String(),
		int64(record.EntranceFee),
		record.Interval.Milliseconds(),
		toMillis(record.OpenedAt),
		int64(record.Pool),
		record.RequestID,
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save round %d: %w", record.Number, err)
	}
	return nil
}

// GetLatestRound returns the snapshot with the highest round number.
func (s *Store) GetLatestRound(ctx context.Context) (storage.RoundRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RoundRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RoundRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT number, state, entrance_fee, interval_ms, opened_at, pool, request_id, updated_at
FROM rounds
ORDER BY number DESC
LIMIT 1
`)
	var (
		record     storage.RoundRecord
		state      string
		fee        int64
		intervalMS int64
		openedAt   int64
		pool       int64
		updatedAt  int64
	)
	err := row.Scan(&record.Number, &state, &fee, &intervalMS, &openedAt, &pool, &record.RequestID, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RoundRecord{}, storage.ErrNotFound
		}
		return storage.RoundRecord{}, fmt.Errorf("get latest round: %w", err)
	}
	parsedState, err := domain.ParseState(state)
	if err != nil {
		return storage.RoundRecord{}, fmt.Errorf("get latest round: %w", err)
	}
	record.State = parsedState
	record.EntranceFee = domain.Amount(fee)
	record.Interval = time.Duration(intervalMS) * time.Millisecond
	record.OpenedAt = fromMillis(openedAt)
	record.Pool = domain.Amount(pool)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// AppendEntry inserts one admitted entry.
func (s *Store) AppendEntry(ctx context.Context, record storage.EntryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if record.Address == "" {
		return fmt.Errorf("entry address is required")
	}
	enteredAt := record.EnteredAt.UTC()
	if enteredAt.IsZero() {
		enteredAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO entries (round_number, position, address, amount, entered_at)
VALUES (?, ?, ?, ?, ?)
`,
		record.RoundNumber,
		record.Position,
		string(record.Address),
		int64(record.Amount),
		toMillis(enteredAt),
	)
	if err != nil {
		return fmt.Errorf("append entry %d/%d: %w", record.RoundNumber, record.Position, err)
	}
	return nil
}

// ListEntries returns the entries for one round in insertion order.
func (s *Store) ListEntries(ctx context.Context, roundNumber int64) ([]storage.EntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT round_number, position, address, amount, entered_at
FROM entries
WHERE round_number = ?
ORDER BY position ASC
`, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("list entries for round %d: %w", roundNumber, err)
	}
	defer rows.Close()

	var records []storage.EntryRecord
	for rows.Next() {
		var (
			record    storage.EntryRecord
			address   string
			amount    int64
			enteredAt int64
		)
		if err := rows.Scan(&record.RoundNumber, &record.Position, &address, &amount, &enteredAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		record.Address = domain.Address(address)
		record.Amount = domain.Amount(amount)
		record.EnteredAt = fromMillis(enteredAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries for round %d: %w", roundNumber, err)
	}
	return records, nil
}

// PutWinner upserts the outcome of one settled round.
func (s *Store) PutWinner(ctx context.Context, record storage.WinnerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if record.Address == "" {
		return fmt.Errorf("winner address is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO winners (round_number, address, payout, settled_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(round_number) DO UPDATE SET
    address = excluded.address,
    payout = excluded.payout,
    settled_at = excluded.settled_at
`,
		record.RoundNumber,
		string(record.Address),
		int64(record.Payout),
		toMillis(record.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("put winner for round %d: %w", record.RoundNumber, err)
	}
	return nil
}

// GetLatestWinner returns the most recently settled winner.
func (s *Store) GetLatestWinner(ctx context.Context) (storage.WinnerRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.WinnerRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.WinnerRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT round_number, address, payout, settled_at
FROM winners
ORDER BY round_number DESC
LIMIT 1
`)
	record, err := scanWinner(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.WinnerRecord{}, storage.ErrNotFound
		}
		return storage.WinnerRecord{}, fmt.Errorf("get latest winner: %w", err)
	}
	return record, nil
}

// ListWinners returns a page of winner records, newest first. The page token
// is the round number to continue before.
func (s *Store) ListWinners(ctx context.Context, pageSize int, pageToken string) (storage.WinnerPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.WinnerPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.WinnerPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		pageSize = defaultListWinnersPageSize
	}
	if pageSize > maxListWinnersPageSize {
		pageSize = maxListWinnersPageSize
	}
	before := int64(0)
	if strings.TrimSpace(pageToken) != "" {
		parsed, err := strconv.ParseInt(pageToken, 10, 64)
		if err != nil || parsed <= 0 {
			return storage.WinnerPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		before = parsed
	}

	query := `
SELECT round_number, address, payout, settled_at
FROM winners
`
	args := []any{}
	if before > 0 {
		query += "WHERE round_number < ?\n"
		args = append(args, before)
	}
	query += "ORDER BY round_number DESC\nLIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.WinnerPage{}, fmt.Errorf("list winners: %w", err)
	}
	defer rows.Close()

	var page storage.WinnerPage
	for rows.Next() {
		record, err := scanWinner(rows.Scan)
		if err != nil {
			return storage.WinnerPage{}, fmt.Errorf("scan winner: %w", err)
		}
		page.Winners = append(page.Winners, record)
	}
	if err := rows.Err(); err != nil {
		return storage.WinnerPage{}, fmt.Errorf("list winners: %w", err)
	}
	if len(page.Winners) > pageSize {
		page.Winners = page.Winners[:pageSize]
		page.NextPageToken = strconv.FormatInt(page.Winners[pageSize-1].RoundNumber, 10)
	}
	return page, nil
}

func scanWinner(scan func(...any) error) (storage.WinnerRecord, error) {
	var (
		record    storage.WinnerRecord
		address   string
		payout    int64
		settledAt int64
	)
	if err := scan(&record.RoundNumber, &address, &payout, &settledAt); err != nil {
		return storage.WinnerRecord{}, err
	}
	record.Address = domain.Address(address)
	record.Payout = domain.Amount(payout)
	record.SettledAt = fromMillis(settledAt)
	return record, nil
}

// AppendAuditEvent inserts one observability event.
func (s *Store) AppendAuditEvent(ctx context.Context, event storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name := strings.TrimSpace(event.Name)
	if name == "" {
		return fmt.Errorf("audit event name is required")
	}
	severity := strings.TrimSpace(event.Severity)
	if severity == "" {
		severity = "INFO"
	}
	payload := event.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	timestamp := event.Timestamp.UTC()
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_events (name, severity, payload, created_at)
VALUES (?, ?, ?, ?)
`,
		name,
		severity,
		string(encoded),
		toMillis(timestamp),
	)
	if err != nil {
		return fmt.Errorf("append audit event %s: %w", name, err)
	}
	return nil
}
