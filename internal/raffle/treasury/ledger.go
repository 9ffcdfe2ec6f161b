package treasury

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/prizewheel/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/treasury/migrations"
	_ "modernc.org/sqlite"
)

// ErrNoAccount indicates a balance lookup for an unknown account.
var ErrNoAccount = errors.New("account not found")

// Ledger is a SQLite-backed account ledger satisfying Gateway. Transfers
// credit winner accounts; participants withdraw through operator tooling.
type Ledger struct {
	sqlDB *sql.DB
}

// OpenLedger opens a SQLite treasury ledger and applies embedded migrations.
func OpenLedger(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run ledger migrations: %w", err)
	}
	return &Ledger{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (l *Ledger) Close() error {
	if l == nil || l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}

// Transfer credits amount to the recipient account.
func (l *Ledger) Transfer(ctx context.Context, to domain.Address, amount domain.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil || l.sqlDB == nil {
		return fmt.Errorf("ledger is not configured")
	}
	if strings.TrimSpace(string(to)) == "" {
		return fmt.Errorf("recipient address is required")
	}
	if amount <= 0 {
		return fmt.Errorf("transfer amount must be greater than zero")
	}
	_, err := l.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (address, balance, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
    balance = balance + excluded.balance,
    updated_at = excluded.updated_at
`,
		string(to),
		int64(amount),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("credit account %s: %w", to, err)
	}
	return nil
}

// Balance returns the current balance of one account.
func (l *Ledger) Balance(ctx context.Context, address domain.Address) (domain.Amount, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if l == nil || l.sqlDB == nil {
		return 0, fmt.Errorf("ledger is not configured")
	}
	row := l.sqlDB.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE address = ?`, string(address))
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoAccount
		}
		return 0, fmt.Errorf("read account %s: %w", address, err)
	}
	return domain.Amount(balance), nil
}
