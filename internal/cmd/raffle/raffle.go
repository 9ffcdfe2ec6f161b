// Package raffle parses raffle command flags and launches the raffle server.
package raffle

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/prizewheel/internal/platform/cmd"
	raffleserver "github.com/louisbranch/prizewheel/internal/raffle/app"
)

// Config holds raffle command configuration.
type Config struct {
	HTTPAddr       string        `env:"PRIZEWHEEL_HTTP_ADDR" envDefault:":8095"`
	HealthPort     int           `env:"PRIZEWHEEL_HEALTH_PORT" envDefault:"8096"`
	DBPath         string        `env:"PRIZEWHEEL_DB_PATH" envDefault:"data/raffle.db"`
	TreasuryDBPath string        `env:"PRIZEWHEEL_TREASURY_DB_PATH" envDefault:"data/treasury.db"`
	JournalPath    string        `env:"PRIZEWHEEL_JOURNAL_PATH" envDefault:"data/journal.db"`
	AdminToken     string        `env:"PRIZEWHEEL_ADMIN_TOKEN"`
	EntranceFee    int64         `env:"PRIZEWHEEL_ENTRANCE_FEE" envDefault:"100"`
	Interval       time.Duration `env:"PRIZEWHEEL_ROUND_INTERVAL" envDefault:"10m"`
	PollInterval   time.Duration `env:"PRIZEWHEEL_POLL_INTERVAL" envDefault:"5s"`
	Source         string        `env:"PRIZEWHEEL_RANDOMNESS_SOURCE" envDefault:"local"`
	DrandURL       string        `env:"PRIZEWHEEL_DRAND_URL"`
	Confirmations  int           `env:"PRIZEWHEEL_CONFIRMATIONS" envDefault:"3"`
	CallbackBudget uint64        `env:"PRIZEWHEEL_CALLBACK_BUDGET" envDefault:"100000"`
	KeyID          string        `env:"PRIZEWHEEL_KEY_ID"`
	SubscriptionID string        `env:"PRIZEWHEEL_SUBSCRIPTION_ID"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The raffle JSON API listen address")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The raffle health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The raffle SQLite database path")
	fs.StringVar(&cfg.TreasuryDBPath, "treasury-db-path", cfg.TreasuryDBPath, "The treasury ledger SQLite database path")
	fs.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "The settlement journal path (empty disables)")
	fs.StringVar(&cfg.AdminToken, "admin-token", cfg.AdminToken, "Bearer token for operator endpoints")
	fs.Int64Var(&cfg.EntranceFee, "entrance-fee", cfg.EntranceFee, "Minimum entry amount")
	fs.DurationVar(&cfg.Interval, "round-interval", cfg.Interval, "Minimum round open duration before settlement")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Keeper eligibility poll interval")
	fs.StringVar(&cfg.Source, "randomness-source", cfg.Source, "Randomness source: local or drand")
	fs.StringVar(&cfg.DrandURL, "drand-url", cfg.DrandURL, "The drand beacon HTTP endpoint")
	fs.IntVar(&cfg.Confirmations, "confirmations", cfg.Confirmations, "Beacon rounds to wait before finality")
	fs.Uint64Var(&cfg.CallbackBudget, "callback-budget", cfg.CallbackBudget, "Provider delivery work cap")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "Provider signing key identifier")
	fs.StringVar(&cfg.SubscriptionID, "subscription-id", cfg.SubscriptionID, "Provider funding subscription identifier")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the raffle server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRaffle, func(context.Context) error {
		return raffleserver.Run(ctx, raffleserver.Config{
			HTTPAddr:         cfg.HTTPAddr,
			HealthPort:       cfg.HealthPort,
			DBPath:           cfg.DBPath,
			TreasuryDBPath:   cfg.TreasuryDBPath,
			JournalPath:      cfg.JournalPath,
			AdminToken:       cfg.AdminToken,
			EntranceFee:      cfg.EntranceFee,
			Interval:         cfg.Interval,
			PollInterval:     cfg.PollInterval,
			RandomnessSource: cfg.Source,
			DrandURL:         cfg.DrandURL,
			Confirmations:    cfg.Confirmations,
			CallbackBudget:   cfg.CallbackBudget,
			KeyID:            cfg.KeyID,
			SubscriptionID:   cfg.SubscriptionID,
		})
	})
}
