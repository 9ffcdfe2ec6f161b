// Package app wires the raffle service, its storage, and its transports
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/prizewheel/internal/platform/timeouts"
	"github.com/louisbranch/prizewheel/internal/raffle/api"
	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/journal"
	"github.com/louisbranch/prizewheel/internal/raffle/observability/audit"
	"github.com/louisbranch/prizewheel/internal/raffle/service"
	"github.com/louisbranch/prizewheel/internal/raffle/storage/sqlite"
	"github.com/louisbranch/prizewheel/internal/raffle/treasury"
	"github.com/louisbranch/prizewheel/internal/randomness"
	"github.com/louisbranch/prizewheel/internal/randomness/drand"
	"github.com/louisbranch/prizewheel/internal/randomness/local"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Randomness source selection.
const (
	SourceLocal = "local"
	SourceDrand = "drand"
)

const (
	defaultHTTPAddr     = ":8095"
	defaultHealthPort   = 8096
	defaultDBPath       = "data/raffle.db"
	defaultTreasuryPath = "data/treasury.db"
	defaultPollInterval = 5 * time.Second
)

// Config controls raffle server startup and round behavior.
type Config struct {
	// HTTPAddr is the JSON API listen address.
	HTTPAddr string
	// HealthPort is the gRPC health listen port.
	HealthPort int
	// DBPath is the raffle sqlite database path.
	DBPath string
	// TreasuryDBPath is the treasury ledger sqlite database path.
	TreasuryDBPath string
	// JournalPath is the settlement journal path. Empty disables the journal.
	JournalPath string
	// AdminToken guards the operator API endpoints.
	AdminToken string

	// EntranceFee is the minimum entry amount.
	EntranceFee int64
	// Interval is the minimum round open duration.
	Interval time.Duration
	// PollInterval is how often the keeper probes eligibility.
	PollInterval time.Duration

	// RandomnessSource selects "local" or "drand".
	RandomnessSource string
	// DrandURL is the beacon HTTP endpoint for the drand source.
	DrandURL string
	// Confirmations is how many beacon rounds to wait before finality.
	Confirmations int
	// CallbackBudget caps provider delivery work.
	CallbackBudget uint64
	// KeyID selects the provider signing key.
	KeyID string
	// SubscriptionID identifies the provider funding subscription.
	SubscriptionID string
}

// Run starts the raffle server and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if strings.TrimSpace(cfg.TreasuryDBPath) == "" {
		cfg.TreasuryDBPath = defaultTreasuryPath
	}
	if cfg.EntranceFee <= 0 {
		return fmt.Errorf("entrance fee must be greater than zero")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("round interval must be greater than zero")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	for _, path := range []string{cfg.DBPath, cfg.TreasuryDBPath, cfg.JournalPath} {
		if path == "" {
			continue
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open raffle sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close raffle store: %v", closeErr)
		}
	}()

	ledger, err := treasury.OpenLedger(cfg.TreasuryDBPath)
	if err != nil {
		return fmt.Errorf("open treasury ledger: %w", err)
	}
	defer func() {
		if closeErr := ledger.Close(); closeErr != nil {
			log.Printf("close treasury ledger: %v", closeErr)
		}
	}()

	var settlementJournal service.SettlementJournal
	if strings.TrimSpace(cfg.JournalPath) != "" {
		jrnl, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open settlement journal: %w", err)
		}
		defer func() {
			if closeErr := jrnl.Close(); closeErr != nil {
				log.Printf("close settlement journal: %v", closeErr)
			}
		}()
		settlementJournal = jrnl
	}

	raffle, err := service.New(ctx, service.Config{
		EntranceFee: domain.Amount(cfg.EntranceFee),
		Interval:    cfg.Interval,
		Request: randomness.Request{
			Words:          1,
			Confirmations:  cfg.Confirmations,
			CallbackBudget: cfg.CallbackBudget,
			KeyID:          cfg.KeyID,
			SubscriptionID: cfg.SubscriptionID,
		},
		Gateway: ledger,
		Store:   store,
		Audit:   audit.NewEmitter(store),
		Journal: settlementJournal,
	})
	if err != nil {
		return fmt.Errorf("start raffle service: %w", err)
	}

	source, err := buildSource(cfg, raffle)
	if err != nil {
		return err
	}
	if err := raffle.BindSource(source); err != nil {
		return err
	}

	_, handler, err := api.NewServer(api.Config{
		Raffle:     raffle,
		Winners:    store,
		AdminToken: cfg.AdminToken,
	})
	if err != nil {
		return fmt.Errorf("build API server: %w", err)
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	healthListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("raffle.service", grpc_health_v1.HealthCheckResponse_SERVING)

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(healthListener)
	}()
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.Serve(httpListener)
	}()

	keeper := NewKeeper(raffle, cfg.PollInterval, log.Printf)
	keeper.Start(ctx)

	log.Printf("raffle API listening at %v", httpListener.Addr())
	log.Printf("raffle health listening at %v", healthListener.Addr())

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
		return shutdownErr
	}

	select {
	case <-ctx.Done():
		if err := shutdown(); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-httpErr:
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-grpcErr:
		_ = shutdownHTTPOnly(httpServer)
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC health: %w", err)
	}
}

func shutdownHTTPOnly(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildSource selects the randomness source from the configuration.
func buildSource(cfg Config, sink randomness.Sink) (randomness.Source, error) {
	switch strings.TrimSpace(cfg.RandomnessSource) {
	case "", SourceLocal:
		return local.New(sink), nil
	case SourceDrand:
		client, err := drand.New(cfg.DrandURL, sink)
		if err != nil {
			return nil, fmt.Errorf("build drand source: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown randomness source %q", cfg.RandomnessSource)
	}
}
