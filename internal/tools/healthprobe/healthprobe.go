// Package healthprobe checks the raffle server's gRPC health endpoint.
// It backs the raffle-health utility used as a container health check.
package healthprobe

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	platformgrpc "github.com/louisbranch/prizewheel/internal/platform/grpc"
	"github.com/louisbranch/prizewheel/internal/platform/timeouts"
)

// Config holds configuration for one health probe.
type Config struct {
	Addr    string
	Timeout time.Duration
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Addr: "localhost:8096", Timeout: timeouts.GRPCDial}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "raffle health gRPC address")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "probe timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run probes the health endpoint once and reports the outcome to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.Addr == "" {
		return errors.New("address is required")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	conn, err := platformgrpc.DialWithHealth(
		ctx,
		nil,
		cfg.Addr,
		cfg.Timeout,
		nil,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		return fmt.Errorf("probe %s: %w", cfg.Addr, err)
	}
	defer conn.Close()

	_, err = fmt.Fprintf(out, "%s SERVING\n", cfg.Addr)
	return err
}
