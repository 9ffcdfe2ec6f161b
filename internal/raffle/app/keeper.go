package app

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
	"github.com/louisbranch/prizewheel/internal/raffle/service"
)

// Keeper periodically probes round eligibility and requests the close when
// the round qualifies. It stands in for the external keeper that drives the
// settlement cadence.
type Keeper struct {
	raffle   *service.Raffle
	interval time.Duration
	logf     func(string, ...any)
}

// NewKeeper builds a keeper that polls at the provided interval.
func NewKeeper(raffle *service.Raffle, interval time.Duration, logf func(string, ...any)) *Keeper {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Keeper{raffle: raffle, interval: interval, logf: logf}
}

// Start runs the poll loop until the context ends.
func (k *Keeper) Start(ctx context.Context) {
	if k == nil || k.raffle == nil || k.interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				k.poll(ctx)
			}
		}
	}()
}

func (k *Keeper) poll(ctx context.Context) {
	if !k.raffle.EvaluateEligibility() {
		return
	}
	requestID, err := k.raffle.RequestClose(ctx)
	if err != nil {
		// Another close won the race between the probe and the request.
		if errors.Is(err, domain.ErrAlreadySettling) {
			return
		}
		var notEligible *domain.NotEligibleError
		if errors.As(err, &notEligible) {
			return
		}
		k.logf("keeper: request close: %v", err)
		return
	}
	k.logf("keeper: requested round close, request %s", requestID)
}
