// Package treasury moves pooled funds to winners.
//
// The raffle core treats payout as an external transfer that may be rejected
// by the recipient; a rejection is fatal to the settlement attempt and is
// never retried automatically.
package treasury

import (
	"context"

	"github.com/louisbranch/prizewheel/internal/raffle/domain"
)

// Gateway transfers an amount to a recipient account.
type Gateway interface {
	Transfer(ctx context.Context, to domain.Address, amount domain.Amount) error
}
