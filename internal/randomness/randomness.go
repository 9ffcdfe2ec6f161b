// Package randomness defines the request/fulfill contract with an external
// unpredictable-randomness provider.
//
// The protocol is an explicit two-phase exchange: a Source accepts a request
// and returns an opaque request id; the provider later delivers the random
// words to the Sink, correlated by that id. A source must deliver each
// request exactly once and must never be asked for a new request while a
// prior one is undelivered — that discipline is enforced by the caller.
package randomness

import "context"

// Request describes one randomness request.
type Request struct {
	// Words is the number of random words to deliver. The raffle consumes
	// exactly one.
	Words int
	// Confirmations is how many provider rounds to wait before the delivered
	// value is considered final.
	Confirmations int
	// CallbackBudget caps the work the provider may perform when delivering.
	CallbackBudget uint64
	// KeyID selects the provider signing key.
	KeyID string
	// SubscriptionID identifies the funding subscription with the provider.
	SubscriptionID string
}

// Source issues randomness requests to an external provider.
type Source interface {
	// RequestRandomness submits req and returns the opaque request id that
	// the eventual fulfillment will carry.
	RequestRandomness(ctx context.Context, req Request) (string, error)
}

// Sink receives asynchronous randomness fulfillments.
type Sink interface {
	// Settle consumes the delivered random words for the identified request.
	Settle(ctx context.Context, requestID string, words []uint64) error
}
