// Package domain defines the core business entities and logic for the raffle
// round lifecycle.
//
// The model is centered around a single aggregate:
//
// # Round
//
// A Round is one complete raffle cycle from opening to winner payout. It owns
// the entrance fee, the closing interval, the ordered participant list
// (duplicates allowed), the pooled balance, and a two-value lifecycle state:
// open (accepting entries) and settling (admission blocked while one
// randomness fulfillment is awaited). While a round is open the pool equals
// the sum of entry amounts. A round is never destroyed: settlement and
// cancellation reset it in place, advancing the round number.
//
// # Settlement
//
// Closing a round is a two-phase protocol. BeginSettlement transitions the
// round to settling once eligibility is confirmed; the delivered random word
// then selects the winner by index (word mod participant count), Settle
// records the WinnerRecord and reopens the round, and the caller pays out the
// pool. A rejected payout is fatal to the attempt: the round stays settling
// and requires operator intervention rather than an automatic retry.
//
// All operations are pure state transitions on the aggregate; IO, clocks,
// and the randomness request protocol live with the callers.
package domain
