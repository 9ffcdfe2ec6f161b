// Package drand requests public randomness from a drand-style HTTP beacon.
//
// The beacon publishes one signed random value per beacon round. A request
// targets a future beacon round (current + confirmations) and the client
// polls until that round is published, then delivers the value to the sink.
package drand

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/prizewheel/internal/platform/id"
	"github.com/louisbranch/prizewheel/internal/platform/timeouts"
	"github.com/louisbranch/prizewheel/internal/randomness"
)

const defaultPollInterval = 3 * time.Second

// maxWords is the number of 8-byte words one 32-byte beacon value yields.
const maxWords = 4

// beacon is the wire representation of one published beacon round.
type beacon struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
	Signature  string `json:"signature"`
}

// Client issues randomness requests against one beacon endpoint.
type Client struct {
	baseURL      string
	sink         randomness.Sink
	httpClient   *http.Client
	pollInterval time.Duration
	newID        func() (string, error)
	logf         func(string, ...any)
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for beacon requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithPollInterval overrides how often the client polls for the target round.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// New creates a beacon client delivering fulfillments to sink.
func New(baseURL string, sink randomness.Sink, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("beacon base URL is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("randomness sink is required")
	}
	client := &Client{
		baseURL:      baseURL,
		sink:         sink,
		httpClient:   &http.Client{Timeout: timeouts.BeaconFetch},
		pollInterval: defaultPollInterval,
		newID:        id.NewID,
		logf:         log.Printf,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// RequestRandomness targets the beacon round req.Confirmations rounds ahead
// of the latest published one and spawns the delivery poller. The returned
// request id correlates the eventual fulfillment.
func (c *Client) RequestRandomness(ctx context.Context, req randomness.Request) (string, error) {
	if req.Words > maxWords {
		return "", fmt.Errorf("beacon delivers at most %d words, requested %d", maxWords, req.Words)
	}
	latest, err := c.fetchBeacon(ctx, "latest")
	if err != nil {
		return "", fmt.Errorf("fetch latest beacon round: %w", err)
	}
	confirmations := req.Confirmations
	if confirmations < 1 {
		confirmations = 1
	}
	target := latest.Round + uint64(confirmations)

	requestID, err := c.newID()
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	wordCount := req.Words
	if wordCount <= 0 {
		wordCount = 1
	}

	go c.deliver(context.WithoutCancel(ctx), requestID, target, wordCount)
	return requestID, nil
}

// deliver polls for the target beacon round and pushes the derived words to
// the sink. Delivery failures are logged; the raffle round stays settling
// until an operator intervenes, matching the no-timeout protocol contract.
func (c *Client) deliver(ctx context.Context, requestID string, target uint64, wordCount int) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		published, err := c.fetchBeacon(ctx, fmt.Sprintf("%d", target))
		if err == nil {
			words, convErr := Words(published.Randomness, wordCount)
			if convErr != nil {
				c.logf("beacon round %d for request %s: %v", target, requestID, convErr)
				return
			}
			if err := c.sink.Settle(ctx, requestID, words); err != nil {
				c.logf("settle request %s with beacon round %d: %v", requestID, target, err)
			}
			return
		}
		select {
		case <-ctx.Done():
			c.logf("abandon beacon poll for request %s: %v", requestID, ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchBeacon(ctx context.Context, round string) (beacon, error) {
	url := fmt.Sprintf("%s/public/%s", c.baseURL, round)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return beacon{}, fmt.Errorf("build beacon request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return beacon{}, fmt.Errorf("fetch beacon: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()
	if response.StatusCode != http.StatusOK {
		return beacon{}, fmt.Errorf("beacon responded with status %d", response.StatusCode)
	}
	var payload beacon
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return beacon{}, fmt.Errorf("decode beacon payload: %w", err)
	}
	if payload.Randomness == "" {
		return beacon{}, fmt.Errorf("beacon payload is missing randomness")
	}
	return payload, nil
}

// Words derives count 8-byte big-endian words from the hex-encoded beacon
// randomness.
func Words(randomnessHex string, count int) ([]uint64, error) {
	raw, err := hex.DecodeString(randomnessHex)
	if err != nil {
		return nil, fmt.Errorf("decode beacon randomness: %w", err)
	}
	if len(raw) < count*8 {
		return nil, fmt.Errorf("beacon randomness has %d bytes, need %d", len(raw), count*8)
	}
	words := make([]uint64, count)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(raw[i*8 : (i+1)*8])
	}
	return words, nil
}
