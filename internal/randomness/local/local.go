// Package local provides a crypto/rand-backed randomness source for
// development and tests where no external beacon is available.
package local

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/louisbranch/prizewheel/internal/platform/id"
	"github.com/louisbranch/prizewheel/internal/randomness"
)

// Source delivers locally generated random words. Values are high-entropy
// but not publicly verifiable, so this source is unsuitable for production.
type Source struct {
	sink  randomness.Sink
	newID func() (string, error)
	logf  func(string, ...any)
}

// New creates a local source delivering to sink.
func New(sink randomness.Sink) *Source {
	return &Source{sink: sink, newID: id.NewID, logf: log.Printf}
}

// RequestRandomness generates the requested words and delivers them to the
// sink on a separate goroutine, mirroring the asynchronous contract of a
// real provider.
func (s *Source) RequestRandomness(ctx context.Context, req randomness.Request) (string, error) {
	if s == nil || s.sink == nil {
		return "", fmt.Errorf("randomness sink is not configured")
	}
	wordCount := req.Words
	if wordCount <= 0 {
		wordCount = 1
	}
	words := make([]uint64, wordCount)
	for i := range words {
		var buf [8]byte
		if _, err := crand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("read random words: %w", err)
		}
		words[i] = binary.BigEndian.Uint64(buf[:])
	}
	requestID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}

	go func() {
		if err := s.sink.Settle(context.WithoutCancel(ctx), requestID, words); err != nil {
			if s.logf != nil {
				s.logf("deliver local randomness for %s: %v", requestID, err)
			}
		}
	}()
	return requestID, nil
}
