package drand

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/prizewheel/internal/randomness"
)

func requestWithConfirmations(confirmations int) randomness.Request {
	return randomness.Request{Words: 1, Confirmations: confirmations}
}

type capturedFulfillment struct {
	requestID string
	words     []uint64
}

type captureSink struct {
	mu        sync.Mutex
	delivered chan capturedFulfillment
}

func newCaptureSink() *captureSink {
	return &captureSink{delivered: make(chan capturedFulfillment, 1)}
}

func (s *captureSink) Settle(_ context.Context, requestID string, words []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered <- capturedFulfillment{requestID: requestID, words: words}
	return nil
}

func beaconServer(t *testing.T, latest uint64, published map[uint64]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/public/latest", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"round":%d,"randomness":%q}`, latest, published[latest])
	})
	mux.HandleFunc("/public/", func(w http.ResponseWriter, r *http.Request) {
		var round uint64
		if _, err := fmt.Sscanf(r.URL.Path, "/public/%d", &round); err != nil {
			http.NotFound(w, r)
			return
		}
		value, ok := published[round]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"round":%d,"randomness":%q}`, round, value)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRequestRandomnessDeliversTargetRound(t *testing.T) {
	// 32 bytes whose first word is 0x0102030405060708.
	randomnessHex := "0102030405060708" + "1112131415161718" + "2122232425262728" + "3132333435363738"
	server := beaconServer(t, 100, map[uint64]string{
		100: randomnessHex,
		102: randomnessHex,
	})
	sink := newCaptureSink()
	client, err := New(server.URL, sink, WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	requestID, err := client.RequestRandomness(context.Background(), requestWithConfirmations(2))
	if err != nil {
		t.Fatalf("request randomness: %v", err)
	}
	if requestID == "" {
		t.Fatal("expected non-empty request id")
	}

	select {
	case got := <-sink.delivered:
		if got.requestID != requestID {
			t.Fatalf("delivered request id = %q, want %q", got.requestID, requestID)
		}
		if len(got.words) != 1 {
			t.Fatalf("delivered %d words, want 1", len(got.words))
		}
		if got.words[0] != 0x0102030405060708 {
			t.Fatalf("word = %#x, want %#x", got.words[0], uint64(0x0102030405060708))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fulfillment")
	}
}

func TestRequestRandomnessPollsUntilPublished(t *testing.T) {
	randomnessHex := hex.EncodeToString(make([]byte, 32))
	var mu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("/public/latest", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"round":100,"randomness":%q}`, randomnessHex)
	})
	var polls int
	mux.HandleFunc("/public/101", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		ready := polls >= 3
		mu.Unlock()
		if !ready {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"round":101,"randomness":%q}`, randomnessHex)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sink := newCaptureSink()
	client, err := New(server.URL, sink, WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.RequestRandomness(context.Background(), requestWithConfirmations(1)); err != nil {
		t.Fatalf("request randomness: %v", err)
	}

	select {
	case <-sink.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for polled fulfillment")
	}
	mu.Lock()
	defer mu.Unlock()
	if polls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls)
	}
}

func TestNewRequiresBaseURLAndSink(t *testing.T) {
	if _, err := New("", newCaptureSink()); err == nil {
		t.Fatal("expected base URL error")
	}
	if _, err := New("http://127.0.0.1:0", nil); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestRequestRandomnessRejectsTooManyWords(t *testing.T) {
	client, err := New("http://127.0.0.1:0", newCaptureSink())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	req := requestWithConfirmations(1)
	req.Words = maxWords + 1
	if _, err := client.RequestRandomness(context.Background(), req); err == nil {
		t.Fatal("expected word count error")
	}
}

func TestWords(t *testing.T) {
	raw := make([]byte, 32)
	raw[7] = 0x2a
	words, err := Words(hex.EncodeToString(raw), 2)
	if err != nil {
		t.Fatalf("words: %v", err)
	}
	if words[0] != 0x2a {
		t.Fatalf("first word = %#x, want 0x2a", words[0])
	}
	if words[1] != 0 {
		t.Fatalf("second word = %#x, want 0", words[1])
	}

	if _, err := Words("zz", 1); err == nil {
		t.Fatal("expected hex decode error")
	}
	if _, err := Words("0102", 1); err == nil {
		t.Fatal("expected short randomness error")
	}
}
