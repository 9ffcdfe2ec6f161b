// Package journal keeps an append-only record of the settlement request
// lifecycle. A round that never receives its fulfillment stays settling until
// an operator intervenes; the journal is the forensic trail for that
// intervention and for reconciling abandoned pools after a cancel.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const entryBucket = "settlement_journal"

// Kind classifies one journal entry.
type Kind string

const (
	// KindIssued records a settlement request handed to the randomness source.
	KindIssued Kind = "issued"
	// KindFulfilled records a randomness delivery that settled the round.
	KindFulfilled Kind = "fulfilled"
	// KindPayoutFailed records a rejected pool transfer.
	KindPayoutFailed Kind = "payout_failed"
	// KindCancelled records an operator cancel of a stuck settlement.
	KindCancelled Kind = "cancelled"
)

// Entry is one journalled settlement lifecycle event.
type Entry struct {
	RequestID   string    `json:"request_id"`
	Kind        Kind      `json:"kind"`
	RoundNumber int64     `json:"round_number"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}

// Journal provides a BoltDB-backed append-only settlement journal.
type Journal struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed journal at the provided path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	journal := &Journal{db: db}
	if err := journal.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return journal, nil
}

// Close closes the underlying BoltDB database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records one entry. Entries are keyed by a monotonically increasing
// sequence number, so insertion order is the read order.
func (j *Journal) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j == nil || j.db == nil {
		return fmt.Errorf("journal is not configured")
	}
	if strings.TrimSpace(entry.RequestID) == "" {
		return fmt.Errorf("journal request id is required")
	}
	if entry.Kind == "" {
		return fmt.Errorf("journal entry kind is required")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entryBucket))
		if bucket == nil {
			return fmt.Errorf("journal bucket is missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next journal sequence: %w", err)
		}
		return bucket.Put(sequenceKey(seq), payload)
	})
}

// List returns every journal entry in append order, optionally filtered by
// request id when requestID is non-empty.
func (j *Journal) List(ctx context.Context, requestID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("journal is not configured")
	}

	var entries []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entryBucket))
		if bucket == nil {
			return fmt.Errorf("journal bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var entry Entry
			if err := json.Unmarshal(payload, &entry); err != nil {
				return fmt.Errorf("unmarshal journal entry: %w", err)
			}
			if requestID != "" && entry.RequestID != requestID {
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *Journal) ensureBuckets() error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(entryBucket))
		if err != nil {
			return fmt.Errorf("create journal bucket: %w", err)
		}
		return nil
	})
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
