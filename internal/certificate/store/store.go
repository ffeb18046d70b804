// Package store keeps recently issued or verified certificate records in a
// bounded in-process LRU so artifacts can be exported again without
// re-running issuance or verification. It is not a persistent database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"certchain/internal/certificate"
)

// DefaultSize bounds the number of retained records.
const DefaultSize = 256

// ErrNotFound is returned when no record is held for a certificate ID.
var ErrNotFound = errors.New("certificate record not found")

// Source identifies which workflow produced an entry.
type Source string

const (
	SourceIssuance     Source = "issuance"
	SourceVerification Source = "verification"
	SourceSimulation   Source = "simulation"
)

// Entry is a stored record with the transaction that issued it, if known.
type Entry struct {
	Record         certificate.Record
	TransactionRef string
	Source         Source
	StoredAt       time.Time
}

// Store is a concurrency-safe LRU of certificate entries keyed by certificate ID.
type Store struct {
	entries *lru.Cache[string, Entry]
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store retaining at most size entries.
func New(size int, opts ...Option) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create record cache: %w", err)
	}
	s := &Store{entries: cache, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save stores a detached copy of the record. An existing entry for the same
// certificate keeps its transaction ref when the new one has none.
func (s *Store) Save(_ context.Context, record certificate.Record, txRef string, source Source) error {
	if record.CertificateID == "" {
		return errors.New("record without certificate id")
	}
	if txRef == "" {
		if prev, ok := s.entries.Peek(record.CertificateID); ok {
			txRef = prev.TransactionRef
		}
	}
	s.entries.Add(record.CertificateID, Entry{
		Record:         record.Clone(),
		TransactionRef: txRef,
		Source:         source,
		StoredAt:       s.now(),
	})
	return nil
}

// Find returns the entry for a certificate ID.
func (s *Store) Find(_ context.Context, certificateID string) (Entry, error) {
	e, ok := s.entries.Get(certificateID)
	if !ok {
		return Entry{}, ErrNotFound
	}
	e.Record = e.Record.Clone()
	return e, nil
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	return s.entries.Len()
}
