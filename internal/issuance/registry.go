package issuance

import (
	"context"
	"sync"
	"time"

	"certchain/internal/certificate"
	"certchain/pkg/domain"
	dErrors "certchain/pkg/domain-errors"
)

// DefaultSubmitTimeout bounds a background submission, including the wait
// for the ledger receipt.
const DefaultSubmitTimeout = 3 * time.Minute

// Registry keeps sessions addressable by id and tracks background
// submissions so shutdown can wait for them.
type Registry struct {
	ids           certificate.IDGenerator
	defaults      certificate.Defaults
	ledger        LedgerSource
	records       RecordSink
	opts          []Option
	now           func() time.Time
	submitTimeout time.Duration

	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	inflight sync.WaitGroup
}

// RegistryConfig holds the collaborators every new session receives.
type RegistryConfig struct {
	IDs           certificate.IDGenerator
	Defaults      certificate.Defaults
	Ledger        LedgerSource
	Records       RecordSink
	SubmitTimeout time.Duration
	Clock         func() time.Time
}

// NewRegistry creates an empty registry. opts are applied to every session.
func NewRegistry(cfg RegistryConfig, opts ...Option) *Registry {
	r := &Registry{
		ids:           cfg.IDs,
		defaults:      cfg.Defaults,
		ledger:        cfg.Ledger,
		records:       cfg.Records,
		opts:          opts,
		now:           cfg.Clock,
		submitTimeout: cfg.SubmitTimeout,
		sessions:      make(map[domain.SessionID]*Session),
	}
	if r.ids == nil {
		r.ids = certificate.RandomIDs{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.submitTimeout <= 0 {
		r.submitTimeout = DefaultSubmitTimeout
	}
	return r
}

// Create starts a session on a fresh draft with a generated certificate id.
func (r *Registry) Create() *Session {
	draft := certificate.NewDraft(r.ids, r.defaults, r.now())
	opts := append([]Option{WithClock(r.now)}, r.opts...)
	s := NewSession(domain.NewSessionID(), draft, r.ledger, r.records, opts...)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id domain.SessionID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "issuance session not found")
	}
	return s, nil
}

// Submit hands the session's draft to the ledger in the background. The
// submission outlives ctx's cancellation but not the registry timeout.
// Validation and conflict errors are returned immediately.
func (r *Registry) Submit(ctx context.Context, id domain.SessionID) (*Session, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.submitTimeout)
	done, err := s.SubmitAsync(bg)
	if err != nil {
		cancel()
		return nil, err
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer cancel()
		<-done
	}()
	return s, nil
}

// Wait blocks until every background submission has finished or ctx ends.
func (r *Registry) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
