// Package issuance drives a certificate draft through submission to the
// ledger: Editing → Submitting → Succeeded | Failed → Editing.
package issuance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/identity"
	"certchain/internal/ledger"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
	"certchain/pkg/domain"
	dErrors "certchain/pkg/domain-errors"
)

// State is the issuance lifecycle state.
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// LedgerSource supplies the capability and the account to sign with.
type LedgerSource interface {
	Capability() (ledger.Capability, error)
	Snapshot() identity.Snapshot
}

// RecordSink receives issued records for rendering and verification.
type RecordSink interface {
	Save(ctx context.Context, record certificate.Record, txRef string, source store.Source) error
}

// Receipt is the outcome of a successful submission.
type Receipt struct {
	Record         certificate.Record    `json:"record"`
	TransactionRef ledger.TransactionRef `json:"transaction_ref"`
	Mode           ledger.Mode           `json:"mode"`
	IssuedAt       time.Time             `json:"issued_at"`
}

// View is a consistent copy of a session's state.
type View struct {
	ID      domain.SessionID  `json:"id"`
	State   State             `json:"state"`
	Draft   certificate.Draft `json:"draft"`
	Receipt *Receipt          `json:"receipt,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    dErrors.Code      `json:"code,omitempty"`
}

// Session owns one draft. Methods are safe for concurrent use; at most one
// submission is in flight.
type Session struct {
	id      domain.SessionID
	ledger  LedgerSource
	records RecordSink
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time

	mu      sync.Mutex
	draft   certificate.Draft
	state   State
	receipt *Receipt
	lastErr error
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Session) {
		s.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession starts a session in the editing state. records may be nil.
func NewSession(id domain.SessionID, draft certificate.Draft, source LedgerSource, records RecordSink, opts ...Option) *Session {
	s := &Session{
		id:      id,
		ledger:  source,
		records: records,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:  tracer.NewNoop(),
		now:     time.Now,
		draft:   draft,
		state:   StateEditing,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() domain.SessionID {
	return s.id
}

// View returns a detached copy of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{ID: s.id, State: s.state, Draft: s.draft.Clone()}
	if s.receipt != nil {
		r := *s.receipt
		r.Record = r.Record.Clone()
		v.Receipt = &r
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
		v.Code = dErrors.CodeOf(s.lastErr)
	}
	return v
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() certificate.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Update edits one draft field. It is refused while a submission is in
// flight; after a finished submission it returns the session to editing.
func (s *Session) Update(field certificate.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return dErrors.New(dErrors.CodeConflict, "draft is locked while the certificate is being generated")
	}
	if err := s.draft.Update(field, value); err != nil {
		return err
	}
	s.state = StateEditing
	s.lastErr = nil
	return nil
}

// Submit validates the draft and issues it on the ledger. A validation
// failure leaves the session editing. A ledger failure moves it to failed
// with the ledger reason preserved and the draft untouched. Nothing is
// retried.
func (s *Session) Submit(ctx context.Context) (*Receipt, error) {
	frozen, err := s.begin()
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, frozen)
}

// SubmitAsync validates and freezes the draft synchronously, then issues it
// in the background. The returned channel is closed once the session has
// left the submitting state.
func (s *Session) SubmitAsync(ctx context.Context) (<-chan struct{}, error) {
	frozen, err := s.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.complete(ctx, frozen)
	}()
	return done, nil
}

func (s *Session) complete(ctx context.Context, frozen certificate.Draft) (receipt *Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssueSubmit,
		tracer.String(tracer.AttrCertificateID, frozen.CertificateID),
	)
	defer func() { span.End(err) }()

	if fields := frozen.Warnings(); len(fields) > 0 {
		s.logger.WarnContext(ctx, "submitting fields as entered",
			"certificate_id", frozen.CertificateID,
			"fields", fields,
		)
	}

	capability, err := s.ledger.Capability()
	if err != nil {
		return nil, s.fail(ctx, frozen, err)
	}
	span.SetAttributes(tracer.String(tracer.AttrMode, string(capability.Mode())))

	from := s.ledger.Snapshot().Account
	ref, err := capability.Invoke(ctx, ledger.MethodGenerateCertificate, frozen.ToInvocationArgs().Values(), from)
	if err != nil {
		return nil, s.fail(ctx, frozen, ledger.AsDomainError(err))
	}

	receipt = &Receipt{
		Record:         frozen.Record(),
		TransactionRef: ref,
		Mode:           capability.Mode(),
		IssuedAt:       s.now(),
	}
	if s.records != nil {
		if err := s.records.Save(ctx, receipt.Record, ref.String(), store.SourceIssuance); err != nil {
			// The certificate is on the ledger; only local rendering is affected.
			s.logger.WarnContext(ctx, "failed to store issued record",
				"certificate_id", frozen.CertificateID,
				"error", err,
			)
		}
	}

	s.mu.Lock()
	s.state = StateSucceeded
	s.receipt = receipt
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncrementIssuance(string(StateSucceeded))
	}
	s.logger.InfoContext(ctx, "certificate generated",
		"session_id", s.id.String(),
		"certificate_id", frozen.CertificateID,
		"tx", ref,
		"mode", receipt.Mode,
	)
	return receipt, nil
}

// begin validates and freezes the draft under the session lock.
func (s *Session) begin() (certificate.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSubmitting {
		return certificate.Draft{}, dErrors.New(dErrors.CodeConflict, "certificate generation already in progress")
	}
	if err := s.draft.ValidateForSubmission(); err != nil {
		s.state = StateEditing
		s.lastErr = err
		return certificate.Draft{}, err
	}
	s.state = StateSubmitting
	s.receipt = nil
	s.lastErr = nil
	return s.draft.Clone(), nil
}

func (s *Session) fail(ctx context.Context, frozen certificate.Draft, err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.lastErr = err
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncrementIssuance(string(StateFailed))
	}
	s.logger.WarnContext(ctx, "certificate generation failed",
		"session_id", s.id.String(),
		"certificate_id", frozen.CertificateID,
		"code", dErrors.CodeOf(err),
		"error", err,
	)
	return err
}
