// Package verification answers whether a certificate identifier is authentic
// on the ledger and, when it is, hydrates its details.
package verification

import (
	"context"
	"io"
	"log/slog"
	"time"

	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/ledger"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
	"certchain/pkg/domain"
	dErrors "certchain/pkg/domain-errors"
)

// ErrEmptyInput is returned for a blank certificate identifier. No ledger
// call is made.
var ErrEmptyInput = dErrors.New(dErrors.CodeInvalidInput, "please enter a valid certificate ID")

// Verification outcomes recorded in metrics.
const (
	outcomeAuthentic          = "authentic"
	outcomeNotAuthentic       = "not_authentic"
	outcomeDetailsUnavailable = "details_unavailable"
	outcomeFailed             = "failed"
)

// Source supplies the ledger capability of the moment.
type Source interface {
	Capability() (ledger.Capability, error)
	Locator() (ledger.TransactionLocator, bool)
}

// RecordSink receives hydrated records so they can be rendered later.
type RecordSink interface {
	Save(ctx context.Context, record certificate.Record, txRef string, source store.Source) error
}

// Result is the outcome of one verification attempt. Record is nil when the
// certificate is not authentic or its details could not be fetched.
type Result struct {
	CertificateID      string                `json:"certificate_id"`
	Authentic          bool                  `json:"authentic"`
	Record             *certificate.Record   `json:"record,omitempty"`
	TransactionRef     ledger.TransactionRef `json:"transaction_ref,omitempty"`
	DetailsUnavailable bool                  `json:"details_unavailable"`
	Mode               ledger.Mode           `json:"mode"`
	CheckedAt          time.Time             `json:"checked_at"`
}

// Service is stateless between calls apart from the record sink.
type Service struct {
	source  Source
	records RecordSink
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithRecords(records RecordSink) Option {
	return func(s *Service) {
		s.records = records
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(source Source, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "ledger source is required")
	}
	s := &Service{
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: tracer.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify checks input on the ledger. An unknown identifier is not an error:
// it yields Authentic=false. A failure to fetch details of an authentic
// certificate yields DetailsUnavailable with Authentic kept true.
func (s *Service) Verify(ctx context.Context, input string) (result *Result, err error) {
	id, err := domain.ParseCertificateID(input)
	if err != nil {
		return nil, ErrEmptyInput
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify, tracer.String(tracer.AttrCertificateID, id.String()))
	defer func() {
		if result != nil {
			span.SetAttributes(tracer.Bool(tracer.AttrAuthentic, result.Authentic))
		}
		span.End(err)
	}()

	capability, err := s.source.Capability()
	if err != nil {
		s.record(outcomeFailed)
		return nil, err
	}

	args := []any{id.String()}
	res, err := capability.Query(ctx, ledger.MethodIsVerified, args)
	if err != nil {
		s.record(outcomeFailed)
		return nil, ledger.AsDomainError(err)
	}
	authentic, err := res.Bool()
	if err != nil {
		s.record(outcomeFailed)
		return nil, dErrors.Wrap(err, dErrors.CodeQueryFailed, "unexpected isVerified output")
	}

	result = &Result{
		CertificateID: id.String(),
		Authentic:     authentic,
		Mode:          capability.Mode(),
		CheckedAt:     s.now(),
	}
	if !authentic {
		s.record(outcomeNotAuthentic)
		s.logger.InfoContext(ctx, "certificate not verified", "certificate_id", id.String())
		return result, nil
	}

	record, err := s.details(ctx, capability, id)
	if err != nil {
		result.DetailsUnavailable = true
		span.AddEvent(tracer.EventDetailsMissing)
		s.record(outcomeDetailsUnavailable)
		s.logger.WarnContext(ctx, "certificate is valid, but details could not be retrieved",
			"certificate_id", id.String(),
			"error", err,
		)
		return result, nil
	}
	result.Record = &record

	if locator, ok := s.source.Locator(); ok {
		if ref, found := locator.IssuingTransaction(ctx, id.String()); found {
			result.TransactionRef = ref
		}
	}
	if s.records != nil {
		if err := s.records.Save(ctx, record, result.TransactionRef.String(), store.SourceVerification); err != nil {
			s.logger.WarnContext(ctx, "failed to store verified record",
				"certificate_id", id.String(),
				"error", err,
			)
		}
	}

	s.record(outcomeAuthentic)
	s.logger.InfoContext(ctx, "certificate verified",
		"certificate_id", id.String(),
		"mode", result.Mode,
	)
	return result, nil
}

func (s *Service) details(ctx context.Context, capability ledger.Capability, id domain.CertificateID) (certificate.Record, error) {
	res, err := capability.Query(ctx, ledger.MethodGetCertificateData, []any{id.String()})
	if err != nil {
		return certificate.Record{}, err
	}
	data, err := res.Strings()
	if err != nil {
		return certificate.Record{}, err
	}
	return certificate.RecordFromLedger(id.String(), data), nil
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(outcome)
	}
}
