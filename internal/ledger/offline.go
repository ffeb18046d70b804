package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"

	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/tracer"
)

// DefaultOfflineDelay approximates a block confirmation.
const DefaultOfflineDelay = 1500 * time.Millisecond

// DemoTransactionRef is reported for certificates the simulation did not issue.
const DemoTransactionRef TransactionRef = "0x7a69d66c39efd21ffb871ea8ef22d637148f499dfdfce301af4267f814d15e52"

// DemoRecord is returned by getCertificateData for certificates the
// simulation did not issue.
func DemoRecord(certificateID string) certificate.Record {
	return certificate.Record{
		CertificateID: certificateID,
		StudentName:   "John A. Smith",
		CourseName:    "Master of Computer Science",
		Institution:   "Cambridge University",
		Department:    "Department of Computer Science",
		Proficiencies: []string{"AI", "Machine Learning", "Blockchain"},
		IssueDate:     "2025-04-15",
		Grade:         certificate.GradeDistinction,
	}
}

var errNotStateChanging = errors.New("method does not change state")

// Offline simulates the certification contract in memory. Every certificate
// id carrying the CERT- prefix verifies; records issued through the
// simulation are served back, everything else resolves to DemoRecord.
type Offline struct {
	delay   time.Duration
	chain   *store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// OfflineOption configures an Offline capability.
type OfflineOption func(*Offline)

// WithDelay sets the artificial latency of generateCertificate and isVerified.
func WithDelay(d time.Duration) OfflineOption {
	return func(o *Offline) {
		o.delay = d
	}
}

// WithState shares a record store as the simulated contract state.
func WithState(s *store.Store) OfflineOption {
	return func(o *Offline) {
		o.chain = s
	}
}

func WithOfflineLogger(logger *slog.Logger) OfflineOption {
	return func(o *Offline) {
		o.logger = logger
	}
}

func WithOfflineMetrics(m *metrics.Metrics) OfflineOption {
	return func(o *Offline) {
		o.metrics = m
	}
}

func WithOfflineTracer(t tracer.Tracer) OfflineOption {
	return func(o *Offline) {
		o.tracer = t
	}
}

func NewOffline(opts ...OfflineOption) (*Offline, error) {
	o := &Offline{
		delay:  DefaultOfflineDelay,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.chain == nil {
		chain, err := store.New(store.DefaultSize)
		if err != nil {
			return nil, err
		}
		o.chain = chain
	}
	return o, nil
}

func (o *Offline) Mode() Mode {
	return ModeOffline
}

// Invoke simulates generateCertificate. The transaction ref is the
// Keccak-256 of the sender and the ABI-encoded call.
func (o *Offline) Invoke(ctx context.Context, method string, args []any, from common.Address) (ref TransactionRef, err error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, tracer.SpanLedgerInvoke,
		tracer.String(tracer.AttrMethod, method),
		tracer.String(tracer.AttrMode, string(ModeOffline)),
	)
	defer func() {
		o.observe(method, start, err)
		span.End(err)
	}()

	if method != MethodGenerateCertificate {
		return "", newError(KindInvocationRejected, method, 0, errNotStateChanging)
	}
	record, err := certificate.RecordFromInvocationArgs(args)
	if err != nil {
		return "", newError(KindInvocationRejected, method, 0, err)
	}
	data, err := CertificationABI().Pack(method, args...)
	if err != nil {
		return "", newError(KindInvocationRejected, method, 0, fmt.Errorf("encode arguments: %w", err))
	}
	if err := o.wait(ctx); err != nil {
		return "", newError(KindInvocationRejected, method, 0, err)
	}

	ref = syntheticRef(from, data)
	if err := o.chain.Save(ctx, record, ref.String(), store.SourceSimulation); err != nil {
		return "", newError(KindInvocationRejected, method, 0, err)
	}
	o.logger.InfoContext(ctx, "simulated certificate issuance",
		"certificate_id", record.CertificateID,
		"tx", ref,
	)
	return ref, nil
}

// Query simulates isVerified and getCertificateData.
func (o *Offline) Query(ctx context.Context, method string, args []any) (res Result, err error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, tracer.SpanLedgerQuery,
		tracer.String(tracer.AttrMethod, method),
		tracer.String(tracer.AttrMode, string(ModeOffline)),
	)
	defer func() {
		o.observe(method, start, err)
		span.End(err)
	}()

	certificateID, err := singleStringArg(args)
	if err != nil {
		return Result{}, newError(KindQueryFailed, method, 0, err)
	}

	switch method {
	case MethodIsVerified:
		if err := o.wait(ctx); err != nil {
			return Result{}, newError(KindQueryFailed, method, 0, err)
		}
		return Result{
			Names:  []string{""},
			Values: []any{strings.HasPrefix(certificateID, certificate.IDPrefix)},
		}, nil

	case MethodGetCertificateData:
		record := DemoRecord(certificateID)
		if entry, err := o.chain.Find(ctx, certificateID); err == nil {
			record = entry.Record
		}
		data := record.LedgerData()
		values := make([]any, len(certificate.LedgerDataFields))
		for i, name := range certificate.LedgerDataFields {
			values[i] = data[name]
		}
		return Result{Names: certificate.LedgerDataFields, Values: values}, nil

	default:
		return Result{}, newError(KindQueryFailed, method, 0, fmt.Errorf("method not in contract abi"))
	}
}

// IssuingTransaction reports the simulated transaction, or the demo hash for
// any id the simulation would verify.
func (o *Offline) IssuingTransaction(ctx context.Context, certificateID string) (TransactionRef, bool) {
	if entry, err := o.chain.Find(ctx, certificateID); err == nil && entry.TransactionRef != "" {
		return TransactionRef(entry.TransactionRef), true
	}
	if strings.HasPrefix(certificateID, certificate.IDPrefix) {
		return DemoTransactionRef, true
	}
	return "", false
}

func (o *Offline) wait(ctx context.Context) error {
	if o.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Offline) observe(method string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveLedgerCall(method, string(ModeOffline), outcome(err), time.Since(start).Seconds())
}

func syntheticRef(from common.Address, data []byte) TransactionRef {
	h := sha3.NewLegacyKeccak256()
	h.Write(from.Bytes())
	h.Write(data)
	return TransactionRef(hexutil.Encode(h.Sum(nil)))
}

func singleStringArg(args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("expected string argument, got %T", args[0])
	}
	return s, nil
}

var (
	_ Capability         = (*Offline)(nil)
	_ TransactionLocator = (*Offline)(nil)
)
