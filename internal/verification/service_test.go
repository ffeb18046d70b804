package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certchain/internal/certificate"
	"certchain/internal/certificate/store"
	"certchain/internal/ledger"
	"certchain/internal/ledger/mocks"
	"certchain/internal/platform/metrics"
	dErrors "certchain/pkg/domain-errors"
)

var checkedAt = time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)

// fixedSource serves one capability and an optional locator.
type fixedSource struct {
	capability ledger.Capability
	err        error
	locator    ledger.TransactionLocator
}

func (f *fixedSource) Capability() (ledger.Capability, error) {
	return f.capability, f.err
}

func (f *fixedSource) Locator() (ledger.TransactionLocator, bool) {
	return f.locator, f.locator != nil
}

func boolResult(v bool) ledger.Result {
	return ledger.Result{Names: []string{""}, Values: []any{v}}
}

func dataResult(data map[string]string) ledger.Result {
	values := make([]any, len(certificate.LedgerDataFields))
	for i, name := range certificate.LedgerDataFields {
		values[i] = data[name]
	}
	return ledger.Result{Names: certificate.LedgerDataFields, Values: values}
}

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	capability *mocks.MockCapability
	locator    *mocks.MockTransactionLocator
	source     *fixedSource
	records    *store.Store
	metrics    *metrics.Metrics
	service    *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.capability = mocks.NewMockCapability(s.ctrl)
	s.capability.EXPECT().Mode().Return(ledger.ModeLive).AnyTimes()
	s.locator = mocks.NewMockTransactionLocator(s.ctrl)
	s.source = &fixedSource{capability: s.capability, locator: s.locator}

	records, err := store.New(16)
	s.Require().NoError(err)
	s.records = records
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()

	s.service, err = NewService(s.source,
		WithRecords(s.records),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return checkedAt }),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNewServiceRequiresSource() {
	_, err := NewService(nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestEmptyInputMakesNoLedgerCall() {
	for _, input := range []string{"", "   ", "\t\n"} {
		result, err := s.service.Verify(s.ctx, input)
		s.Nil(result)
		s.ErrorIs(err, ErrEmptyInput)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}

func (s *ServiceSuite) TestAuthenticWithDetails() {
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, []any{"CERT-12345"}).
		Return(boolResult(true), nil)
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodGetCertificateData, []any{"CERT-12345"}).
		Return(dataResult(map[string]string{
			certificate.LedgerName:          "Jane Doe",
			certificate.LedgerCourse:        "BSc Computing",
			certificate.LedgerOrg:           "Cambridge University",
			certificate.LedgerProficiencies: "AI, Robotics",
			certificate.LedgerIssueDate:     "2025-04-15",
			certificate.LedgerGrade:         "Merit",
		}), nil)
	s.locator.EXPECT().IssuingTransaction(gomock.Any(), "CERT-12345").Return(ledger.TransactionRef("0xabc"), true)

	result, err := s.service.Verify(s.ctx, "  CERT-12345 ")
	s.Require().NoError(err)
	s.Equal("CERT-12345", result.CertificateID)
	s.True(result.Authentic)
	s.False(result.DetailsUnavailable)
	s.Equal(ledger.TransactionRef("0xabc"), result.TransactionRef)
	s.Equal(checkedAt, result.CheckedAt)
	s.Require().NotNil(result.Record)
	s.Equal("Jane Doe", result.Record.StudentName)
	s.Equal([]string{"AI", "Robotics"}, result.Record.Proficiencies)
	s.Equal(certificate.GradeMerit, result.Record.Grade)

	entry, err := s.records.Find(s.ctx, "CERT-12345")
	s.Require().NoError(err)
	s.Equal(store.SourceVerification, entry.Source)
	s.Equal("0xabc", entry.TransactionRef)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerificationOutcomes.WithLabelValues(outcomeAuthentic)))
}

func (s *ServiceSuite) TestUnknownIDIsNotAuthentic() {
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, []any{"ABC-1"}).
		Return(boolResult(false), nil)

	result, err := s.service.Verify(s.ctx, "ABC-1")
	s.Require().NoError(err)
	s.False(result.Authentic)
	s.Nil(result.Record)
	s.Empty(result.TransactionRef)
	s.Equal(0, s.records.Len())
}

func (s *ServiceSuite) TestDetailsFailureKeepsAuthentic() {
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, gomock.Any()).
		Return(boolResult(true), nil)
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodGetCertificateData, gomock.Any()).
		Return(ledger.Result{}, &ledger.Error{
			Kind:   ledger.KindQueryFailed,
			Method: ledger.MethodGetCertificateData,
			Err:    errors.New("execution reverted"),
		})

	result, err := s.service.Verify(s.ctx, "CERT-55555")
	s.Require().NoError(err)
	s.True(result.Authentic)
	s.True(result.DetailsUnavailable)
	s.Nil(result.Record)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerificationOutcomes.WithLabelValues(outcomeDetailsUnavailable)))
}

func (s *ServiceSuite) TestAuthenticityQueryFailure() {
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, gomock.Any()).
		Return(ledger.Result{}, &ledger.Error{
			Kind:   ledger.KindQueryFailed,
			Method: ledger.MethodIsVerified,
			Err:    errors.New("connection refused"),
		})

	result, err := s.service.Verify(s.ctx, "CERT-55555")
	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeQueryFailed))
	s.ErrorIs(err, ledger.ErrQueryFailed)
}

func (s *ServiceSuite) TestUnexpectedOutputShape() {
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, gomock.Any()).
		Return(ledger.Result{Names: []string{""}, Values: []any{"yes"}}, nil)

	_, err := s.service.Verify(s.ctx, "CERT-55555")
	s.True(dErrors.HasCode(err, dErrors.CodeQueryFailed))
}

func (s *ServiceSuite) TestUnavailableLedger() {
	s.source.capability = nil
	s.source.err = dErrors.New(dErrors.CodeUnavailable, "wallet not connected")

	_, err := s.service.Verify(s.ctx, "CERT-55555")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerificationOutcomes.WithLabelValues(outcomeFailed)))
}

func (s *ServiceSuite) TestEachAttemptIsFresh() {
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, []any{"CERT-11111"}).
		Return(boolResult(true), nil)
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodGetCertificateData, []any{"CERT-11111"}).
		Return(dataResult(map[string]string{certificate.LedgerName: "Jane Doe"}), nil)
	s.locator.EXPECT().IssuingTransaction(gomock.Any(), "CERT-11111").Return(ledger.TransactionRef("0x01"), true)
	s.capability.EXPECT().Query(gomock.Any(), ledger.MethodIsVerified, []any{"ABC-1"}).
		Return(boolResult(false), nil)

	first, err := s.service.Verify(s.ctx, "CERT-11111")
	s.Require().NoError(err)
	second, err := s.service.Verify(s.ctx, "ABC-1")
	s.Require().NoError(err)

	s.NotSame(first, second)
	s.False(second.Authentic)
	s.Nil(second.Record)
	s.Empty(second.TransactionRef)
	s.Equal("Jane Doe", first.Record.StudentName)
}

func TestVerifyOffline(t *testing.T) {
	offline, err := ledger.NewOffline(ledger.WithDelay(0))
	if err != nil {
		t.Fatal(err)
	}
	source := &offlineSource{offline: offline}
	service, err := NewService(source)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("prefixed id resolves to the demo record", func(t *testing.T) {
		result, err := service.Verify(context.Background(), "CERT-99999")
		if err != nil {
			t.Fatal(err)
		}
		if !result.Authentic || result.Record == nil {
			t.Fatalf("expected authentic result with record, got %+v", result)
		}
		if result.Record.StudentName != "John A. Smith" || result.Record.CourseName != "Master of Computer Science" {
			t.Errorf("unexpected demo record: %+v", result.Record)
		}
		if result.TransactionRef != ledger.DemoTransactionRef {
			t.Errorf("transaction ref = %q", result.TransactionRef)
		}
		if result.Mode != ledger.ModeOffline {
			t.Errorf("mode = %q", result.Mode)
		}
	})

	t.Run("other ids are not authentic", func(t *testing.T) {
		result, err := service.Verify(context.Background(), "ABC-1")
		if err != nil {
			t.Fatal(err)
		}
		if result.Authentic || result.Record != nil {
			t.Fatalf("expected non-authentic result, got %+v", result)
		}
	})
}

type offlineSource struct {
	offline *ledger.Offline
}

func (o *offlineSource) Capability() (ledger.Capability, error) {
	return o.offline, nil
}

func (o *offlineSource) Locator() (ledger.TransactionLocator, bool) {
	return o.offline, true
}
