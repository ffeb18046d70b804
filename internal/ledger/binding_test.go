package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certchain/internal/identity"
	"certchain/internal/ledger"
	"certchain/internal/ledger/mocks"
	"certchain/internal/platform/metrics"
	dErrors "certchain/pkg/domain-errors"
)

var (
	issuer   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	contract = common.HexToAddress("0x1D8fFd1Ed640F63C83C1b525D8F26eB9eC31620d")
	txHash   = common.HexToHash("0x7a69d66c39efd21ffb871ea8ef22d637148f499dfdfce301af4267f814d15e52")
)

// switchableIdentity stands in for the binder's live snapshot.
type switchableIdentity struct {
	mu   sync.Mutex
	snap identity.Snapshot
}

func (i *switchableIdentity) Snapshot() identity.Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snap
}

func (i *switchableIdentity) switchNetwork(networkID uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.snap.NetworkID = networkID
	i.snap.Generation++
}

type BindingSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	backend  *mocks.MockBackend
	identity *switchableIdentity
	metrics  *metrics.Metrics
	gateway  *ledger.Gateway
	binding  *ledger.Binding
	ctx      context.Context
}

func TestBindingSuite(t *testing.T) {
	suite.Run(t, new(BindingSuite))
}

func (s *BindingSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.backend = mocks.NewMockBackend(s.ctrl)
	s.identity = &switchableIdentity{snap: identity.Snapshot{
		Account:    issuer,
		NetworkID:  5777,
		State:      identity.StateConnected,
		Generation: 1,
	}}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()

	gw, err := ledger.NewGateway(s.backend, s.identity,
		ledger.WithReceiptPolling(time.Millisecond, time.Second),
		ledger.WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.gateway = gw

	binding, err := gw.Bind(ledger.NewDescriptor(map[uint64]common.Address{5777: contract}), s.identity.Snapshot())
	s.Require().NoError(err)
	s.binding = binding
}

func issueArgs(id string) []any {
	return []any{id, "U-1", "Jane Doe", "BSc Computing", "Cambridge University", "", "AI, Robotics", "2025-04-15", "Distinction"}
}

func (s *BindingSuite) TestBindUnprovisionedNetwork() {
	snap := s.identity.Snapshot()
	snap.NetworkID = 1
	_, err := s.gateway.Bind(ledger.NewDescriptor(map[uint64]common.Address{5777: contract}), snap)
	s.ErrorIs(err, ledger.ErrNetworkNotProvisioned)
	s.True(dErrors.HasCode(ledger.AsDomainError(err), dErrors.CodeUnavailable))
}

func (s *BindingSuite) TestInvokeConfirmed() {
	args := issueArgs("CERT-10001")
	want, err := ledger.CertificationABI().Pack(ledger.MethodGenerateCertificate, args...)
	s.Require().NoError(err)

	gomock.InOrder(
		s.backend.EXPECT().SendTransaction(gomock.Any(), issuer, contract, want).Return(txHash, nil),
		s.backend.EXPECT().TransactionReceipt(gomock.Any(), txHash).Return(nil, ethereum.NotFound),
		s.backend.EXPECT().TransactionReceipt(gomock.Any(), txHash).
			Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)}, nil),
	)

	ref, err := s.binding.Invoke(s.ctx, ledger.MethodGenerateCertificate, args, issuer)
	s.Require().NoError(err)
	s.Equal(ledger.TransactionRef(txHash.Hex()), ref)

	seeded, ok := s.binding.IssuingTransaction(s.ctx, "CERT-10001")
	s.True(ok)
	s.Equal(ref, seeded)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LedgerCalls.WithLabelValues(ledger.MethodGenerateCertificate, "live", "ok")))
}

func (s *BindingSuite) TestInvokeRejected() {
	s.Run("provider refuses to sign", func() {
		s.backend.EXPECT().SendTransaction(gomock.Any(), issuer, contract, gomock.Any()).
			Return(common.Hash{}, errors.New("User denied transaction signature"))

		_, err := s.binding.Invoke(s.ctx, ledger.MethodGenerateCertificate, issueArgs("CERT-10002"), issuer)
		s.ErrorIs(err, ledger.ErrInvocationRejected)
		s.Equal("User denied transaction signature", ledger.Reason(err))
		s.True(dErrors.HasCode(ledger.AsDomainError(err), dErrors.CodeLedgerRejected))
	})

	s.Run("contract reverts", func() {
		s.backend.EXPECT().SendTransaction(gomock.Any(), issuer, contract, gomock.Any()).Return(txHash, nil)
		s.backend.EXPECT().TransactionReceipt(gomock.Any(), txHash).
			Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil)

		_, err := s.binding.Invoke(s.ctx, ledger.MethodGenerateCertificate, issueArgs("CERT-10003"), issuer)
		s.ErrorIs(err, ledger.ErrInvocationRejected)
		s.Equal("execution reverted", ledger.Reason(err))

		_, seeded := s.binding.IssuingTransaction(s.ctx, "CERT-10003")
		s.False(seeded)
	})

	s.Run("no account", func() {
		_, err := s.binding.Invoke(s.ctx, ledger.MethodGenerateCertificate, issueArgs("CERT-10004"), common.Address{})
		s.ErrorIs(err, ledger.ErrInvocationRejected)
	})

	s.Run("wrong arity", func() {
		_, err := s.binding.Invoke(s.ctx, ledger.MethodGenerateCertificate, []any{"CERT-10005"}, issuer)
		s.ErrorIs(err, ledger.ErrInvocationRejected)
	})
}

func (s *BindingSuite) TestStaleBindingAfterNetworkChange() {
	s.True(s.binding.Current())
	s.identity.switchNetwork(80001)
	s.False(s.binding.Current())

	_, err := s.binding.Invoke(s.ctx, ledger.MethodGenerateCertificate, issueArgs("CERT-10006"), issuer)
	s.ErrorIs(err, ledger.ErrNetworkMismatch)

	_, err = s.binding.Query(s.ctx, ledger.MethodIsVerified, []any{"CERT-10006"})
	s.ErrorIs(err, ledger.ErrNetworkMismatch)
	s.True(dErrors.HasCode(ledger.AsDomainError(err), dErrors.CodeNetworkMismatch))

	// Switching back does not revive the binding.
	s.identity.switchNetwork(5777)
	_, err = s.binding.Query(s.ctx, ledger.MethodIsVerified, []any{"CERT-10006"})
	s.ErrorIs(err, ledger.ErrNetworkMismatch)
}

func (s *BindingSuite) TestQueryIsVerified() {
	out, err := ledger.CertificationABI().Methods[ledger.MethodIsVerified].Outputs.Pack(true)
	s.Require().NoError(err)
	s.backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
			s.Equal(contract, *msg.To)
			return out, nil
		})

	res, err := s.binding.Query(s.ctx, ledger.MethodIsVerified, []any{"CERT-10007"})
	s.Require().NoError(err)
	ok, err := res.Bool()
	s.Require().NoError(err)
	s.True(ok)
}

func (s *BindingSuite) TestQueryCertificateData() {
	out, err := ledger.CertificationABI().Methods[ledger.MethodGetCertificateData].Outputs.Pack(
		"Jane Doe", "BSc Computing", "Cambridge University", "Department of IT", "AI, Robotics", "2025-04-15", "Merit",
	)
	s.Require().NoError(err)
	s.backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).Return(out, nil)

	res, err := s.binding.Query(s.ctx, ledger.MethodGetCertificateData, []any{"CERT-10008"})
	s.Require().NoError(err)
	data, err := res.Strings()
	s.Require().NoError(err)
	s.Equal("Jane Doe", data["name"])
	s.Equal("Department of IT", data["department"])
	s.Equal("Merit", data["grade"])
}

func (s *BindingSuite) TestQueryFailureKeepsBindingValid() {
	s.backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).Return(nil, errors.New("connection reset"))
	_, err := s.binding.Query(s.ctx, ledger.MethodIsVerified, []any{"CERT-10009"})
	s.ErrorIs(err, ledger.ErrQueryFailed)
	s.True(s.binding.Current())

	s.Run("empty return data does not decode", func() {
		s.backend.EXPECT().CallContract(gomock.Any(), gomock.Any(), gomock.Nil()).Return([]byte{}, nil)
		_, err := s.binding.Query(s.ctx, ledger.MethodIsVerified, []any{"CERT-10009"})
		s.ErrorIs(err, ledger.ErrQueryFailed)
	})

	s.Run("unknown method", func() {
		_, err := s.binding.Query(s.ctx, "revokeCertificate", []any{"CERT-10009"})
		s.ErrorIs(err, ledger.ErrQueryFailed)
	})
}

func TestNewGatewayRequiresDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := ledger.NewGateway(nil, &switchableIdentity{})
	if err == nil {
		t.Fatal("expected error for missing backend")
	}
	_, err = ledger.NewGateway(mocks.NewMockBackend(ctrl), nil)
	if err == nil {
		t.Fatal("expected error for missing identity source")
	}
}
