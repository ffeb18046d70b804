package binding

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"certchain/internal/identity"
	identityMocks "certchain/internal/identity/mocks"
	"certchain/internal/ledger"
	ledgerMocks "certchain/internal/ledger/mocks"
	"certchain/internal/platform/metrics"
	dErrors "certchain/pkg/domain-errors"
)

var (
	issuer   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	contract = common.HexToAddress("0x1D8fFd1Ed640F63C83C1b525D8F26eB9eC31620d")
)

type ManagerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	provider *identityMocks.MockProvider
	backend  *ledgerMocks.MockBackend
	binder   *identity.Binder
	metrics  *metrics.Metrics
	manager  *Manager
	ctx      context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.provider = identityMocks.NewMockProvider(s.ctrl)
	s.backend = ledgerMocks.NewMockBackend(s.ctrl)
	s.binder = identity.NewBinder(s.provider)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.ctx = context.Background()

	gw, err := ledger.NewGateway(s.backend, s.binder)
	s.Require().NoError(err)
	desc := ledger.NewDescriptor(map[uint64]common.Address{5777: contract, 80001: contract})

	m, err := NewManager(s.binder, WithGateway(gw, desc), WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.manager = m
}

func (s *ManagerSuite) expectConnect(networkID uint64) {
	s.provider.EXPECT().RequestAccounts(gomock.Any()).Return([]common.Address{issuer}, nil)
	s.provider.EXPECT().NetworkID(gomock.Any()).Return(networkID, nil)
}

func (s *ManagerSuite) TestNewManagerValidation() {
	_, err := NewManager(nil, WithOffline(&ledger.Offline{}))
	s.Error(err)

	_, err = NewManager(s.binder)
	s.Error(err, "no ledger variant")

	offline, err := ledger.NewOffline()
	s.Require().NoError(err)
	gw, err := ledger.NewGateway(s.backend, s.binder)
	s.Require().NoError(err)
	_, err = NewManager(s.binder, WithOffline(offline), WithGateway(gw, ledger.NewDescriptor(nil)))
	s.Error(err, "both ledger variants")

	_, err = NewManager(s.binder, WithGateway(gw, nil))
	s.Error(err, "missing descriptor")
}

func (s *ManagerSuite) TestUnboundBeforeConnect() {
	s.Equal(ledger.ModeLive, s.manager.Mode())
	_, err := s.manager.Capability()
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ManagerSuite) TestConnectBindsLedger() {
	s.expectConnect(5777)
	snap := s.manager.Connect(s.ctx)
	s.True(snap.Connected())

	capability, err := s.manager.Capability()
	s.Require().NoError(err)
	b, ok := capability.(*ledger.Binding)
	s.Require().True(ok)
	s.Equal(uint64(5777), b.NetworkID())
	s.Equal(snap.Generation, b.Generation())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BindingRefreshes.WithLabelValues("bound")))
}

func (s *ManagerSuite) TestConnectOnUnprovisionedNetwork() {
	s.expectConnect(1)
	s.manager.Connect(s.ctx)

	_, err := s.manager.Capability()
	s.ErrorIs(err, ledger.ErrNetworkNotProvisioned)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ManagerSuite) TestConnectFailureSurfacesMessage() {
	s.provider.EXPECT().RequestAccounts(gomock.Any()).Return(nil, identity.ErrAuthorizationDenied)
	s.manager.Connect(s.ctx)

	_, err := s.manager.Capability()
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(identity.MsgAuthorizationDenied, err.Error())
}

func (s *ManagerSuite) TestRunRebindsAfterNetworkChange() {
	s.expectConnect(5777)
	s.manager.Connect(s.ctx)
	before, err := s.manager.Capability()
	s.Require().NoError(err)

	sinks := make(chan chan<- identity.ProviderEvent, 1)
	s.provider.EXPECT().Subscribe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ch chan<- identity.ProviderEvent) (event.Subscription, error) {
			sinks <- ch
			return event.NewSubscription(func(quit <-chan struct{}) error {
				<-quit
				return nil
			}), nil
		})
	s.provider.EXPECT().NetworkID(gomock.Any()).Return(uint64(80001), nil)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.manager.Run(ctx) }()

	var sink chan<- identity.ProviderEvent
	select {
	case sink = <-sinks:
	case <-time.After(time.Second):
		s.FailNow("provider subscription never opened")
	}
	sink <- identity.ProviderEvent{Kind: identity.ProviderChainChanged}

	s.Eventually(func() bool {
		c, err := s.manager.Capability()
		if err != nil {
			return false
		}
		return c.(*ledger.Binding).NetworkID() == 80001
	}, time.Second, 5*time.Millisecond)

	// The binding captured before the change is stale and fails without
	// touching the backend.
	_, err = before.Query(s.ctx, ledger.MethodIsVerified, []any{"CERT-10001"})
	s.ErrorIs(err, ledger.ErrNetworkMismatch)

	cancel()
	s.NoError(<-done)
}

// run starts the manager loop on a provider subscription that stays open
// until ctx ends.
func (s *ManagerSuite) run(ctx context.Context) <-chan error {
	opened := make(chan struct{})
	s.provider.EXPECT().Subscribe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, chan<- identity.ProviderEvent) (event.Subscription, error) {
			close(opened)
			return event.NewSubscription(func(quit <-chan struct{}) error {
				<-quit
				return nil
			}), nil
		})

	done := make(chan error, 1)
	go func() { done <- s.manager.Run(ctx) }()
	select {
	case <-opened:
	case <-time.After(time.Second):
		s.FailNow("provider subscription never opened")
	}
	return done
}

// boundToLatest reports whether the installed binding matches the binder's
// current network and generation.
func (s *ManagerSuite) boundToLatest() bool {
	c, err := s.manager.Capability()
	if err != nil {
		return false
	}
	b := c.(*ledger.Binding)
	snap := s.binder.Snapshot()
	return b.NetworkID() == snap.NetworkID && b.Generation() == snap.Generation
}

func (s *ManagerSuite) TestRebindUsesLatestSnapshot() {
	s.expectConnect(5777)
	connected := s.binder.Connect(s.ctx)
	s.Require().True(connected.Connected())

	// The network moves after authorization but before the rebind runs.
	s.binder.OnNetworkChanged(80001)
	s.manager.rebind(s.ctx)

	c, err := s.manager.Capability()
	s.Require().NoError(err)
	b := c.(*ledger.Binding)
	s.Equal(uint64(80001), b.NetworkID())
	s.Equal(connected.Generation+1, b.Generation())
	s.True(b.Current())
}

func (s *ManagerSuite) TestConnectRacingNetworkChangeConverges() {
	s.expectConnect(5777)
	ctx, cancel := context.WithCancel(s.ctx)
	done := s.run(ctx)

	var wg sync.WaitGroup
	wg.Go(func() { s.manager.Connect(s.ctx) })
	wg.Go(func() { s.binder.OnNetworkChanged(80001) })
	wg.Wait()

	s.Eventually(s.boundToLatest, time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)
}

func (s *ManagerSuite) TestEventBurstSettlesOnLastNetwork() {
	s.expectConnect(5777)
	s.manager.Connect(s.ctx)

	ctx, cancel := context.WithCancel(s.ctx)
	done := s.run(ctx)

	// More changes than a subscriber buffers; some events are dropped.
	for i := range 40 {
		if i%2 == 0 {
			s.binder.OnNetworkChanged(80001)
		} else {
			s.binder.OnNetworkChanged(5777)
		}
	}

	s.Eventually(func() bool {
		return s.boundToLatest() && s.binder.Snapshot().NetworkID == 5777
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)
}

func (s *ManagerSuite) TestOfflineCapabilityNeedsNoWallet() {
	offline, err := ledger.NewOffline(ledger.WithDelay(0))
	s.Require().NoError(err)
	m, err := NewManager(identity.NewBinder(nil), WithOffline(offline))
	s.Require().NoError(err)

	s.Equal(ledger.ModeOffline, m.Mode())
	snap := m.Connect(s.ctx)
	s.Equal(identity.MsgProviderNotDetected, snap.Message)

	capability, err := m.Capability()
	s.Require().NoError(err)
	s.Equal(ledger.ModeOffline, capability.Mode())

	locator, ok := m.Locator()
	s.True(ok)
	ref, ok := locator.IssuingTransaction(s.ctx, "CERT-12345")
	s.True(ok)
	s.Equal(ledger.DemoTransactionRef, ref)
}
