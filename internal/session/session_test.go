package session

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
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/events"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/repositories"
	"go.uber.org/zap"
)

var (
	alice = common.HexToAddress("0xA1a9E8c73Ecf86AE7F4858D5Cb72E689cDc9eb3e")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000b0b00")
)

type stubProvider struct {
	accounts []common.Address
	feed     event.Feed
}

func (p *stubProvider) ID() string { return "stub" }

func (p *stubProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return p.accounts, nil
}

func (p *stubProvider) Accounts(context.Context) ([]common.Address, error) {
	return p.accounts, nil
}

func (p *stubProvider) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (p *stubProvider) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) SendTransaction(context.Context, chain.TxRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not implemented")
}

func (p *stubProvider) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (p *stubProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.feed.Subscribe(ch)
}

// clock is a settable time source for the registry.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRegistry(t *testing.T, provider chain.Provider, state repositories.StateRepo, pub events.Publisher) *Registry {
	t.Helper()
	contractABI, err := chain.MarketplaceABI()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		ContractAddress:     "0xb9C992eF068a2a7b71e5EaeE22AAc2eB48D98d04",
		AccountChangePolicy: config.PolicyAdoptFirst,
		JWTExpiration:       time.Hour,
		SessionIdleTimeout:  30 * time.Minute,
	}
	r := NewRegistry(ctx, provider, state, contractABI, pub, nil, cfg, zap.NewNop())
	t.Cleanup(r.CloseAll)
	return r
}

func TestCreateAndGet(t *testing.T) {
	r := newRegistry(t, &stubProvider{}, repositories.NewMemoryStateRepo(), nil)

	a := r.Create()
	b := r.Create()
	assert.NotEqual(t, a.ID, b.ID)
	got, err := r.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, 2, r.Len())
	assert.False(t, a.Connection().Connected)
}

func TestGet_RevivesPersistedWallet(t *testing.T) {
	ctx := context.Background()
	state := repositories.NewMemoryStateRepo()
	require.NoError(t, state.Set(ctx, "old-session", models.StateKeyActiveWallet, alice.Hex()))
	require.NoError(t, state.Set(ctx, "old-session", models.StateKeyConnected, "true"))

	r := newRegistry(t, &stubProvider{accounts: []common.Address{alice}}, state, nil)

	s, err := r.Get(ctx, "old-session")
	require.NoError(t, err)
	assert.Equal(t, "old-session", s.SessionID())
	assert.Equal(t, alice, s.Connection().Address)
	assert.True(t, s.Connection().Connected)
}

func TestContract_NoProvider(t *testing.T) {
	r := newRegistry(t, nil, repositories.NewMemoryStateRepo(), nil)

	_, err := r.Create().Contract()
	assert.ErrorIs(t, err, models.ErrNoProvider)
}

func TestConnectionChange_ResetsBindingAndPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewLocalBus()
	var (
		mu  sync.Mutex
		got []events.Event
	)
	require.NoError(t, bus.Subscribe(ctx, events.StreamSession, func(e events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}))

	r := newRegistry(t, &stubProvider{accounts: []common.Address{alice}}, repositories.NewMemoryStateRepo(), bus)
	s := r.Create()

	first, err := s.Contract()
	require.NoError(t, err)
	again, err := s.Contract()
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = s.Conn.Connect(ctx)
	require.NoError(t, err)

	after, err := s.Contract()
	require.NoError(t, err)
	assert.NotSame(t, first, after)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, events.EventWalletChanged, got[0].Type)
	assert.Equal(t, s.ID, got[0].SessionID)
	assert.Equal(t, alice.Hex(), got[0].Payload["account"])
	assert.Equal(t, true, got[0].Payload["is_wallet_connected"])
}

func TestClose_ForgetsPersistedWallet(t *testing.T) {
	ctx := context.Background()
	state := repositories.NewMemoryStateRepo()
	r := newRegistry(t, &stubProvider{accounts: []common.Address{bob}}, state, nil)

	s := r.Create()
	_, err := s.Conn.Connect(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx, s.ID))
	assert.Zero(t, r.Len())
	_, ok, err := state.Get(ctx, s.ID, models.StateKeyActiveWallet)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClose_RefusesTheClosedID(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, &stubProvider{}, repositories.NewMemoryStateRepo(), nil)

	s := r.Create()
	require.NoError(t, r.Close(ctx, s.ID))

	_, err := r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, models.ErrSessionClosed)
	assert.Zero(t, r.Len())
}

func TestGet_ClosedIDUsableAfterTokenExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newRegistry(t, &stubProvider{}, repositories.NewMemoryStateRepo(), nil)
	r.now = clk.Now

	s := r.Create()
	require.NoError(t, r.Close(ctx, s.ID))

	clk.Advance(59 * time.Minute)
	_, err := r.Get(ctx, s.ID)
	assert.ErrorIs(t, err, models.ErrSessionClosed)

	clk.Advance(2 * time.Minute)
	again, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)
	assert.False(t, again.Connection().Connected)
}

func TestSweep_EvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newRegistry(t, &stubProvider{}, repositories.NewMemoryStateRepo(), nil)
	r.now = clk.Now

	for i := 0; i < 50; i++ {
		r.Create()
	}
	active := r.Create()
	require.Equal(t, 51, r.Len())

	clk.Advance(20 * time.Minute)
	_, err := r.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Zero(t, r.Sweep())

	clk.Advance(15 * time.Minute)
	assert.Equal(t, 50, r.Sweep())
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Same(t, active, got)
}

func TestSweep_EvictedSessionKeepsWallet(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	state := repositories.NewMemoryStateRepo()
	r := newRegistry(t, &stubProvider{accounts: []common.Address{alice}}, state, nil)
	r.now = clk.Now

	s := r.Create()
	_, err := s.Conn.Connect(ctx)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	require.Equal(t, 1, r.Sweep())
	require.Zero(t, r.Len())

	revived, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.NotSame(t, s, revived)
	assert.Equal(t, alice, revived.Connection().Address)
	assert.True(t, revived.Connection().Connected)
}

func TestSweep_PrunesExpiredTombstones(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newRegistry(t, &stubProvider{}, repositories.NewMemoryStateRepo(), nil)
	r.now = clk.Now

	for i := 0; i < 10; i++ {
		require.NoError(t, r.Close(ctx, r.Create().ID))
	}
	r.Sweep()
	assert.Len(t, r.closed, 10)

	clk.Advance(2 * time.Hour)
	r.Sweep()
	assert.Empty(t, r.closed)
}

func TestRun_StopsWithContext(t *testing.T) {
	r := newRegistry(t, &stubProvider{}, repositories.NewMemoryStateRepo(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
