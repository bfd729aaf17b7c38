package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/repositories"
	"go.uber.org/zap"
)

// ChangeHook observes connection transitions. It runs after the new state is
// visible and must not call back into the manager synchronously.
type ChangeHook func(prev, next models.Connection)

// ConnectionManager owns the wallet connection of one session. It is the
// only writer of that state and of its persisted copy.
type ConnectionManager struct {
	sessionID string
	provider  chain.Provider
	state     repositories.StateRepo
	policy    string
	log       *zap.Logger

	mu    sync.RWMutex
	conn  models.Connection
	hooks []ChangeHook
}

// NewConnectionManager builds a manager for sessionID. provider may be nil
// when no wallet is configured.
func NewConnectionManager(
	sessionID string,
	provider chain.Provider,
	state repositories.StateRepo,
	policy string,
	log *zap.Logger,
) *ConnectionManager {
	if policy != config.PolicyDisconnect {
		policy = config.PolicyAdoptFirst
	}
	return &ConnectionManager{
		sessionID: sessionID,
		provider:  provider,
		state:     state,
		policy:    policy,
		log:       log.With(zap.String("session_id", sessionID)),
	}
}

func (m *ConnectionManager) Provider() chain.Provider {
	return m.provider
}

func (m *ConnectionManager) Current() models.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

func (m *ConnectionManager) OnChange(hook ChangeHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hook)
	m.mu.Unlock()
}

// Connect asks the wallet for account access and adopts the first account.
func (m *ConnectionManager) Connect(ctx context.Context) (models.Connection, error) {
	if m.provider == nil {
		return models.Connection{}, models.ErrWalletUnavailable
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, models.ErrUserRejected) {
			return models.Connection{}, err
		}
		m.log.Warn("eth_requestAccounts failed", zap.Error(err))
		return models.Connection{}, fmt.Errorf("%w: %v", models.ErrWalletUnavailable, err)
	}
	if len(accounts) == 0 {
		return models.Connection{}, fmt.Errorf("%w: no account granted", models.ErrUserRejected)
	}

	next := models.Connection{Address: accounts[0], Connected: true}
	m.adopt(ctx, next)
	m.log.Info("wallet connected", zap.String("account", next.Account()))
	return next, nil
}

// ConnectWithName logs in through a resolved name instead of the wallet
// prompt. The resolved address becomes the active account.
func (m *ConnectionManager) ConnectWithName(ctx context.Context, name string, address common.Address) (models.Connection, error) {
	if m.provider == nil {
		return models.Connection{}, models.ErrWalletUnavailable
	}
	if address == (common.Address{}) {
		return models.Connection{}, fmt.Errorf("%w: %s", models.ErrNameNotFound, name)
	}

	next := models.Connection{Address: address, Connected: true, ResolvedName: name}
	m.adopt(ctx, next)
	m.log.Info("wallet connected by name", zap.String("name", name), zap.String("account", next.Account()))
	return next, nil
}

// Restore re-adopts the persisted address if the wallet still authorizes it.
// It never prompts. A nil connection means nothing was restored.
func (m *ConnectionManager) Restore(ctx context.Context) (*models.Connection, error) {
	saved, ok, err := m.state.Get(ctx, m.sessionID, models.StateKeyActiveWallet)
	if err != nil {
		return nil, fmt.Errorf("read persisted wallet: %w", err)
	}
	if !ok || !models.IsAccount(saved) {
		return nil, nil
	}
	flag, _, err := m.state.Get(ctx, m.sessionID, models.StateKeyConnected)
	if err != nil {
		return nil, fmt.Errorf("read persisted flag: %w", err)
	}
	if flag != "true" || m.provider == nil {
		return nil, nil
	}

	accounts, err := m.provider.Accounts(ctx)
	if err != nil {
		m.log.Warn("eth_accounts failed during restore", zap.Error(err))
		return nil, nil
	}

	want := common.HexToAddress(saved)
	for _, a := range accounts {
		if a == want {
			next := models.Connection{Address: want, Connected: true}
			m.setState(next)
			m.log.Info("wallet restored", zap.String("account", next.Account()))
			return &next, nil
		}
	}

	m.log.Info("persisted wallet no longer authorized", zap.String("account", want.Hex()))
	return nil, nil
}

// Disconnect clears the in-memory and persisted state. Wallet authorization
// itself is left alone.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	m.setState(models.Connection{})
	if err := m.state.Delete(ctx, m.sessionID, models.StateKeyActiveWallet, models.StateKeyConnected); err != nil {
		return fmt.Errorf("clear persisted wallet: %w", err)
	}
	m.log.Info("wallet disconnected")
	return nil
}

// HandleAccountsChanged applies an account list reported by the wallet. A
// connection made through a resolved name is not tied to the wallet's
// account list and is left alone; only Disconnect ends it.
func (m *ConnectionManager) HandleAccountsChanged(ctx context.Context, accounts []common.Address) {
	current := m.Current()
	if !current.Connected {
		return
	}
	if current.ResolvedName != "" {
		m.log.Debug("ignoring account change for name login",
			zap.String("name", current.ResolvedName),
			zap.Int("accounts", len(accounts)),
		)
		return
	}

	if len(accounts) == 0 {
		m.log.Info("wallet reports no accounts")
		if err := m.Disconnect(ctx); err != nil {
			m.log.Warn("disconnect after account change failed", zap.Error(err))
		}
		return
	}
	if accounts[0] == current.Address {
		return
	}

	switch m.policy {
	case config.PolicyDisconnect:
		m.log.Info("account switched, disconnecting", zap.Int("accounts", len(accounts)))
		if err := m.Disconnect(ctx); err != nil {
			m.log.Warn("disconnect after account change failed", zap.Error(err))
		}
	default:
		next := models.Connection{Address: accounts[0], Connected: true}
		m.adopt(ctx, next)
		m.log.Info("account switched, adopted first",
			zap.String("account", next.Account()),
			zap.Int("accounts", len(accounts)),
		)
	}
}

// Watch consumes the provider's account subscription until ctx is done.
func (m *ConnectionManager) Watch(ctx context.Context) {
	if m.provider == nil {
		return
	}

	ch := make(chan []common.Address, 8)
	sub := m.provider.SubscribeAccounts(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				m.log.Warn("account subscription ended", zap.Error(err))
			}
			return
		case accounts := <-ch:
			m.HandleAccountsChanged(ctx, accounts)
		}
	}
}

func (m *ConnectionManager) adopt(ctx context.Context, next models.Connection) {
	m.setState(next)

	if err := m.state.Set(ctx, m.sessionID, models.StateKeyActiveWallet, next.Account()); err != nil {
		m.log.Warn("failed to persist active wallet", zap.Error(err))
	}
	if err := m.state.Set(ctx, m.sessionID, models.StateKeyConnected, "true"); err != nil {
		m.log.Warn("failed to persist connected flag", zap.Error(err))
	}
}

func (m *ConnectionManager) setState(next models.Connection) {
	m.mu.Lock()
	prev := m.conn
	m.conn = next
	hooks := append([]ChangeHook(nil), m.hooks...)
	m.mu.Unlock()

	if prev == next {
		return
	}
	for _, h := range hooks {
		h(prev, next)
	}
}
