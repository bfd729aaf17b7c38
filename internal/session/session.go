package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/events"
	"github.com/tewo-market/gateway/internal/metrics"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/repositories"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

// Session is one UI tab: its wallet connection and the contract binding
// derived from it.
type Session struct {
	ID        string
	CreatedAt time.Time
	Conn      *services.ConnectionManager

	binder   *chain.Binder
	cancel   context.CancelFunc
	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

func (s *Session) SessionID() string {
	return s.ID
}

func (s *Session) Connection() models.Connection {
	return s.Conn.Current()
}

// Contract returns the binding for the session's provider, built on first
// use and dropped whenever the connection changes.
func (s *Session) Contract() (services.Contract, error) {
	b, err := s.binder.Get(s.Conn.Provider())
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Registry owns every live session. Sessions are created at login, evicted
// after SessionIdleTimeout without a request and torn down on logout or
// shutdown. A closed id stays refused until its token would have expired.
type Registry struct {
	root      context.Context
	provider  chain.Provider
	state     repositories.StateRepo
	contract  common.Address
	abi       abi.ABI
	cfg       *config.Config
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   map[string]time.Time
}

// NewRegistry builds a registry. root bounds the lifetime of the account
// watchers it starts. provider may be nil.
func NewRegistry(
	root context.Context,
	provider chain.Provider,
	state repositories.StateRepo,
	contractABI abi.ABI,
	publisher events.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *Registry {
	return &Registry{
		root:      root,
		provider:  provider,
		state:     state,
		contract:  common.HexToAddress(cfg.ContractAddress),
		abi:       contractABI,
		cfg:       cfg,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		closed:    make(map[string]time.Time),
	}
}

func (r *Registry) Create() *Session {
	s := r.open(uuid.NewString())

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Info("session created", zap.String("session_id", s.ID))
	return s
}

// Get returns the live session for id and marks it as seen. A session not
// held in memory (after a restart or an idle eviction) is rebuilt and its
// persisted wallet restored. A closed session is refused with
// ErrSessionClosed.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	now := r.now()

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(now)
		return s, nil
	}

	r.mu.Lock()
	if until, dead := r.closed[id]; dead {
		if now.Before(until) {
			r.mu.Unlock()
			return nil, models.ErrSessionClosed
		}
		delete(r.closed, id)
	}
	if s, ok = r.sessions[id]; ok {
		r.mu.Unlock()
		s.touch(now)
		return s, nil
	}
	s = r.open(id)
	r.sessions[id] = s
	r.mu.Unlock()

	if _, err := s.Conn.Restore(ctx); err != nil {
		r.log.Warn("session restore failed", zap.String("session_id", id), zap.Error(err))
	}
	return s, nil
}

// Close ends a session and forgets its persisted wallet.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.closed[id] = r.now().Add(r.cfg.JWTExpiration)
	r.mu.Unlock()

	if ok {
		s.cancel()
		r.metrics.SessionClosed()
	}
	r.log.Info("session closed", zap.String("session_id", id))
	return r.state.Delete(ctx, id)
}

// Sweep evicts sessions idle for longer than SessionIdleTimeout and drops
// expired tombstones. Evicted sessions keep their persisted wallet so the
// next request can revive them. It returns how many sessions were evicted.
func (r *Registry) Sweep() int {
	now := r.now()
	idle := r.cfg.SessionIdleTimeout

	r.mu.Lock()
	var evicted []*Session
	if idle > 0 {
		for id, s := range r.sessions {
			if s.idleSince(now) > idle {
				evicted = append(evicted, s)
				delete(r.sessions, id)
			}
		}
	}
	for id, until := range r.closed {
		if !now.Before(until) {
			delete(r.closed, id)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.cancel()
		r.metrics.SessionClosed()
		r.log.Debug("idle session evicted", zap.String("session_id", s.ID))
	}
	return len(evicted)
}

// Run sweeps until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.SessionIdleTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("idle sessions evicted", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		}
	}
}

// CloseAll stops every watcher. Persisted state is kept so sessions can be
// restored by the next process.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		s.cancel()
		r.metrics.SessionClosed()
		delete(r.sessions, id)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) open(id string) *Session {
	conn := services.NewConnectionManager(id, r.provider, r.state, r.cfg.AccountChangePolicy, r.log)
	binder := chain.NewBinder(r.contract, r.abi, r.cfg.TxReceiptTimeout)

	conn.OnChange(func(_, next models.Connection) {
		binder.Reset()
		r.publishWallet(id, next)
	})

	ctx, cancel := context.WithCancel(r.root)
	go conn.Watch(ctx)

	r.metrics.SessionOpened()
	now := r.now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		Conn:      conn,
		binder:    binder,
		cancel:    cancel,
	}
	s.touch(now)
	return s
}

func (r *Registry) publishWallet(id string, next models.Connection) {
	if r.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.root, 5*time.Second)
	defer cancel()

	view := next.View()
	if err := r.publisher.Publish(ctx, events.StreamSession, events.Event{
		Type:      events.EventWalletChanged,
		SessionID: id,
		Payload: map[string]any{
			"account":             view.Account,
			"is_wallet_connected": view.IsWalletConnected,
			"ens_name":            view.ENSName,
		},
	}); err != nil {
		r.log.Debug("wallet event publish failed", zap.String("session_id", id), zap.Error(err))
	}
}
