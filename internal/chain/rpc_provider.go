package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

// EIP-1193 error code for a request the user declined.
const userRejectedCode = 4001

// RPCProvider talks to a wallet over JSON-RPC. Wallets do not push account
// changes over plain HTTP, so eth_accounts is polled and changes are fanned
// out through an event.Feed.
type RPCProvider struct {
	url       string
	rpc       *rpc.Client
	eth       *ethclient.Client
	pollEvery time.Duration
	log       *zap.Logger

	feed event.Feed
	mu   sync.Mutex
	last []common.Address
}

// DialProvider connects to the wallet endpoint. An empty url means no wallet
// is available.
func DialProvider(ctx context.Context, url string, pollEvery time.Duration, log *zap.Logger) (*RPCProvider, error) {
	if url == "" {
		return nil, models.ErrWalletUnavailable
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet provider: %w", errors.Join(models.ErrWalletUnavailable, err))
	}

	log.Info("wallet provider connected", zap.String("url", url))
	return NewRPCProvider(url, client, pollEvery, log), nil
}

// NewRPCProvider wraps an existing client. id must be unique per wallet.
func NewRPCProvider(id string, client *rpc.Client, pollEvery time.Duration, log *zap.Logger) *RPCProvider {
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	return &RPCProvider{
		url:       id,
		rpc:       client,
		eth:       ethclient.NewClient(client),
		pollEvery: pollEvery,
		log:       log,
	}
}

func (p *RPCProvider) ID() string {
	return p.url
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.rpc.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, mapWalletError(err)
	}
	return accounts, nil
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, mapWalletError(err)
	}
	return accounts, nil
}

func (p *RPCProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.eth.ChainID(ctx)
}

func (p *RPCProvider) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return p.eth.CallContract(ctx, msg, block)
}

type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func (p *RPCProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	to := req.To
	args := sendTxArgs{From: req.From, To: &to, Data: req.Data}
	if req.Value != nil && req.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(req.Value)
	}

	var hash common.Hash
	if err := p.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, mapWalletError(err)
	}
	return hash, nil
}

func (p *RPCProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.eth.TransactionReceipt(ctx, hash)
}

func (p *RPCProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Run polls authorized accounts until ctx is done.
func (p *RPCProvider) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *RPCProvider) poll(ctx context.Context) {
	accounts, err := p.Accounts(ctx)
	if err != nil {
		p.log.Debug("account poll failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	changed := !slices.Equal(p.last, accounts)
	p.last = accounts
	p.mu.Unlock()

	if changed {
		p.feed.Send(accounts)
	}
}

func (p *RPCProvider) Close() {
	p.rpc.Close()
}

func mapWalletError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return fmt.Errorf("%w: %s", models.ErrUserRejected, rpcErr.Error())
	}
	return err
}
