package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// revertErr mimics the error a node returns for a reverted eth_call.
type revertErr struct {
	data []byte
}

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorCode() int         { return 3 }
func (e revertErr) ErrorData() interface{} { return hexutil.Encode(e.data) }

type fakeProvider struct {
	id string

	mu       sync.Mutex
	calls    int
	sends    []TxRequest
	callOut  []byte
	callErr  error
	sendErr  error
	receipt  *types.Receipt
	lastCall ethereum.CallMsg
	feed     event.Feed
}

func (p *fakeProvider) ID() string { return p.id }

func (p *fakeProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return nil, nil
}

func (p *fakeProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return nil, nil
}

func (p *fakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (p *fakeProvider) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastCall = msg
	return p.callOut, p.callErr
}

func (p *fakeProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.sendErr != nil {
		return common.Hash{}, p.sendErr
	}
	p.sends = append(p.sends, req)
	return common.HexToHash("0xabc1"), nil
}

func (p *fakeProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if p.receipt == nil {
		return nil, ethereum.NotFound
	}
	return p.receipt, nil
}

func (p *fakeProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.feed.Subscribe(ch)
}

// selectorCaller answers eth_call by 4-byte selector.
type selectorCaller struct {
	byTarget map[common.Address]map[[4]byte][]byte
	err      error
}

func newSelectorCaller() *selectorCaller {
	return &selectorCaller{byTarget: make(map[common.Address]map[[4]byte][]byte)}
}

func (c *selectorCaller) on(to common.Address, selector []byte, out []byte) {
	if c.byTarget[to] == nil {
		c.byTarget[to] = make(map[[4]byte][]byte)
	}
	c.byTarget[to][[4]byte(selector[:4])] = out
}

func (c *selectorCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, nil
	}
	return c.byTarget[*msg.To][[4]byte(msg.Data[:4])], nil
}
