package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/models"
)

var (
	alice = common.HexToAddress("0xA1a9E8c73Ecf86AE7F4858D5Cb72E689cDc9eb3e")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000b0b00")
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// fakeProvider is a wallet with scripted account answers.
type fakeProvider struct {
	mu          sync.Mutex
	granted     []common.Address
	requestErr  error
	authorized  []common.Address
	accountsErr error
	requests    int
	feed        event.Feed
}

func (p *fakeProvider) ID() string { return "fake" }

func (p *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	return p.granted, p.requestErr
}

func (p *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorized, p.accountsErr
}

func (p *fakeProvider) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (p *fakeProvider) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (p *fakeProvider) SendTransaction(context.Context, chain.TxRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not implemented")
}

func (p *fakeProvider) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (p *fakeProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.feed.Subscribe(ch)
}

type contractCall struct {
	from   common.Address
	value  *big.Int
	method string
	args   []any
}

// fakeContract keeps produce and gigs in memory and answers the marketplace
// reads from them.
type fakeContract struct {
	mu       sync.Mutex
	calls    []contractCall
	produce  []chain.ProduceTuple
	gigs     []chain.GigTuple
	reads    map[string][]any
	readErr  error
	writeErr error
}

func (c *fakeContract) Call(_ context.Context, from common.Address, method string, args ...any) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, contractCall{from: from, method: method, args: args})

	if c.readErr != nil {
		return nil, c.readErr
	}
	if out, ok := c.reads[method]; ok {
		return out, nil
	}
	switch method {
	case chain.MethodGetAllProduce:
		return []any{append([]chain.ProduceTuple{}, c.produce...)}, nil
	case chain.MethodGetAllGigs:
		return []any{append([]chain.GigTuple{}, c.gigs...)}, nil
	case chain.MethodGetProduceByID:
		id := args[0].(*big.Int)
		for _, p := range c.produce {
			if p.Id.Cmp(id) == 0 {
				return []any{p}, nil
			}
		}
		return []any{chain.ProduceTuple{}}, nil
	}
	return nil, fmt.Errorf("unexpected read %s", method)
}

func (c *fakeContract) Transact(_ context.Context, from common.Address, value *big.Int, method string, args ...any) (*models.TxReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, contractCall{from: from, value: value, method: method, args: args})

	if c.writeErr != nil {
		return nil, c.writeErr
	}
	switch method {
	case chain.MethodListProduce:
		in := args[0].(chain.ProduceInputTuple)
		c.produce = append(c.produce, chain.ProduceTuple{
			Id:          big.NewInt(int64(len(c.produce) + 1)),
			Farmer:      from,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Quantity:    in.Quantity,
			ImageUrls:   in.ImageUrls,
			Available:   true,
			Company:     in.Company,
			Location:    in.Location,
		})
	case chain.MethodCreateGig:
		c.gigs = append(c.gigs, chain.GigTuple{
			GigId:       big.NewInt(int64(len(c.gigs) + 1)),
			Owner:       from,
			Img:         args[0].(string),
			Description: args[1].(string),
			Bounty:      value,
			Kpis:        args[2].([]string),
		})
	}
	return &models.TxReceipt{
		Hash:   fmt.Sprintf("0x%064x", len(c.calls)),
		From:   from.Hex(),
		Status: types.ReceiptStatusSuccessful,
	}, nil
}

func (c *fakeContract) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *fakeContract) last() contractCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[len(c.calls)-1]
}

func (c *fakeContract) writes() []contractCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []contractCall
	for _, call := range c.calls {
		if !isRead(call.method) {
			out = append(out, call)
		}
	}
	return out
}

func isRead(method string) bool {
	switch method {
	case chain.MethodGetAllProduce, chain.MethodGetProduceByID, chain.MethodGetAllGigs,
		chain.MethodGetGigByID, chain.MethodGetUsersGig, chain.MethodGetUserAppl,
		chain.MethodGetGigApplications, chain.MethodHasRole:
		return true
	}
	return false
}

type fakeWallet struct {
	id       string
	conn     models.Connection
	contract Contract
}

func (w *fakeWallet) SessionID() string             { return w.id }
func (w *fakeWallet) Connection() models.Connection { return w.conn }

func (w *fakeWallet) Contract() (Contract, error) {
	if w.contract == nil {
		return nil, models.ErrNoProvider
	}
	return w.contract, nil
}

func connectedWallet(c Contract) *fakeWallet {
	return &fakeWallet{id: "s1", conn: models.Connection{Address: alice, Connected: true}, contract: c}
}

type fakeOracle struct {
	mu     sync.Mutex
	answer *chain.PriceAnswer
	err    error
	calls  int
}

func (o *fakeOracle) Latest(context.Context) (*chain.PriceAnswer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.answer, o.err
}

type bonusCall struct {
	conn     models.Connection
	quantity uint64
	purchase PurchaseContext
}

type recordingGranter struct {
	mu    sync.Mutex
	calls []bonusCall
}

func (g *recordingGranter) MaybeGrantBonus(conn models.Connection, quantity uint64, purchase PurchaseContext) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, bonusCall{conn: conn, quantity: quantity, purchase: purchase})
	return true
}

type sentTx struct {
	to    common.Address
	value *big.Int
	data  []byte
}

// fakeTransactor stands in for the treasury signer.
type fakeTransactor struct {
	mu       sync.Mutex
	from     common.Address
	balance  *big.Int
	fee      *big.Int
	quoteErr error
	sendErr  error
	sent     []sentTx
}

func (t *fakeTransactor) From() common.Address { return t.from }

func (t *fakeTransactor) Balance(context.Context) (*big.Int, error) {
	if t.balance == nil {
		return new(big.Int), nil
	}
	return t.balance, nil
}

func (t *fakeTransactor) Quote(context.Context, common.Address, *big.Int, []byte) (*chain.TxQuote, error) {
	if t.quoteErr != nil {
		return nil, t.quoteErr
	}
	fee := t.fee
	if fee == nil {
		fee = new(big.Int)
	}
	return &chain.TxQuote{GasLimit: 21000, GasPrice: big.NewInt(1), Fee: fee}, nil
}

func (t *fakeTransactor) Send(_ context.Context, to common.Address, value *big.Int, data []byte, _ *chain.TxQuote) (*models.TxReceipt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return nil, t.sendErr
	}
	t.sent = append(t.sent, sentTx{to: to, value: value, data: data})
	return &models.TxReceipt{Hash: fmt.Sprintf("0x%064x", len(t.sent)), Status: 1}, nil
}

func (t *fakeTransactor) sends() []sentTx {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentTx(nil), t.sent...)
}
