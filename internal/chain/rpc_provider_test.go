package chain

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

type userRejected struct{}

func (userRejected) Error() string  { return "User rejected the request." }
func (userRejected) ErrorCode() int { return userRejectedCode }

// walletAPI is served in-process under the "eth" namespace.
type walletAPI struct {
	mu       sync.Mutex
	accounts []common.Address
	reject   bool
	sent     []sendTxArgs
}

func (w *walletAPI) RequestAccounts() ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return nil, userRejected{}
	}
	return w.accounts, nil
}

func (w *walletAPI) Accounts() []common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accounts
}

func (w *walletAPI) SendTransaction(args sendTxArgs) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return common.Hash{}, userRejected{}
	}
	w.sent = append(w.sent, args)
	return common.HexToHash("0x01"), nil
}

func (w *walletAPI) setAccounts(accounts ...common.Address) {
	w.mu.Lock()
	w.accounts = accounts
	w.mu.Unlock()
}

func newInProcProvider(t *testing.T, api *walletAPI) *RPCProvider {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", api))
	t.Cleanup(server.Stop)

	p := NewRPCProvider("inproc", rpc.DialInProc(server), 10*time.Millisecond, zap.NewNop())
	t.Cleanup(p.Close)
	return p
}

func TestDialProvider_NoURL(t *testing.T) {
	_, err := DialProvider(context.Background(), "", time.Second, zap.NewNop())
	assert.ErrorIs(t, err, models.ErrWalletUnavailable)
}

func TestRPCProvider_RequestAccounts(t *testing.T) {
	acct := common.HexToAddress("0xA1a9E8c73Ecf86AE7F4858D5Cb72E689cDc9eb3e")
	api := &walletAPI{accounts: []common.Address{acct}}
	p := newInProcProvider(t, api)

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{acct}, accounts)
}

func TestRPCProvider_UserRejected(t *testing.T) {
	api := &walletAPI{reject: true}
	p := newInProcProvider(t, api)

	_, err := p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, models.ErrUserRejected)

	_, err = p.SendTransaction(context.Background(), TxRequest{From: common.HexToAddress("0x01"), To: testContract})
	assert.ErrorIs(t, err, models.ErrUserRejected)
}

func TestRPCProvider_SendTransaction(t *testing.T) {
	api := &walletAPI{}
	p := newInProcProvider(t, api)

	from := common.HexToAddress("0xA1a9E8c73Ecf86AE7F4858D5Cb72E689cDc9eb3e")
	value := new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))
	_, err := p.SendTransaction(context.Background(), TxRequest{From: from, To: testContract, Value: value, Data: []byte{1, 2, 3, 4}})
	require.NoError(t, err)

	require.Len(t, api.sent, 1)
	assert.Equal(t, from, api.sent[0].From)
	assert.Equal(t, testContract, *api.sent[0].To)
	assert.Equal(t, 0, api.sent[0].Value.ToInt().Cmp(value))
	assert.Equal(t, []byte{1, 2, 3, 4}, []byte(api.sent[0].Data))
}

func TestRPCProvider_PollPublishesChanges(t *testing.T) {
	a := common.HexToAddress("0x0A")
	b := common.HexToAddress("0x0B")
	api := &walletAPI{accounts: []common.Address{a}}
	p := newInProcProvider(t, api)

	ch := make(chan []common.Address, 4)
	sub := p.SubscribeAccounts(ch)
	defer sub.Unsubscribe()

	ctx := context.Background()
	p.poll(ctx)
	assert.Equal(t, []common.Address{a}, <-ch)

	// unchanged list is not re-sent
	p.poll(ctx)
	assert.Len(t, ch, 0)

	api.setAccounts(b, a)
	p.poll(ctx)
	assert.Equal(t, []common.Address{b, a}, <-ch)

	api.setAccounts()
	p.poll(ctx)
	assert.Empty(t, <-ch)
}
