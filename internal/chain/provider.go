package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// TxRequest is an unsigned transaction handed to the wallet, which signs it
// with the From account.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Provider is the wallet the user connects with. It holds the user's keys,
// so writes go through it unsigned.
type Provider interface {
	// ID identifies the provider instance. Bindings are memoised on it.
	ID() string
	// RequestAccounts asks the user for account access. It may prompt.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns already-authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// SubscribeAccounts delivers the full account list every time it changes.
	SubscribeAccounts(ch chan<- []common.Address) event.Subscription
}

// Caller is the read side of a plain node connection. *ethclient.Client
// satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
}
