package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tewo-market/gateway/internal/models"
)

// Contract is the marketplace binding as the services use it.
// *chain.Binding satisfies it.
type Contract interface {
	Call(ctx context.Context, from common.Address, method string, args ...any) ([]any, error)
	Transact(ctx context.Context, from common.Address, value *big.Int, method string, args ...any) (*models.TxReceipt, error)
}

// Wallet is the per-session handle every gateway operation runs through:
// who is connected and which contract binding their provider yields.
type Wallet interface {
	SessionID() string
	Connection() models.Connection
	Contract() (Contract, error)
}
