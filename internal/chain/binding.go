package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/tewo-market/gateway/internal/models"
)

const receiptPollInterval = time.Second

// Binding is a handle on the marketplace contract through one wallet
// provider. It is read-only to callers.
type Binding struct {
	Address common.Address
	ABI     abi.ABI

	provider       Provider
	receiptTimeout time.Duration
	pollInterval   time.Duration
}

// Call runs a view method. from is passed as msg.sender, some getters
// (getUsersGig, getUserAppl) depend on it.
func (b *Binding) Call(ctx context.Context, from common.Address, method string, args ...any) ([]any, error) {
	data, err := b.ABI.Pack(method, args...)
	if err != nil {
		return nil, &models.ContractCallError{Method: method, Reason: "encode arguments", Err: err}
	}

	to := b.Address
	out, err := b.provider.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, b.callError(method, err)
	}

	values, err := b.ABI.Unpack(method, out)
	if err != nil {
		return nil, &models.ContractCallError{Method: method, Reason: "decode result", Err: err}
	}
	return values, nil
}

// Transact submits a state-changing call signed by from with value attached,
// then waits for the receipt. Nothing is retried: once the wallet accepted the
// transaction, a missing receipt is reported as ErrTxStatusUnknown.
func (b *Binding) Transact(ctx context.Context, from common.Address, value *big.Int, method string, args ...any) (*models.TxReceipt, error) {
	data, err := b.ABI.Pack(method, args...)
	if err != nil {
		return nil, &models.ContractCallError{Method: method, Reason: "encode arguments", Err: err}
	}

	hash, err := b.provider.SendTransaction(ctx, TxRequest{From: from, To: b.Address, Value: value, Data: data})
	if err != nil {
		if errors.Is(err, models.ErrUserRejected) {
			return nil, err
		}
		return nil, b.callError(method, err)
	}

	receipt, err := b.waitMined(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", models.ErrTxStatusUnknown, method, hash.Hex(), err)
	}

	result := &models.TxReceipt{
		Hash:    hash.Hex(),
		From:    from.Hex(),
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return result, &models.ContractCallError{Method: method, Reason: "transaction reverted"}
	}
	return result, nil
}

func (b *Binding) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := b.provider.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Binding) callError(method string, err error) error {
	reason, sentinel := DecodeRevert(b.ABI, err)
	if sentinel != nil {
		err = errors.Join(sentinel, err)
	}
	return &models.ContractCallError{Method: method, Reason: reason, Err: err}
}

// Binder produces bindings and memoises them per provider identity.
type Binder struct {
	address        common.Address
	abi            abi.ABI
	receiptTimeout time.Duration

	mu       sync.Mutex
	bindings map[string]*Binding
}

func NewBinder(address common.Address, contractABI abi.ABI, receiptTimeout time.Duration) *Binder {
	if receiptTimeout <= 0 {
		receiptTimeout = 2 * time.Minute
	}
	return &Binder{
		address:        address,
		abi:            contractABI,
		receiptTimeout: receiptTimeout,
		bindings:       make(map[string]*Binding),
	}
}

// Get returns the binding for p, creating it on first use.
func (b *Binder) Get(p Provider) (*Binding, error) {
	if p == nil {
		return nil, models.ErrNoProvider
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if binding, ok := b.bindings[p.ID()]; ok {
		return binding, nil
	}
	binding := &Binding{
		Address:        b.address,
		ABI:            b.abi,
		provider:       p,
		receiptTimeout: b.receiptTimeout,
		pollInterval:   receiptPollInterval,
	}
	b.bindings[p.ID()] = binding
	return binding, nil
}

// Reset drops cached bindings. Called whenever the connection changes.
func (b *Binder) Reset() {
	b.mu.Lock()
	b.bindings = make(map[string]*Binding)
	b.mu.Unlock()
}
