package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tewo-market/gateway/internal/models"
)

// TxBackend is the node API a locally signing transactor needs.
// *ethclient.Client satisfies it.
type TxBackend interface {
	Caller
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// TxQuote is the estimated cost of a transaction.
type TxQuote struct {
	GasLimit uint64
	GasPrice *big.Int
	Fee      *big.Int
}

// SignedTransactor signs with a key held by the service (the reward
// treasury), unlike Binding which lets the user's wallet sign.
type SignedTransactor struct {
	backend        TxBackend
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
}

func NewSignedTransactor(ctx context.Context, backend TxBackend, privateKeyHex string, receiptTimeout time.Duration) (*SignedTransactor, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if receiptTimeout <= 0 {
		receiptTimeout = 2 * time.Minute
	}

	return &SignedTransactor{
		backend:        backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		receiptTimeout: receiptTimeout,
		pollInterval:   receiptPollInterval,
	}, nil
}

func (t *SignedTransactor) From() common.Address {
	return t.from
}

// Balance returns the native balance of the signing account.
func (t *SignedTransactor) Balance(ctx context.Context) (*big.Int, error) {
	return t.backend.BalanceAt(ctx, t.from, nil)
}

// Quote estimates gas and fee for a call from the treasury.
func (t *SignedTransactor) Quote(ctx context.Context, to common.Address, value *big.Int, data []byte) (*TxQuote, error) {
	gasLimit, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{From: t.from, To: &to, Value: value, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return &TxQuote{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Fee:      new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit)),
	}, nil
}

// Send signs and submits a transaction, then waits for its receipt. A nil
// quote is estimated first.
func (t *SignedTransactor) Send(ctx context.Context, to common.Address, value *big.Int, data []byte, quote *TxQuote) (*models.TxReceipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	if quote == nil {
		q, err := t.Quote(ctx, to, value, data)
		if err != nil {
			return nil, err
		}
		quote = q
	}

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      quote.GasLimit,
		GasPrice: quote.GasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := t.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrTxStatusUnknown, signed.Hash().Hex(), err)
	}
	result := &models.TxReceipt{
		Hash:    signed.Hash().Hex(),
		From:    t.from.Hex(),
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return result, fmt.Errorf("transaction %s reverted", result.Hash)
	}
	return result, nil
}

func (t *SignedTransactor) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
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
