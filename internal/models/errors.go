package models

import (
	"errors"
	"fmt"
)

var (
	ErrWalletUnavailable = errors.New("wallet provider unavailable")
	ErrUserRejected      = errors.New("user rejected the request")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrNoProvider        = errors.New("no wallet provider injected")
	ErrOracleUnavailable = errors.New("price oracle unavailable")
	ErrNameNotFound      = errors.New("name not found")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSessionClosed     = errors.New("session closed")
	// ErrTxStatusUnknown means the transaction was submitted but no receipt was
	// observed. It may still be mined, so it must never be retried blindly.
	ErrTxStatusUnknown = errors.New("transaction status unknown")
)

// ContractCallError is ContractCallFailed(reason): a network, revert or gas
// failure of an on-chain call.
type ContractCallError struct {
	Method string
	Reason string
	Err    error
}

func (e *ContractCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("contract call %s failed: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("contract call %s failed: %s", e.Method, e.Reason)
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}

// ErrInvalidInput rejects a request before it reaches the chain.
type ErrInvalidInput struct {
	Field string
}

func (e ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}
