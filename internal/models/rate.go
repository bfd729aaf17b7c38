package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversionRate is the native asset price in the display currency's base
// fiat (PricePerUnit) and the fixed fiat-to-local multiplier applied on top.
type ConversionRate struct {
	PricePerUnit   float64   `json:"price_per_unit"`
	FiatMultiplier float64   `json:"fiat_multiplier"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// PendingNotification is a short-lived banner. It stops being visible after
// ExpiresAt.
type PendingNotification struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Visible   bool      `json:"visible"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TxReceipt is the outcome of a mined write call.
type TxReceipt struct {
	Hash        string `json:"tx_hash"`
	From        string `json:"from"`
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}
