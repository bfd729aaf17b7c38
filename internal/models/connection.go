package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// Persisted state keys, scoped per session.
const (
	StateKeyActiveWallet = "activeWallet"
	StateKeyConnected    = "isWalletConnected"
)

// Connection is the wallet state of one session. At most one address is
// active at a time.
type Connection struct {
	Address      common.Address `json:"-"`
	Connected    bool           `json:"is_wallet_connected"`
	ResolvedName string         `json:"ens_name,omitempty"`
}

// Account returns the hex address, or "" when no address is set.
func (c Connection) Account() string {
	if c.Address == (common.Address{}) {
		return ""
	}
	return c.Address.Hex()
}

// Valid checks the invariant: connected implies a well-formed, non-zero address.
func (c Connection) Valid() bool {
	if !c.Connected {
		return true
	}
	return c.Address != (common.Address{})
}

// IsAccount reports whether s is a well-formed, non-zero account identifier.
func IsAccount(s string) bool {
	return common.IsHexAddress(s) && common.HexToAddress(s) != (common.Address{})
}

// ConnectionView is what the UI sees as reactive fields.
type ConnectionView struct {
	Account           string `json:"account"`
	IsWalletConnected bool   `json:"is_wallet_connected"`
	ENSName           string `json:"ens_name"`
}

func (c Connection) View() ConnectionView {
	return ConnectionView{
		Account:           c.Account(),
		IsWalletConnected: c.Connected,
		ENSName:           c.ResolvedName,
	}
}
