package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABI = `[
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_to", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"type": "function"
	}
]`

const giftNFTABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "to", "type": "address"},
			{"internalType": "string", "name": "uri", "type": "string"}
		],
		"name": "mintNFT",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC20 covers the two token calls the bonus claim needs.
type ERC20 struct {
	caller  Caller
	Address common.Address
	abi     abi.ABI
}

func NewERC20(caller Caller, address common.Address) *ERC20 {
	return &ERC20{caller: caller, Address: address, abi: mustParseABI(erc20ABI)}
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := callView(ctx, t.caller, t.abi, t.Address, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if balance == nil {
		balance = new(big.Int)
	}
	return balance, nil
}

// TransferData encodes transfer(to, amount).
func (t *ERC20) TransferData(to common.Address, amount *big.Int) ([]byte, error) {
	return t.abi.Pack("transfer", to, amount)
}

// GiftNFT is the loyalty NFT minted as a purchase bonus.
type GiftNFT struct {
	Address common.Address
	abi     abi.ABI
}

func NewGiftNFT(address common.Address) *GiftNFT {
	return &GiftNFT{Address: address, abi: mustParseABI(giftNFTABI)}
}

// MintData encodes mintNFT(to, uri).
func (n *GiftNFT) MintData(to common.Address, uri string) ([]byte, error) {
	return n.abi.Pack("mintNFT", to, uri)
}
