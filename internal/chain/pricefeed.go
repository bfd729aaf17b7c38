package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const aggregatorABI = `[
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "latestRoundData",
		"outputs": [
			{"internalType": "uint80", "name": "roundId", "type": "uint80"},
			{"internalType": "int256", "name": "answer", "type": "int256"},
			{"internalType": "uint256", "name": "startedAt", "type": "uint256"},
			{"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
			{"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// PriceAnswer is a fixed-point oracle answer: the price is Answer / 10^Decimals.
type PriceAnswer struct {
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// PriceFeed reads a Chainlink-style aggregator.
type PriceFeed struct {
	caller  Caller
	address common.Address
	abi     abi.ABI
}

func NewPriceFeed(caller Caller, address common.Address) *PriceFeed {
	return &PriceFeed{caller: caller, address: address, abi: mustParseABI(aggregatorABI)}
}

// Latest returns the latest answer together with the scale the feed reports.
func (f *PriceFeed) Latest(ctx context.Context) (*PriceAnswer, error) {
	dec, err := callView(ctx, f.caller, f.abi, f.address, "decimals")
	if err != nil {
		return nil, err
	}
	round, err := callView(ctx, f.caller, f.abi, f.address, "latestRoundData")
	if err != nil {
		return nil, err
	}

	answer := *abi.ConvertType(round[1], new(*big.Int)).(**big.Int)
	updatedAt := *abi.ConvertType(round[3], new(*big.Int)).(**big.Int)
	return &PriceAnswer{
		Answer:    answer,
		Decimals:  *abi.ConvertType(dec[0], new(uint8)).(*uint8),
		UpdatedAt: time.Unix(updatedAt.Int64(), 0),
	}, nil
}
