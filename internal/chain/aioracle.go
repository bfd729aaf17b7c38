package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Model ids registered on the ORA AI oracle.
const (
	ModelLlama2          = 11
	ModelStableDiffusion = 50
)

const aiOracleABI = `[
	{
		"inputs": [{"internalType": "uint256", "name": "modelId", "type": "uint256"}],
		"name": "estimateFee",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "modelId", "type": "uint256"},
			{"internalType": "string", "name": "prompt", "type": "string"}
		],
		"name": "calculateAIResult",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "modelId", "type": "uint256"},
			{"internalType": "string", "name": "prompt", "type": "string"}
		],
		"name": "getAIResult",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// AIOracle is the on-chain image generation plugin. A request is paid with
// the estimated fee and answered asynchronously by the oracle network.
type AIOracle struct {
	caller  Caller
	Address common.Address
	abi     abi.ABI
}

func NewAIOracle(caller Caller, address common.Address) *AIOracle {
	return &AIOracle{caller: caller, Address: address, abi: mustParseABI(aiOracleABI)}
}

func (o *AIOracle) EstimateFee(ctx context.Context, modelID int64) (*big.Int, error) {
	out, err := callView(ctx, o.caller, o.abi, o.Address, "estimateFee", big.NewInt(modelID))
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// RequestData encodes calculateAIResult(modelId, prompt).
func (o *AIOracle) RequestData(modelID int64, prompt string) ([]byte, error) {
	return o.abi.Pack("calculateAIResult", big.NewInt(modelID), prompt)
}

// Result returns the answer for prompt, or "" while it is still pending.
func (o *AIOracle) Result(ctx context.Context, modelID int64, prompt string) (string, error) {
	out, err := callView(ctx, o.caller, o.abi, o.Address, "getAIResult", big.NewInt(modelID), prompt)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}
