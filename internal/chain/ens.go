package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tewo-market/gateway/internal/models"
)

const ensRegistryABI = `[
	{
		"inputs": [{"internalType": "bytes32", "name": "node", "type": "bytes32"}],
		"name": "resolver",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const ensResolverABI = `[
	{
		"inputs": [{"internalType": "bytes32", "name": "node", "type": "bytes32"}],
		"name": "addr",
		"outputs": [{"internalType": "address payable", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// NameHash implements the recursive ENS namehash.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node[:], label)
	}
	return node
}

// ENSResolver resolves names through the ENS registry on one network.
type ENSResolver struct {
	caller   Caller
	registry common.Address
	regABI   abi.ABI
	resABI   abi.ABI
}

func NewENSResolver(caller Caller, registry common.Address) *ENSResolver {
	return &ENSResolver{
		caller:   caller,
		registry: registry,
		regABI:   mustParseABI(ensRegistryABI),
		resABI:   mustParseABI(ensResolverABI),
	}
}

func (r *ENSResolver) Resolve(ctx context.Context, name string) (common.Address, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || !strings.Contains(name, ".") {
		return common.Address{}, fmt.Errorf("%w: %q", models.ErrNameNotFound, name)
	}
	node := [32]byte(NameHash(name))

	out, err := callView(ctx, r.caller, r.regABI, r.registry, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	resolver := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if resolver == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no resolver for %q", models.ErrNameNotFound, name)
	}

	out, err = callView(ctx, r.caller, r.resABI, resolver, "addr", node)
	if err != nil {
		return common.Address{}, err
	}
	addr := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %q has no address", models.ErrNameNotFound, name)
	}
	return addr, nil
}
