package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

// Resolver maps a name to an address on one fixed network.
// *chain.ENSResolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, name string) (common.Address, error)
}

// IdentityService resolves login names. Results are not cached, it runs
// once per login attempt.
type IdentityService struct {
	resolver Resolver
	log      *zap.Logger
}

func NewIdentityService(resolver Resolver, log *zap.Logger) *IdentityService {
	return &IdentityService{resolver: resolver, log: log}
}

// ResolveName fails with ErrNameNotFound for unknown names. Transport
// failures are reported as ErrNameNotFound too, the user sees the same thing.
func (s *IdentityService) ResolveName(ctx context.Context, name string) (common.Address, error) {
	if s.resolver == nil {
		return common.Address{}, fmt.Errorf("%w: resolver not configured", models.ErrNameNotFound)
	}

	addr, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, models.ErrNameNotFound) {
			return common.Address{}, err
		}
		s.log.Warn("name resolution failed", zap.String("name", name), zap.Error(err))
		return common.Address{}, fmt.Errorf("%w: %v", models.ErrNameNotFound, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s", models.ErrNameNotFound, name)
	}
	return addr, nil
}
