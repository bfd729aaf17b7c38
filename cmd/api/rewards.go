package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/config"
	"github.com/tewo-market/gateway/internal/services"
	"go.uber.org/zap"
)

// buildRewardSteps dials the networks the bonus flow touches and returns the
// steps that could be set up, in run order. A step whose network is missing is
// skipped, the others still run. The returned func closes the clients.
func buildRewardSteps(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]services.BonusStep, func()) {
	var (
		steps   []services.BonusStep
		clients []*ethclient.Client
	)
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}
	if !cfg.BonusEnabled() {
		return nil, closeAll
	}

	treasury := func(name, url string) (*ethclient.Client, *chain.SignedTransactor, bool) {
		if url == "" {
			log.Warn("bonus step skipped, no rpc url", zap.String("step", name))
			return nil, nil, false
		}
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			log.Warn("bonus step skipped, dial failed", zap.String("step", name), zap.Error(err))
			return nil, nil, false
		}
		tx, err := chain.NewSignedTransactor(ctx, client, cfg.RewardTreasuryKey, cfg.TxReceiptTimeout)
		if err != nil {
			client.Close()
			log.Warn("bonus step skipped, treasury unusable", zap.String("step", name), zap.Error(err))
			return nil, nil, false
		}
		clients = append(clients, client)
		log.Info("bonus step ready", zap.String("step", name), zap.String("treasury", tx.From().Hex()))
		return client, tx, true
	}

	if cfg.AIOracleAddress != "" {
		if client, tx, ok := treasury(services.StepImage, cfg.AIOracleRPCURL); ok {
			oracle := chain.NewAIOracle(client, common.HexToAddress(cfg.AIOracleAddress))
			steps = append(steps, services.NewImageStep(oracle, oracle.Address, tx, cfg.AIModelID, cfg.AIResultDelay))
		}
	}

	if amount, err := chain.ToBaseUnits(cfg.BonusTokenAmount); err != nil || amount.IsZero() {
		log.Warn("bonus step skipped, bad BONUS_TOKEN_AMOUNT", zap.String("amount", cfg.BonusTokenAmount), zap.Error(err))
	} else if client, tx, ok := treasury(services.StepTokenClaim, cfg.L2RPCURL); ok {
		token := chain.NewERC20(client, common.HexToAddress(cfg.L2TokenAddress))
		steps = append(steps, services.NewTokenClaimStep(token, token.Address, tx, amount))
	}

	if cfg.NFTAddress != "" {
		if _, tx, ok := treasury(services.StepNFTMint, cfg.NFTRPCURL); ok {
			nft := chain.NewGiftNFT(common.HexToAddress(cfg.NFTAddress))
			steps = append(steps, services.NewNFTMintStep(nft, nft.Address, tx, cfg.NFTFallbackURI))
		}
	}

	return steps, closeAll
}
