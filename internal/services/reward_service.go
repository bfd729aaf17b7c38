package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/metrics"
	"github.com/tewo-market/gateway/internal/models"
	"go.uber.org/zap"
)

const (
	StepImage      = "image"
	StepTokenClaim = "token_claim"
	StepNFTMint    = "nft_mint"
)

var (
	ErrInsufficientFunds = errors.New("insufficient treasury balance")
	ErrImagePending      = errors.New("image result not ready")
)

// Transactor sends treasury-signed transactions. *chain.SignedTransactor
// satisfies it.
type Transactor interface {
	From() common.Address
	Balance(ctx context.Context) (*big.Int, error)
	Quote(ctx context.Context, to common.Address, value *big.Int, data []byte) (*chain.TxQuote, error)
	Send(ctx context.Context, to common.Address, value *big.Int, data []byte, quote *chain.TxQuote) (*models.TxReceipt, error)
}

// BonusJob is one bonus being granted. Steps may fill in fields later steps
// read.
type BonusJob struct {
	Recipient common.Address
	Quantity  uint64
	Purchase  PurchaseContext
	ImageURI  string
}

// BonusStep is one independent part of the bonus. A failing step does not
// stop the ones after it.
type BonusStep interface {
	Name() string
	Run(ctx context.Context, job *BonusJob) error
}

// RewardService grants purchase bonuses on a background worker. Nothing it
// does is reported back to the purchase.
type RewardService struct {
	threshold uint64
	steps     []BonusStep
	jobs      chan BonusJob
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewRewardService(threshold int, steps []BonusStep, m *metrics.Metrics, log *zap.Logger) *RewardService {
	if threshold < 0 {
		threshold = 0
	}
	return &RewardService{
		threshold: uint64(threshold),
		steps:     steps,
		jobs:      make(chan BonusJob, 64),
		metrics:   m,
		log:       log,
	}
}

// MaybeGrantBonus queues a bonus when quantity is above the threshold. It
// never blocks; a full queue drops the bonus.
func (s *RewardService) MaybeGrantBonus(conn models.Connection, quantity uint64, purchase PurchaseContext) bool {
	if quantity <= s.threshold || !conn.Connected || len(s.steps) == 0 {
		return false
	}

	job := BonusJob{Recipient: conn.Address, Quantity: quantity, Purchase: purchase}
	select {
	case s.jobs <- job:
		s.log.Info("bonus queued",
			zap.String("recipient", conn.Account()),
			zap.Uint64("quantity", quantity),
			zap.Uint64("listing_id", purchase.ListingID),
		)
		return true
	default:
		s.log.Warn("bonus queue full, dropping", zap.String("recipient", conn.Account()))
		return false
	}
}

// Start runs the worker until ctx is done.
func (s *RewardService) Start(ctx context.Context) {
	s.log.Info("reward worker started", zap.Int("steps", len(s.steps)))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reward worker stopped")
			return
		case job := <-s.jobs:
			s.process(ctx, job)
		}
	}
}

func (s *RewardService) process(ctx context.Context, job BonusJob) {
	for _, step := range s.steps {
		if ctx.Err() != nil {
			return
		}
		s.runStep(ctx, step, &job)
	}
}

func (s *RewardService) runStep(ctx context.Context, step BonusStep, job *BonusJob) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		s.metrics.RewardStep(step.Name(), err)
		if err != nil {
			s.log.Warn("bonus step failed",
				zap.String("step", step.Name()),
				zap.String("recipient", job.Recipient.Hex()),
				zap.Error(err),
			)
			return
		}
		s.log.Info("bonus step done", zap.String("step", step.Name()), zap.String("recipient", job.Recipient.Hex()))
	}()

	err = step.Run(ctx, job)
}

// --- steps ---

// ImageOracle is the paid AI image plugin. *chain.AIOracle satisfies it.
type ImageOracle interface {
	EstimateFee(ctx context.Context, modelID int64) (*big.Int, error)
	RequestData(modelID int64, prompt string) ([]byte, error)
	Result(ctx context.Context, modelID int64, prompt string) (string, error)
}

// ImageStep pays the oracle for a gift card picture and reads the answer
// after a fixed delay.
type ImageStep struct {
	oracle  ImageOracle
	address common.Address
	tx      Transactor
	modelID int64
	delay   time.Duration
}

func NewImageStep(oracle ImageOracle, address common.Address, tx Transactor, modelID int64, delay time.Duration) *ImageStep {
	return &ImageStep{oracle: oracle, address: address, tx: tx, modelID: modelID, delay: delay}
}

func (s *ImageStep) Name() string { return StepImage }

func (s *ImageStep) Run(ctx context.Context, job *BonusJob) error {
	prompt := giftPrompt(job)

	fee, err := s.oracle.EstimateFee(ctx, s.modelID)
	if err != nil {
		return fmt.Errorf("estimate fee: %w", err)
	}
	data, err := s.oracle.RequestData(s.modelID, prompt)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if _, err := s.tx.Send(ctx, s.address, fee, data, nil); err != nil {
		return fmt.Errorf("request image: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}

	uri, err := s.oracle.Result(ctx, s.modelID, prompt)
	if err != nil {
		return fmt.Errorf("read result: %w", err)
	}
	if uri == "" {
		return ErrImagePending
	}
	job.ImageURI = uri
	return nil
}

func giftPrompt(job *BonusJob) string {
	title := job.Purchase.Title
	if title == "" {
		title = "fresh produce"
	}
	return fmt.Sprintf("A colourful gift card celebrating a purchase of %d %s at the Tewo farmers market", job.Quantity, title)
}

// TokenLedger is the bonus token. *chain.ERC20 satisfies it.
type TokenLedger interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	TransferData(to common.Address, amount *big.Int) ([]byte, error)
}

// TokenClaimStep transfers bonus tokens from the treasury on the L2. The
// treasury pays gas itself, so both balances are checked first.
type TokenClaimStep struct {
	token   TokenLedger
	address common.Address
	tx      Transactor
	amount  *big.Int
}

func NewTokenClaimStep(token TokenLedger, address common.Address, tx Transactor, amount models.BaseUnits) *TokenClaimStep {
	return &TokenClaimStep{token: token, address: address, tx: tx, amount: amount.Int()}
}

func (s *TokenClaimStep) Name() string { return StepTokenClaim }

func (s *TokenClaimStep) Run(ctx context.Context, job *BonusJob) error {
	data, err := s.token.TransferData(job.Recipient, s.amount)
	if err != nil {
		return fmt.Errorf("encode transfer: %w", err)
	}
	quote, err := s.tx.Quote(ctx, s.address, nil, data)
	if err != nil {
		return fmt.Errorf("quote transfer: %w", err)
	}

	tokens, err := s.token.BalanceOf(ctx, s.tx.From())
	if err != nil {
		return fmt.Errorf("token balance: %w", err)
	}
	if tokens.Cmp(s.amount) < 0 {
		return fmt.Errorf("%w: have %s tokens, need %s", ErrInsufficientFunds, tokens, s.amount)
	}
	native, err := s.tx.Balance(ctx)
	if err != nil {
		return fmt.Errorf("native balance: %w", err)
	}
	if native.Cmp(quote.Fee) < 0 {
		return fmt.Errorf("%w: have %s for gas, need %s", ErrInsufficientFunds, native, quote.Fee)
	}

	if _, err := s.tx.Send(ctx, s.address, nil, data, quote); err != nil {
		return fmt.Errorf("send transfer: %w", err)
	}
	return nil
}

// Minter encodes the gift NFT mint. *chain.GiftNFT satisfies it.
type Minter interface {
	MintData(to common.Address, uri string) ([]byte, error)
}

// NFTMintStep mints the gift card, using the generated image when the image
// step produced one.
type NFTMintStep struct {
	nft         Minter
	address     common.Address
	tx          Transactor
	fallbackURI string
}

func NewNFTMintStep(nft Minter, address common.Address, tx Transactor, fallbackURI string) *NFTMintStep {
	return &NFTMintStep{nft: nft, address: address, tx: tx, fallbackURI: fallbackURI}
}

func (s *NFTMintStep) Name() string { return StepNFTMint }

func (s *NFTMintStep) Run(ctx context.Context, job *BonusJob) error {
	uri := job.ImageURI
	if uri == "" {
		uri = s.fallbackURI
	}
	data, err := s.nft.MintData(job.Recipient, uri)
	if err != nil {
		return fmt.Errorf("encode mint: %w", err)
	}
	if _, err := s.tx.Send(ctx, s.address, nil, data, nil); err != nil {
		return fmt.Errorf("send mint: %w", err)
	}
	return nil
}
