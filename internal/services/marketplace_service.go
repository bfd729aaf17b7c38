package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tewo-market/gateway/internal/chain"
	"github.com/tewo-market/gateway/internal/events"
	"github.com/tewo-market/gateway/internal/metrics"
	"github.com/tewo-market/gateway/internal/models"
	"github.com/tewo-market/gateway/internal/rbac"
	"go.uber.org/zap"
)

// BonusGranter is told about completed purchases. It must not block.
type BonusGranter interface {
	MaybeGrantBonus(conn models.Connection, quantity uint64, purchase PurchaseContext) bool
}

// PurchaseContext describes the purchase a bonus is granted for.
type PurchaseContext struct {
	SessionID string
	ListingID uint64
	Title     string
	TxHash    string
}

// PurchaseValue is the payment attached to requestPurchase: the stored
// base-unit price times quantity. It takes no display amount on purpose.
func PurchaseValue(listing models.Listing, quantity uint64) (models.BaseUnits, error) {
	if quantity == 0 {
		return models.BaseUnits{}, models.ErrInvalidInput{Field: "quantity"}
	}
	return listing.Price.Mul(quantity), nil
}

// MarketplaceService issues the contract reads and writes. Nothing is
// retried; a user retry is a new call.
type MarketplaceService struct {
	rewards   BonusGranter
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewMarketplaceService(
	rewards BonusGranter,
	publisher events.Publisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		rewards:   rewards,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// --- Reads ---

// ListAllListings returns every produce listing (getAllProduce). Listings made
// by CreateListing are gigs and show up in ListAllGigs instead.
func (s *MarketplaceService) ListAllListings(ctx context.Context, w Wallet) (_ []models.Listing, err error) {
	defer s.observe(chain.MethodGetAllProduce, time.Now(), &err)

	out, err := s.read(ctx, w, chain.MethodGetAllProduce)
	if err != nil {
		return nil, err
	}
	tuples, err := chain.Decode[[]chain.ProduceTuple](out[0])
	if err != nil {
		return nil, decodeError(chain.MethodGetAllProduce, err)
	}

	listings := make([]models.Listing, 0, len(tuples))
	for _, t := range tuples {
		listings = append(listings, listingFromTuple(t))
	}
	return listings, nil
}

func (s *MarketplaceService) GetListing(ctx context.Context, w Wallet, id uint64) (_ models.Listing, err error) {
	defer s.observe(chain.MethodGetProduceByID, time.Now(), &err)

	out, err := s.read(ctx, w, chain.MethodGetProduceByID, new(big.Int).SetUint64(id))
	if err != nil {
		return models.Listing{}, err
	}
	t, err := chain.Decode[chain.ProduceTuple](out[0])
	if err != nil {
		return models.Listing{}, decodeError(chain.MethodGetProduceByID, err)
	}
	// an unset slot decodes as the zero struct
	if t.Farmer == (common.Address{}) {
		return models.Listing{}, fmt.Errorf("%w: produce %d", models.ErrInvalidID, id)
	}
	return listingFromTuple(t), nil
}

func (s *MarketplaceService) ListAllGigs(ctx context.Context, w Wallet) (_ []models.Gig, err error) {
	defer s.observe(chain.MethodGetAllGigs, time.Now(), &err)
	return s.readGigs(ctx, w, chain.MethodGetAllGigs)
}

// GetUserGigs lists gigs owned by the connected account.
func (s *MarketplaceService) GetUserGigs(ctx context.Context, w Wallet) (_ []models.Gig, err error) {
	defer s.observe(chain.MethodGetUsersGig, time.Now(), &err)
	if !w.Connection().Connected {
		return nil, models.ErrNotConnected
	}
	return s.readGigs(ctx, w, chain.MethodGetUsersGig)
}

func (s *MarketplaceService) GetGig(ctx context.Context, w Wallet, id uint64) (_ models.Gig, err error) {
	defer s.observe(chain.MethodGetGigByID, time.Now(), &err)

	out, err := s.read(ctx, w, chain.MethodGetGigByID, new(big.Int).SetUint64(id))
	if err != nil {
		return models.Gig{}, err
	}
	t, err := chain.Decode[chain.GigTuple](out[0])
	if err != nil {
		return models.Gig{}, decodeError(chain.MethodGetGigByID, err)
	}
	if t.Owner == (common.Address{}) {
		return models.Gig{}, fmt.Errorf("%w: gig %d", models.ErrInvalidID, id)
	}
	return gigFromTuple(t), nil
}

func (s *MarketplaceService) GetGigApplications(ctx context.Context, w Wallet, gigID uint64) (_ []models.Application, err error) {
	defer s.observe(chain.MethodGetGigApplications, time.Now(), &err)
	return s.readApplications(ctx, w, chain.MethodGetGigApplications, new(big.Int).SetUint64(gigID))
}

// GetUserApplications lists applications sent by the connected account.
func (s *MarketplaceService) GetUserApplications(ctx context.Context, w Wallet) (_ []models.Application, err error) {
	defer s.observe(chain.MethodGetUserAppl, time.Now(), &err)
	if !w.Connection().Connected {
		return nil, models.ErrNotConnected
	}
	return s.readApplications(ctx, w, chain.MethodGetUserAppl)
}

func (s *MarketplaceService) HasRole(ctx context.Context, w Wallet, role string, account common.Address) (_ bool, err error) {
	defer s.observe(chain.MethodHasRole, time.Now(), &err)

	out, err := s.read(ctx, w, chain.MethodHasRole, [32]byte(rbac.RoleID(role)), account)
	if err != nil {
		return false, err
	}
	ok, err := chain.Decode[bool](out[0])
	if err != nil {
		return false, decodeError(chain.MethodHasRole, err)
	}
	return ok, nil
}

// --- Writes ---

// CreateListing posts a gig through createGig, so the result is read back
// with ListAllGigs, not ListAllListings. Produce is listed with ListProduce.
// priceNatural ("2", "0.5") is converted to base units and attached as the
// bounty.
func (s *MarketplaceService) CreateListing(ctx context.Context, w Wallet, image, description string, kpis []string, priceNatural string) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodCreateGig, err)
	}
	if strings.TrimSpace(description) == "" {
		return nil, models.ErrInvalidInput{Field: "description"}
	}
	value, err := chain.ToBaseUnits(priceNatural)
	if err != nil {
		return nil, err
	}
	if value.IsZero() {
		return nil, fmt.Errorf("%w: zero bounty", models.ErrInvalidAmount)
	}
	if kpis == nil {
		kpis = []string{}
	}
	return s.write(ctx, w, chain.MethodCreateGig, value.Int(), image, description, kpis)
}

// ListProduce registers a produce item for sale.
func (s *MarketplaceService) ListProduce(ctx context.Context, w Wallet, in models.ProduceInput) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodListProduce, err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}
	return s.write(ctx, w, chain.MethodListProduce, nil, chain.ProduceInputTuple{
		Name:        in.Title,
		Description: in.Description,
		Price:       in.Price.Int(),
		Quantity:    new(big.Int).SetUint64(in.Quantity),
		ImageUrls:   images,
		Company:     in.Company,
		Location:    in.Location,
	})
}

// RequestPurchase attaches value as payment. The contract alone decides
// whether it is enough.
func (s *MarketplaceService) RequestPurchase(ctx context.Context, w Wallet, listingID, quantity uint64, value models.BaseUnits) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodRequestPurchase, err)
	}
	if quantity == 0 {
		return nil, models.ErrInvalidInput{Field: "quantity"}
	}
	return s.write(ctx, w, chain.MethodRequestPurchase, value.Int(),
		new(big.Int).SetUint64(listingID), new(big.Int).SetUint64(quantity))
}

// PurchaseListing re-reads the listing, pays its stored price times quantity
// and, on success, hands the purchase to the bonus flow.
func (s *MarketplaceService) PurchaseListing(ctx context.Context, w Wallet, listingID, quantity uint64) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodRequestPurchase, err)
	}

	listing, err := s.GetListing(ctx, w, listingID)
	if err != nil {
		return nil, err
	}
	value, err := PurchaseValue(listing, quantity)
	if err != nil {
		return nil, err
	}

	receipt, err := s.RequestPurchase(ctx, w, listingID, quantity, value)
	if err != nil {
		return receipt, err
	}

	if s.rewards != nil {
		s.rewards.MaybeGrantBonus(w.Connection(), quantity, PurchaseContext{
			SessionID: w.SessionID(),
			ListingID: listingID,
			Title:     listing.Title,
			TxHash:    receipt.Hash,
		})
	}
	return receipt, nil
}

func (s *MarketplaceService) ConfirmDelivery(ctx context.Context, w Wallet, requestID uint64) (*models.TxReceipt, error) {
	return s.writeByID(ctx, w, chain.MethodConfirmDelivery, requestID)
}

// PayParty releases escrow for a delivered request to the farmer.
func (s *MarketplaceService) PayParty(ctx context.Context, w Wallet, requestID uint64) (*models.TxReceipt, error) {
	return s.writeByID(ctx, w, chain.MethodPayFarmer, requestID)
}

// RegisterRole registers the connected account as a farmer.
func (s *MarketplaceService) RegisterRole(ctx context.Context, w Wallet) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodRegisterFarmer, err)
	}
	return s.write(ctx, w, chain.MethodRegisterFarmer, nil)
}

func (s *MarketplaceService) SelectWorker(ctx context.Context, w Wallet, gigID, applicationID uint64) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodSelectWorker, err)
	}
	return s.write(ctx, w, chain.MethodSelectWorker, nil,
		new(big.Int).SetUint64(gigID), new(big.Int).SetUint64(applicationID))
}

func (s *MarketplaceService) ApplyToListing(ctx context.Context, w Wallet, gigID uint64, coverLetter string) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodApplyJob, err)
	}
	if strings.TrimSpace(coverLetter) == "" {
		return nil, models.ErrInvalidInput{Field: "cover_letter"}
	}
	return s.write(ctx, w, chain.MethodApplyJob, nil, new(big.Int).SetUint64(gigID), coverLetter)
}

func (s *MarketplaceService) Payout(ctx context.Context, w Wallet, gigID uint64) (*models.TxReceipt, error) {
	return s.writeByID(ctx, w, chain.MethodPayout, gigID)
}

func (s *MarketplaceService) WithdrawFunds(ctx context.Context, w Wallet) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(chain.MethodWithdraw, err)
	}
	return s.write(ctx, w, chain.MethodWithdraw, nil)
}

// --- helpers ---

func requireConnected(w Wallet) error {
	if !w.Connection().Connected {
		return models.ErrNotConnected
	}
	return nil
}

func (s *MarketplaceService) observe(method string, started time.Time, err *error) {
	s.metrics.ObserveCall(method, started, *err)
}

func (s *MarketplaceService) observeLocal(method string, err error) error {
	s.metrics.ObserveCall(method, time.Now(), err)
	return err
}

func (s *MarketplaceService) writeByID(ctx context.Context, w Wallet, method string, id uint64) (*models.TxReceipt, error) {
	if err := requireConnected(w); err != nil {
		return nil, s.observeLocal(method, err)
	}
	return s.write(ctx, w, method, nil, new(big.Int).SetUint64(id))
}

func (s *MarketplaceService) write(ctx context.Context, w Wallet, method string, value *big.Int, args ...any) (receipt *models.TxReceipt, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveCall(method, started, err) }()

	conn := w.Connection()
	contract, err := w.Contract()
	if err != nil {
		return nil, err
	}

	receipt, err = contract.Transact(ctx, conn.Address, value, method, args...)
	if err != nil {
		s.log.Warn("contract write failed",
			zap.String("session_id", w.SessionID()),
			zap.String("method", method),
			zap.String("from", conn.Account()),
			zap.Error(err),
		)
		return receipt, err
	}

	s.log.Info("contract write mined",
		zap.String("session_id", w.SessionID()),
		zap.String("method", method),
		zap.String("tx_hash", receipt.Hash),
	)
	if s.publisher != nil {
		if perr := s.publisher.Publish(ctx, events.StreamSession, events.Event{
			Type:      events.EventTxSubmitted,
			SessionID: w.SessionID(),
			Payload: map[string]any{
				"method":  method,
				"tx_hash": receipt.Hash,
				"status":  receipt.Status,
			},
		}); perr != nil {
			s.log.Debug("tx event publish failed", zap.Error(perr))
		}
	}
	return receipt, nil
}

func (s *MarketplaceService) read(ctx context.Context, w Wallet, method string, args ...any) ([]any, error) {
	contract, err := w.Contract()
	if err != nil {
		return nil, err
	}
	out, err := contract.Call(ctx, w.Connection().Address, method, args...)
	if err != nil {
		s.log.Warn("contract read failed",
			zap.String("session_id", w.SessionID()),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, err
	}
	if len(out) == 0 {
		return nil, &models.ContractCallError{Method: method, Reason: "empty result"}
	}
	return out, nil
}

func (s *MarketplaceService) readGigs(ctx context.Context, w Wallet, method string) ([]models.Gig, error) {
	out, err := s.read(ctx, w, method)
	if err != nil {
		return nil, err
	}
	tuples, err := chain.Decode[[]chain.GigTuple](out[0])
	if err != nil {
		return nil, decodeError(method, err)
	}
	gigs := make([]models.Gig, 0, len(tuples))
	for _, t := range tuples {
		gigs = append(gigs, gigFromTuple(t))
	}
	return gigs, nil
}

func (s *MarketplaceService) readApplications(ctx context.Context, w Wallet, method string, args ...any) ([]models.Application, error) {
	out, err := s.read(ctx, w, method, args...)
	if err != nil {
		return nil, err
	}
	tuples, err := chain.Decode[[]chain.ApplicationTuple](out[0])
	if err != nil {
		return nil, decodeError(method, err)
	}
	apps := make([]models.Application, 0, len(tuples))
	for _, t := range tuples {
		apps = append(apps, models.Application{
			ID:          uint64OrZero(t.AppId),
			GigID:       uint64OrZero(t.GigId),
			Applicant:   t.Applicant.Hex(),
			CoverLetter: t.CoverLetter,
			Selected:    t.Selected,
		})
	}
	return apps, nil
}

func decodeError(method string, err error) error {
	return &models.ContractCallError{Method: method, Reason: "decode result", Err: err}
}

func listingFromTuple(t chain.ProduceTuple) models.Listing {
	return models.Listing{
		ID:          uint64OrZero(t.Id),
		Owner:       t.Farmer.Hex(),
		Title:       t.Name,
		Description: t.Description,
		Price:       models.NewBaseUnits(t.Price),
		Quantity:    uint64OrZero(t.Quantity),
		Images:      t.ImageUrls,
		Company:     t.Company,
		Location:    t.Location,
		Available:   t.Available,
	}
}

func gigFromTuple(t chain.GigTuple) models.Gig {
	assigned := ""
	if t.AssignedApplicant != (common.Address{}) {
		assigned = t.AssignedApplicant.Hex()
	}
	return models.Gig{
		ID:                uint64OrZero(t.GigId),
		Owner:             t.Owner.Hex(),
		AssignedApplicant: assigned,
		Image:             t.Img,
		Description:       t.Description,
		Bounty:            models.NewBaseUnits(t.Bounty),
		KPIs:              t.Kpis,
		UserSelected:      t.UserSelected,
		Paid:              t.Paid,
	}
}

func uint64OrZero(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
