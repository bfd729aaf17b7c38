package chain

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed tewo.abi.json
var marketplaceABIJSON string

var (
	marketplaceOnce sync.Once
	marketplaceABI  abi.ABI
	marketplaceErr  error
)

// MarketplaceABI returns the parsed interface description of the marketplace
// contract. It is parsed once per process.
func MarketplaceABI() (abi.ABI, error) {
	marketplaceOnce.Do(func() {
		marketplaceABI, marketplaceErr = abi.JSON(strings.NewReader(marketplaceABIJSON))
		if marketplaceErr != nil {
			marketplaceErr = fmt.Errorf("failed to parse marketplace ABI: %w", marketplaceErr)
		}
	})
	return marketplaceABI, marketplaceErr
}

// Contract method names.
const (
	MethodGetAllProduce      = "getAllProduce"
	MethodGetProduceByID     = "getProduceById"
	MethodRequestPurchase    = "requestPurchase"
	MethodListProduce        = "listProduce"
	MethodRegisterFarmer     = "registerFarmer"
	MethodConfirmDelivery    = "confirmDelivery"
	MethodPayFarmer          = "payFarmer"
	MethodWithdraw           = "withdraw"
	MethodCreateGig          = "createGig"
	MethodApplyJob           = "applyJob"
	MethodSelectWorker       = "selectWorker"
	MethodPayout             = "payout"
	MethodGetAllGigs         = "getAllGigs"
	MethodGetGigByID         = "getGigById"
	MethodGetUsersGig        = "getUsersGig"
	MethodGetUserAppl        = "getUserAppl"
	MethodGetGigApplications = "getGigApplications"
	MethodHasRole            = "hasRole"
)

// Contract event names.
const (
	EventGigCreated     = "GigCreated"
	EventGigAssigned    = "GigAssigned"
	EventGigPaidOut     = "GigPaidOut"
	EventFundsWithdrawn = "FundsWithdrawn"
	EventReceived       = "Received"
)

// Contract custom errors.
const (
	ErrorInvalidAmount = "InvalidAmount"
	ErrorInvalidID     = "InvalidId"
)

// ProduceTuple mirrors the Produce struct returned by the contract. Field
// names follow the ABI component names so abi.ConvertType can map them.
type ProduceTuple struct {
	Id          *big.Int
	Farmer      common.Address
	Name        string
	Description string
	Price       *big.Int
	Quantity    *big.Int
	ImageUrls   []string
	Available   bool
	Company     string
	Location    string
}

// ProduceInputTuple is the listProduce argument.
type ProduceInputTuple struct {
	Name        string
	Description string
	Price       *big.Int
	Quantity    *big.Int
	ImageUrls   []string
	Company     string
	Location    string
}

type GigTuple struct {
	GigId             *big.Int
	Owner             common.Address
	AssignedApplicant common.Address
	Img               string
	Description       string
	Bounty            *big.Int
	Kpis              []string
	UserSelected      bool
	Paid              bool
}

type ApplicationTuple struct {
	AppId       *big.Int
	GigId       *big.Int
	Applicant   common.Address
	CoverLetter string
	Selected    bool
}

// Decode converts an unpacked ABI value into T. abi.ConvertType panics on a
// shape mismatch, that panic is returned as an error.
func Decode[T any](v any) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected ABI value %T: %v", v, r)
		}
	}()
	return *abi.ConvertType(v, new(T)).(*T), nil
}
