package models

import (
	"strings"
)

// Listing is a produce item stored by the marketplace contract. The gateway
// never mutates it, it asks the contract to and reads it again.
type Listing struct {
	ID          uint64    `json:"produce_id"`
	Owner       string    `json:"farmer"`
	Title       string    `json:"name"`
	Description string    `json:"description"`
	Price       BaseUnits `json:"price_base_units"`
	Quantity    uint64    `json:"quantity"`
	Images      []string  `json:"image_urls"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Available   bool      `json:"available"`
}

// ProduceInput is what a seller submits through listProduce.
type ProduceInput struct {
	Title       string    `json:"name"`
	Description string    `json:"description"`
	Price       BaseUnits `json:"price_base_units"`
	Quantity    uint64    `json:"quantity"`
	Images      []string  `json:"image_urls"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
}

// Validate mirrors the checks the contract would revert on, so obviously
// broken input never costs gas.
func (p ProduceInput) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrInvalidInput{Field: "name"}
	}
	if p.Quantity == 0 {
		return ErrInvalidInput{Field: "quantity"}
	}
	if p.Price.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// Gig is a job-style listing with a bounty held by the contract.
type Gig struct {
	ID                uint64    `json:"gig_id"`
	Owner             string    `json:"owner"`
	AssignedApplicant string    `json:"assigned_applicant"`
	Image             string    `json:"img"`
	Description       string    `json:"description"`
	Bounty            BaseUnits `json:"bounty_base_units"`
	KPIs              []string  `json:"kpis"`
	UserSelected      bool      `json:"user_selected"`
	Paid              bool      `json:"paid"`
}

type Application struct {
	ID          uint64 `json:"app_id"`
	GigID       uint64 `json:"gig_id"`
	Applicant   string `json:"applicant"`
	CoverLetter string `json:"cover_letter"`
	Selected    bool   `json:"selected"`
}

// PricedListing is a listing with its presentation price. PricePending is set
// when the conversion rate could not be fetched.
type PricedListing struct {
	Listing
	DisplayPrice *DisplayAmount `json:"display_price,omitempty"`
	PricePending bool           `json:"price_pending"`
}
