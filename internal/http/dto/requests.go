package dto

type ConnectENSRequest struct {
	Name string `json:"name"`
}

// CreateProduceRequest lists produce. Price is per unit in natural units
// ("0.5"), it is converted to base units before it reaches the contract.
type CreateProduceRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Quantity    uint64   `json:"quantity"`
	ImageURLs   []string `json:"image_urls"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
}

type PurchaseRequest struct {
	Quantity uint64 `json:"quantity"`
}

type CreateGigRequest struct {
	Image       string   `json:"image"`
	Description string   `json:"description"`
	KPIs        []string `json:"kpis"`
	Price       string   `json:"price"` // natural units, e.g. "2"
}

type ApplyRequest struct {
	CoverLetter string `json:"cover_letter"`
}

type SelectWorkerRequest struct {
	ApplicationID uint64 `json:"application_id"`
}
