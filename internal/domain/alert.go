package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is one seller's offer for an identifier, as returned by the
// pricing provider.
type Listing struct {
	SellerName string          `json:"seller_name"`
	Price      decimal.Decimal `json:"price"`
}

// PriceAlert is a detected off-price seller event. observed_price is always
// strictly below map_price.
type PriceAlert struct {
	ID            int64           `db:"id"             json:"id"`
	JobID         string          `db:"job_id"         json:"job_id"`
	BatchID       string          `db:"batch_id"       json:"batch_id"`
	Identifier    string          `db:"identifier"     json:"identifier"`
	SellerName    string          `db:"seller_name"    json:"seller_name"`
	ObservedPrice decimal.Decimal `db:"observed_price" json:"observed_price"`
	MAPPrice      decimal.Decimal `db:"map_price"      json:"map_price"`
	Delta         decimal.Decimal `db:"delta"          json:"delta"`
	DetectedAt    time.Time       `db:"detected_at"    json:"detected_at"`
}

// MAPPrice is the reference floor price for one identifier in one category.
// Maintained by CRUD, read-only to the detector.
type MAPPrice struct {
	ID          int64           `db:"id"           json:"id"`
	Category    Category        `db:"category"     json:"category"`
	Identifier  string          `db:"identifier"   json:"identifier"`
	MAPPrice    decimal.Decimal `db:"map_price"    json:"map_price"`
	ProductName *string         `db:"product_name" json:"product_name,omitempty"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

// UPCRecord is one identifier in a category's roster. The scheduler
// snapshots the roster when it auto-creates a job.
type UPCRecord struct {
	ID         int64     `db:"id"         json:"id"`
	Category   Category  `db:"category"   json:"category"`
	Identifier string    `db:"identifier" json:"identifier"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
