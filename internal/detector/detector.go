// Package detector implements the off-price rule: a seller is off-price when
// its listed price is strictly below the product's MAP floor.
package detector

import (
	"github.com/shopspring/decimal"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
)

// Finding is one seller listed below the MAP floor.
type Finding struct {
	SellerName    string
	ObservedPrice decimal.Decimal
	MAPPrice      decimal.Decimal
	// Delta is floor minus observed price, always positive.
	Delta decimal.Decimal
}

// FindBelowFloor returns one finding per listing priced strictly below floor.
// A listing at exactly the floor is compliant. Findings preserve the input
// listing order. The function is pure: same inputs, same findings.
func FindBelowFloor(listings []domain.Listing, floor decimal.Decimal) []Finding {
	var findings []Finding
	for _, l := range listings {
		if l.Price.LessThan(floor) {
			findings = append(findings, Finding{
				SellerName:    l.SellerName,
				ObservedPrice: l.Price,
				MAPPrice:      floor,
				Delta:         floor.Sub(l.Price),
			})
		}
	}
	return findings
}
