package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceUpdate is one (price, quantity) pair from a depth delta or snapshot.
// A zero quantity means the level has been removed from the book.
type PriceUpdate struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// PriceLevel is one resting level of the book, used by read projections.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// PriceKey renders a price as its canonical map key. Exchange feeds pad
// prices with trailing zeros ("0.0100" vs "0.01"); keying on the raw string
// would split one level into several, so trailing zeros are stripped here.
func PriceKey(p decimal.Decimal) string {
	s := p.String()
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
