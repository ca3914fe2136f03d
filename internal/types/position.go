package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// Position is the net open exposure for one symbol. At most one Position with
// nonzero size exists per symbol at any time; a direction flip must pass
// through a flat (zero-size) state.
type Position struct {
	Symbol string       `yaml:"symbol" json:"symbol"`
	Side   PositionSide `yaml:"side" json:"side"`
	// Size is the base-asset quantity, always >= 0 regardless of side.
	Size float64 `yaml:"size" json:"size"`
	// EntryPrice is the size-weighted average entry price.
	EntryPrice    float64 `yaml:"entry_price" json:"entry_price"`
	CurrentPrice  float64 `yaml:"current_price" json:"current_price"`
	UnrealizedPnL float64 `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	RealizedPnL   float64 `yaml:"realized_pnl" json:"realized_pnl"`
	Margin        float64 `yaml:"margin" json:"margin"`
	// Percentage is the unrealized return relative to the entry price, in percent.
	Percentage float64 `yaml:"percentage" json:"percentage"`
	// OrderID is the id of the order that opened this position.
	OrderID   string    `yaml:"order_id" json:"order_id"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// PnLAt returns the profit of closing size units at the given price:
// (price - entry) * size for LONG, mirrored for SHORT.
func (p *Position) PnLAt(price, size float64) float64 {
	entryDec := decimal.NewFromFloat(p.EntryPrice)
	priceDec := decimal.NewFromFloat(price)
	sizeDec := decimal.NewFromFloat(size)

	var diff decimal.Decimal
	if p.Side == PositionSideLong {
		diff = priceDec.Sub(entryDec)
	} else {
		diff = entryDec.Sub(priceDec)
	}

	result, _ := diff.Mul(sizeDec).Float64()

	return result
}

// ReturnPercentageAt returns the unrealized return at the given price relative
// to the entry price, in percent, direction-aware.
func (p *Position) ReturnPercentageAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}

	entryDec := decimal.NewFromFloat(p.EntryPrice)
	priceDec := decimal.NewFromFloat(price)

	var diff decimal.Decimal
	if p.Side == PositionSideLong {
		diff = priceDec.Sub(entryDec)
	} else {
		diff = entryDec.Sub(priceDec)
	}

	result, _ := diff.Div(entryDec).Mul(decimal.NewFromInt(100)).Float64()

	return result
}

// WeightedEntryPrice returns the new average entry price after adding addSize
// units at addPrice to the existing exposure:
// (entry*size + addPrice*addSize) / (size + addSize).
func (p *Position) WeightedEntryPrice(addSize, addPrice float64) float64 {
	totalSize := decimal.NewFromFloat(p.Size).Add(decimal.NewFromFloat(addSize))
	if totalSize.IsZero() {
		return 0
	}

	existingCost := decimal.NewFromFloat(p.EntryPrice).Mul(decimal.NewFromFloat(p.Size))
	addedCost := decimal.NewFromFloat(addPrice).Mul(decimal.NewFromFloat(addSize))

	result, _ := existingCost.Add(addedCost).Div(totalSize).Float64()

	return result
}

// IsOpen reports whether the position carries nonzero exposure.
func (p *Position) IsOpen() bool {
	return p.Size > 0
}
