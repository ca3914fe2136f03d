package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

type OrderSide string

type OrderType string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a sized, venue-bound instruction with its own execution lifecycle:
// CREATED -> PENDING -> {FILLED, FAILED, CANCELLED}. Terminal states are
// immutable; Transition enforces monotonicity.
type Order struct {
	ID       string    `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol   string    `yaml:"symbol" json:"symbol" validate:"required"`
	Side     OrderSide `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Type     OrderType `yaml:"type" json:"type" validate:"required,oneof=MARKET LIMIT"`
	Quantity float64   `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Price    float64   `yaml:"price" json:"price" validate:"required,gt=0"`
	Status   OrderStatus `yaml:"status" json:"status"`

	FilledPrice    float64 `yaml:"filled_price" json:"filled_price"`
	FilledQuantity float64 `yaml:"filled_quantity" json:"filled_quantity"`
	Commission     float64 `yaml:"commission" json:"commission"`

	// StopLoss and TakeProfit are absolute trigger prices derived by the risk
	// manager. None when the order carries no protective levels.
	StopLoss   optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit optional.Option[float64] `yaml:"take_profit" json:"take_profit"`

	// Reason records why the order exists, e.g. "strategy", "stop_loss",
	// "trading_disabled".
	Reason       string `yaml:"reason" json:"reason"`
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	FilledAt  time.Time `yaml:"filled_at" json:"filled_at"`
}

// Transition moves the order to the next status, rejecting any move out of a
// terminal state and any skip of the CREATED -> PENDING step.
func (o *Order) Transition(next OrderStatus) error {
	if o.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeIllegalTransition,
			"order %s is terminal (%s), cannot transition to %s", o.ID, o.Status, next)
	}

	switch o.Status {
	case OrderStatusCreated:
		if next != OrderStatusPending {
			return errors.Newf(errors.ErrCodeIllegalTransition,
				"order %s: illegal transition %s -> %s", o.ID, o.Status, next)
		}
	case OrderStatusPending:
		if !next.IsTerminal() {
			return errors.Newf(errors.ErrCodeIllegalTransition,
				"order %s: illegal transition %s -> %s", o.ID, o.Status, next)
		}
	}

	o.Status = next

	return nil
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}
