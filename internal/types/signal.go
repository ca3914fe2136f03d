package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-live-trader/pkg/errors"
)

type SignalAction string

const (
	// SignalActionBuy tells the engine to open or add to a long exposure.
	SignalActionBuy SignalAction = "BUY"
	// SignalActionSell tells the engine to open or add to a short exposure.
	SignalActionSell SignalAction = "SELL"
	// SignalActionClose tells the engine to flatten the current position.
	SignalActionClose SignalAction = "CLOSE"
)

// Signal is a directional trading instruction emitted by a strategy. It is
// not yet sized or risk-checked; the engine consumes it exactly once.
type Signal struct {
	Symbol string       `yaml:"symbol" json:"symbol" validate:"required"`
	Action SignalAction `yaml:"action" json:"action" validate:"required,oneof=BUY SELL CLOSE"`
	// Strength scales the base position size, 1.0 meaning full conviction.
	Strength float64   `yaml:"strength" json:"strength" validate:"gte=0,lte=1"`
	Price    float64   `yaml:"price" json:"price" validate:"required,gt=0"`
	Time     time.Time `yaml:"time" json:"time" validate:"required"`
	// Reason is a human-readable explanation, e.g. "ema_cross_up".
	Reason       string `yaml:"reason" json:"reason"`
	StrategyName string `yaml:"strategy_name" json:"strategy_name" validate:"required"`
}

// Validate validates the Signal struct.
func (s *Signal) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	return nil
}
